package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/er-state/vrf-consumer/util"
)

// Supported log formats.
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatLogfmt  = "logfmt"
)

// NewRootLogger builds the process logger writing to w in the given format
// at the given level.
func NewRootLogger(format string, level string, w io.Writer) (*zap.Logger, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	}
	cfg.LevelKey = "lvl"

	var enc zapcore.Encoder
	switch format {
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(cfg)
	case FormatAuto, FormatConsole:
		enc = zapcore.NewConsoleEncoder(cfg)
	case FormatLogfmt:
		enc = zaplogfmt.NewEncoder(cfg)
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	return zap.New(zapcore.NewCore(
		enc,
		zapcore.AddSync(w),
		lvl,
	)), nil
}

// ParseLevel maps a configured level name onto a zap level. "trace" is an
// alias of debug.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "panic":
		return zap.PanicLevel, nil
	case "fatal":
		return zap.FatalLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "debug", "trace":
		return zap.DebugLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf("unsupported log level: %s", level)
	}
}

// NewRootLoggerWithFile tees the logger into stdout and logFile, creating
// the log directory when missing.
func NewRootLoggerWithFile(logFile string, format string, level string) (*zap.Logger, error) {
	if err := util.MakeDirectory(filepath.Dir(logFile)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}
	mw := io.MultiWriter(os.Stdout, f)

	return NewRootLogger(format, level, mw)
}
