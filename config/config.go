package config

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/er-state/vrf-consumer/log"
	"github.com/er-state/vrf-consumer/metrics"
	"github.com/er-state/vrf-consumer/util"
)

// Constants for config default values
const (
	defaultLogLevel       = zapcore.InfoLevel
	defaultLogFormat      = log.FormatAuto
	defaultLogDirname     = "logs"
	defaultLogFilename    = "vrfcd.log"
	DefaultRPCPort        = 12681
	defaultConfigFileName = "vrfcd.conf"
	defaultDataDirname    = "data"
)

var (
	//   C:\Users\<username>\AppData\Local\ on Windows
	//   ~/.vrfcd on Linux
	//   ~/Users/<username>/Library/Application Support/Vrfcd on MacOS
	DefaultVrfcdDir = btcutil.AppDataDir("vrfcd", false)

	DefaultRPCListener = "127.0.0.1:" + strconv.Itoa(DefaultRPCPort)
)

// Config is the main config for the vrfcd cli command
type Config struct {
	LogLevel  string `long:"loglevel" description:"Logging level for all subsystems" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal"`
	LogFormat string `long:"logformat" description:"Logging format" choice:"auto" choice:"console" choice:"json" choice:"logfmt"`

	RPCListener string `long:"rpclistener" description:"the listener for HTTP API connections, e.g., 127.0.0.1:1234"`

	DatabaseConfig *DBConfig `group:"dbconfig" namespace:"dbconfig"`

	Oracle *OracleConfig `group:"oracle" namespace:"oracle"`

	Metrics *metrics.Config `group:"metrics" namespace:"metrics"`
}

func DefaultConfigWithHome(homePath string) Config {
	oracleCfg := DefaultOracleConfig()
	cfg := Config{
		LogLevel:       defaultLogLevel.String(),
		LogFormat:      defaultLogFormat,
		RPCListener:    DefaultRPCListener,
		DatabaseConfig: DefaultDBConfigWithHomePath(homePath),
		Oracle:         &oracleCfg,
		Metrics:        metrics.DefaultVrfcdConfig(),
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

func DefaultConfig() Config {
	return DefaultConfigWithHome(DefaultVrfcdDir)
}

func CfgFile(homePath string) string {
	return filepath.Join(homePath, defaultConfigFileName)
}

func LogDir(homePath string) string {
	return filepath.Join(homePath, defaultLogDirname)
}

func LogFile(homePath string) string {
	return filepath.Join(LogDir(homePath), defaultLogFilename)
}

func DataDir(homePath string) string {
	return filepath.Join(homePath, defaultDataDirname)
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Load configuration file overwriting defaults with any specified options
//  3. Validate the result
func LoadConfig(homePath string) (*Config, error) {
	// The home directory is required to have a configuration file with a specific name
	// under it.
	cfgFile := CfgFile(homePath)
	if !util.FileExists(cfgFile) {
		return nil, fmt.Errorf("specified config file does "+
			"not exist in %s", cfgFile)
	}

	// Next, load any additional configuration options from the file.
	cfg := DefaultConfigWithHome(homePath)
	fileParser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(fileParser).ParseFile(cfgFile)
	if err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteConfig writes cfg to the config file under homePath, defaults and
// descriptions included.
func WriteConfig(homePath string, cfg *Config) error {
	fileParser := flags.NewParser(cfg, flags.Default)

	return flags.NewIniParser(fileParser).WriteFile(CfgFile(homePath), flags.IniIncludeComments|flags.IniIncludeDefaults)
}

// Validate checks the given configuration to be sane. This makes sure no
// illegal values or a combination of values are set.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if err := util.ValidateListenAddress(cfg.RPCListener); err != nil {
		return fmt.Errorf("invalid RPC listener: %w", err)
	}

	if cfg.DatabaseConfig == nil {
		return fmt.Errorf("database config cannot be empty")
	}
	if err := cfg.DatabaseConfig.Validate(); err != nil {
		return fmt.Errorf("database configuration validation failed: %w", err)
	}

	if cfg.Oracle == nil {
		return fmt.Errorf("oracle config cannot be empty")
	}
	if err := cfg.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle configuration validation failed: %w", err)
	}

	// Validate metrics configuration
	if cfg.Metrics == nil {
		return fmt.Errorf("metrics configuration cannot be empty")
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics configuration validation failed: %w", err)
	}

	return nil
}
