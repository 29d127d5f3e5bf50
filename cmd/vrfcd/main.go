package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/er-state/vrf-consumer/cmd/vrfcd/daemon"
	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/version"
)

const BinaryName = "vrfcd"

// NewRootCmd creates a new root command for vrfcd. It is called once in the main function.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           BinaryName,
		Short:         fmt.Sprintf("%s - VRF consumer daemon.", BinaryName),
		Long:          fmt.Sprintf(`%s runs the randomness consumer program and a local oracle over a local ledger.`, BinaryName),
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String(daemon.HomeFlag, config.DefaultVrfcdDir, "The application home directory")

	return rootCmd
}

func main() {
	cmd := NewRootCmd()

	// add daemon commands
	daemon.AddDaemonCommands(cmd, BinaryName)
	// add version command
	version.AddVersionCommand(cmd, BinaryName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your vrfcd CLI '%s'", err)
		os.Exit(1) //nolint:gocritic
	}
}
