package daemon

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/log"
	"github.com/er-state/vrf-consumer/service"
	"github.com/er-state/vrf-consumer/util"
)

// CommandStart returns the start command of vrfcd daemon.
func CommandStart(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "start",
		Short:   "Start the vrfcd daemon.",
		Long:    `Start the ledger, the oracle fulfillment loop and the HTTP API.`,
		Example: fmt.Sprintf(`%s start --home /home/user/.vrfcd`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runStartCmd,
	}
	cmd.Flags().String(rpcListenerFlag, "", "The address that the HTTP API listens to")
	cmd.Flags().Bool(noFulfillFlag, false, "Do not fulfill queued requests automatically")

	return cmd
}

func runStartCmd(cmd *cobra.Command, _ []string) error {
	homePath, err := getHomePath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(homePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()

	rpcListener, err := flags.GetString(rpcListenerFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", rpcListenerFlag, err)
	}
	if rpcListener != "" {
		if err := util.ValidateListenAddress(rpcListener); err != nil {
			return fmt.Errorf("invalid RPC listener address %s, %w", rpcListener, err)
		}
		cfg.RPCListener = rpcListener
	}

	noFulfill, err := flags.GetBool(noFulfillFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", noFulfillFlag, err)
	}
	if noFulfill {
		cfg.Oracle.AutoFulfill = false
	}

	logger, err := log.NewRootLoggerWithFile(config.LogFile(homePath), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize the logger: %w", err)
	}

	dbBackend, err := cfg.DatabaseConfig.GetDBBackend()
	if err != nil {
		return fmt.Errorf("failed to create db backend: %w", err)
	}

	app, err := service.NewVrfConsumerAppFromConfig(cfg, dbBackend, logger)
	if err != nil {
		return fmt.Errorf("failed to create vrfcd app: %w", err)
	}

	srv := service.NewVrfConsumerServer(cfg, logger, app, dbBackend)

	if err := srv.RunUntilShutdown(cmd.Context()); err != nil {
		return fmt.Errorf("failed to run vrfcd server: %w", err)
	}

	return nil
}
