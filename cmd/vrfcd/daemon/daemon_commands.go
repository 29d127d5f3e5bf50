package daemon

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/log"
	"github.com/er-state/vrf-consumer/service"
	"github.com/er-state/vrf-consumer/util"
)

var defaultVrfcdDaemonAddress = config.DefaultRPCListener

// AddDaemonCommands adds every vrfcd command except version to cmd.
func AddDaemonCommands(cmd *cobra.Command, binaryName string) {
	cmd.AddCommand(
		CommandInit(binaryName),
		CommandStart(binaryName),
		CommandKeys(binaryName),
		CommandAccount(binaryName),
		CommandRequestRandomness(binaryName),
		CommandOracle(binaryName),
	)
}

func getHomePath(cmd *cobra.Command) (string, error) {
	home, err := cmd.Flags().GetString(HomeFlag)
	if err != nil {
		return "", fmt.Errorf("failed to read flag %s: %w", HomeFlag, err)
	}

	homePath, err := filepath.Abs(home)
	if err != nil {
		return "", fmt.Errorf("failed to get home path: %w", err)
	}

	return util.CleanAndExpandPath(homePath), nil
}

// loadLocalApp opens the ledger under the home directory directly. The db
// is locked while a daemon runs on the same home, so commands that support
// it should go through --daemon-address instead.
func loadLocalApp(cmd *cobra.Command) (*service.VrfConsumerApp, func(), error) {
	homePath, err := getHomePath(cmd)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadConfig(homePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := log.NewRootLogger(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize the logger: %w", err)
	}

	dbBackend, err := cfg.DatabaseConfig.GetDBBackend()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create db backend: %w", err)
	}
	cleanUp := func() {
		if err := dbBackend.Close(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Failed to close the db: %v\n", err)
		}
	}

	app, err := service.NewVrfConsumerAppFromConfig(cfg, dbBackend, logger)
	if err != nil {
		cleanUp()

		return nil, nil, fmt.Errorf("failed to create vrfcd app: %w", err)
	}

	if _, err := app.EnsureOracleQueue(); err != nil {
		cleanUp()

		return nil, nil, fmt.Errorf("failed to set up the oracle queue: %w", err)
	}

	return app, cleanUp, nil
}

func printRespJSON(cmd *cobra.Command, resp interface{}) {
	jsonBytes, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		cmd.Println("unable to decode response: ", err)

		return
	}

	cmd.Printf("%s\n", jsonBytes)
}
