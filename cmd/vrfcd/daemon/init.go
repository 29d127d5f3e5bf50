package daemon

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/util"
)

// CommandInit returns the init command of vrfcd daemon that starts the config dir.
func CommandInit(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "init",
		Short:   "Initialize a vrfcd home directory.",
		Long:    `Creates a new vrfcd home directory with default config`,
		Example: fmt.Sprintf(`%s init --home /home/user/.vrfcd --force`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runInitCmd,
	}
	cmd.Flags().Bool(forceFlag, false, "Override existing configuration")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	homePath, err := getHomePath(cmd)
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool(forceFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", forceFlag, err)
	}

	if util.FileExists(homePath) && !force {
		return fmt.Errorf("home path %s already exists", homePath)
	}

	if err := util.MakeDirectory(homePath); err != nil {
		return err
	}
	// Create log directory
	logDir := config.LogDir(homePath)
	if err := util.MakeDirectory(logDir); err != nil {
		return err
	}

	defaultConfig := config.DefaultConfigWithHome(homePath)

	return config.WriteConfig(homePath, &defaultConfig)
}
