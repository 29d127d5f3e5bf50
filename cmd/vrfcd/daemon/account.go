package daemon

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/er-state/vrf-consumer/types"
)

// CommandAccount returns the account group command operating on user
// accounts of the consumer program.
func CommandAccount(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "account",
		Short: "Create, update, close and show user accounts.",
	}

	initCmd := &cobra.Command{
		Use:     "init",
		Short:   "Create the user account of a key.",
		Example: fmt.Sprintf(`%s account init --key-name alice`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runCommandAccountInit,
	}

	updateCmd := &cobra.Command{
		Use:     "update",
		Short:   "Set the data of the user account of a key.",
		Example: fmt.Sprintf(`%s account update --key-name alice --value 42`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runCommandAccountUpdate,
	}
	updateCmd.Flags().Uint64(valueFlag, 0, "The value to store")

	closeCmd := &cobra.Command{
		Use:     "close",
		Short:   "Close the user account of a key.",
		Example: fmt.Sprintf(`%s account close --key-name alice`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runCommandAccountClose,
	}

	showCmd := &cobra.Command{
		Use:     "show [user-pubkey]",
		Short:   "Show the user account of a key name or of a base58 user identity.",
		Example: fmt.Sprintf(`%s account show --key-name alice`, binaryName),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCommandAccountShow,
	}

	for _, c := range []*cobra.Command{initCmd, updateCmd, closeCmd} {
		c.Flags().String(keyNameFlag, "", "The name of the key owning the account")
		if err := c.MarkFlagRequired(keyNameFlag); err != nil {
			panic(err)
		}
	}
	showCmd.Flags().String(keyNameFlag, "", "The name of the key owning the account")

	cmd.AddCommand(initCmd, updateCmd, closeCmd, showCmd)

	return cmd
}

func runCommandAccountInit(cmd *cobra.Command, _ []string) error {
	keyName, err := cmd.Flags().GetString(keyNameFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", keyNameFlag, err)
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	info, err := app.CreateUserAccount(cmd.Context(), keyName)
	if err != nil {
		return err
	}
	printRespJSON(cmd, info)

	return nil
}

func runCommandAccountUpdate(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	keyName, err := flags.GetString(keyNameFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", keyNameFlag, err)
	}
	value, err := flags.GetUint64(valueFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", valueFlag, err)
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	info, err := app.UpdateUserAccount(cmd.Context(), keyName, value)
	if err != nil {
		return err
	}
	printRespJSON(cmd, info)

	return nil
}

func runCommandAccountClose(cmd *cobra.Command, _ []string) error {
	keyName, err := cmd.Flags().GetString(keyNameFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", keyNameFlag, err)
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	if err := app.CloseUserAccount(cmd.Context(), keyName); err != nil {
		return err
	}
	cmd.Printf("closed the user account of %s\n", keyName)

	return nil
}

func runCommandAccountShow(cmd *cobra.Command, args []string) error {
	keyName, err := cmd.Flags().GetString(keyNameFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", keyNameFlag, err)
	}
	if (keyName == "") == (len(args) == 0) {
		return fmt.Errorf("specify either a user identity or --%s", keyNameFlag)
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	var user types.Pubkey
	if keyName != "" {
		key, err := app.GetKeyStore().GetKey(keyName)
		if err != nil {
			return err
		}
		user = key.Pubkey
	} else {
		user, err = types.NewPubkeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid user identity: %w", err)
		}
	}

	info, err := app.GetUserAccount(user)
	if err != nil {
		return err
	}
	printRespJSON(cmd, info)

	return nil
}
