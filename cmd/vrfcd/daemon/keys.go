package daemon

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

// CommandKeys returns the keys group command managing the local identities
// that sign user transactions and oracle fulfillments.
func CommandKeys(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "keys",
		Short: "Manage the local signing keys.",
	}

	addCmd := &cobra.Command{
		Use:     "add [name]",
		Short:   "Create a key, or import one from a hex encoded 32-byte seed.",
		Long:    "Create a key. If it is to be the oracle authority, remind to update oracle.authoritykey in vrfcd.conf",
		Example: fmt.Sprintf(`%s keys add alice`, binaryName),
		Args:    cobra.ExactArgs(1),
		RunE:    runCommandKeysAdd,
	}
	addCmd.Flags().String(seedFlag, "", "Hex encoded ed25519 seed to import instead of generating one")

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List the stored keys.",
		Example: fmt.Sprintf(`%s keys list`, binaryName),
		Args:    cobra.NoArgs,
		RunE:    runCommandKeysList,
	}

	showCmd := &cobra.Command{
		Use:     "show [name]",
		Short:   "Show the public key of a stored key.",
		Example: fmt.Sprintf(`%s keys show alice`, binaryName),
		Args:    cobra.ExactArgs(1),
		RunE:    runCommandKeysShow,
	}

	cmd.AddCommand(addCmd, listCmd, showCmd)

	return cmd
}

func runCommandKeysAdd(cmd *cobra.Command, args []string) error {
	seedHex, err := cmd.Flags().GetString(seedFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", seedFlag, err)
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	ks := app.GetKeyStore()
	if seedHex == "" {
		info, err := ks.CreateKey(args[0])
		if err != nil {
			return err
		}
		printRespJSON(cmd, info)

		return nil
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}
	info, err := ks.ImportKey(args[0], seed)
	if err != nil {
		return err
	}
	printRespJSON(cmd, info)

	return nil
}

func runCommandKeysList(cmd *cobra.Command, _ []string) error {
	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	keys, err := app.GetKeyStore().ListKeys()
	if err != nil {
		return err
	}
	printRespJSON(cmd, keys)

	return nil
}

func runCommandKeysShow(cmd *cobra.Command, args []string) error {
	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	info, err := app.GetKeyStore().GetKey(args[0])
	if err != nil {
		return err
	}
	printRespJSON(cmd, info)

	return nil
}
