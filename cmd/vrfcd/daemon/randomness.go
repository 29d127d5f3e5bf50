package daemon

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/er-state/vrf-consumer/service"
	dc "github.com/er-state/vrf-consumer/service/client"
)

// CommandRequestRandomness returns the request-randomness command.
func CommandRequestRandomness(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "request-randomness",
		Aliases: []string{"rr"},
		Short:   "Request randomness for the user account of a key.",
		Long: "Submit a randomness request for the user account of a key. The delivered value is stored " +
			"in the account once the oracle fulfills the request. Without --daemon-address the ledger " +
			"under --home is opened directly.",
		Example: fmt.Sprintf(`%s request-randomness --key-name alice --client-seed 7 --daemon-address %s`, binaryName, defaultVrfcdDaemonAddress),
		Args:    cobra.NoArgs,
		RunE:    runCommandRequestRandomness,
	}

	f := cmd.Flags()
	f.String(keyNameFlag, "", "The name of the key owning the account")
	f.Uint8(clientSeedFlag, 0, "The seed diversifying the request")
	f.String(vrfcdDaemonAddressFlag, "", "The HTTP API address of a running vrfcd")
	if err := cmd.MarkFlagRequired(keyNameFlag); err != nil {
		panic(err)
	}

	return cmd
}

func runCommandRequestRandomness(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	keyName, err := flags.GetString(keyNameFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", keyNameFlag, err)
	}
	clientSeed, err := flags.GetUint8(clientSeedFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", clientSeedFlag, err)
	}
	daemonAddress, err := flags.GetString(vrfcdDaemonAddressFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", vrfcdDaemonAddressFlag, err)
	}

	var res *service.RequestRandomnessResult
	if daemonAddress != "" {
		client, err := dc.NewVrfConsumerHTTPClient(daemonAddress)
		if err != nil {
			return err
		}
		res, err = client.RequestRandomness(cmd.Context(), keyName, clientSeed)
		if err != nil {
			return err
		}
	} else {
		app, cleanUp, err := loadLocalApp(cmd)
		if err != nil {
			return err
		}
		defer cleanUp()

		res, err = app.RequestRandomness(cmd.Context(), keyName, clientSeed)
		if err != nil {
			return err
		}
	}

	printRespJSON(cmd, res)

	return nil
}

// CommandOracle returns the oracle group command operating the local oracle
// queue.
func CommandOracle(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "oracle",
		Short: "Inspect and fulfill the local oracle queue.",
	}

	fulfillCmd := &cobra.Command{
		Use:     "fulfill",
		Short:   "Fulfill the pending randomness requests once.",
		Example: fmt.Sprintf(`%s oracle fulfill --daemon-address %s`, binaryName, defaultVrfcdDaemonAddress),
		Args:    cobra.NoArgs,
		RunE:    runCommandOracleFulfill,
	}

	queueCmd := &cobra.Command{
		Use:     "queue",
		Short:   "List the pending randomness requests.",
		Example: fmt.Sprintf(`%s oracle queue --daemon-address %s`, binaryName, defaultVrfcdDaemonAddress),
		Args:    cobra.NoArgs,
		RunE:    runCommandOracleQueue,
	}

	for _, c := range []*cobra.Command{fulfillCmd, queueCmd} {
		c.Flags().String(vrfcdDaemonAddressFlag, "", "The HTTP API address of a running vrfcd")
	}

	cmd.AddCommand(fulfillCmd, queueCmd)

	return cmd
}

func runCommandOracleFulfill(cmd *cobra.Command, _ []string) error {
	daemonAddress, err := cmd.Flags().GetString(vrfcdDaemonAddressFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", vrfcdDaemonAddressFlag, err)
	}

	if daemonAddress != "" {
		client, err := dc.NewVrfConsumerHTTPClient(daemonAddress)
		if err != nil {
			return err
		}
		res, err := client.FulfillPending(cmd.Context())
		if err != nil {
			return err
		}
		printRespJSON(cmd, res)

		return nil
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	n, err := app.FulfillPending(cmd.Context())
	if err != nil {
		return err
	}
	printRespJSON(cmd, service.FulfillResponse{Fulfilled: n})

	return nil
}

func runCommandOracleQueue(cmd *cobra.Command, _ []string) error {
	daemonAddress, err := cmd.Flags().GetString(vrfcdDaemonAddressFlag)
	if err != nil {
		return fmt.Errorf("failed to read flag %s: %w", vrfcdDaemonAddressFlag, err)
	}

	if daemonAddress != "" {
		client, err := dc.NewVrfConsumerHTTPClient(daemonAddress)
		if err != nil {
			return err
		}
		res, err := client.PendingRequests(cmd.Context())
		if err != nil {
			return err
		}
		printRespJSON(cmd, res)

		return nil
	}

	app, cleanUp, err := loadLocalApp(cmd)
	if err != nil {
		return err
	}
	defer cleanUp()

	pending, err := app.PendingRequests()
	if err != nil {
		return err
	}
	res := make([]service.QueuedRequestResponse, 0, len(pending))
	for _, q := range pending {
		res = append(res, service.NewQueuedRequestResponse(q))
	}
	printRespJSON(cmd, res)

	return nil
}
