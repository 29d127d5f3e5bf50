package program

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// CallerSeed replicates the client seed across the whole seed buffer.
func CallerSeed(clientSeed uint8) [vrf.CallerSeedLength]byte {
	var seed [vrf.CallerSeedLength]byte
	for i := range seed {
		seed[i] = clientSeed
	}

	return seed
}

// BuildRandomnessRequest returns the request forwarded to the oracle for the
// given user account: callback into ConsumeRandomness with the user account
// as its single writable, non-signer account.
func BuildRandomnessRequest(payer, oracleQueue, userAccount types.Pubkey, clientSeed uint8) vrf.RequestRandomnessParams {
	return vrf.RequestRandomnessParams{
		Payer:                 payer,
		OracleQueue:           oracleQueue,
		CallbackProgramID:     ProgramID,
		CallbackDiscriminator: consumeRandomnessDiscriminator.Bytes(),
		CallerSeed:            CallerSeed(clientSeed),
		AccountsMetas: []types.AccountMeta{
			types.NewAccountMeta(userAccount, false, true),
		},
	}
}

// requestRandomness accounts: user (signer, writable), user account
// (writable), oracle queue (writable), program identity. Args: u8 client
// seed.
func (p *Program) requestRandomness(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 4, "request_randomness"); err != nil {
		return err
	}
	if len(args) < 1 {
		return errorsmod.Wrap(ErrInvalidInstructionData, "missing client seed")
	}
	user, userAccount, oracleQueue, programIdentity := accounts[0], accounts[1], accounts[2], accounts[3]
	clientSeed := args[0]

	if err := requireSigner(user); err != nil {
		return err
	}
	if err := requireWritable(userAccount); err != nil {
		return err
	}
	if err := requireWritable(oracleQueue); err != nil {
		return err
	}

	// the account must be the one derived from the signing user and the
	// bump it was created with; nothing is dispatched otherwise
	state, err := loadUserAccount(userAccount)
	if err != nil {
		return err
	}
	if err := ValidateUserAccount(userAccount.Key, user.Key, state.Bump); err != nil {
		return err
	}

	identity, identityBump, err := vrf.ProgramIdentity(ProgramID)
	if err != nil {
		return errorsmod.Wrap(ErrInvalidAccountDerivation, err.Error())
	}
	if programIdentity.Key != identity {
		return errorsmod.Wrapf(ErrInvalidAccountDerivation, "program identity %s, expected %s", programIdentity.Key, identity)
	}

	ix, err := vrf.CreateRequestRandomnessIx(BuildRandomnessRequest(user.Key, oracleQueue.Key, userAccount.Key, clientSeed))
	if err != nil {
		return errorsmod.Wrap(ErrUpstreamDispatchFailure, err.Error())
	}

	identitySeeds := [][]byte{[]byte(vrf.IdentitySeed), {identityBump}}
	if err := ic.InvokeSigned(ix, identitySeeds); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamDispatchFailure, err)
	}

	p.logger.Debug("randomness requested",
		zap.String("user", user.Key.String()),
		zap.String("account", userAccount.Key.String()),
		zap.String("queue", oracleQueue.Key.String()),
		zap.Uint8("client_seed", clientSeed),
	)

	return nil
}
