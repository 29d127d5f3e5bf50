package program

import (
	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/vrf"
)

// consumeRandomness is the oracle callback. Accounts: oracle identity
// (signer), user account (writable). Args: randomness[32], then any callback
// args, which are ignored.
func (p *Program) consumeRandomness(accounts []*ledger.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 2, "consume_randomness"); err != nil {
		return err
	}
	identity, userAccount := accounts[0], accounts[1]

	// only the oracle identity may deliver randomness; checked before
	// anything is read or written
	if !identity.IsSigner || identity.Key != vrf.VRFProgramIdentity {
		return errorsmod.Wrapf(ErrUnauthorized, "invoker %s", identity.Key)
	}

	if len(args) < vrf.RandomnessLength {
		return errorsmod.Wrapf(ErrInvalidInstructionData, "randomness is %d bytes", len(args))
	}
	if err := requireWritable(userAccount); err != nil {
		return err
	}

	state, err := loadUserAccount(userAccount)
	if err != nil {
		return err
	}
	if err := ValidateUserAccount(userAccount.Key, state.User, state.Bump); err != nil {
		return err
	}

	var randomness [vrf.RandomnessLength]byte
	copy(randomness[:], args[:vrf.RandomnessLength])

	state.Data = vrf.RandomU64(randomness)
	userAccount.SetData(state.Marshal())

	p.logger.Debug("randomness consumed",
		zap.String("user", state.User.String()),
		zap.Uint64("data", state.Data),
	)

	return nil
}
