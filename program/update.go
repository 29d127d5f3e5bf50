package program

import (
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/er-state/vrf-consumer/ledger"
)

// update accounts: user (signer), user account (writable). Args: u64 value.
func (p *Program) update(accounts []*ledger.AccountInfo, args []byte) error {
	if err := requireAccounts(accounts, 2, "update"); err != nil {
		return err
	}
	if len(args) < 8 {
		return errorsmod.Wrapf(ErrInvalidInstructionData, "update args are %d bytes", len(args))
	}
	user, userAccount := accounts[0], accounts[1]

	state, err := loadOwnedUserAccount(user, userAccount)
	if err != nil {
		return err
	}

	state.Data = binary.LittleEndian.Uint64(args[:8])
	userAccount.SetData(state.Marshal())

	return nil
}

// loadOwnedUserAccount checks that user signed for userAccount, that the
// account is writable, derived from user and records user as its owner.
func loadOwnedUserAccount(user, userAccount *ledger.AccountInfo) (*UserAccount, error) {
	if err := requireSigner(user); err != nil {
		return nil, err
	}
	if err := requireWritable(userAccount); err != nil {
		return nil, err
	}

	state, err := loadUserAccount(userAccount)
	if err != nil {
		return nil, err
	}
	if err := ValidateUserAccount(userAccount.Key, user.Key, state.Bump); err != nil {
		return nil, err
	}
	if state.User != user.Key {
		return nil, errorsmod.Wrapf(ErrConstraintOwner, "account %s belongs to %s", userAccount.Key, state.User)
	}

	return state, nil
}
