package program

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/ledger"
)

// initialize accounts: user (signer, writable), user account (writable).
// It creates the user account at its canonical derived address.
func (p *Program) initialize(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 2, "initialize"); err != nil {
		return err
	}
	user, userAccount := accounts[0], accounts[1]

	if err := requireSigner(user); err != nil {
		return err
	}
	if err := requireWritable(userAccount); err != nil {
		return err
	}

	addr, bump, err := FindUserAccountAddress(user.Key)
	if err != nil {
		return errorsmod.Wrap(ErrInvalidAccountDerivation, err.Error())
	}
	if addr != userAccount.Key {
		return errorsmod.Wrapf(ErrInvalidAccountDerivation, "account %s, expected %s", userAccount.Key, addr)
	}
	if userAccount.Exists() {
		return errorsmod.Wrapf(ErrAccountAlreadyInitialized, "account %s", userAccount.Key)
	}

	create := ledger.NewCreateAccountInstruction(user.Key, userAccount.Key, UserAccountSize, ProgramID)
	if err := ic.InvokeSigned(create, userSignerSeeds(user.Key, bump)); err != nil {
		return fmt.Errorf("failed to create user account: %w", err)
	}

	state := &UserAccount{User: user.Key, Bump: bump}
	userAccount.SetData(state.Marshal())

	p.logger.Debug("user account initialized",
		zap.String("user", user.Key.String()),
		zap.String("account", userAccount.Key.String()),
	)

	return nil
}
