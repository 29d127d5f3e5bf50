package program

import (
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/ledger"
)

// close accounts: user (signer, writable), user account (writable). The
// account is removed when the transaction commits.
func (p *Program) close(accounts []*ledger.AccountInfo) error {
	if err := requireAccounts(accounts, 2, "close"); err != nil {
		return err
	}
	user, userAccount := accounts[0], accounts[1]

	if err := requireWritable(user); err != nil {
		return err
	}
	if _, err := loadOwnedUserAccount(user, userAccount); err != nil {
		return err
	}

	userAccount.Close()

	p.logger.Debug("user account closed", zap.String("user", user.Key.String()))

	return nil
}
