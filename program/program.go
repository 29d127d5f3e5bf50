// Package program implements the consumer program: it keeps one account per
// user, forwards randomness requests to the oracle on the user's behalf and
// accepts the oracle's callback, storing the delivered outcome.
package program

import (
	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
)

// ProgramID is the address the consumer program is deployed at.
var ProgramID = types.MustPubkeyFromBase58("WFkJXUnzvRxUGX1RUXtc5qKoNQpWAHeDdgD5LKGmZpJ")

var (
	initializeDiscriminator        = types.InstructionDiscriminator("initialize")
	updateDiscriminator            = types.InstructionDiscriminator("update")
	closeDiscriminator             = types.InstructionDiscriminator("close")
	requestRandomnessDiscriminator = types.InstructionDiscriminator("request_randomness")
	consumeRandomnessDiscriminator = types.InstructionDiscriminator("consume_randomness")
)

// ConsumeRandomnessDiscriminator selects the callback entry point. Requests
// name it so the oracle knows which entry point to call back.
func ConsumeRandomnessDiscriminator() types.Discriminator {
	return consumeRandomnessDiscriminator
}

// Program is the consumer program. It holds no state of its own; everything
// durable lives in user accounts.
type Program struct {
	logger *zap.Logger
}

var _ ledger.Program = (*Program)(nil)

func New(logger *zap.Logger) *Program {
	return &Program{logger: logger}
}

func (p *Program) ID() types.Pubkey {
	return ProgramID
}

func (p *Program) Process(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	if len(data) < types.DiscriminatorLength {
		return errorsmod.Wrapf(ErrInstructionNotFound, "instruction data is %d bytes", len(data))
	}
	args := data[types.DiscriminatorLength:]

	switch {
	case initializeDiscriminator.Matches(data):
		return p.initialize(ic, accounts)
	case updateDiscriminator.Matches(data):
		return p.update(accounts, args)
	case closeDiscriminator.Matches(data):
		return p.close(accounts)
	case requestRandomnessDiscriminator.Matches(data):
		return p.requestRandomness(ic, accounts, args)
	case consumeRandomnessDiscriminator.Matches(data):
		return p.consumeRandomness(accounts, args)
	default:
		return ErrInstructionNotFound
	}
}

func requireAccounts(accounts []*ledger.AccountInfo, n int, name string) error {
	if len(accounts) < n {
		return errorsmod.Wrapf(ErrNotEnoughAccounts, "%s needs %d accounts, got %d", name, n, len(accounts))
	}

	return nil
}

func requireSigner(info *ledger.AccountInfo) error {
	if !info.IsSigner {
		return errorsmod.Wrapf(ErrMissingSigner, "account %s", info.Key)
	}

	return nil
}

func requireWritable(info *ledger.AccountInfo) error {
	if !info.IsWritable {
		return errorsmod.Wrapf(ErrAccountNotWritable, "account %s", info.Key)
	}

	return nil
}
