package ledger

import (
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/er-state/vrf-consumer/types"
)

// SystemProgramID owns every account that has not been created yet.
var SystemProgramID = types.ZeroPubkey

const systemCreateAccount uint32 = 0

// createAccountDataLen is u32 tag || u64 space || owner
const createAccountDataLen = 4 + 8 + types.PubkeyLength

// MaxAccountDataSize bounds the data a created account may allocate.
const MaxAccountDataSize = 10 * 1024 * 1024

// SystemProgram creates accounts and assigns them to their owning program.
// Rent and balances are not modelled.
type SystemProgram struct{}

var _ Program = (*SystemProgram)(nil)

func (p *SystemProgram) ID() types.Pubkey {
	return SystemProgramID
}

// NewCreateAccountInstruction allocates space bytes at newAccount and assigns
// it to owner. Both payer and newAccount must sign.
func NewCreateAccountInstruction(payer, newAccount types.Pubkey, space uint64, owner types.Pubkey) *types.Instruction {
	data := make([]byte, createAccountDataLen)
	binary.LittleEndian.PutUint32(data[0:4], systemCreateAccount)
	binary.LittleEndian.PutUint64(data[4:12], space)
	copy(data[12:], owner[:])

	return types.NewInstruction(SystemProgramID, []types.AccountMeta{
		types.NewAccountMeta(payer, true, true),
		types.NewAccountMeta(newAccount, true, true),
	}, data)
}

func (p *SystemProgram) Process(_ *InvokeContext, accounts []*AccountInfo, data []byte) error {
	if len(data) < 4 {
		return errorsmod.Wrap(ErrInvalidInstructionData, "missing system instruction tag")
	}

	switch tag := binary.LittleEndian.Uint32(data[0:4]); tag {
	case systemCreateAccount:
		return p.createAccount(accounts, data)
	default:
		return errorsmod.Wrapf(ErrInvalidInstructionData, "unknown system instruction %d", tag)
	}
}

func (p *SystemProgram) createAccount(accounts []*AccountInfo, data []byte) error {
	if len(data) != createAccountDataLen {
		return errorsmod.Wrapf(ErrInvalidInstructionData, "create account data is %d bytes", len(data))
	}
	if len(accounts) < 2 {
		return errorsmod.Wrap(ErrMissingAccount, "create account needs payer and new account")
	}

	payer, newAccount := accounts[0], accounts[1]
	if !payer.IsSigner || !newAccount.IsSigner {
		return errorsmod.Wrap(ErrMissingRequiredSignature, "payer and new account must sign")
	}
	if newAccount.Exists() || newAccount.Owner() != SystemProgramID {
		return errorsmod.Wrapf(ErrAccountAlreadyInUse, "account %s", newAccount.Key)
	}

	space := binary.LittleEndian.Uint64(data[4:12])
	if space > MaxAccountDataSize {
		return errorsmod.Wrapf(ErrInvalidInstructionData, "account space %d exceeds %d bytes", space, MaxAccountDataSize)
	}
	owner, err := types.NewPubkeyFromBytes(data[12:])
	if err != nil {
		return errorsmod.Wrap(ErrInvalidInstructionData, err.Error())
	}

	newAccount.allocate(space)
	newAccount.assign(owner)

	return nil
}
