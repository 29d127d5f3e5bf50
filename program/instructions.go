package program

import (
	"encoding/binary"
	"fmt"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

func userAccountFor(user types.Pubkey) (types.Pubkey, error) {
	addr, _, err := FindUserAccountAddress(user)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("failed to derive user account for %s: %w", user, err)
	}

	return addr, nil
}

// NewInitializeInstruction creates the user account of user.
func NewInitializeInstruction(user types.Pubkey) (*types.Instruction, error) {
	userAccount, err := userAccountFor(user)
	if err != nil {
		return nil, err
	}

	return types.NewInstruction(ProgramID, []types.AccountMeta{
		types.NewAccountMeta(user, true, true),
		types.NewAccountMeta(userAccount, false, true),
		types.NewAccountMeta(ledger.SystemProgramID, false, false),
	}, initializeDiscriminator.Bytes()), nil
}

// NewUpdateInstruction sets the data of user's account to value.
func NewUpdateInstruction(user types.Pubkey, value uint64) (*types.Instruction, error) {
	userAccount, err := userAccountFor(user)
	if err != nil {
		return nil, err
	}

	data := make([]byte, types.DiscriminatorLength+8)
	copy(data, updateDiscriminator.Bytes())
	binary.LittleEndian.PutUint64(data[types.DiscriminatorLength:], value)

	return types.NewInstruction(ProgramID, []types.AccountMeta{
		types.NewAccountMeta(user, true, false),
		types.NewAccountMeta(userAccount, false, true),
	}, data), nil
}

// NewCloseInstruction removes user's account.
func NewCloseInstruction(user types.Pubkey) (*types.Instruction, error) {
	userAccount, err := userAccountFor(user)
	if err != nil {
		return nil, err
	}

	return types.NewInstruction(ProgramID, []types.AccountMeta{
		types.NewAccountMeta(user, true, true),
		types.NewAccountMeta(userAccount, false, true),
	}, closeDiscriminator.Bytes()), nil
}

// NewRequestRandomnessInstruction asks the oracle behind oracleQueue for
// randomness to be delivered into user's account.
func NewRequestRandomnessInstruction(user, oracleQueue types.Pubkey, clientSeed uint8) (*types.Instruction, error) {
	userAccount, err := userAccountFor(user)
	if err != nil {
		return nil, err
	}
	identity, _, err := vrf.ProgramIdentity(ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive program identity: %w", err)
	}

	data := make([]byte, 0, types.DiscriminatorLength+1)
	data = append(data, requestRandomnessDiscriminator.Bytes()...)
	data = append(data, clientSeed)

	return types.NewInstruction(ProgramID, []types.AccountMeta{
		types.NewAccountMeta(user, true, true),
		types.NewAccountMeta(userAccount, false, true),
		types.NewAccountMeta(oracleQueue, false, true),
		types.NewAccountMeta(identity, false, false),
		types.NewAccountMeta(vrf.VRFProgramID, false, false),
	}, data), nil
}

// NewConsumeRandomnessInstruction is the callback as the oracle delivers it.
// Only useful to exercise the entry point directly; a genuine delivery goes
// through the oracle, which signs for its identity.
func NewConsumeRandomnessInstruction(invoker, userAccount types.Pubkey, randomness [vrf.RandomnessLength]byte) *types.Instruction {
	data := make([]byte, 0, types.DiscriminatorLength+vrf.RandomnessLength)
	data = append(data, consumeRandomnessDiscriminator.Bytes()...)
	data = append(data, randomness[:]...)

	return types.NewInstruction(ProgramID, []types.AccountMeta{
		types.NewAccountMeta(invoker, true, false),
		types.NewAccountMeta(userAccount, false, true),
	}, data)
}
