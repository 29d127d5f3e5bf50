package vrf

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
)

var (
	requestRandomnessDiscriminator = types.InstructionDiscriminator("request_randomness")
	provideRandomnessDiscriminator = types.InstructionDiscriminator("provide_randomness")
	removeRequestDiscriminator     = types.InstructionDiscriminator("remove_request")
)

// MaxCallbackAccounts bounds the accounts a request may declare for its
// callback.
const MaxCallbackAccounts = 16

// RandomnessRequest is one ask to the oracle: who pays, which program and
// entry point to call back, the seed that diversifies the request and the
// accounts the callback will need.
type RandomnessRequest struct {
	Payer                 types.Pubkey
	CallbackProgramID     types.Pubkey
	CallbackDiscriminator []byte
	CallerSeed            [CallerSeedLength]byte
	AccountsMetas         []types.AccountMeta
	CallbackArgs          []byte
}

// RequestRandomnessParams are the inputs of CreateRequestRandomnessIx.
type RequestRandomnessParams struct {
	Payer                 types.Pubkey
	OracleQueue           types.Pubkey
	CallbackProgramID     types.Pubkey
	CallbackDiscriminator []byte
	CallerSeed            [CallerSeedLength]byte
	AccountsMetas         []types.AccountMeta
	CallbackArgs          []byte
}

// ProgramIdentity returns the identity programID signs its requests with and
// the bump needed to sign for it.
func ProgramIdentity(programID types.Pubkey) (types.Pubkey, uint8, error) {
	return ledger.FindProgramAddress([][]byte{[]byte(IdentitySeed)}, programID)
}

// CreateRequestRandomnessIx builds the oracle instruction for a request. The
// accounts are payer (signer, writable), the callback program's identity
// (signer) and the oracle queue (writable); the calling program has to sign
// for its identity when forwarding the instruction.
func CreateRequestRandomnessIx(params RequestRandomnessParams) (*types.Instruction, error) {
	if len(params.AccountsMetas) > MaxCallbackAccounts {
		return nil, fmt.Errorf("too many callback accounts: %d > %d", len(params.AccountsMetas), MaxCallbackAccounts)
	}

	identity, _, err := ProgramIdentity(params.CallbackProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive program identity: %w", err)
	}

	req := &RandomnessRequest{
		Payer:                 params.Payer,
		CallbackProgramID:     params.CallbackProgramID,
		CallbackDiscriminator: params.CallbackDiscriminator,
		CallerSeed:            params.CallerSeed,
		AccountsMetas:         params.AccountsMetas,
		CallbackArgs:          params.CallbackArgs,
	}

	var e encoder
	e.raw(requestRandomnessDiscriminator.Bytes())
	encodeRequestBody(&e, req)

	return types.NewInstruction(VRFProgramID, []types.AccountMeta{
		types.NewAccountMeta(params.Payer, true, true),
		types.NewAccountMeta(identity, true, false),
		types.NewAccountMeta(params.OracleQueue, false, true),
	}, e.bytes()), nil
}

// DecodeRequestRandomnessIx recovers the request and target queue from an
// instruction built by CreateRequestRandomnessIx.
func DecodeRequestRandomnessIx(ix *types.Instruction) (*RandomnessRequest, types.Pubkey, error) {
	if ix.ProgramID != VRFProgramID {
		return nil, types.Pubkey{}, errorsmod.Wrapf(ErrInvalidInstructionData, "instruction targets %s", ix.ProgramID)
	}
	if len(ix.Accounts) < 3 {
		return nil, types.Pubkey{}, errorsmod.Wrapf(ErrNotEnoughAccounts, "got %d", len(ix.Accounts))
	}
	if !requestRandomnessDiscriminator.Matches(ix.Data) {
		return nil, types.Pubkey{}, errorsmod.Wrap(ErrUnknownInstruction, "not a request_randomness instruction")
	}

	req, err := decodeRequestBody(ix.Data[types.DiscriminatorLength:])
	if err != nil {
		return nil, types.Pubkey{}, err
	}
	req.Payer = ix.Accounts[0].Pubkey

	return req, ix.Accounts[2].Pubkey, nil
}

// encodeRequestBody writes caller_seed[32] || callback_program_id[32] ||
// vec(callback_discriminator) || vec(accounts_metas) || vec(callback_args).
func encodeRequestBody(e *encoder, req *RandomnessRequest) {
	e.raw(req.CallerSeed[:])
	e.pubkey(req.CallbackProgramID)
	e.vec(req.CallbackDiscriminator)
	e.metas(req.AccountsMetas)
	e.vec(req.CallbackArgs)
}

func decodeRequestBody(data []byte) (*RandomnessRequest, error) {
	d := newDecoder(data)
	req := readRequestBody(d)
	if err := d.finish(); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidInstructionData, err.Error())
	}
	if len(req.AccountsMetas) > MaxCallbackAccounts {
		return nil, errorsmod.Wrapf(ErrInvalidInstructionData, "too many callback accounts: %d", len(req.AccountsMetas))
	}

	return req, nil
}

func readRequestBody(d *decoder) *RandomnessRequest {
	return &RandomnessRequest{
		CallerSeed:            d.array32(),
		CallbackProgramID:     d.pubkey(),
		CallbackDiscriminator: d.vec(),
		AccountsMetas:         d.metas(),
		CallbackArgs:          d.vec(),
	}
}
