package vrf

import (
	"bytes"

	errorsmod "cosmossdk.io/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
)

// OracleProgram is a local stand-in for the randomness oracle program. It
// implements the published request/callback interface only: requests are
// queued, and the queue authority later supplies the randomness, which is
// forwarded to the callback signed by VRFProgramIdentity. There is no proof
// generation or verification.
type OracleProgram struct {
	maxQueueLength int
	logger         *zap.Logger
}

var _ ledger.Program = (*OracleProgram)(nil)

func NewOracleProgram(maxQueueLength int, logger *zap.Logger) *OracleProgram {
	if maxQueueLength <= 0 {
		maxQueueLength = DefaultMaxQueueLength
	}

	return &OracleProgram{
		maxQueueLength: maxQueueLength,
		logger:         logger,
	}
}

func (p *OracleProgram) ID() types.Pubkey {
	return VRFProgramID
}

func (p *OracleProgram) Process(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	switch {
	case requestRandomnessDiscriminator.Matches(data):
		return p.requestRandomness(accounts, data[types.DiscriminatorLength:])
	case provideRandomnessDiscriminator.Matches(data):
		return p.provideRandomness(ic, accounts, data[types.DiscriminatorLength:])
	case removeRequestDiscriminator.Matches(data):
		return p.removeRequest(accounts, data[types.DiscriminatorLength:])
	default:
		return ErrUnknownInstruction
	}
}

// requestRandomness accounts: payer, program identity, oracle queue.
func (p *OracleProgram) requestRandomness(accounts []*ledger.AccountInfo, body []byte) error {
	if len(accounts) < 3 {
		return errorsmod.Wrapf(ErrNotEnoughAccounts, "request_randomness needs 3, got %d", len(accounts))
	}
	payer, identity, queueInfo := accounts[0], accounts[1], accounts[2]

	req, err := decodeRequestBody(body)
	if err != nil {
		return err
	}
	req.Payer = payer.Key

	// the request is only accepted when the callback program itself signed
	// for its derived identity
	expected, _, err := ProgramIdentity(req.CallbackProgramID)
	if err != nil {
		return err
	}
	if !identity.IsSigner || identity.Key != expected {
		return errorsmod.Wrapf(ErrInvalidProgramIdentity, "got %s, expected %s", identity.Key, expected)
	}

	queue, err := loadQueueInfo(queueInfo)
	if err != nil {
		return err
	}
	if len(queue.Requests) >= p.maxQueueLength {
		return errorsmod.Wrapf(ErrQueueFull, "queue %s holds %d requests", queueInfo.Key, len(queue.Requests))
	}

	queued := &QueuedRequest{ID: ulid.Make(), Request: req}
	queue.Requests = append(queue.Requests, queued)
	queueInfo.SetData(queue.Marshal())

	p.logger.Debug("randomness request queued",
		zap.String("request_id", queued.ID.String()),
		zap.String("queue", queueInfo.Key.String()),
		zap.String("callback_program", req.CallbackProgramID.String()),
	)

	return nil
}

// provideRandomness accounts: queue authority (signer), VRFProgramIdentity,
// oracle queue, then the request's declared callback accounts in order.
func (p *OracleProgram) provideRandomness(ic *ledger.InvokeContext, accounts []*ledger.AccountInfo, body []byte) error {
	if len(accounts) < 3 {
		return errorsmod.Wrapf(ErrNotEnoughAccounts, "provide_randomness needs at least 3, got %d", len(accounts))
	}
	authority, identity, queueInfo := accounts[0], accounts[1], accounts[2]
	callbackAccounts := accounts[3:]

	d := newDecoder(body)
	var id ulid.ULID
	copy(id[:], d.take(len(id)))
	randomness := d.array32()
	if err := d.finish(); err != nil {
		return errorsmod.Wrap(ErrInvalidInstructionData, err.Error())
	}

	queue, err := loadQueueInfo(queueInfo)
	if err != nil {
		return err
	}
	if !authority.IsSigner || authority.Key != queue.Authority {
		return errorsmod.Wrapf(ErrUnauthorizedOracle, "signer %s", authority.Key)
	}
	if identity.Key != VRFProgramIdentity {
		return errorsmod.Wrapf(ErrNotEnoughAccounts, "account 1 must be the oracle identity, got %s", identity.Key)
	}

	queued, ok := queue.Find(id)
	if !ok {
		return errorsmod.Wrapf(ErrRequestNotFound, "request %s", id)
	}
	req := queued.Request

	if len(callbackAccounts) != len(req.AccountsMetas) {
		return errorsmod.Wrapf(ErrCallbackAccountMismatch, "request declared %d accounts, got %d", len(req.AccountsMetas), len(callbackAccounts))
	}
	for i, meta := range req.AccountsMetas {
		if callbackAccounts[i].Key != meta.Pubkey {
			return errorsmod.Wrapf(ErrCallbackAccountMismatch, "account %d is %s, request declared %s", i, callbackAccounts[i].Key, meta.Pubkey)
		}
	}

	queue.remove(id)
	queueInfo.SetData(queue.Marshal())

	callback := NewCallbackInstruction(req, randomness)
	if err := ic.InvokeSigned(callback, vrfIdentitySignerSeeds()); err != nil {
		return err
	}

	p.logger.Debug("randomness delivered",
		zap.String("request_id", id.String()),
		zap.String("callback_program", req.CallbackProgramID.String()),
	)

	return nil
}

// removeRequest accounts: queue authority (signer), oracle queue. It drops a
// pending request without delivering it, freeing its slot in the queue.
func (p *OracleProgram) removeRequest(accounts []*ledger.AccountInfo, body []byte) error {
	if len(accounts) < 2 {
		return errorsmod.Wrapf(ErrNotEnoughAccounts, "remove_request needs 2, got %d", len(accounts))
	}
	authority, queueInfo := accounts[0], accounts[1]

	d := newDecoder(body)
	var id ulid.ULID
	copy(id[:], d.take(len(id)))
	if err := d.finish(); err != nil {
		return errorsmod.Wrap(ErrInvalidInstructionData, err.Error())
	}

	queue, err := loadQueueInfo(queueInfo)
	if err != nil {
		return err
	}
	if !authority.IsSigner || authority.Key != queue.Authority {
		return errorsmod.Wrapf(ErrUnauthorizedOracle, "signer %s", authority.Key)
	}
	if _, ok := queue.Find(id); !ok {
		return errorsmod.Wrapf(ErrRequestNotFound, "request %s", id)
	}

	queue.remove(id)
	queueInfo.SetData(queue.Marshal())

	p.logger.Debug("randomness request removed",
		zap.String("request_id", id.String()),
		zap.String("queue", queueInfo.Key.String()),
	)

	return nil
}

// NewCallbackInstruction is the instruction the oracle forwards on
// fulfillment: VRFProgramIdentity (signer) followed by the declared accounts,
// with data callback_discriminator || randomness || callback_args.
func NewCallbackInstruction(req *RandomnessRequest, randomness [RandomnessLength]byte) *types.Instruction {
	metas := make([]types.AccountMeta, 0, len(req.AccountsMetas)+1)
	metas = append(metas, types.NewAccountMeta(VRFProgramIdentity, true, false))
	metas = append(metas, req.AccountsMetas...)

	data := make([]byte, 0, len(req.CallbackDiscriminator)+RandomnessLength+len(req.CallbackArgs))
	data = append(data, req.CallbackDiscriminator...)
	data = append(data, randomness[:]...)
	data = append(data, req.CallbackArgs...)

	return types.NewInstruction(req.CallbackProgramID, metas, data)
}

// NewProvideRandomnessInstruction builds the fulfillment the queue authority
// signs.
func NewProvideRandomnessInstruction(
	authority, queue types.Pubkey,
	queued *QueuedRequest,
	randomness [RandomnessLength]byte,
) *types.Instruction {
	metas := []types.AccountMeta{
		types.NewAccountMeta(authority, true, false),
		types.NewAccountMeta(VRFProgramIdentity, false, false),
		types.NewAccountMeta(queue, false, true),
	}
	for _, m := range queued.Request.AccountsMetas {
		// the callback receives the declared privileges, signer excluded: only
		// the oracle identity signs a callback
		metas = append(metas, types.NewAccountMeta(m.Pubkey, false, m.IsWritable))
	}

	var data bytes.Buffer
	data.Write(provideRandomnessDiscriminator.Bytes())
	data.Write(queued.ID[:])
	data.Write(randomness[:])

	return types.NewInstruction(VRFProgramID, metas, data.Bytes())
}

// NewRemoveRequestInstruction builds the instruction the queue authority
// signs to drop a request it will not fulfill.
func NewRemoveRequestInstruction(authority, queue types.Pubkey, id ulid.ULID) *types.Instruction {
	var data bytes.Buffer
	data.Write(removeRequestDiscriminator.Bytes())
	data.Write(id[:])

	return types.NewInstruction(VRFProgramID, []types.AccountMeta{
		types.NewAccountMeta(authority, true, false),
		types.NewAccountMeta(queue, false, true),
	}, data.Bytes())
}

func loadQueueInfo(info *ledger.AccountInfo) (*QueueAccount, error) {
	if !info.Exists() || info.Owner() != VRFProgramID {
		return nil, errorsmod.Wrapf(ErrInvalidQueue, "account %s is not an oracle queue", info.Key)
	}
	if !info.IsWritable {
		return nil, errorsmod.Wrapf(ErrInvalidQueue, "queue %s must be writable", info.Key)
	}

	return UnmarshalQueueAccount(info.Data())
}
