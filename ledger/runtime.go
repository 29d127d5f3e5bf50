package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/er-state/vrf-consumer/types"
)

// MaxInvokeDepth bounds the nesting of forwarded calls, the top-level
// instruction included.
const MaxInvokeDepth = 5

// Program is an on-ledger program. Process runs one instruction against the
// accounts the instruction declared, in declaration order.
type Program interface {
	ID() types.Pubkey
	Process(ic *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// Runtime executes transactions against the account store. Each transaction
// runs inside a single read-write db transaction, so it either commits as a
// whole or leaves no trace.
type Runtime struct {
	store  *AccountStore
	logger *zap.Logger

	mu       sync.RWMutex
	programs map[types.Pubkey]Program
}

// NewRuntime creates a runtime with the system program registered.
func NewRuntime(store *AccountStore, logger *zap.Logger) *Runtime {
	r := &Runtime{
		store:    store,
		logger:   logger,
		programs: make(map[types.Pubkey]Program),
	}
	r.programs[SystemProgramID] = &SystemProgram{}

	return r
}

func (r *Runtime) Store() *AccountStore {
	return r.store
}

// RegisterProgram makes p callable at p.ID().
func (r *Runtime) RegisterProgram(p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.programs[p.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProgram, p.ID())
	}
	r.programs[p.ID()] = p

	return nil
}

func (r *Runtime) program(id types.Pubkey) (Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.programs[id]
	if !ok {
		return nil, errorsmod.Wrapf(ErrProgramNotFound, "program %s", id)
	}

	return p, nil
}

// GetAccount returns the committed account at addr.
func (r *Runtime) GetAccount(addr types.Pubkey) (*Account, error) {
	return r.store.GetAccount(addr)
}

// Execute verifies the transaction signatures and runs every instruction in
// order. Any failure, including one raised inside a forwarded call, aborts
// the transaction and rolls back all of its writes.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx == nil || len(tx.Instructions) == 0 {
		return ErrEmptyTransaction
	}

	signers, err := tx.verifySignatures()
	if err != nil {
		return err
	}

	err = r.store.update(func(ltx *ledgerTx) error {
		for i, ix := range tx.Instructions {
			caller := func(meta types.AccountMeta) (bool, bool, bool) {
				_, signed := signers[meta.Pubkey]

				return true, signed, true
			}
			if err := r.invoke(ctx, ltx, ix, caller, nil, 1); err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		r.logger.Debug("transaction failed", zap.Int("instructions", len(tx.Instructions)), zap.Error(err))

		return err
	}

	r.logger.Debug("transaction committed", zap.Int("instructions", len(tx.Instructions)))

	return nil
}

// privilegeFn reports, for an account meta requested by a callee, whether the
// caller holds the account and which privileges it holds it with.
type privilegeFn func(meta types.AccountMeta) (present, signer, writable bool)

func (r *Runtime) invoke(
	ctx context.Context,
	ltx *ledgerTx,
	ix *types.Instruction,
	caller privilegeFn,
	pdaSigners map[types.Pubkey]struct{},
	depth int,
) error {
	if depth > MaxInvokeDepth {
		return errorsmod.Wrapf(ErrCallDepthExceeded, "depth %d", depth)
	}

	program, err := r.program(ix.ProgramID)
	if err != nil {
		return err
	}

	infos := make([]*AccountInfo, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		present, signer, writable := caller(meta)
		if !present {
			return errorsmod.Wrapf(ErrMissingAccount, "account %s", meta.Pubkey)
		}
		if _, ok := pdaSigners[meta.Pubkey]; ok {
			signer = true
		}
		if meta.IsSigner && !signer {
			return errorsmod.Wrapf(ErrPrivilegeEscalation, "account %s is not a signer", meta.Pubkey)
		}
		if meta.IsWritable && !writable {
			return errorsmod.Wrapf(ErrPrivilegeEscalation, "account %s is not writable", meta.Pubkey)
		}

		st, err := ltx.load(meta.Pubkey)
		if err != nil {
			return err
		}
		infos = append(infos, &AccountInfo{
			Key:        meta.Pubkey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			state:      st,
		})
	}

	before := make(map[types.Pubkey]accountState, len(infos))
	for _, info := range infos {
		if _, ok := before[info.Key]; !ok {
			before[info.Key] = info.state.snapshot()
		}
	}

	ic := &InvokeContext{
		ctx:       ctx,
		runtime:   r,
		ltx:       ltx,
		programID: ix.ProgramID,
		accounts:  infos,
		before:    before,
		depth:     depth,
	}
	if err := program.Process(ic, infos, ix.Data); err != nil {
		return err
	}

	return verifyModifications(ix.ProgramID, infos, ic.before)
}

// verifyModifications enforces that a program only changed accounts it was
// allowed to: writable ones, and for data or ownership changes, only the
// ones it owned when the frame started.
func verifyModifications(programID types.Pubkey, infos []*AccountInfo, before map[types.Pubkey]accountState) error {
	writable := make(map[types.Pubkey]bool, len(infos))
	for _, info := range infos {
		writable[info.Key] = writable[info.Key] || info.IsWritable
	}

	for key, prev := range before {
		st := infosState(infos, key)
		changed := !bytes.Equal(prev.data, st.data) ||
			prev.closed != st.closed ||
			prev.exists != st.exists ||
			prev.owner != st.owner
		if !changed {
			continue
		}
		if !writable[key] {
			return errorsmod.Wrapf(ErrReadonlyDataModified, "account %s", key)
		}
		if prev.owner != programID {
			return errorsmod.Wrapf(ErrExternalAccountDataModified, "account %s is owned by %s", key, prev.owner)
		}
	}

	return nil
}

func infosState(infos []*AccountInfo, key types.Pubkey) *accountState {
	for _, info := range infos {
		if info.Key == key {
			return info.state
		}
	}

	return nil
}

// InvokeContext is handed to a program for the duration of one frame.
type InvokeContext struct {
	ctx       context.Context
	runtime   *Runtime
	ltx       *ledgerTx
	programID types.Pubkey
	accounts  []*AccountInfo
	before    map[types.Pubkey]accountState
	depth     int
}

func (ic *InvokeContext) Context() context.Context {
	return ic.ctx
}

// ProgramID is the id of the program executing this frame.
func (ic *InvokeContext) ProgramID() types.Pubkey {
	return ic.programID
}

func (ic *InvokeContext) Depth() int {
	return ic.depth
}

// Invoke forwards ix to another program with the caller's privileges.
func (ic *InvokeContext) Invoke(ix *types.Instruction) error {
	return ic.InvokeSigned(ix)
}

// InvokeSigned forwards ix and additionally signs for every address derived
// from the executing program id and one of the given seed sets.
func (ic *InvokeContext) InvokeSigned(ix *types.Instruction, signerSeeds ...[][]byte) error {
	// changes made so far by the caller are checked against the caller's
	// privileges before the callee can touch the same accounts
	if err := verifyModifications(ic.programID, ic.accounts, ic.before); err != nil {
		return err
	}

	pdaSigners := make(map[types.Pubkey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return err
		}
		pdaSigners[addr] = struct{}{}
	}

	caller := func(meta types.AccountMeta) (bool, bool, bool) {
		var present, signer, writable bool
		for _, info := range ic.accounts {
			if info.Key != meta.Pubkey {
				continue
			}
			present = true
			signer = signer || info.IsSigner
			writable = writable || info.IsWritable
		}

		return present, signer, writable
	}

	if err := ic.runtime.invoke(ic.ctx, ic.ltx, ix, caller, pdaSigners, ic.depth+1); err != nil {
		return err
	}

	for _, info := range ic.accounts {
		ic.before[info.Key] = info.state.snapshot()
	}

	return nil
}
