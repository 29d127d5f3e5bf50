package ledger

import (
	"bytes"
	"fmt"

	"github.com/er-state/vrf-consumer/types"
)

// Account is the durable record stored at an address: the program that owns
// it and its raw data.
type Account struct {
	Address types.Pubkey
	Owner   types.Pubkey
	Data    []byte
}

// encodeAccount lays an account out as owner(32) || data.
func encodeAccount(owner types.Pubkey, data []byte) []byte {
	buf := make([]byte, 0, types.PubkeyLength+len(data))
	buf = append(buf, owner[:]...)
	buf = append(buf, data...)

	return buf
}

func decodeAccount(addr types.Pubkey, raw []byte) (*Account, error) {
	if len(raw) < types.PubkeyLength {
		return nil, fmt.Errorf("account %s record is %d bytes: %w", addr, len(raw), ErrCorruptedLedgerDB)
	}

	owner, err := types.NewPubkeyFromBytes(raw[:types.PubkeyLength])
	if err != nil {
		return nil, err
	}

	data := make([]byte, len(raw)-types.PubkeyLength)
	copy(data, raw[types.PubkeyLength:])

	return &Account{
		Address: addr,
		Owner:   owner,
		Data:    data,
	}, nil
}

// accountState is the transaction-wide copy of an account. Every frame of a
// transaction that loads the same address shares one state.
type accountState struct {
	owner  types.Pubkey
	data   []byte
	exists bool
	closed bool

	orig []byte
}

func (s *accountState) snapshot() accountState {
	return accountState{
		owner:  s.owner,
		data:   bytes.Clone(s.data),
		exists: s.exists,
		closed: s.closed,
	}
}

// AccountInfo is the view of an account handed to a program during one
// invocation frame. Privileges are per frame; the underlying state is shared.
type AccountInfo struct {
	Key        types.Pubkey
	IsSigner   bool
	IsWritable bool

	state *accountState
}

// Owner returns the program that owns the account. Accounts that were never
// created are owned by the system program.
func (a *AccountInfo) Owner() types.Pubkey {
	return a.state.owner
}

// Data returns the live account data. Programs may mutate it in place; the
// runtime checks the change against the frame's privileges when the program
// returns.
func (a *AccountInfo) Data() []byte {
	return a.state.data
}

// SetData replaces the account data.
func (a *AccountInfo) SetData(data []byte) {
	a.state.data = data
}

// Exists reports whether the account holds a stored record.
func (a *AccountInfo) Exists() bool {
	return a.state.exists && !a.state.closed
}

// Close marks the account for deletion when the transaction commits.
func (a *AccountInfo) Close() {
	a.state.closed = true
	a.state.data = nil
}

func (a *AccountInfo) assign(owner types.Pubkey) {
	a.state.owner = owner
}

func (a *AccountInfo) allocate(space uint64) {
	a.state.data = make([]byte, space)
	a.state.exists = true
	a.state.closed = false
}
