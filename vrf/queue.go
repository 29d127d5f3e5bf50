package vrf

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/oklog/ulid/v2"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
)

// DefaultMaxQueueLength is the number of pending requests a queue holds.
const DefaultMaxQueueLength = 64

var queueAccountDiscriminator = types.AccountDiscriminator("Queue")

// QueuedRequest is a pending request and the id it is fulfilled by. Ids are
// ULIDs, so they sort in arrival order.
type QueuedRequest struct {
	ID      ulid.ULID
	Request *RandomnessRequest
}

// QueueAccount is the data of an oracle queue account: the authority allowed
// to fulfill requests and the pending requests in arrival order.
type QueueAccount struct {
	Authority types.Pubkey
	Requests  []*QueuedRequest
}

// Find returns the pending request with the given id.
func (q *QueueAccount) Find(id ulid.ULID) (*QueuedRequest, bool) {
	for _, r := range q.Requests {
		if r.ID == id {
			return r, true
		}
	}

	return nil, false
}

func (q *QueueAccount) remove(id ulid.ULID) {
	kept := q.Requests[:0]
	for _, r := range q.Requests {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	q.Requests = kept
}

// Marshal lays the queue out as discriminator || authority ||
// u32 count || (id[16] || payer[32] || request body)*.
func (q *QueueAccount) Marshal() []byte {
	var e encoder
	e.raw(queueAccountDiscriminator.Bytes())
	e.pubkey(q.Authority)
	e.u32(uint32(len(q.Requests)))
	for _, r := range q.Requests {
		e.raw(r.ID[:])
		e.pubkey(r.Request.Payer)
		encodeRequestBody(&e, r.Request)
	}

	return e.bytes()
}

// UnmarshalQueueAccount decodes queue account data.
func UnmarshalQueueAccount(data []byte) (*QueueAccount, error) {
	if !queueAccountDiscriminator.Matches(data) {
		return nil, errorsmod.Wrap(ErrInvalidQueue, "account discriminator mismatch")
	}

	d := newDecoder(data[types.DiscriminatorLength:])
	q := &QueueAccount{Authority: d.pubkey()}
	n := d.u32()
	for i := uint32(0); i < n && d.err == nil; i++ {
		var id ulid.ULID
		copy(id[:], d.take(len(id)))
		payer := d.pubkey()
		req := readRequestBody(d)
		req.Payer = payer
		q.Requests = append(q.Requests, &QueuedRequest{ID: id, Request: req})
	}
	if err := d.finish(); err != nil {
		return nil, errorsmod.Wrap(ErrInvalidQueue, err.Error())
	}

	return q, nil
}

// GenesisQueueAccount returns an empty queue owned by the oracle program, for
// seeding a ledger.
func GenesisQueueAccount(address, authority types.Pubkey) *ledger.Account {
	q := &QueueAccount{Authority: authority}

	return &ledger.Account{
		Address: address,
		Owner:   VRFProgramID,
		Data:    q.Marshal(),
	}
}

// LoadQueue decodes a committed queue account, checking its owner.
func LoadQueue(acc *ledger.Account) (*QueueAccount, error) {
	if acc.Owner != VRFProgramID {
		return nil, errorsmod.Wrapf(ErrInvalidQueue, "account %s is owned by %s", acc.Address, acc.Owner)
	}

	q, err := UnmarshalQueueAccount(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode queue %s: %w", acc.Address, err)
	}

	return q, nil
}
