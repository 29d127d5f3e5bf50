package service

import (
	"context"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// LedgerClient executes transactions and reads committed accounts.
// *ledger.Runtime implements it.
type LedgerClient interface {
	Execute(ctx context.Context, tx *ledger.Transaction) error
	GetAccount(addr types.Pubkey) (*ledger.Account, error)
}

// RandomnessSource produces the randomness delivered for a queued request.
type RandomnessSource interface {
	Randomness(queued *vrf.QueuedRequest) ([vrf.RandomnessLength]byte, error)
}
