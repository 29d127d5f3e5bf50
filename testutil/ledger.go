package testutil

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"testing"

	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/program"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// TestLedger is a runtime over a temporary bolt db with the consumer program
// and the oracle stand-in registered and an empty oracle queue at
// vrf.DefaultQueue.
type TestLedger struct {
	Runtime   *ledger.Runtime
	DB        kvdb.Backend
	Queue     types.Pubkey
	Authority ed25519.PrivateKey
}

func NewTestLedger(t *testing.T, r *rand.Rand) *TestLedger {
	cfg := config.DefaultDBConfigWithHomePath(t.TempDir())
	db, err := cfg.GetDBBackend()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	store, err := ledger.NewAccountStore(db)
	require.NoError(t, err)

	logger := GetTestLogger(t)
	rt := ledger.NewRuntime(store, logger)
	require.NoError(t, rt.RegisterProgram(program.New(logger)))
	require.NoError(t, rt.RegisterProgram(vrf.NewOracleProgram(vrf.DefaultMaxQueueLength, logger)))

	authority, authorityPk := GenRandomKeyPair(r, t)
	require.NoError(t, store.SetAccount(vrf.GenesisQueueAccount(vrf.DefaultQueue, authorityPk)))

	return &TestLedger{
		Runtime:   rt,
		DB:        db,
		Queue:     vrf.DefaultQueue,
		Authority: authority,
	}
}

// Execute signs a transaction of ixs with keys and runs it.
func (tl *TestLedger) Execute(t *testing.T, keys []ed25519.PrivateKey, ixs ...*types.Instruction) error {
	tx := ledger.NewTransaction(ixs...)
	require.NoError(t, tx.Sign(keys...))

	return tl.Runtime.Execute(context.Background(), tx)
}

// InitUser creates the user account of a fresh identity and returns its key,
// identity and account address.
func (tl *TestLedger) InitUser(t *testing.T, r *rand.Rand) (ed25519.PrivateKey, types.Pubkey, types.Pubkey) {
	key, user := GenRandomKeyPair(r, t)

	ix, err := program.NewInitializeInstruction(user)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))

	addr, _, err := program.FindUserAccountAddress(user)
	require.NoError(t, err)

	return key, user, addr
}

// UserAccount loads and decodes the committed user account at addr.
func (tl *TestLedger) UserAccount(t *testing.T, addr types.Pubkey) *program.UserAccount {
	acc, err := tl.Runtime.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, program.ProgramID, acc.Owner)

	state, err := program.UnmarshalUserAccount(acc.Data)
	require.NoError(t, err)

	return state
}

// PendingRequests returns the requests waiting in the test queue.
func (tl *TestLedger) PendingRequests(t *testing.T) []*vrf.QueuedRequest {
	acc, err := tl.Runtime.GetAccount(tl.Queue)
	require.NoError(t, err)

	q, err := vrf.LoadQueue(acc)
	require.NoError(t, err)

	return q.Requests
}

// Fulfill delivers randomness for queued as the queue authority.
func (tl *TestLedger) Fulfill(t *testing.T, queued *vrf.QueuedRequest, randomness [vrf.RandomnessLength]byte) error {
	authorityPk := types.PubkeyFromEd25519(tl.Authority.Public().(ed25519.PublicKey))
	ix := vrf.NewProvideRandomnessInstruction(authorityPk, tl.Queue, queued, randomness)

	return tl.Execute(t, []ed25519.PrivateKey{tl.Authority}, ix)
}
