package service_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/metrics"
	"github.com/er-state/vrf-consumer/program"
	"github.com/er-state/vrf-consumer/service"
	"github.com/er-state/vrf-consumer/testutil"
	"github.com/er-state/vrf-consumer/testutil/mocks"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

func testOracleConfig(queue types.Pubkey) *config.OracleConfig {
	cfg := config.DefaultOracleConfig()
	cfg.Queue = queue
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RetryDelay = time.Millisecond

	return &cfg
}

// queueWithRequest returns a queue held by authority with one pending
// request for a random user account.
func queueWithRequest(r *rand.Rand, authority types.Pubkey) *vrf.QueueAccount {
	params := program.BuildRandomnessRequest(testutil.GenRandomPubkey(r), vrf.DefaultQueue, testutil.GenRandomPubkey(r), uint8(r.Intn(256)))

	return &vrf.QueueAccount{
		Authority: authority,
		Requests: []*vrf.QueuedRequest{{
			ID: ulid.Make(),
			Request: &vrf.RandomnessRequest{
				Payer:                 params.Payer,
				CallbackProgramID:     params.CallbackProgramID,
				CallbackDiscriminator: params.CallbackDiscriminator,
				CallerSeed:            params.CallerSeed,
				AccountsMetas:         params.AccountsMetas,
			},
		}},
	}
}

func TestFulfillPendingDeliversRandomness(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(1))
	tl := testutil.NewTestLedger(t, r)

	key, user, addr := tl.InitUser(t, r)
	ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, 7)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))
	queued := tl.PendingRequests(t)[0]

	source := service.NewSignatureRandomness(tl.Authority)
	f := service.NewFulfiller(testOracleConfig(tl.Queue), tl.Runtime, source, tl.Authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	n, err := f.FulfillPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, tl.PendingRequests(t))

	proof, randomness, err := source.Prove(queued)
	require.NoError(t, err)
	require.Equal(t, vrf.RandomU64(randomness), tl.UserAccount(t, addr).Data)

	authorityPk := types.PubkeyFromEd25519(tl.Authority.Public().(ed25519.PublicKey))
	require.True(t, service.VerifyRandomness(authorityPk, queued, proof, randomness))
	require.False(t, service.VerifyRandomness(testutil.GenRandomPubkey(r), queued, proof, randomness))

	// nothing left to do
	n, err = f.FulfillPending(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFulfillPendingRequiresQueueAuthority(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(2))
	tl := testutil.NewTestLedger(t, r)

	other, _ := testutil.GenRandomKeyPair(r, t)
	f := service.NewFulfiller(testOracleConfig(tl.Queue), tl.Runtime, service.NewSignatureRandomness(other), other, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	_, err := f.FulfillPending(context.Background())
	require.ErrorIs(t, err, service.ErrNotQueueAuthority)
}

func TestFulfillerRetriesTransientFailures(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(3))

	authority, authorityPk := testutil.GenRandomKeyPair(r, t)
	queue := queueWithRequest(r, authorityPk)
	client := testutil.PrepareMockedLedgerClient(t, vrf.DefaultQueue, queue)

	errBusy := errors.New("database is busy")
	gomock.InOrder(
		client.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(errBusy).Times(2),
		client.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(nil).Times(1),
	)

	f := service.NewFulfiller(testOracleConfig(vrf.DefaultQueue), client, service.NewSignatureRandomness(authority), authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	n, err := f.FulfillPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFulfillerAbandonsRejectedRequests(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(4))

	authority, authorityPk := testutil.GenRandomKeyPair(r, t)
	queue := queueWithRequest(r, authorityPk)
	removal := vrf.NewRemoveRequestInstruction(authorityPk, vrf.DefaultQueue, queue.Requests[0].ID)
	client := testutil.PrepareMockedLedgerClient(t, vrf.DefaultQueue, queue)

	cfg := testOracleConfig(vrf.DefaultQueue)
	cfg.MaxFulfillAttempts = 2

	// a rejection by a program is not retried within a scan; after
	// MaxFulfillAttempts scans the request is removed from the queue
	var deliveries, removals int
	client.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, tx *ledger.Transaction) error {
		if reflect.DeepEqual(tx.Instructions[0], removal) {
			removals++
			queue.Requests = nil

			return nil
		}
		deliveries++

		return program.ErrAccountNotInitialized
	}).AnyTimes()

	f := service.NewFulfiller(cfg, client, service.NewSignatureRandomness(authority), authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	for i := 0; i < int(cfg.MaxFulfillAttempts)+2; i++ {
		n, err := f.FulfillPending(context.Background())
		require.NoError(t, err)
		require.Zero(t, n)
	}
	require.Equal(t, int(cfg.MaxFulfillAttempts), deliveries)
	require.Equal(t, 1, removals)
	require.Empty(t, queue.Requests)
	require.Zero(t, f.NumAbandoned())
}

func TestFulfillerRetriesFailedRemoval(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(7))

	authority, authorityPk := testutil.GenRandomKeyPair(r, t)
	queue := queueWithRequest(r, authorityPk)
	removal := vrf.NewRemoveRequestInstruction(authorityPk, vrf.DefaultQueue, queue.Requests[0].ID)
	client := testutil.PrepareMockedLedgerClient(t, vrf.DefaultQueue, queue)

	cfg := testOracleConfig(vrf.DefaultQueue)
	cfg.MaxFulfillAttempts = 1
	cfg.RetryAttempts = 1

	errBusy := errors.New("database is busy")
	removalErr := errBusy
	var deliveries int
	client.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, tx *ledger.Transaction) error {
		if reflect.DeepEqual(tx.Instructions[0], removal) {
			if removalErr == nil {
				queue.Requests = nil
			}

			return removalErr
		}
		deliveries++

		return program.ErrAccountNotInitialized
	}).AnyTimes()

	f := service.NewFulfiller(cfg, client, service.NewSignatureRandomness(authority), authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	_, err := f.FulfillPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.NumAbandoned())
	require.Len(t, queue.Requests, 1)

	// the abandoned request is not delivered again, only its removal retried
	removalErr = nil
	_, err = f.FulfillPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, deliveries)
	require.Empty(t, queue.Requests)
	require.Zero(t, f.NumAbandoned())
}

func TestAbandonedRequestsFreeQueueCapacity(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(8))
	tl := testutil.NewTestLedger(t, r)
	ctx := context.Background()

	// one user fills the queue and closes their account, so none of the
	// callbacks can land
	key, user, _ := tl.InitUser(t, r)
	for i := 0; i < vrf.DefaultMaxQueueLength; i++ {
		ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, uint8(i))
		require.NoError(t, err)
		require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))
	}
	closeIx, err := program.NewCloseInstruction(user)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, closeIx))

	otherKey, other, otherAddr := tl.InitUser(t, r)
	requestIx, err := program.NewRequestRandomnessInstruction(other, tl.Queue, 9)
	require.NoError(t, err)
	err = tl.Execute(t, []ed25519.PrivateKey{otherKey}, requestIx)
	require.ErrorIs(t, err, vrf.ErrQueueFull)

	cfg := testOracleConfig(tl.Queue)
	cfg.MaxFulfillAttempts = 1
	cfg.BatchSize = vrf.DefaultMaxQueueLength
	source := service.NewSignatureRandomness(tl.Authority)
	f := service.NewFulfiller(cfg, tl.Runtime, source, tl.Authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	n, err := f.FulfillPending(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, tl.PendingRequests(t))
	require.Zero(t, f.NumAbandoned())

	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{otherKey}, requestIx))
	pending := tl.PendingRequests(t)
	require.Len(t, pending, 1)
	randomness, err := source.Randomness(pending[0])
	require.NoError(t, err)

	n, err = f.FulfillPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, vrf.RandomU64(randomness), tl.UserAccount(t, otherAddr).Data)
}

func TestFulfillerSourceFailure(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(5))

	authority, authorityPk := testutil.GenRandomKeyPair(r, t)
	queue := queueWithRequest(r, authorityPk)
	client := testutil.PrepareMockedLedgerClient(t, vrf.DefaultQueue, queue)

	source := mocks.NewMockRandomnessSource(gomock.NewController(t))
	source.EXPECT().Randomness(queue.Requests[0]).Return([vrf.RandomnessLength]byte{}, errors.New("no entropy")).Times(1)

	f := service.NewFulfiller(testOracleConfig(vrf.DefaultQueue), client, source, authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	err := f.Fulfill(context.Background(), queue.Requests[0])
	require.ErrorContains(t, err, "no entropy")
}

func TestFulfillerStartStop(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(6))

	authority, authorityPk := testutil.GenRandomKeyPair(r, t)
	client := testutil.PrepareMockedLedgerClient(t, vrf.DefaultQueue, &vrf.QueueAccount{Authority: authorityPk})

	f := service.NewFulfiller(testOracleConfig(vrf.DefaultQueue), client, service.NewSignatureRandomness(authority), authority, metrics.NewVrfMetrics(), testutil.GetTestLogger(t))

	require.False(t, f.IsRunning())
	require.NoError(t, f.Start())
	require.True(t, f.IsRunning())
	require.Error(t, f.Start())

	// let the loop scan a few times
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, f.Stop())
	require.False(t, f.IsRunning())
	require.Error(t, f.Stop())
}
