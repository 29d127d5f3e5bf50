package service_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/keyring"
	"github.com/er-state/vrf-consumer/program"
	"github.com/er-state/vrf-consumer/service"
	"github.com/er-state/vrf-consumer/testutil"
	"github.com/er-state/vrf-consumer/vrf"
)

func newTestApp(t *testing.T) *service.VrfConsumerApp {
	homePath := t.TempDir()
	cfg := config.DefaultConfigWithHome(homePath)
	cfg.Oracle.AutoFulfill = false

	db, err := cfg.DatabaseConfig.GetDBBackend()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	app, err := service.NewVrfConsumerAppFromConfig(&cfg, db, testutil.GetTestLogger(t))
	require.NoError(t, err)

	_, err = app.EnsureOracleQueue()
	require.NoError(t, err)

	return app
}

func TestEnsureOracleQueueIsIdempotent(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	authorityKey, err := app.GetKeyStore().GetKey(app.GetConfig().Oracle.AuthorityKey)
	require.NoError(t, err)

	authority, err := app.EnsureOracleQueue()
	require.NoError(t, err)
	require.Equal(t, authorityKey.Pubkey, authority)

	pending, err := app.PendingRequests()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestAppRandomnessRoundTrip(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	ctx := context.Background()

	key, err := app.GetKeyStore().CreateKey("alice")
	require.NoError(t, err)

	_, err = app.GetUserAccount(key.Pubkey)
	require.ErrorIs(t, err, service.ErrUserAccountNotFound)

	created, err := app.CreateUserAccount(ctx, "alice")
	require.NoError(t, err)
	expectedAddr, bump, err := program.FindUserAccountAddress(key.Pubkey)
	require.NoError(t, err)
	require.Equal(t, &service.UserAccountInfo{Address: expectedAddr, User: key.Pubkey, Bump: bump}, created)

	updated, err := app.UpdateUserAccount(ctx, "alice", 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), updated.Data)

	res, err := app.RequestRandomness(ctx, "alice", 7)
	require.NoError(t, err)
	require.Equal(t, expectedAddr, res.Account)
	require.Equal(t, uint8(7), res.ClientSeed)

	pending, err := app.PendingRequests()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, res.RequestID, pending[0].ID.String())
	require.Equal(t, program.CallerSeed(7), pending[0].Request.CallerSeed)

	n, err := app.FulfillPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	authority, err := app.GetKeyStore().GetPrivateKey(app.GetConfig().Oracle.AuthorityKey)
	require.NoError(t, err)
	randomness, err := service.NewSignatureRandomness(authority).Randomness(pending[0])
	require.NoError(t, err)

	info, err := app.GetUserAccount(key.Pubkey)
	require.NoError(t, err)
	require.Equal(t, vrf.RandomU64(randomness), info.Data)

	require.NoError(t, app.CloseUserAccount(ctx, "alice"))
	_, err = app.GetUserAccount(key.Pubkey)
	require.ErrorIs(t, err, service.ErrUserAccountNotFound)
}

func TestAppRejections(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(7))
	app := newTestApp(t)
	ctx := context.Background()

	_, err := app.CreateUserAccount(ctx, "nobody")
	require.ErrorIs(t, err, keyring.ErrKeyNotFound)

	_, err = app.GetKeyStore().CreateKey("bob")
	require.NoError(t, err)

	// no account yet, so nothing is queued
	_, err = app.RequestRandomness(ctx, "bob", 1)
	require.ErrorIs(t, err, program.ErrAccountNotInitialized)
	pending, err := app.PendingRequests()
	require.NoError(t, err)
	require.Empty(t, pending)

	_, err = app.CreateUserAccount(ctx, "bob")
	require.NoError(t, err)
	_, err = app.CreateUserAccount(ctx, "bob")
	require.ErrorIs(t, err, program.ErrAccountAlreadyInitialized)

	_, err = app.GetUserAccount(testutil.GenRandomPubkey(r))
	require.ErrorIs(t, err, service.ErrUserAccountNotFound)
}

func TestAppStartStop(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	app.GetConfig().Oracle.AutoFulfill = true

	require.NoError(t, app.Start())
	require.NoError(t, app.Start())
	require.NoError(t, app.Stop())
	require.NoError(t, app.Stop())
}
