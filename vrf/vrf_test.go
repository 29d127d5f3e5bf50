package vrf_test

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/testutil"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

func TestRandomU64(t *testing.T) {
	t.Parallel()

	var randomness [vrf.RandomnessLength]byte
	raw, err := hex.DecodeString("15cd5b0700000000")
	require.NoError(t, err)
	copy(randomness[:], raw)
	require.Equal(t, uint64(123456789), vrf.RandomU64(randomness))

	// only the first eight bytes count
	for i := 8; i < vrf.RandomnessLength; i++ {
		randomness[i] = 0xff
	}
	require.Equal(t, uint64(123456789), vrf.RandomU64(randomness))
}

func TestVRFProgramIdentity(t *testing.T) {
	t.Parallel()

	identity, bump, err := vrf.ProgramIdentity(vrf.VRFProgramID)
	require.NoError(t, err)
	require.Equal(t, vrf.VRFProgramIdentity, identity)
	require.Equal(t, uint8(254), bump)
}

func genRandomRequest(r *rand.Rand) *vrf.RandomnessRequest {
	req := &vrf.RandomnessRequest{
		Payer:                 testutil.GenRandomPubkey(r),
		CallbackProgramID:     testutil.GenRandomPubkey(r),
		CallbackDiscriminator: testutil.GenRandomByteArray(r, 8),
		CallbackArgs:          testutil.GenRandomByteArray(r, 1+uint64(r.Intn(64))),
	}
	copy(req.CallerSeed[:], testutil.GenRandomByteArray(r, vrf.CallerSeedLength))
	for i := 0; i < 1+r.Intn(vrf.MaxCallbackAccounts); i++ {
		req.AccountsMetas = append(req.AccountsMetas,
			types.NewAccountMeta(testutil.GenRandomPubkey(r), r.Intn(2) == 0, r.Intn(2) == 0))
	}

	return req
}

func FuzzRequestRandomnessIx(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))

		req := genRandomRequest(r)
		queue := testutil.GenRandomPubkey(r)
		ix, err := vrf.CreateRequestRandomnessIx(vrf.RequestRandomnessParams{
			Payer:                 req.Payer,
			OracleQueue:           queue,
			CallbackProgramID:     req.CallbackProgramID,
			CallbackDiscriminator: req.CallbackDiscriminator,
			CallerSeed:            req.CallerSeed,
			AccountsMetas:         req.AccountsMetas,
			CallbackArgs:          req.CallbackArgs,
		})
		require.NoError(t, err)

		identity, _, err := vrf.ProgramIdentity(req.CallbackProgramID)
		require.NoError(t, err)
		require.Equal(t, vrf.VRFProgramID, ix.ProgramID)
		require.Equal(t, []types.AccountMeta{
			types.NewAccountMeta(req.Payer, true, true),
			types.NewAccountMeta(identity, true, false),
			types.NewAccountMeta(queue, false, true),
		}, ix.Accounts)

		decoded, decodedQueue, err := vrf.DecodeRequestRandomnessIx(ix)
		require.NoError(t, err)
		require.Equal(t, queue, decodedQueue)
		require.Equal(t, req, decoded)

		// every truncation is rejected
		cut := *ix
		cut.Data = ix.Data[:r.Intn(len(ix.Data))]
		_, _, err = vrf.DecodeRequestRandomnessIx(&cut)
		require.Error(t, err)
	})
}

func TestCreateRequestRandomnessIxRejectsTooManyAccounts(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(1))

	metas := make([]types.AccountMeta, vrf.MaxCallbackAccounts+1)
	_, err := vrf.CreateRequestRandomnessIx(vrf.RequestRandomnessParams{
		Payer:             testutil.GenRandomPubkey(r),
		CallbackProgramID: testutil.GenRandomPubkey(r),
		AccountsMetas:     metas,
	})
	require.Error(t, err)
}

func FuzzQueueAccount(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))

		q := &vrf.QueueAccount{Authority: testutil.GenRandomPubkey(r)}
		for i := 0; i < 1+r.Intn(8); i++ {
			q.Requests = append(q.Requests, &vrf.QueuedRequest{ID: ulid.Make(), Request: genRandomRequest(r)})
		}

		data := q.Marshal()
		decoded, err := vrf.UnmarshalQueueAccount(data)
		require.NoError(t, err)
		require.Equal(t, q, decoded)

		found, ok := decoded.Find(q.Requests[0].ID)
		require.True(t, ok)
		require.Equal(t, q.Requests[0], found)
		_, ok = decoded.Find(ulid.Make())
		require.False(t, ok)

		_, err = vrf.UnmarshalQueueAccount(data[:len(data)-1])
		require.ErrorIs(t, err, vrf.ErrInvalidQueue)
	})
}

func TestLoadQueueChecksOwner(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(2))

	acc := vrf.GenesisQueueAccount(testutil.GenRandomPubkey(r), testutil.GenRandomPubkey(r))
	q, err := vrf.LoadQueue(acc)
	require.NoError(t, err)
	require.Empty(t, q.Requests)

	acc.Owner = testutil.GenRandomPubkey(r)
	_, err = vrf.LoadQueue(acc)
	require.ErrorIs(t, err, vrf.ErrInvalidQueue)
}

func TestCallbackInstruction(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(3))

	req := genRandomRequest(r)
	randomness := testutil.GenRandomRandomness(r)

	ix := vrf.NewCallbackInstruction(req, randomness)
	require.Equal(t, req.CallbackProgramID, ix.ProgramID)
	require.Equal(t, types.NewAccountMeta(vrf.VRFProgramIdentity, true, false), ix.Accounts[0])
	require.Equal(t, req.AccountsMetas, ix.Accounts[1:])

	expected := append(append(append([]byte{}, req.CallbackDiscriminator...), randomness[:]...), req.CallbackArgs...)
	require.Equal(t, expected, ix.Data)
}
