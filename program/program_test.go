package program_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/program"
	"github.com/er-state/vrf-consumer/testutil"
	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

func TestDiscriminators(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		types.Discriminator{190, 217, 49, 162, 99, 26, 73, 234},
		program.ConsumeRandomnessDiscriminator(),
	)
}

func TestCallerSeedReplicatesClientSeed(t *testing.T) {
	t.Parallel()

	seed := program.CallerSeed(7)
	for _, b := range seed {
		require.Equal(t, byte(7), b)
	}
}

// TestRequestRandomnessScenario requests with client seed 7 and checks the
// request the oracle received.
func TestRequestRandomnessScenario(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(1))
	tl := testutil.NewTestLedger(t, r)

	key, user, addr := tl.InitUser(t, r)

	ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, 7)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))

	pending := tl.PendingRequests(t)
	require.Len(t, pending, 1)
	req := pending[0].Request

	var expectedSeed [32]byte
	for i := range expectedSeed {
		expectedSeed[i] = 7
	}

	require.Equal(t, user, req.Payer)
	require.Equal(t, program.ProgramID, req.CallbackProgramID)
	require.Equal(t, program.ConsumeRandomnessDiscriminator().Bytes(), req.CallbackDiscriminator)
	require.Equal(t, expectedSeed, req.CallerSeed)
	require.Equal(t, []types.AccountMeta{{Pubkey: addr, IsSigner: false, IsWritable: true}}, req.AccountsMetas)
	require.Empty(t, req.CallbackArgs)

	// the request itself leaves the user account untouched
	require.Equal(t, uint64(0), tl.UserAccount(t, addr).Data)
}

func TestBuildRandomnessRequestRoundTripsThroughOracleIx(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(2))

	user := testutil.GenRandomPubkey(r)
	addr := testutil.GenRandomPubkey(r)
	queue := testutil.GenRandomPubkey(r)

	ix, err := vrf.CreateRequestRandomnessIx(program.BuildRandomnessRequest(user, queue, addr, 7))
	require.NoError(t, err)

	req, gotQueue, err := vrf.DecodeRequestRandomnessIx(ix)
	require.NoError(t, err)
	require.Equal(t, queue, gotQueue)
	require.Equal(t, user, req.Payer)
	require.Equal(t, program.CallerSeed(7), req.CallerSeed)
	require.Equal(t, []types.AccountMeta{types.NewAccountMeta(addr, false, true)}, req.AccountsMetas)
}

func TestRequestRandomnessRejectsWrongDerivation(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(3))
	tl := testutil.NewTestLedger(t, r)

	_, _, victimAddr := tl.InitUser(t, r)
	attackerKey, attacker := testutil.GenRandomKeyPair(r, t)

	requestIx := func(signer, account types.Pubkey) *types.Instruction {
		ix, err := program.NewRequestRandomnessInstruction(signer, tl.Queue, 1)
		require.NoError(t, err)
		ix.Accounts[1] = types.NewAccountMeta(account, false, true)

		return ix
	}

	t.Run("impersonation", func(t *testing.T) {
		err := tl.Execute(t, []ed25519.PrivateKey{attackerKey}, requestIx(attacker, victimAddr))
		require.ErrorIs(t, err, program.ErrInvalidAccountDerivation)
		require.Empty(t, tl.PendingRequests(t))
	})

	t.Run("stored bump does not match", func(t *testing.T) {
		key, user, addr := tl.InitUser(t, r)

		acc, err := tl.Runtime.GetAccount(addr)
		require.NoError(t, err)
		state, err := program.UnmarshalUserAccount(acc.Data)
		require.NoError(t, err)
		state.Bump--
		acc.Data = state.Marshal()
		require.NoError(t, tl.Runtime.Store().SetAccount(acc))

		err = tl.Execute(t, []ed25519.PrivateKey{key}, requestIx(user, addr))
		require.ErrorIs(t, err, program.ErrInvalidAccountDerivation)
		require.Empty(t, tl.PendingRequests(t))
	})

	t.Run("account planted at an underived address", func(t *testing.T) {
		key, user := testutil.GenRandomKeyPair(r, t)
		_, bump, err := program.FindUserAccountAddress(user)
		require.NoError(t, err)

		planted := testutil.GenRandomPubkey(r)
		state := &program.UserAccount{User: user, Bump: bump}
		require.NoError(t, tl.Runtime.Store().SetAccount(&ledger.Account{
			Address: planted,
			Owner:   program.ProgramID,
			Data:    state.Marshal(),
		}))

		err = tl.Execute(t, []ed25519.PrivateKey{key}, requestIx(user, planted))
		require.ErrorIs(t, err, program.ErrInvalidAccountDerivation)
		require.Empty(t, tl.PendingRequests(t))
	})
}

func TestRequestRandomnessDispatchFailureRollsBack(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(4))
	tl := testutil.NewTestLedger(t, r)

	key, user, addr := tl.InitUser(t, r)

	updateIx, err := program.NewUpdateInstruction(user, 42)
	require.NoError(t, err)
	// no queue lives at this address, so the oracle rejects the request
	requestIx, err := program.NewRequestRandomnessInstruction(user, testutil.GenRandomPubkey(r), 9)
	require.NoError(t, err)

	err = tl.Execute(t, []ed25519.PrivateKey{key}, updateIx, requestIx)
	require.ErrorIs(t, err, program.ErrUpstreamDispatchFailure)
	require.ErrorIs(t, err, vrf.ErrInvalidQueue)

	// the update in the same transaction was rolled back too
	require.Equal(t, uint64(0), tl.UserAccount(t, addr).Data)
	require.Empty(t, tl.PendingRequests(t))
}

func TestRequestRandomnessRequiresUserSignature(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(5))
	tl := testutil.NewTestLedger(t, r)

	_, user, _ := tl.InitUser(t, r)

	ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, 3)
	require.NoError(t, err)
	ix.Accounts[0].IsSigner = false

	err = tl.Execute(t, nil, ix)
	require.ErrorIs(t, err, program.ErrMissingSigner)
	require.Empty(t, tl.PendingRequests(t))
}

// TestConsumeRandomnessScenario delivers randomness whose first eight bytes
// decode to 123456789.
func TestConsumeRandomnessScenario(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(6))
	tl := testutil.NewTestLedger(t, r)

	key, user, addr := tl.InitUser(t, r)

	ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, 7)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))

	var randomness [vrf.RandomnessLength]byte
	prefix, err := hex.DecodeString("15cd5b0700000000")
	require.NoError(t, err)
	copy(randomness[:], prefix)
	copy(randomness[8:], testutil.GenRandomByteArray(r, 24))

	pending := tl.PendingRequests(t)
	require.Len(t, pending, 1)
	require.NoError(t, tl.Fulfill(t, pending[0], randomness))

	state := tl.UserAccount(t, addr)
	require.Equal(t, uint64(123456789), state.Data)
	require.Equal(t, user, state.User)
	require.Empty(t, tl.PendingRequests(t))
}

// FuzzConsumeRandomness checks the stored value is the little-endian u64 of
// the first eight randomness bytes, for any randomness.
func FuzzConsumeRandomness(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 5)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))
		tl := testutil.NewTestLedger(t, r)

		key, user, addr := tl.InitUser(t, r)
		randomness := testutil.GenRandomRandomness(r)

		ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, uint8(r.Intn(256)))
		require.NoError(t, err)
		require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))

		pending := tl.PendingRequests(t)
		require.Len(t, pending, 1)
		require.NoError(t, tl.Fulfill(t, pending[0], randomness))

		require.Equal(t, vrf.RandomU64(randomness), tl.UserAccount(t, addr).Data)
	})
}

// impostorProgram forwards a consume_randomness callback under its own
// authority, either signing as its own identity or claiming the oracle's.
type impostorProgram struct {
	id          types.Pubkey
	userAccount types.Pubkey
	randomness  [vrf.RandomnessLength]byte
	claimOracle bool
}

func (p *impostorProgram) ID() types.Pubkey {
	return p.id
}

func (p *impostorProgram) Process(ic *ledger.InvokeContext, _ []*ledger.AccountInfo, _ []byte) error {
	if p.claimOracle {
		ix := program.NewConsumeRandomnessInstruction(vrf.VRFProgramIdentity, p.userAccount, p.randomness)

		return ic.Invoke(ix)
	}

	identity, bump, err := vrf.ProgramIdentity(p.id)
	if err != nil {
		return err
	}
	ix := program.NewConsumeRandomnessInstruction(identity, p.userAccount, p.randomness)

	return ic.InvokeSigned(ix, [][]byte{[]byte(vrf.IdentitySeed), {bump}})
}

// FuzzConsumeRandomnessRejectsImpostors checks that no invoker other than the
// oracle identity can change the stored value.
func FuzzConsumeRandomnessRejectsImpostors(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 5)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))
		tl := testutil.NewTestLedger(t, r)

		key, user, addr := tl.InitUser(t, r)
		prior := r.Uint64()
		updateIx, err := program.NewUpdateInstruction(user, prior)
		require.NoError(t, err)
		require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, updateIx))

		randomness := testutil.GenRandomRandomness(r)

		// a signed identity that is not the oracle's
		impostorKey, impostor := testutil.GenRandomKeyPair(r, t)
		ix := program.NewConsumeRandomnessInstruction(impostor, addr, randomness)
		err = tl.Execute(t, []ed25519.PrivateKey{impostorKey}, ix)
		require.ErrorIs(t, err, program.ErrUnauthorized)
		require.Equal(t, prior, tl.UserAccount(t, addr).Data)

		// the oracle identity, but without its signature
		ix = program.NewConsumeRandomnessInstruction(vrf.VRFProgramIdentity, addr, randomness)
		ix.Accounts[0].IsSigner = false
		err = tl.Execute(t, nil, ix)
		require.ErrorIs(t, err, program.ErrUnauthorized)
		require.Equal(t, prior, tl.UserAccount(t, addr).Data)

		// another program signing with its own derived identity
		p := &impostorProgram{id: testutil.GenRandomPubkey(r), userAccount: addr, randomness: randomness}
		require.NoError(t, tl.Runtime.RegisterProgram(p))
		identity, _, err := vrf.ProgramIdentity(p.id)
		require.NoError(t, err)
		err = tl.Execute(t, nil, types.NewInstruction(p.id, []types.AccountMeta{
			types.NewAccountMeta(identity, false, false),
			types.NewAccountMeta(addr, false, true),
		}, nil))
		require.ErrorIs(t, err, program.ErrUnauthorized)
		require.Equal(t, prior, tl.UserAccount(t, addr).Data)

		// another program claiming the oracle identity cannot sign for it
		spoofer := &impostorProgram{id: testutil.GenRandomPubkey(r), userAccount: addr, randomness: randomness, claimOracle: true}
		require.NoError(t, tl.Runtime.RegisterProgram(spoofer))
		err = tl.Execute(t, nil, types.NewInstruction(spoofer.id, []types.AccountMeta{
			types.NewAccountMeta(vrf.VRFProgramIdentity, false, false),
			types.NewAccountMeta(addr, false, true),
		}, nil))
		require.ErrorIs(t, err, ledger.ErrPrivilegeEscalation)
		require.Equal(t, prior, tl.UserAccount(t, addr).Data)
	})
}

// TestRepeatedCallbacksOverwrite shows there is no replay protection: every
// authenticated delivery overwrites the stored value.
func TestRepeatedCallbacksOverwrite(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(7))
	tl := testutil.NewTestLedger(t, r)

	key, user, addr := tl.InitUser(t, r)

	for _, clientSeed := range []uint8{1, 2} {
		ix, err := program.NewRequestRandomnessInstruction(user, tl.Queue, clientSeed)
		require.NoError(t, err)
		require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, ix))
	}

	pending := tl.PendingRequests(t)
	require.Len(t, pending, 2)

	first := testutil.GenRandomRandomness(r)
	second := testutil.GenRandomRandomness(r)
	require.NoError(t, tl.Fulfill(t, pending[0], first))
	require.Equal(t, vrf.RandomU64(first), tl.UserAccount(t, addr).Data)
	require.NoError(t, tl.Fulfill(t, pending[1], second))
	require.Equal(t, vrf.RandomU64(second), tl.UserAccount(t, addr).Data)

	// the same randomness twice yields the same value
	require.Equal(t, vrf.RandomU64(second), vrf.RandomU64(second))
}

func TestFailedCallbackKeepsRequestQueued(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(8))
	tl := testutil.NewTestLedger(t, r)

	key, user, _ := tl.InitUser(t, r)

	requestIx, err := program.NewRequestRandomnessInstruction(user, tl.Queue, 5)
	require.NoError(t, err)
	closeIx, err := program.NewCloseInstruction(user)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, requestIx))
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, closeIx))

	pending := tl.PendingRequests(t)
	require.Len(t, pending, 1)

	err = tl.Fulfill(t, pending[0], testutil.GenRandomRandomness(r))
	require.ErrorIs(t, err, program.ErrAccountNotInitialized)
	require.Len(t, tl.PendingRequests(t), 1)
}

func TestInitializeUpdateClose(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(9))
	tl := testutil.NewTestLedger(t, r)

	key, user, addr := tl.InitUser(t, r)

	expectedAddr, bump, err := program.FindUserAccountAddress(user)
	require.NoError(t, err)
	require.Equal(t, expectedAddr, addr)

	state := tl.UserAccount(t, addr)
	require.Equal(t, user, state.User)
	require.Equal(t, bump, state.Bump)
	require.Equal(t, uint64(0), state.Data)
	require.NoError(t, program.ValidateUserAccount(addr, user, state.Bump))

	acc, err := tl.Runtime.GetAccount(addr)
	require.NoError(t, err)
	require.Len(t, acc.Data, program.UserAccountSize)

	initIx, err := program.NewInitializeInstruction(user)
	require.NoError(t, err)
	err = tl.Execute(t, []ed25519.PrivateKey{key}, initIx)
	require.ErrorIs(t, err, program.ErrAccountAlreadyInitialized)

	updateIx, err := program.NewUpdateInstruction(user, 987654321)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, updateIx))
	require.Equal(t, uint64(987654321), tl.UserAccount(t, addr).Data)

	// another signer cannot update someone else's account
	otherKey, other := testutil.GenRandomKeyPair(r, t)
	updateIx, err = program.NewUpdateInstruction(other, 1)
	require.NoError(t, err)
	updateIx.Accounts[1] = types.NewAccountMeta(addr, false, true)
	err = tl.Execute(t, []ed25519.PrivateKey{otherKey}, updateIx)
	require.ErrorIs(t, err, program.ErrInvalidAccountDerivation)
	require.Equal(t, uint64(987654321), tl.UserAccount(t, addr).Data)

	closeIx, err := program.NewCloseInstruction(user)
	require.NoError(t, err)
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, closeIx))
	_, err = tl.Runtime.GetAccount(addr)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	// a closed account can be created again
	require.NoError(t, tl.Execute(t, []ed25519.PrivateKey{key}, initIx))
	require.Equal(t, uint64(0), tl.UserAccount(t, addr).Data)
}

func TestUnknownInstruction(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(10))
	tl := testutil.NewTestLedger(t, r)

	err := tl.Execute(t, nil, types.NewInstruction(program.ProgramID, nil, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.ErrorIs(t, err, program.ErrInstructionNotFound)

	err = tl.Execute(t, nil, types.NewInstruction(program.ProgramID, nil, []byte{1}))
	require.ErrorIs(t, err, program.ErrInstructionNotFound)
}
