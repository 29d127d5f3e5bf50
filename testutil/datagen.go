package testutil

import (
	"crypto/ed25519"
	"encoding/hex"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

func GenRandomByteArray(r *rand.Rand, length uint64) []byte {
	newHeaderBytes := make([]byte, length)
	r.Read(newHeaderBytes)

	return newHeaderBytes
}

func GenRandomHexStr(r *rand.Rand, length uint64) string {
	randBytes := GenRandomByteArray(r, length)

	return hex.EncodeToString(randBytes)
}

func AddRandomSeedsToFuzzer(f *testing.F, num uint) {
	// Seed based on the current time
	r := rand.New(rand.NewSource(time.Now().Unix()))
	var idx uint
	for idx = 0; idx < num; idx++ {
		f.Add(r.Int63())
	}
}

// GenRandomPubkey returns a random 32-byte identity. It is not guaranteed to
// be a valid ed25519 point.
func GenRandomPubkey(r *rand.Rand) types.Pubkey {
	var pk types.Pubkey
	copy(pk[:], GenRandomByteArray(r, types.PubkeyLength))

	return pk
}

// GenRandomKeyPair returns a signing key and its identity.
func GenRandomKeyPair(r *rand.Rand, t testing.TB) (ed25519.PrivateKey, types.Pubkey) {
	seed := GenRandomByteArray(r, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	pub, ok := priv.Public().(ed25519.PublicKey)
	require.True(t, ok)

	return priv, types.PubkeyFromEd25519(pub)
}

func GenRandomRandomness(r *rand.Rand) [vrf.RandomnessLength]byte {
	var out [vrf.RandomnessLength]byte
	copy(out[:], GenRandomByteArray(r, vrf.RandomnessLength))

	return out
}
