package vrf

import (
	"github.com/er-state/vrf-consumer/types"
)

const (
	// IdentitySeed is the seed tag every program uses to derive the identity
	// it signs randomness requests (and, for the oracle, callbacks) with.
	IdentitySeed = "identity"

	// vrfIdentityBump is the canonical bump of VRFProgramIdentity.
	vrfIdentityBump = 254

	// CallerSeedLength is the size of the caller-supplied seed buffer.
	CallerSeedLength = 32
	// RandomnessLength is the size of the randomness delivered to callbacks.
	RandomnessLength = 32
)

var (
	// VRFProgramID is the randomness oracle program.
	VRFProgramID = types.MustPubkeyFromBase58("Vrf1RNUjXmQGjmQrQLvJHs9SNkvDJEsRVFPkfSQUwGz")

	// VRFProgramIdentity is the oracle program's execution identity, derived
	// from IdentitySeed under VRFProgramID. Callbacks are only genuine when
	// this identity signed them.
	VRFProgramIdentity = types.MustPubkeyFromBase58("9irBy75QS2BN81FUgXuHcjqceJJRuc9oDkAe8TKVvvAw")

	// DefaultQueue is the base-layer oracle queue.
	DefaultQueue = types.MustPubkeyFromBase58("Cuj97ggrhhidhbu39TijNVqE74xvKJ69gDervRUXAxGh")

	// DefaultEphemeralQueue is the oracle queue serving ephemeral rollups.
	DefaultEphemeralQueue = types.MustPubkeyFromBase58("5hBR571xnXppuCPveTrctfTU7tJLSN94nq7kv7FRK5Tc")
)

// vrfIdentitySignerSeeds are the seeds the oracle signs callbacks with.
func vrfIdentitySignerSeeds() [][]byte {
	return [][]byte{[]byte(IdentitySeed), {vrfIdentityBump}}
}
