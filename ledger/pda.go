package ledger

import (
	"crypto/sha256"
	"errors"

	errorsmod "cosmossdk.io/errors"
	"filippo.io/edwards25519"

	"github.com/er-state/vrf-consumer/types"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included, in a derivation.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

// CreateProgramAddress derives the address owned by programID for the given
// seeds. The derivation is
//
//	sha256(seed_1 || ... || seed_n || programID || "ProgramDerivedAddress")
//
// and is rejected when the digest decodes to a valid ed25519 point, so that no
// private key can ever sign for a derived address.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.Pubkey{}, errorsmod.Wrapf(ErrInvalidSeeds, "too many seeds: %d > %d", len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return types.Pubkey{}, errorsmod.Wrapf(ErrInvalidSeeds, "seed %d is %d bytes, max %d", i, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr types.Pubkey
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return types.Pubkey{}, errorsmod.Wrap(ErrInvalidSeeds, "derived address is on the ed25519 curve")
	}

	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// (canonical) one whose derivation falls off the curve.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return types.Pubkey{}, 0, errorsmod.Wrapf(ErrInvalidSeeds, "too many seeds: %d, no room for the bump", len(seeds))
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return types.Pubkey{}, 0, err
		}
	}

	return types.Pubkey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b decodes to an ed25519 point. Non-canonical
// encodings of a point are accepted too.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)

	return err == nil
}
