package vrf

import (
	"encoding/binary"
)

// RandomU64 extracts the outcome consumers store: the first eight bytes of
// the delivered randomness read as a little-endian unsigned integer. The
// remaining bytes are ignored.
func RandomU64(randomness [RandomnessLength]byte) uint64 {
	return binary.LittleEndian.Uint64(randomness[0:8])
}
