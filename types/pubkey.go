package types

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of an identity or account address in bytes.
const PubkeyLength = 32

// Pubkey is a 32-byte ledger identity. It doubles as an account address and a
// program id. The text form is base58.
type Pubkey [PubkeyLength]byte

// ZeroPubkey is the all-zero identity, also used as the system program id.
var ZeroPubkey = Pubkey{}

func NewPubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLength {
		return pk, fmt.Errorf("invalid public key length: expected %d, got %d", PubkeyLength, len(b))
	}
	copy(pk[:], b)

	return pk, nil
}

// NewPubkeyFromBase58 parses the base58 text form of an identity.
func NewPubkeyFromBase58(s string) (Pubkey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("invalid base58 public key %q: %w", s, err)
	}

	return NewPubkeyFromBytes(b)
}

func MustPubkeyFromBase58(s string) Pubkey {
	pk, err := NewPubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}

	return pk
}

// PubkeyFromEd25519 converts an ed25519 public key into an identity.
func PubkeyFromEd25519(pk ed25519.PublicKey) Pubkey {
	var out Pubkey
	copy(out[:], pk)

	return out
}

func (pk Pubkey) Bytes() []byte {
	return pk[:]
}

func (pk Pubkey) String() string {
	return base58.Encode(pk[:])
}

func (pk Pubkey) IsZero() bool {
	return pk == ZeroPubkey
}

func (pk Pubkey) Equals(other Pubkey) bool {
	return bytes.Equal(pk[:], other[:])
}

func (pk Pubkey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

func (pk *Pubkey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewPubkeyFromBase58(s)
	if err != nil {
		return err
	}
	*pk = parsed

	return nil
}

// MarshalFlag and UnmarshalFlag let go-flags read identities from config files.
func (pk Pubkey) MarshalFlag() (string, error) {
	if pk.IsZero() {
		return "", nil
	}

	return pk.String(), nil
}

func (pk *Pubkey) UnmarshalFlag(value string) error {
	if value == "" {
		*pk = ZeroPubkey

		return nil
	}
	parsed, err := NewPubkeyFromBase58(value)
	if err != nil {
		return err
	}
	*pk = parsed

	return nil
}
