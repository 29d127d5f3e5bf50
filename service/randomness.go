package service

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/er-state/vrf-consumer/types"
	"github.com/er-state/vrf-consumer/vrf"
)

// SignatureRandomness derives the randomness of a request from the queue
// authority's ed25519 signature over the request. Ed25519 signatures are
// deterministic, so the output is fixed per request and anyone holding the
// signature and the authority key can check it with VerifyRandomness. This is
// a local stand-in for a VRF; it carries no on-ledger proof.
type SignatureRandomness struct {
	key ed25519.PrivateKey
}

var _ RandomnessSource = (*SignatureRandomness)(nil)

func NewSignatureRandomness(key ed25519.PrivateKey) *SignatureRandomness {
	return &SignatureRandomness{key: key}
}

func (s *SignatureRandomness) Randomness(queued *vrf.QueuedRequest) ([vrf.RandomnessLength]byte, error) {
	_, out, err := s.Prove(queued)

	return out, err
}

// Prove returns the signature backing the randomness of queued and the
// randomness itself.
func (s *SignatureRandomness) Prove(queued *vrf.QueuedRequest) ([]byte, [vrf.RandomnessLength]byte, error) {
	if len(s.key) != ed25519.PrivateKeySize {
		return nil, [vrf.RandomnessLength]byte{}, fmt.Errorf("invalid authority key length %d", len(s.key))
	}
	if queued == nil || queued.Request == nil {
		return nil, [vrf.RandomnessLength]byte{}, fmt.Errorf("empty randomness request")
	}

	proof := ed25519.Sign(s.key, randomnessMessage(queued))

	return proof, sha256.Sum256(proof), nil
}

// VerifyRandomness checks that randomness was produced for queued by the
// holder of authority.
func VerifyRandomness(authority types.Pubkey, queued *vrf.QueuedRequest, proof []byte, randomness [vrf.RandomnessLength]byte) bool {
	if queued == nil || queued.Request == nil {
		return false
	}
	if !ed25519.Verify(ed25519.PublicKey(authority[:]), randomnessMessage(queued), proof) {
		return false
	}

	return sha256.Sum256(proof) == randomness
}

// randomnessMessage is request_id || caller_seed || callback_program_id.
func randomnessMessage(queued *vrf.QueuedRequest) []byte {
	msg := make([]byte, 0, len(queued.ID)+vrf.CallerSeedLength+types.PubkeyLength)
	msg = append(msg, queued.ID[:]...)
	msg = append(msg, queued.Request.CallerSeed[:]...)
	msg = append(msg, queued.Request.CallbackProgramID[:]...)

	return msg
}
