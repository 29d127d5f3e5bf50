package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/er-state/vrf-consumer/types"
)

// Signature is one signer's ed25519 signature over the transaction message.
type Signature struct {
	Signer    types.Pubkey
	Signature []byte
}

// Transaction is an ordered list of instructions executed atomically, plus
// the signatures that authorize it.
type Transaction struct {
	Instructions []*types.Instruction
	Signatures   []Signature
}

func NewTransaction(ixs ...*types.Instruction) *Transaction {
	return &Transaction{Instructions: ixs}
}

// Message is the byte string every signer signs. Each instruction is laid out
// as program_id || u32 account count || (pubkey, signer, writable)* ||
// u32 data length || data.
func (tx *Transaction) Message() []byte {
	var buf bytes.Buffer
	var u32 [4]byte

	binary.LittleEndian.PutUint32(u32[:], uint32(len(tx.Instructions)))
	buf.Write(u32[:])
	for _, ix := range tx.Instructions {
		buf.Write(ix.ProgramID[:])
		binary.LittleEndian.PutUint32(u32[:], uint32(len(ix.Accounts)))
		buf.Write(u32[:])
		for _, meta := range ix.Accounts {
			buf.Write(meta.Pubkey[:])
			buf.WriteByte(boolByte(meta.IsSigner))
			buf.WriteByte(boolByte(meta.IsWritable))
		}
		binary.LittleEndian.PutUint32(u32[:], uint32(len(ix.Data)))
		buf.Write(u32[:])
		buf.Write(ix.Data)
	}

	return buf.Bytes()
}

// Sign appends a signature for every given key.
func (tx *Transaction) Sign(keys ...ed25519.PrivateKey) error {
	msg := tx.Message()
	for _, key := range keys {
		if len(key) != ed25519.PrivateKeySize {
			return fmt.Errorf("invalid ed25519 private key length %d", len(key))
		}
		pub, ok := key.Public().(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("unexpected public key type")
		}
		tx.Signatures = append(tx.Signatures, Signature{
			Signer:    types.PubkeyFromEd25519(pub),
			Signature: ed25519.Sign(key, msg),
		})
	}

	return nil
}

// RequiredSigners lists, in first-seen order, every top-level account that
// an instruction marks as a signer.
func (tx *Transaction) RequiredSigners() []types.Pubkey {
	seen := make(map[types.Pubkey]struct{})
	var signers []types.Pubkey
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if !meta.IsSigner {
				continue
			}
			if _, ok := seen[meta.Pubkey]; ok {
				continue
			}
			seen[meta.Pubkey] = struct{}{}
			signers = append(signers, meta.Pubkey)
		}
	}

	return signers
}

// verifySignatures checks every attached signature and returns the set of
// identities that authorized the transaction.
func (tx *Transaction) verifySignatures() (map[types.Pubkey]struct{}, error) {
	msg := tx.Message()
	verified := make(map[types.Pubkey]struct{}, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		if !ed25519.Verify(ed25519.PublicKey(sig.Signer[:]), msg, sig.Signature) {
			return nil, errorsmod.Wrapf(ErrInvalidSignature, "signer %s", sig.Signer)
		}
		verified[sig.Signer] = struct{}{}
	}

	for _, signer := range tx.RequiredSigners() {
		if _, ok := verified[signer]; !ok {
			return nil, errorsmod.Wrapf(ErrMissingRequiredSignature, "signer %s", signer)
		}
	}

	return verified, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}
