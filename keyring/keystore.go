package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/er-state/vrf-consumer/types"
)

var (
	// mapping key name -> ed25519 seed
	keySeedsBucketName = []byte("keySeeds")
	// mapping pubkey -> key name
	keyNamesBucketName = []byte("keyNames")
)

// KeyInfo is a named local identity.
type KeyInfo struct {
	Name   string       `json:"name"`
	Pubkey types.Pubkey `json:"pubkey"`
}

// KeyStore keeps named ed25519 identities in the daemon's db. Seeds are
// stored unencrypted, like a test keyring backend; it is meant for local
// signing only.
type KeyStore struct {
	db kvdb.Backend
}

func NewKeyStore(db kvdb.Backend) (*KeyStore, error) {
	s := &KeyStore{db}
	if err := s.initBuckets(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *KeyStore) initBuckets() error {
	return kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(keySeedsBucketName)
		if err != nil {
			return err
		}

		_, err = tx.CreateTopLevelBucket(keyNamesBucketName)
		if err != nil {
			return err
		}

		return nil
	})
}

// CreateKey generates a new identity under name.
func (s *KeyStore) CreateKey(name string) (*KeyInfo, error) {
	return s.createKey(name, rand.Reader)
}

// ImportKey stores the identity derived from the given 32-byte seed.
func (s *KeyStore) ImportKey(name string, seed []byte) (*KeyInfo, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: expected %d, got %d", ed25519.SeedSize, len(seed))
	}

	return s.saveKey(name, seed)
}

func (s *KeyStore) createKey(name string, entropy io.Reader) (*KeyInfo, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(entropy, seed); err != nil {
		return nil, fmt.Errorf("failed to generate key seed: %w", err)
	}

	return s.saveKey(name, seed)
}

func (s *KeyStore) saveKey(name string, seed []byte) (*KeyInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("the key name should not be empty")
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pk := types.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey))

	err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		seedsBucket := tx.ReadWriteBucket(keySeedsBucketName)
		namesBucket := tx.ReadWriteBucket(keyNamesBucketName)
		if seedsBucket == nil || namesBucket == nil {
			return ErrCorruptedKeyDB
		}

		// check both directions to avoid duplicates
		if seedsBucket.Get([]byte(name)) != nil || namesBucket.Get(pk[:]) != nil {
			return ErrDuplicateKeyName
		}

		if err := seedsBucket.Put([]byte(name), seed); err != nil {
			return err
		}

		return namesBucket.Put(pk[:], []byte(name))
	})
	if err != nil {
		return nil, err
	}

	return &KeyInfo{Name: name, Pubkey: pk}, nil
}

// GetPrivateKey returns the signing key stored under name.
func (s *KeyStore) GetPrivateKey(name string) (ed25519.PrivateKey, error) {
	var seed []byte
	err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(keySeedsBucketName)
		if bucket == nil {
			return ErrCorruptedKeyDB
		}

		v := bucket.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		seed = make([]byte, len(v))
		copy(seed, v)

		return nil
	}, func() {
		seed = nil
	})
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, ErrCorruptedKeyDB
	}

	return ed25519.NewKeyFromSeed(seed), nil
}

// GetKey returns the identity stored under name.
func (s *KeyStore) GetKey(name string) (*KeyInfo, error) {
	priv, err := s.GetPrivateKey(name)
	if err != nil {
		return nil, err
	}

	return &KeyInfo{
		Name:   name,
		Pubkey: types.PubkeyFromEd25519(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// GetKeyName returns the name the identity pk is stored under.
func (s *KeyStore) GetKeyName(pk types.Pubkey) (string, error) {
	var keyName string
	err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(keyNamesBucketName)
		if bucket == nil {
			return ErrCorruptedKeyDB
		}

		v := bucket.Get(pk[:])
		if v == nil {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, pk)
		}
		keyName = string(v)

		return nil
	}, func() {})
	if err != nil {
		return "", err
	}

	return keyName, nil
}

// ListKeys returns every stored identity, sorted by name.
func (s *KeyStore) ListKeys() ([]*KeyInfo, error) {
	var keys []*KeyInfo
	err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(keyNamesBucketName)
		if bucket == nil {
			return ErrCorruptedKeyDB
		}

		return bucket.ForEach(func(k, v []byte) error {
			pk, err := types.NewPubkeyFromBytes(k)
			if err != nil {
				return ErrCorruptedKeyDB
			}
			keys = append(keys, &KeyInfo{Name: string(v), Pubkey: pk})

			return nil
		})
	}, func() {
		keys = nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Name < keys[j].Name
	})

	return keys, nil
}

// DeleteKey removes the identity stored under name.
func (s *KeyStore) DeleteKey(name string) error {
	return kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		seedsBucket := tx.ReadWriteBucket(keySeedsBucketName)
		namesBucket := tx.ReadWriteBucket(keyNamesBucketName)
		if seedsBucket == nil || namesBucket == nil {
			return ErrCorruptedKeyDB
		}

		seed := seedsBucket.Get([]byte(name))
		if seed == nil {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		if len(seed) != ed25519.SeedSize {
			return ErrCorruptedKeyDB
		}
		priv := ed25519.NewKeyFromSeed(seed)
		pk := priv.Public().(ed25519.PublicKey)

		if err := seedsBucket.Delete([]byte(name)); err != nil {
			return err
		}

		return deleteKeyName(namesBucket, pk)
	})
}

func deleteKeyName(bucket walletdb.ReadWriteBucket, pk ed25519.PublicKey) error {
	return bucket.Delete(pk)
}
