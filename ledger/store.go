package ledger

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/er-state/vrf-consumer/types"
)

var (
	// mapping address -> owner || data
	accountsBucketName = []byte("accounts")
)

// AccountStore persists ledger accounts in a kvdb backend.
type AccountStore struct {
	db kvdb.Backend
}

// NewAccountStore returns a new store backed by db
func NewAccountStore(db kvdb.Backend) (*AccountStore, error) {
	store := &AccountStore{db}
	if err := store.initBuckets(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *AccountStore) initBuckets() error {
	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(accountsBucketName)
		if err != nil {
			return fmt.Errorf("failed to create accounts bucket: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("failed to initialize ledger buckets: %w", err)
	}

	return nil
}

// GetAccount returns the account stored at addr.
func (s *AccountStore) GetAccount(addr types.Pubkey) (*Account, error) {
	var account *Account

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(accountsBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		raw := bucket.Get(addr[:])
		if raw == nil {
			return ErrAccountNotFound
		}

		acc, err := decodeAccount(addr, raw)
		if err != nil {
			return err
		}
		account = acc

		return nil
	}, func() {}); err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", addr, err)
	}

	return account, nil
}

// GetAccountsByOwner lists every account owned by the given program.
func (s *AccountStore) GetAccountsByOwner(owner types.Pubkey) ([]*Account, error) {
	var accounts []*Account

	if err := s.db.View(func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(accountsBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		return bucket.ForEach(func(k, v []byte) error {
			if len(v) < types.PubkeyLength || !bytes.Equal(v[:types.PubkeyLength], owner[:]) {
				return nil
			}
			addr, err := types.NewPubkeyFromBytes(k)
			if err != nil {
				return ErrCorruptedLedgerDB
			}
			acc, err := decodeAccount(addr, v)
			if err != nil {
				return err
			}
			accounts = append(accounts, acc)

			return nil
		})
	}, func() {
		accounts = nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list accounts of owner %s: %w", owner, err)
	}

	return accounts, nil
}

// SetAccount writes an account record directly, bypassing program
// execution. It is meant for genesis state and tooling.
func (s *AccountStore) SetAccount(acc *Account) error {
	if acc == nil {
		return fmt.Errorf("cannot save nil account")
	}

	if err := kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(accountsBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		return bucket.Put(acc.Address[:], encodeAccount(acc.Owner, acc.Data))
	}); err != nil {
		return fmt.Errorf("failed to set account %s: %w", acc.Address, err)
	}

	return nil
}

// update runs fn inside one read-write transaction. Account writes made
// through the ledgerTx are flushed only if fn succeeds; any error discards the
// whole transaction.
func (s *AccountStore) update(fn func(ltx *ledgerTx) error) error {
	return s.db.Update(func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(accountsBucketName)
		if bucket == nil {
			return ErrCorruptedLedgerDB
		}

		ltx := &ledgerTx{
			bucket: bucket,
			cache:  make(map[types.Pubkey]*accountState),
		}
		if err := fn(ltx); err != nil {
			return err
		}

		return ltx.flush()
	}, func() {})
}

// ledgerTx caches the accounts touched by one ledger transaction.
type ledgerTx struct {
	bucket walletdb.ReadWriteBucket
	cache  map[types.Pubkey]*accountState
}

func (t *ledgerTx) load(addr types.Pubkey) (*accountState, error) {
	if st, ok := t.cache[addr]; ok {
		return st, nil
	}

	st := &accountState{owner: SystemProgramID}
	if raw := t.bucket.Get(addr[:]); raw != nil {
		acc, err := decodeAccount(addr, raw)
		if err != nil {
			return nil, err
		}
		st.owner = acc.Owner
		st.data = acc.Data
		st.exists = true
		st.orig = bytes.Clone(raw)
	}
	t.cache[addr] = st

	return st, nil
}

func (t *ledgerTx) flush() error {
	for addr, st := range t.cache {
		key := addr
		switch {
		case st.closed || !st.exists:
			if st.orig == nil {
				continue
			}
			if err := t.bucket.Delete(key[:]); err != nil {
				return fmt.Errorf("failed to delete account %s: %w", addr, err)
			}
		default:
			encoded := encodeAccount(st.owner, st.data)
			if bytes.Equal(encoded, st.orig) {
				continue
			}
			if err := t.bucket.Put(key[:], encoded); err != nil {
				return fmt.Errorf("failed to store account %s: %w", addr, err)
			}
		}
	}

	return nil
}
