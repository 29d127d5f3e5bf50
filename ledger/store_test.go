package ledger_test

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/config"
	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/testutil"
)

// FuzzAccountStore tests save, get and list accounts properly
func FuzzAccountStore(f *testing.F) {
	testutil.AddRandomSeedsToFuzzer(f, 10)
	f.Fuzz(func(t *testing.T, seed int64) {
		t.Parallel()
		r := rand.New(rand.NewSource(seed))

		homePath := t.TempDir()
		cfg := config.DefaultDBConfigWithHomePath(homePath)

		db, err := cfg.GetDBBackend()
		require.NoError(t, err)
		store, err := ledger.NewAccountStore(db)
		require.NoError(t, err)

		defer func() {
			err := db.Close()
			require.NoError(t, err)
			err = os.RemoveAll(homePath)
			require.NoError(t, err)
		}()

		owner := testutil.GenRandomPubkey(r)
		numAccounts := r.Intn(10) + 1
		expected := make(map[string]*ledger.Account, numAccounts)
		for i := 0; i < numAccounts; i++ {
			acc := &ledger.Account{
				Address: testutil.GenRandomPubkey(r),
				Owner:   owner,
				Data:    testutil.GenRandomByteArray(r, uint64(r.Intn(64))),
			}
			require.NoError(t, store.SetAccount(acc))
			expected[acc.Address.String()] = acc
		}

		// an account of another owner is not listed
		require.NoError(t, store.SetAccount(&ledger.Account{
			Address: testutil.GenRandomPubkey(r),
			Owner:   testutil.GenRandomPubkey(r),
		}))

		for _, acc := range expected {
			got, err := store.GetAccount(acc.Address)
			require.NoError(t, err)
			require.Equal(t, acc.Owner, got.Owner)
			require.Equal(t, len(acc.Data), len(got.Data))
			if len(acc.Data) > 0 {
				require.Equal(t, acc.Data, got.Data)
			}
		}

		listed, err := store.GetAccountsByOwner(owner)
		require.NoError(t, err)
		require.Len(t, listed, numAccounts)
		for _, acc := range listed {
			require.Contains(t, expected, acc.Address.String())
		}

		_, err = store.GetAccount(testutil.GenRandomPubkey(r))
		require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})
}

func TestSetNilAccount(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultDBConfigWithHomePath(t.TempDir())
	db, err := cfg.GetDBBackend()
	require.NoError(t, err)
	defer db.Close()

	store, err := ledger.NewAccountStore(db)
	require.NoError(t, err)
	require.Error(t, store.SetAccount(nil))
}
