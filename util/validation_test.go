package util_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/util"
)

func TestHasDuplicateKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		keys      []string
		expectDup bool
		dupKey    string
	}{
		{
			name:      "no duplicates",
			keys:      []string{"alice", "bob", "carol"},
			expectDup: false,
		},
		{
			name:      "duplicate at start",
			keys:      []string{"alice", "alice", "bob"},
			expectDup: true,
			dupKey:    "alice",
		},
		{
			name:      "duplicate at end",
			keys:      []string{"alice", "bob", "bob"},
			expectDup: true,
			dupKey:    "bob",
		},
		{
			name:      "empty slice",
			keys:      []string{},
			expectDup: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hasDup, dupKey := util.HasDuplicateKeys(tt.keys)
			require.Equal(t, tt.expectDup, hasDup)
			require.Equal(t, tt.dupKey, dupKey)
		})
	}
}

func TestValidateListenAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		addr      string
		expectErr bool
	}{
		{name: "loopback with port", addr: "127.0.0.1:8080"},
		{name: "any interface", addr: ":9090"},
		{name: "empty", addr: "", expectErr: true},
		{name: "bad port", addr: "127.0.0.1:notaport", expectErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := util.ValidateListenAddress(tt.addr)
			if tt.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMakeDirectoryAndFileExists(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.False(t, util.FileExists(dir))
	require.NoError(t, util.MakeDirectory(dir))
	require.True(t, util.FileExists(dir))
}

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("VRFCD_TEST_DIR", "/tmp/vrfcd")

	require.Equal(t, "", util.CleanAndExpandPath(""))
	require.Equal(t, "/tmp/vrfcd/home", util.CleanAndExpandPath("$VRFCD_TEST_DIR/./home/"))
}
