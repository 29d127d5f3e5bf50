package program_test

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/er-state/vrf-consumer/program"
	"github.com/er-state/vrf-consumer/testutil"
	"github.com/er-state/vrf-consumer/types"
)

func TestUserAccountLayout(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(11))

	state := &program.UserAccount{
		User: testutil.GenRandomPubkey(r),
		Data: 123456789,
		Bump: 253,
	}
	data := state.Marshal()

	require.Len(t, data, program.UserAccountSize)
	require.True(t, types.AccountDiscriminator("UserAccount").Matches(data))
	require.Equal(t, state.User.Bytes(), data[8:40])
	require.Equal(t, uint64(123456789), binary.LittleEndian.Uint64(data[40:48]))
	require.Equal(t, byte(253), data[48])

	decoded, err := program.UnmarshalUserAccount(data)
	require.NoError(t, err)
	require.Equal(t, state, decoded)
}

func TestUnmarshalUserAccountRejectsForeignData(t *testing.T) {
	t.Parallel()

	_, err := program.UnmarshalUserAccount(make([]byte, program.UserAccountSize))
	require.ErrorIs(t, err, program.ErrAccountDiscriminatorMismatch)

	_, err = program.UnmarshalUserAccount([]byte{1, 2, 3})
	require.ErrorIs(t, err, program.ErrAccountDiscriminatorMismatch)
}

func TestValidateUserAccount(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(12))

	user := testutil.GenRandomPubkey(r)
	addr, bump, err := program.FindUserAccountAddress(user)
	require.NoError(t, err)

	require.NoError(t, program.ValidateUserAccount(addr, user, bump))
	require.ErrorIs(t, program.ValidateUserAccount(addr, testutil.GenRandomPubkey(r), bump), program.ErrInvalidAccountDerivation)
	require.ErrorIs(t, program.ValidateUserAccount(testutil.GenRandomPubkey(r), user, bump), program.ErrInvalidAccountDerivation)
}
