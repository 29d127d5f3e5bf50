package program

import (
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/er-state/vrf-consumer/ledger"
	"github.com/er-state/vrf-consumer/types"
)

// UserSeed is the tag every user account address is derived from.
const UserSeed = "user"

// UserAccountSize is discriminator(8) || user(32) || data(8) || bump(1).
const UserAccountSize = types.DiscriminatorLength + types.PubkeyLength + 8 + 1

var userAccountDiscriminator = types.AccountDiscriminator("UserAccount")

// UserAccount is one user's durable slot. Data holds the most recently
// consumed random outcome (or the last value the user set).
type UserAccount struct {
	User types.Pubkey
	Data uint64
	Bump uint8
}

func (u *UserAccount) Marshal() []byte {
	buf := make([]byte, UserAccountSize)
	copy(buf[0:8], userAccountDiscriminator.Bytes())
	copy(buf[8:40], u.User[:])
	binary.LittleEndian.PutUint64(buf[40:48], u.Data)
	buf[48] = u.Bump

	return buf
}

// UnmarshalUserAccount decodes user account data, checking the account
// discriminator.
func UnmarshalUserAccount(data []byte) (*UserAccount, error) {
	if len(data) < UserAccountSize {
		return nil, errorsmod.Wrapf(ErrAccountDiscriminatorMismatch, "user account data is %d bytes", len(data))
	}
	if !userAccountDiscriminator.Matches(data) {
		return nil, ErrAccountDiscriminatorMismatch
	}

	var u UserAccount
	copy(u.User[:], data[8:40])
	u.Data = binary.LittleEndian.Uint64(data[40:48])
	u.Bump = data[48]

	return &u, nil
}

func userSeeds(user types.Pubkey) [][]byte {
	return [][]byte{[]byte(UserSeed), user.Bytes()}
}

func userSignerSeeds(user types.Pubkey, bump uint8) [][]byte {
	return append(userSeeds(user), []byte{bump})
}

// FindUserAccountAddress returns the canonical user account address for user
// and its bump.
func FindUserAccountAddress(user types.Pubkey) (types.Pubkey, uint8, error) {
	return ledger.FindProgramAddress(userSeeds(user), ProgramID)
}

// ValidateUserAccount checks that addr is the account derived from
// ("user", user, bump) under this program.
func ValidateUserAccount(addr, user types.Pubkey, bump uint8) error {
	derived, err := ledger.CreateProgramAddress(userSignerSeeds(user, bump), ProgramID)
	if err != nil {
		return errorsmod.Wrapf(ErrInvalidAccountDerivation, "user %s bump %d: %s", user, bump, err)
	}
	if derived != addr {
		return errorsmod.Wrapf(ErrInvalidAccountDerivation, "account %s, derived %s for user %s", addr, derived, user)
	}

	return nil
}

// loadUserAccount decodes a user account handed to the program, checking it
// exists and is owned by this program.
func loadUserAccount(info *ledger.AccountInfo) (*UserAccount, error) {
	if !info.Exists() {
		return nil, errorsmod.Wrapf(ErrAccountNotInitialized, "account %s", info.Key)
	}
	if info.Owner() != ProgramID {
		return nil, errorsmod.Wrapf(ErrAccountOwnedByWrongProgram, "account %s is owned by %s", info.Key, info.Owner())
	}

	return UnmarshalUserAccount(info.Data())
}
