package types

import (
	"crypto/sha256"
)

// DiscriminatorLength is the size of instruction and account discriminators.
const DiscriminatorLength = 8

// Discriminator is the 8-byte tag that prefixes instruction data and account
// data so a program can route an instruction or recognize an account type.
type Discriminator [DiscriminatorLength]byte

// InstructionDiscriminator returns sha256("global:" + name)[0:8], where name
// is the snake_case entry point name.
func InstructionDiscriminator(name string) Discriminator {
	return discriminator("global:" + name)
}

// AccountDiscriminator returns sha256("account:" + name)[0:8], where name is
// the CamelCase account type name.
func AccountDiscriminator(name string) Discriminator {
	return discriminator("account:" + name)
}

func discriminator(preimage string) Discriminator {
	sum := sha256.Sum256([]byte(preimage))

	var d Discriminator
	copy(d[:], sum[:DiscriminatorLength])

	return d
}

func (d Discriminator) Bytes() []byte {
	return d[:]
}

// Matches reports whether data starts with the discriminator.
func (d Discriminator) Matches(data []byte) bool {
	if len(data) < DiscriminatorLength {
		return false
	}

	return Discriminator(data[:DiscriminatorLength]) == d
}
