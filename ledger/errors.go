package ledger

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error namespace of the execution runtime.
const Codespace = "ledger"

var (
	ErrInvalidSeeds                = errorsmod.Register(Codespace, 2, "invalid seeds, address must fall off the curve")
	ErrNoViableBump                = errorsmod.Register(Codespace, 3, "unable to find a viable program address bump seed")
	ErrProgramNotFound             = errorsmod.Register(Codespace, 4, "program not found")
	ErrMissingRequiredSignature    = errorsmod.Register(Codespace, 5, "missing required signature for instruction")
	ErrPrivilegeEscalation         = errorsmod.Register(Codespace, 6, "cross-program invocation with unauthorized signer or writable account")
	ErrReadonlyDataModified        = errorsmod.Register(Codespace, 7, "instruction modified data of a read-only account")
	ErrExternalAccountDataModified = errorsmod.Register(Codespace, 8, "instruction modified data of an account it does not own")
	ErrAccountAlreadyInUse         = errorsmod.Register(Codespace, 9, "account already in use")
	ErrInvalidSignature            = errorsmod.Register(Codespace, 10, "invalid transaction signature")
	ErrCallDepthExceeded           = errorsmod.Register(Codespace, 11, "cross-program invocation call depth too deep")
	ErrMissingAccount              = errorsmod.Register(Codespace, 12, "an account required by the instruction is missing")
	ErrInvalidInstructionData      = errorsmod.Register(Codespace, 13, "invalid instruction data")
	ErrEmptyTransaction            = errorsmod.Register(Codespace, 14, "transaction has no instructions")
)

var (
	// ErrCorruptedLedgerDB the on-disk representation of the ledger has changed
	ErrCorruptedLedgerDB = errors.New("ledger db is corrupted")

	// ErrAccountNotFound no account is stored at the given address
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateProgram a program with the same id is already registered
	ErrDuplicateProgram = errors.New("program already registered")
)
