package program

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error namespace of the consumer program.
const Codespace = "er_state_account"

var (
	// ErrInvalidAccountDerivation the account address does not match the
	// derivation from its seeds and bump
	ErrInvalidAccountDerivation = errorsmod.Register(Codespace, 2, "account address does not match its derivation")
	// ErrUnauthorized the callback was not invoked by the oracle identity
	ErrUnauthorized = errorsmod.Register(Codespace, 3, "invoker is not the oracle program identity")
	// ErrUpstreamDispatchFailure the forwarded request was rejected
	ErrUpstreamDispatchFailure = errorsmod.Register(Codespace, 4, "randomness request dispatch to the oracle failed")

	ErrMissingSigner                = errorsmod.Register(Codespace, 5, "required signer did not sign")
	ErrAccountNotWritable           = errorsmod.Register(Codespace, 6, "account must be writable")
	ErrNotEnoughAccounts            = errorsmod.Register(Codespace, 7, "not enough account keys given to the instruction")
	ErrInvalidInstructionData       = errorsmod.Register(Codespace, 8, "invalid instruction data")
	ErrInstructionNotFound          = errorsmod.Register(Codespace, 9, "instruction discriminator not found")
	ErrAccountDiscriminatorMismatch = errorsmod.Register(Codespace, 10, "account discriminator did not match")
	ErrAccountOwnedByWrongProgram   = errorsmod.Register(Codespace, 11, "account is not owned by this program")
	ErrAccountAlreadyInitialized    = errorsmod.Register(Codespace, 12, "account is already initialized")
	ErrConstraintOwner              = errorsmod.Register(Codespace, 13, "account does not belong to the signer")
	ErrAccountNotInitialized        = errorsmod.Register(Codespace, 14, "account is not initialized")
)
