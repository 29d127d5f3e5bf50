package vrf

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace is the error namespace of the oracle program.
const Codespace = "vrf"

var (
	ErrInvalidInstructionData  = errorsmod.Register(Codespace, 2, "invalid oracle instruction data")
	ErrUnknownInstruction      = errorsmod.Register(Codespace, 3, "unknown oracle instruction")
	ErrNotEnoughAccounts       = errorsmod.Register(Codespace, 4, "not enough accounts for oracle instruction")
	ErrInvalidProgramIdentity  = errorsmod.Register(Codespace, 5, "program identity does not match the callback program")
	ErrInvalidQueue            = errorsmod.Register(Codespace, 6, "invalid oracle queue account")
	ErrQueueFull               = errorsmod.Register(Codespace, 7, "oracle queue is full")
	ErrRequestNotFound         = errorsmod.Register(Codespace, 8, "randomness request not found in queue")
	ErrUnauthorizedOracle      = errorsmod.Register(Codespace, 9, "signer is not the queue authority")
	ErrCallbackAccountMismatch = errorsmod.Register(Codespace, 10, "callback accounts do not match the request")
)
