package service

import "errors"

var (
	// ErrNotQueueAuthority is returned when the configured oracle key is not
	// the authority of the queue it is asked to serve.
	ErrNotQueueAuthority = errors.New("the oracle key is not the queue authority")

	// ErrUserAccountNotFound is returned when a user has no account yet.
	ErrUserAccountNotFound = errors.New("user account not found")
)
