package keyring

import "errors"

var (
	// ErrCorruptedKeyDB For some reason, db on disk representation have changed
	ErrCorruptedKeyDB = errors.New("key db is corrupted")

	// ErrDuplicateKeyName The key name we try to add already exists in db
	ErrDuplicateKeyName = errors.New("key name already exists")

	// ErrKeyNotFound The key we try to fetch is not found in db
	ErrKeyNotFound = errors.New("key not found")
)
