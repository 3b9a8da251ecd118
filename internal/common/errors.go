// Package common defines shared constants and sentinel errors used across
// the QuoteKeeper client layers. Callers should use errors.Is to match these
// values; components wrap them with fmt.Errorf("...: %w").
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrStorage marks a local read, write or parse failure. It is recovered
	// locally and never shown to the end user directly.
	ErrStorage = errors.New("local storage error")
	// ErrCorruptPayload is a StorageError for a stored value that no longer parses.
	ErrCorruptPayload = errors.New("corrupt stored payload")

	// ErrRemote marks a network or backend failure. It is logged and counted,
	// a single failure never aborts a whole sync batch.
	ErrRemote = errors.New("remote store error")

	// ErrNoOwner is the AuthError: no authenticated owner is available, so no
	// remote operation can be scoped.
	ErrNoOwner = errors.New("no authenticated owner")
	// ErrNotEntitled is returned when the owner's tier does not allow sync.
	ErrNotEntitled = errors.New("sync not available for this account")
	// ErrInvalidToken is returned for malformed or expired session tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrValidation marks a data problem (an unfixable reference, a bad
	// formula) that is reported to the caller as data instead of thrown.
	ErrValidation = errors.New("validation error")
)
