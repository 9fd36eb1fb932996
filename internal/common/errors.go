// Package common defines shared constants and sentinel errors used across
// the Inkwell lock subsystem. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// PIN verification errors.
	ErrInvalidPIN = errors.New("invalid pin")
	ErrLockedOut  = errors.New("too many failed attempts")

	// Cipher errors. A wrong key or a corrupted record both surface as
	// ErrDecryptionFailed; the GCM tag mismatch is never distinguished
	// further to the caller.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNoMasterKey means an operation requiring the master key ran while
	// the session was locked. This is a sequencing bug in the caller.
	ErrNoMasterKey = errors.New("no master key resident")

	// Session sequencing errors.
	ErrSetupRequired    = errors.New("pin setup required")
	ErrUnlockInProgress = errors.New("unlock already in progress")
	ErrAlreadyUnlocked  = errors.New("session already unlocked")

	// Biometric errors. Platform error text is never passed through.
	ErrBiometricUnavailable    = errors.New("biometric unlock unavailable")
	ErrBiometricCeremonyFailed = errors.New("biometric ceremony failed")
)
