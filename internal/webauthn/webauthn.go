// Package webauthn bridges the lock subsystem to a platform authenticator
// so the master key can be unlocked without a PIN. The credential's
// large-blob storage holds the raw master key bytes; the authenticator's
// own biometric gate is the trust boundary for that path, so no extra
// key-wrapping step exists.
//
// The Authenticator interface is the host-provided port; the Adapter on top
// of it enforces ceremony rules and keeps platform error text away from
// callers.
package webauthn

import "context"

// Capabilities describes what the host platform authenticator can do.
// Computed once at startup and passed into the session state machine, so
// the state machine stays deterministic and testable with fakes.
type Capabilities struct {
	// Supported means a WebAuthn-style API exists at all.
	Supported bool
	// PlatformAuthenticator means a built-in (biometric) authenticator is
	// present, as opposed to only roaming keys.
	PlatformAuthenticator bool
	// LargeBlob means credentials support the large-blob extension.
	LargeBlob bool
}

// BiometricReady reports whether biometric unlock may be offered: all three
// capabilities must hold.
func (c Capabilities) BiometricReady() bool {
	return c.Supported && c.PlatformAuthenticator && c.LargeBlob
}

// RegisterRequest describes a credential-creation ceremony.
type RegisterRequest struct {
	UserID      string
	DisplayName string
	// RequireLargeBlob makes registration fail if the authenticator cannot
	// attach large-blob storage, instead of silently degrading.
	RequireLargeBlob bool
}

// AssertionRequest describes an authentication ceremony. A single ceremony
// can either read the attached blob or write a new one, never both.
type AssertionRequest struct {
	CredentialID []byte
	ReadBlob     bool
	WriteBlob    []byte
}

// AssertionResult is the outcome of an authentication ceremony.
type AssertionResult struct {
	Success bool
	// Blob is the large-blob payload when ReadBlob was requested.
	Blob []byte
	// Wrote reports whether a WriteBlob payload was attached.
	Wrote bool
}

// Authenticator is the platform port. Implementations wrap the host's
// WebAuthn-style API; tests use FakeAuthenticator.
type Authenticator interface {
	// Capabilities probes the platform once.
	Capabilities(ctx context.Context) (Capabilities, error)
	// Register runs a credential-creation ceremony and returns the new
	// credential id.
	Register(ctx context.Context, req RegisterRequest) ([]byte, error)
	// Authenticate runs an authentication ceremony.
	Authenticate(ctx context.Context, req AssertionRequest) (*AssertionResult, error)
	// RemoveCredential discards a credential and its attached storage.
	RemoveCredential(ctx context.Context, credentialID []byte) error
}
