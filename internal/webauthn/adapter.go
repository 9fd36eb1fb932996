package webauthn

import (
	"context"
	"fmt"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/logging"
)

// Adapter sits between the session state machine and the platform
// Authenticator. It probes capabilities once, validates ceremony requests,
// and maps platform failures to the internal error taxonomy so raw
// authenticator error text never reaches the user.
type Adapter struct {
	authn Authenticator
	caps  Capabilities
	log   logging.Logger
}

// NewAdapter probes the authenticator's capabilities and returns an adapter
// carrying them. A probe failure is treated as "not supported", not as a
// fatal error.
func NewAdapter(ctx context.Context, authn Authenticator, log logging.Logger) *Adapter {
	caps, err := authn.Capabilities(ctx)
	if err != nil {
		log.Warn(ctx, "authenticator capability probe failed, biometric disabled")
		caps = Capabilities{}
	}
	return &Adapter{authn: authn, caps: caps, log: log}
}

// Capabilities returns the capabilities captured at startup.
func (a *Adapter) Capabilities() Capabilities {
	return a.caps
}

// Available reports whether biometric unlock can be offered.
func (a *Adapter) Available() bool {
	return a.caps.BiometricReady()
}

// Register creates a platform credential with large-blob storage. It fails
// with ErrBiometricUnavailable when the platform cannot satisfy the
// request, and ErrBiometricCeremonyFailed when the ceremony itself fails
// (including user cancellation).
func (a *Adapter) Register(ctx context.Context, userID, displayName string) ([]byte, error) {
	if !a.Available() {
		return nil, fmt.Errorf("large-blob credentials not supported here: %w", common.ErrBiometricUnavailable)
	}

	credID, err := a.authn.Register(ctx, RegisterRequest{
		UserID:           userID,
		DisplayName:      displayName,
		RequireLargeBlob: true,
	})
	if err != nil {
		a.log.Warn(ctx, "credential registration failed")
		return nil, common.ErrBiometricCeremonyFailed
	}
	return credID, nil
}

// ReadLargeBlob runs an authentication ceremony that reads the payload
// attached to the credential.
func (a *Adapter) ReadLargeBlob(ctx context.Context, credentialID []byte) ([]byte, error) {
	if !a.Available() {
		return nil, common.ErrBiometricUnavailable
	}

	res, err := a.authn.Authenticate(ctx, AssertionRequest{
		CredentialID: credentialID,
		ReadBlob:     true,
	})
	if err != nil || res == nil || !res.Success {
		a.log.Warn(ctx, "biometric read ceremony failed")
		return nil, common.ErrBiometricCeremonyFailed
	}
	if len(res.Blob) == 0 {
		return nil, common.ErrBiometricCeremonyFailed
	}
	return res.Blob, nil
}

// WriteLargeBlob runs an authentication ceremony that attaches payload to
// the credential. Used once during biometric setup.
func (a *Adapter) WriteLargeBlob(ctx context.Context, credentialID, payload []byte) error {
	if !a.Available() {
		return common.ErrBiometricUnavailable
	}
	if len(payload) == 0 {
		return fmt.Errorf("empty payload: %w", common.ErrBiometricCeremonyFailed)
	}

	res, err := a.authn.Authenticate(ctx, AssertionRequest{
		CredentialID: credentialID,
		WriteBlob:    payload,
	})
	if err != nil || res == nil || !res.Success || !res.Wrote {
		a.log.Warn(ctx, "biometric write ceremony failed")
		return common.ErrBiometricCeremonyFailed
	}
	return nil
}

// Remove discards a credential. Failures are logged but not fatal: the
// settings record is the source of truth for whether biometric unlock is
// configured.
func (a *Adapter) Remove(ctx context.Context, credentialID []byte) {
	if len(credentialID) == 0 {
		return
	}
	if err := a.authn.RemoveCredential(ctx, credentialID); err != nil {
		a.log.Warn(ctx, "failed to remove credential")
	}
}
