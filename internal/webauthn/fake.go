package webauthn

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/inkwellapp/inkwell/internal/common"
)

// Unsupported returns an Authenticator for hosts with no platform
// integration: every capability probe reports false and ceremonies fail.
func Unsupported() Authenticator {
	return &FakeAuthenticator{Caps: Capabilities{}}
}

// FakeAuthenticator is an in-memory Authenticator for tests and for hosts
// without a real platform bridge. One credential with one large blob,
// optional failure injection.
type FakeAuthenticator struct {
	mu sync.Mutex

	Caps Capabilities

	// FailNextCeremony makes the next Authenticate call fail, simulating
	// user cancellation.
	FailNextCeremony bool

	credentialID []byte
	blob         []byte
}

// NewFakeAuthenticator returns a fake with full biometric capabilities.
func NewFakeAuthenticator() *FakeAuthenticator {
	return &FakeAuthenticator{
		Caps: Capabilities{Supported: true, PlatformAuthenticator: true, LargeBlob: true},
	}
}

func (f *FakeAuthenticator) Capabilities(ctx context.Context) (Capabilities, error) {
	return f.Caps, nil
}

func (f *FakeAuthenticator) Register(ctx context.Context, req RegisterRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.Caps.Supported || !f.Caps.PlatformAuthenticator {
		return nil, common.ErrBiometricUnavailable
	}
	if req.RequireLargeBlob && !f.Caps.LargeBlob {
		return nil, errors.New("authenticator does not support the largeBlob extension")
	}

	f.credentialID = common.GenerateRandByteArray(16)
	f.blob = nil
	return append([]byte(nil), f.credentialID...), nil
}

func (f *FakeAuthenticator) Authenticate(ctx context.Context, req AssertionRequest) (*AssertionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNextCeremony {
		f.FailNextCeremony = false
		return nil, errors.New("the operation was aborted by the user")
	}
	if len(f.credentialID) == 0 || !bytes.Equal(req.CredentialID, f.credentialID) {
		return nil, errors.New("unknown credential")
	}
	if req.ReadBlob && len(req.WriteBlob) > 0 {
		return nil, errors.New("a ceremony cannot both read and write")
	}

	res := &AssertionResult{Success: true}
	if req.ReadBlob {
		res.Blob = append([]byte(nil), f.blob...)
	}
	if len(req.WriteBlob) > 0 {
		f.blob = append([]byte(nil), req.WriteBlob...)
		res.Wrote = true
	}
	return res, nil
}

func (f *FakeAuthenticator) RemoveCredential(ctx context.Context, credentialID []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !bytes.Equal(credentialID, f.credentialID) {
		return errors.New("unknown credential")
	}
	f.credentialID = nil
	common.WipeByteArray(f.blob)
	f.blob = nil
	return nil
}
