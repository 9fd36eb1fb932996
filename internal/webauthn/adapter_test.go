package webauthn

import (
	"context"
	"testing"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, authn Authenticator) *Adapter {
	t.Helper()
	return NewAdapter(context.Background(), authn, logging.NewNopLogger())
}

func TestCapabilities_AllThreeRequired(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want bool
	}{
		{"all present", Capabilities{true, true, true}, true},
		{"no api", Capabilities{false, true, true}, false},
		{"no platform authenticator", Capabilities{true, false, true}, false},
		{"no largeBlob", Capabilities{true, true, false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.BiometricReady())
		})
	}
}

func TestAdapter_UnavailableWhenUnsupported(t *testing.T) {
	a := newAdapter(t, Unsupported())
	ctx := context.Background()

	assert.False(t, a.Available())

	_, err := a.Register(ctx, "user", "User")
	require.ErrorIs(t, err, common.ErrBiometricUnavailable)

	_, err = a.ReadLargeBlob(ctx, []byte("cred"))
	require.ErrorIs(t, err, common.ErrBiometricUnavailable)
}

func TestAdapter_RegisterRequiresLargeBlob(t *testing.T) {
	fake := NewFakeAuthenticator()
	fake.Caps.LargeBlob = false
	a := newAdapter(t, fake)

	_, err := a.Register(context.Background(), "user", "User")
	require.ErrorIs(t, err, common.ErrBiometricUnavailable)
}

func TestAdapter_WriteThenReadRoundTrip(t *testing.T) {
	a := newAdapter(t, NewFakeAuthenticator())
	ctx := context.Background()

	credID, err := a.Register(ctx, "user", "User")
	require.NoError(t, err)
	require.NotEmpty(t, credID)

	payload := []byte("master-key-bytes-master-key-byte")
	require.NoError(t, a.WriteLargeBlob(ctx, credID, payload))

	got, err := a.ReadLargeBlob(ctx, credID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestAdapter_CeremonyFailureIsMapped(t *testing.T) {
	fake := NewFakeAuthenticator()
	a := newAdapter(t, fake)
	ctx := context.Background()

	credID, err := a.Register(ctx, "user", "User")
	require.NoError(t, err)

	// Platform error text must not leak through the adapter.
	fake.FailNextCeremony = true
	_, err = a.ReadLargeBlob(ctx, credID)
	require.ErrorIs(t, err, common.ErrBiometricCeremonyFailed)
	assert.NotContains(t, err.Error(), "aborted by the user")
}

func TestAdapter_ReadBeforeWriteFails(t *testing.T) {
	a := newAdapter(t, NewFakeAuthenticator())
	ctx := context.Background()

	credID, err := a.Register(ctx, "user", "User")
	require.NoError(t, err)

	// No blob attached yet.
	_, err = a.ReadLargeBlob(ctx, credID)
	require.ErrorIs(t, err, common.ErrBiometricCeremonyFailed)
}
