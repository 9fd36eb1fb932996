package models

// BiometricStorageMode describes where the biometric unlock path keeps the
// master key.
type BiometricStorageMode string

const (
	// BiometricStorageNone means no biometric unlock is configured.
	BiometricStorageNone BiometricStorageMode = "none"
	// BiometricStorageLargeBlob means the raw master key bytes live in the
	// authenticator credential's large-blob storage.
	BiometricStorageLargeBlob BiometricStorageMode = "largeBlob"
)

// WrappedKeys holds the same master key independently wrapped by each unlock
// method's derived key. ByBiometric is unused while the large-blob mode is
// the only biometric storage mode, but persists so a wrapping-based mode can
// be added without a schema change.
type WrappedKeys struct {
	ByPIN       *EncryptedBlob `json:"by_pin,omitempty"`
	ByBiometric *EncryptedBlob `json:"by_biometric,omitempty"`
}

// Settings is the single unencrypted settings record. It carries the PIN
// verifier and the wrapped master key, never the PIN or the key itself.
//
// Invariant: if LockEnabled is true, PINHash and Salt are both present.
// EncryptedMasterKey.ByPIN is absent only transiently between the first
// unlock after enabling and its first save.
type Settings struct {
	LockEnabled bool `json:"lock_enabled"`

	// PINHash and Salt form the PIN verifier. KDFVersion selects the
	// work factor the verifier and the wrapping key were derived with,
	// so the factor can be raised later without breaking old verifiers.
	PINHash    []byte `json:"pin_hash,omitempty"`
	Salt       []byte `json:"salt,omitempty"`
	KDFVersion int    `json:"kdf_version,omitempty"`

	EncryptedMasterKey WrappedKeys `json:"encrypted_master_key"`

	BiometricCredentialID []byte               `json:"biometric_credential_id,omitempty"`
	BiometricStorageMode  BiometricStorageMode `json:"biometric_storage_mode"`

	AutoLockEnabled        bool `json:"auto_lock_enabled"`
	AutoLockTimeoutMinutes int  `json:"auto_lock_timeout_minutes"`
}

// DefaultSettings returns the first-run settings record: no lock, no key
// material, auto-lock prepared but inert until a PIN exists.
func DefaultSettings() *Settings {
	return &Settings{
		LockEnabled:            false,
		BiometricStorageMode:   BiometricStorageNone,
		AutoLockEnabled:        true,
		AutoLockTimeoutMinutes: 5,
	}
}

// HasPINVerifier reports whether a PIN has been set up.
func (s *Settings) HasPINVerifier() bool {
	return len(s.PINHash) > 0 && len(s.Salt) > 0
}

// HasBiometric reports whether a biometric credential is configured.
func (s *Settings) HasBiometric() bool {
	return len(s.BiometricCredentialID) > 0 && s.BiometricStorageMode != BiometricStorageNone
}
