package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// KDFParams is a versioned work factor for PIN key derivation. The version
// is persisted beside the salt so the factor can be raised later without
// invalidating existing verifiers: derivation always uses the version stored
// with the salt, new setups use CurrentKDFVersion.
type KDFParams struct {
	Version    int
	Iterations int
}

// CurrentKDFVersion is the work factor applied to newly created verifiers.
const CurrentKDFVersion = 1

var kdfVersions = map[int]KDFParams{
	1: {Version: 1, Iterations: 150_000},
}

// ParamsForVersion resolves a persisted KDF version to its parameters.
func ParamsForVersion(v int) (KDFParams, error) {
	p, ok := kdfVersions[v]
	if !ok {
		return KDFParams{}, fmt.Errorf("unknown kdf version %d", v)
	}
	return p, nil
}

// CurrentParams returns the parameters for CurrentKDFVersion.
func CurrentParams() KDFParams {
	return kdfVersions[CurrentKDFVersion]
}

// DeriveKey stretches a PIN and salt into a 32-byte symmetric key using
// PBKDF2-SHA256 at the given work factor. Same (pin, salt, params) always
// yields the same key, so PIN re-entry reproduces the wrapping key without
// it ever being stored.
func DeriveKey(pin string, salt []byte, params KDFParams) []byte {
	return pbkdf2.Key([]byte(pin), salt, params.Iterations, MasterKeySize, sha256.New)
}

// HashPIN returns a one-way verifier for the PIN: the SHA-256 digest of the
// derived key. Checking a PIN therefore never decrypts anything, and the
// digest cannot be turned back into the wrapping key.
func HashPIN(pin string, salt []byte, params KDFParams) []byte {
	key := DeriveKey(pin, salt, params)
	return VerifierFromKey(key)
}

// VerifierFromKey digests an already-derived key into its stored verifier.
// Useful when the caller needs both the key and the verifier from a single
// KDF run.
func VerifierFromKey(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// VerifyPIN derives a candidate verifier and compares it to the expected
// digest in constant time.
func VerifyPIN(pin string, salt []byte, params KDFParams, expected []byte) bool {
	candidate := HashPIN(pin, salt, params)
	return subtle.ConstantTimeCompare(candidate, expected) == 1
}
