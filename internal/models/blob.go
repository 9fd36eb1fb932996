// Package models defines the persisted data types of the Inkwell lock
// subsystem: the settings record, encrypted journal entries, and photo
// attachments. Encrypted fields store AEAD ciphertext alongside their nonces.
package models

// AlgAESGCM tags blobs sealed with AES-256-GCM. The tag is persisted with
// every blob so the cipher can be swapped later without guessing.
const AlgAESGCM = "aes-256-gcm"

// EncryptedBlob is a single authenticated-encryption result. The nonce is
// unique per seal under a given key; reuse is an invariant violation.
type EncryptedBlob struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Alg        string `json:"alg"`
}
