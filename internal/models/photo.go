package models

// Photo is an encrypted photo attachment, stored in its own row so photo
// decryption can be deferred independently of the owning entry. MimeType
// stays plaintext because the cipher has no concept of content type.
type Photo struct {
	ID      string
	EntryID string

	// Blob is the AEAD ciphertext of the image bytes.
	Blob []byte
	// NonceBlob is the AEAD nonce for Blob.
	NonceBlob []byte
	Alg       string

	MimeType string
	Caption  string
}

// BlobData packs the ciphertext columns into an EncryptedBlob.
func (p *Photo) BlobData() *EncryptedBlob {
	return &EncryptedBlob{Ciphertext: p.Blob, Nonce: p.NonceBlob, Alg: p.Alg}
}

// SetBlobData unpacks an EncryptedBlob into the ciphertext columns.
func (p *Photo) SetBlobData(b *EncryptedBlob) {
	p.Blob = b.Ciphertext
	p.NonceBlob = b.Nonce
	p.Alg = b.Alg
}
