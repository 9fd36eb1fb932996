package models

import "time"

// Entry is a journal entry row as persisted locally. Free text lives only in
// the Content ciphertext; Mood and the timestamps stay plaintext so the
// timeline can filter and sort while locked.
type Entry struct {
	// ID is a globally unique identifier for the entry.
	ID string

	// CreatedAt and UpdatedAt are UTC timestamps, deliberately unencrypted.
	CreatedAt time.Time
	UpdatedAt time.Time

	// Content is the AEAD ciphertext of the entry body.
	Content []byte
	// NonceContent is the AEAD nonce for Content.
	NonceContent []byte
	// Alg tags the cipher the content was sealed with.
	Alg string

	// PlainContent holds the body of a legacy entry written before
	// encryption was enabled. Empty once the entry has been migrated.
	PlainContent string

	// Mood is an optional plaintext mood tag for locked-state filtering.
	Mood string
	// WordCount is a plaintext word count for locked-state statistics.
	WordCount int

	// HasPhoto indicates an attached photo row exists for this entry.
	HasPhoto bool

	// Archived hides the entry from the main timeline without deleting it.
	Archived bool

	// Deleted marks the entry as soft-deleted (in the trash).
	Deleted bool
	// DeletedAt is set when the entry enters the trash; nil otherwise.
	DeletedAt *time.Time
}

// IsEncrypted reports whether the entry body is stored as ciphertext.
func (e *Entry) IsEncrypted() bool {
	return len(e.NonceContent) > 0
}

// ContentBlob packs the ciphertext columns into an EncryptedBlob.
func (e *Entry) ContentBlob() *EncryptedBlob {
	return &EncryptedBlob{Ciphertext: e.Content, Nonce: e.NonceContent, Alg: e.Alg}
}

// SetContentBlob unpacks an EncryptedBlob into the ciphertext columns and
// clears any legacy plaintext.
func (e *Entry) SetContentBlob(b *EncryptedBlob) {
	e.Content = b.Ciphertext
	e.NonceContent = b.Nonce
	e.Alg = b.Alg
	e.PlainContent = ""
}
