// Package entries persists journal entry rows. Callers above the repository
// only ever see ciphertext in the content columns; encryption happens in the
// services layer.
package entries

import (
	"context"
	"time"

	"github.com/inkwellapp/inkwell/internal/models"
)

// Repository is the storage port for journal entries.
type Repository interface {
	// CreateOrUpdate upserts an entry by id.
	CreateOrUpdate(ctx context.Context, e *models.Entry) error

	// GetAll lists non-deleted entries, newest first. Content columns are
	// included; the caller decides what to decrypt.
	GetAll(ctx context.Context, includeArchived bool) ([]models.Entry, error)

	// GetByID returns a single entry regardless of archived state.
	// Soft-deleted entries are not returned.
	GetByID(ctx context.Context, id string) (*models.Entry, error)

	// GetAllPlain lists entries still carrying a legacy plaintext body.
	GetAllPlain(ctx context.Context) ([]models.Entry, error)

	// SetArchived flips the archived flag.
	SetArchived(ctx context.Context, id string, archived bool) error

	// SoftDelete moves an entry to the trash, stamping deleted_at.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// Restore brings a soft-deleted entry back from the trash.
	Restore(ctx context.Context, id string) error

	// GetTrash lists soft-deleted entries, most recently deleted first.
	GetTrash(ctx context.Context) ([]models.Entry, error)

	// DeleteByID removes an entry row permanently.
	DeleteByID(ctx context.Context, id string) error

	// PurgeDeletedBefore permanently removes soft-deleted entries whose
	// deleted_at is before the cutoff, returning the purged ids.
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}
