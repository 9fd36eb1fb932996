// Package photos persists encrypted photo attachments, one row per entry,
// so photo decryption can be deferred independently of entry listing.
package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/dbx"
	"github.com/inkwellapp/inkwell/internal/models"
)

// Repository is the storage port for photo attachments.
type Repository interface {
	CreateOrUpdate(ctx context.Context, p *models.Photo) error
	GetByEntryID(ctx context.Context, entryID string) (*models.Photo, error)
	DeleteByEntryID(ctx context.Context, entryID string) error
	// DeleteByEntryIDs removes the photos of several entries at once,
	// used by trash cleanup. Missing rows are not an error.
	DeleteByEntryIDs(ctx context.Context, entryIDs []string) error
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts a photo by its owning entry id.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, p *models.Photo) error {
	query := ` INSERT INTO photos (id, entry_id, blob, nonce_blob, alg, mime_type, caption)
			values (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(entry_id) DO UPDATE SET blob = excluded.blob,
				nonce_blob = excluded.nonce_blob,
				alg = excluded.alg,
				mime_type = excluded.mime_type,
				caption = excluded.caption
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.EntryID, p.Blob, p.NonceBlob, p.Alg, p.MimeType, p.Caption)
	if err != nil {
		return fmt.Errorf("failed to upsert photo: %w", err)
	}
	return nil
}

// GetByEntryID returns the photo attached to an entry, or common.ErrNotFound.
func (r *SQLiteRepository) GetByEntryID(ctx context.Context, entryID string) (*models.Photo, error) {
	query := `select id, entry_id, blob, nonce_blob, alg, mime_type, caption from photos where entry_id=?`
	row := r.db.QueryRowContext(ctx, query, entryID)

	p := &models.Photo{}
	err := row.Scan(&p.ID, &p.EntryID, &p.Blob, &p.NonceBlob, &p.Alg, &p.MimeType, &p.Caption)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return p, nil
}

// DeleteByEntryID removes the photo attached to an entry.
func (r *SQLiteRepository) DeleteByEntryID(ctx context.Context, entryID string) error {
	res, err := r.db.ExecContext(ctx, `delete from photos where entry_id=?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

// DeleteByEntryIDs removes photos for the given entries; absent rows are fine.
func (r *SQLiteRepository) DeleteByEntryIDs(ctx context.Context, entryIDs []string) error {
	for _, id := range entryIDs {
		if _, err := r.db.ExecContext(ctx, `delete from photos where entry_id=?`, id); err != nil {
			return fmt.Errorf("failed to delete photo for entry %s: %w", id, err)
		}
	}
	return nil
}
