package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/dbx"
	"github.com/inkwellapp/inkwell/internal/models"
)

const entryColumns = `id, created_at, updated_at, content, nonce_content, alg,
	plain_content, mood, word_count, has_photo, archived, deleted, deleted_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts an entry by id. On conflict everything except id
// and created_at is replaced.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, e *models.Entry) error {
	query := ` INSERT INTO entries (id, created_at, updated_at, content, nonce_content, alg,
			plain_content, mood, word_count, has_photo, archived, deleted, deleted_at)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at,
				content = excluded.content,
				nonce_content = excluded.nonce_content,
				alg = excluded.alg,
				plain_content = excluded.plain_content,
				mood = excluded.mood,
				word_count = excluded.word_count,
				has_photo = excluded.has_photo,
				archived = excluded.archived,
				deleted = excluded.deleted,
				deleted_at = excluded.deleted_at
	`
	var deletedAt any
	if e.DeletedAt != nil {
		deletedAt = e.DeletedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.CreatedAt.UTC(), e.UpdatedAt.UTC(), e.Content, e.NonceContent, e.Alg,
		e.PlainContent, e.Mood, e.WordCount, e.HasPhoto, e.Archived, e.Deleted, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

// GetAll lists non-deleted entries ordered newest first.
func (r *SQLiteRepository) GetAll(ctx context.Context, includeArchived bool) ([]models.Entry, error) {
	query := `select ` + entryColumns + ` from entries where deleted=0`
	if !includeArchived {
		query += ` and archived=0`
	}
	query += ` order by created_at desc`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetByID returns a single non-deleted entry, or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	query := `select ` + entryColumns + ` from entries where deleted=0 and id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	e, err := scanEntry(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return e, nil
}

// GetAllPlain lists entries that still hold a legacy plaintext body,
// i.e. rows written before encryption was enabled.
func (r *SQLiteRepository) GetAllPlain(ctx context.Context) ([]models.Entry, error) {
	query := `select ` + entryColumns + ` from entries
		where deleted=0 and (nonce_content is null or length(nonce_content)=0) and plain_content != ''`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select plaintext entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SetArchived flips the archived flag on a non-deleted entry.
func (r *SQLiteRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	query := `update entries set archived=? where id=? and deleted=0`
	return r.execOne(ctx, query, archived, id)
}

// SoftDelete marks an entry as deleted and stamps deleted_at.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `update entries set deleted=1, deleted_at=? where id=? and deleted=0`
	return r.execOne(ctx, query, at.UTC(), id)
}

// Restore clears the deleted flag on a trashed entry.
func (r *SQLiteRepository) Restore(ctx context.Context, id string) error {
	query := `update entries set deleted=0, deleted_at=null where id=? and deleted=1`
	return r.execOne(ctx, query, id)
}

// GetTrash lists soft-deleted entries, most recently deleted first.
func (r *SQLiteRepository) GetTrash(ctx context.Context) ([]models.Entry, error) {
	query := `select ` + entryColumns + ` from entries where deleted=1 order by deleted_at desc`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select trash: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteByID removes an entry row permanently.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	query := `delete from entries where id=?`
	return r.execOne(ctx, query, id)
}

// PurgeDeletedBefore permanently removes trashed entries past the retention
// cutoff and returns their ids so attachments can be cleaned up too.
func (r *SQLiteRepository) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`select id from entries where deleted=1 and deleted_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to select purgeable entries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`delete from entries where deleted=1 and deleted_at < ?`, cutoff.UTC()); err != nil {
		return nil, fmt.Errorf("failed to purge entries: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec failed: %w", err)
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

func scanEntry(scan func(dest ...any) error) (*models.Entry, error) {
	e := &models.Entry{}
	var deletedAt sql.NullTime
	err := scan(&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.Content, &e.NonceContent, &e.Alg,
		&e.PlainContent, &e.Mood, &e.WordCount, &e.HasPhoto, &e.Archived, &e.Deleted, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		e.DeletedAt = &t
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	var result []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
