// Package settings persists the single unencrypted Settings record in a
// key/value table. The record carries the PIN verifier and the wrapped
// master key; no plaintext key material ever enters this package.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/dbx"
	"github.com/inkwellapp/inkwell/internal/models"
)

const settingsKey = "settings"

// Repository is the storage port for the settings record.
type Repository interface {
	// Load returns the persisted settings, or common.ErrNotFound on a
	// fresh database.
	Load(ctx context.Context) (*models.Settings, error)
	// Save persists the settings record, replacing any previous one.
	Save(ctx context.Context, s *models.Settings) error
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load reads and unmarshals the settings record.
func (r *SQLiteRepository) Load(ctx context.Context) (*models.Settings, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	s := &models.Settings{}
	if err := json.Unmarshal(value, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return s, nil
}

// Save marshals and upserts the settings record.
func (r *SQLiteRepository) Save(ctx context.Context, s *models.Settings) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settingsKey, value)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
