// Package repositories wires the local sqlite database: it opens the file,
// applies embedded goose migrations, and hands out the per-table
// repositories used by the services layer.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkwellapp/inkwell/internal/common"
	"github.com/inkwellapp/inkwell/internal/dbx"
	"github.com/inkwellapp/inkwell/internal/migrations"
	"github.com/inkwellapp/inkwell/internal/repositories/entries"
	"github.com/inkwellapp/inkwell/internal/repositories/photos"
	"github.com/inkwellapp/inkwell/internal/repositories/settings"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the table-level repositories backed by one database.
type Repositories struct {
	Settings settings.Repository
	Entries  entries.Repository
	Photos   photos.Repository
	DB       *sql.DB
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// PurgeEntry removes an entry row and its photo in one transaction, so a
// failure cannot leave an orphaned photo blob behind. A missing photo is not
// an error; a missing entry is common.ErrNotFound.
func (r *Repositories) PurgeEntry(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, r.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := photos.NewSQLiteRepository(tx).DeleteByEntryID(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		return entries.NewSQLiteRepository(tx).DeleteByID(ctx, id)
	})
}

// InitDatabase opens the sqlite database at dsn, migrates it, and returns
// the repositories bound to it.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repositories{
		Settings: settings.NewSQLiteRepository(db),
		Entries:  entries.NewSQLiteRepository(db),
		Photos:   photos.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
