package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/blackmichael/caughtup/internal/domain"
)

const hideSpoilersKey = "hide_spoilers"

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS cursors (
	service      TEXT PRIMARY KEY,
	cursor_value INTEGER NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);`

// Repository implements domain.PreferenceRepository and
// domain.CursorRepository on an embedded SQLite database.
type Repository struct {
	db *sql.DB
}

var (
	_ domain.PreferenceRepository = (*Repository)(nil)
	_ domain.CursorRepository     = (*Repository)(nil)
)

// NewRepository opens (creating if needed) the SQLite database at path,
// applies the schema, and returns a new Repository. The caller should call
// Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// GetHideSpoilers returns the saved spoiler toggle.
func (r *Repository) GetHideSpoilers(ctx context.Context) (bool, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, hideSpoilersKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}

	hide, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("parse %s: %w", hideSpoilersKey, err)
	}
	return hide, true, nil
}

// SetHideSpoilers upserts the spoiler toggle.
func (r *Repository) SetHideSpoilers(ctx context.Context, hide bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (key) DO UPDATE SET value = ?2, updated_at = ?3`,
		hideSpoilersKey, strconv.FormatBool(hide), time.Now().UTC(),
	)
	return err
}

// GetCursor retrieves the saved firehose cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return cursor, err
}

// UpdateCursor upserts the firehose cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?1, ?2, ?3)
		ON CONFLICT (service) DO UPDATE SET cursor_value = ?2, updated_at = ?3`,
		service, cursor, time.Now().UTC(),
	)
	return err
}
