// internal/catalog/sqlite.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS content_sets (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cards (
	id        TEXT NOT NULL,
	set_id    TEXT NOT NULL REFERENCES content_sets(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	condition TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (set_id, id)
);
`

// SQLite is a Catalog backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ Catalog = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the catalog at path. Use ":memory:"
// for a throwaway catalog.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Import replaces the given content sets wholesale.
func (s *SQLite) Import(ctx context.Context, sets []models.ContentSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, set := range sets {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE set_id = ?`, set.ID); err != nil {
			return fmt.Errorf("clear cards of %s: %w", set.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO content_sets (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			set.ID, set.Name); err != nil {
			return fmt.Errorf("upsert content set %s: %w", set.ID, err)
		}
		for _, c := range set.Cards {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cards (id, set_id, name, kind, condition) VALUES (?, ?, ?, ?, ?)`,
				c.ID, set.ID, c.Name, c.Kind, c.Condition); err != nil {
				return fmt.Errorf("insert card %s/%s: %w", set.ID, c.ID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*models.ContentSet, error) {
	set := &models.ContentSet{ID: id, Cards: []models.Card{}}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM content_sets WHERE id = ?`, id).Scan(&set.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("content set %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get content set %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, kind, condition FROM cards WHERE set_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list cards of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.Condition); err != nil {
			return nil, fmt.Errorf("scan card of %s: %w", id, err)
		}
		set.Cards = append(set.Cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cards of %s: %w", id, err)
	}
	return set, nil
}

func (s *SQLite) List(ctx context.Context) ([]models.ContentPreview, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM content_sets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list content sets: %w", err)
	}
	defer rows.Close()

	out := []models.ContentPreview{}
	for rows.Next() {
		var p models.ContentPreview
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan content set: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
