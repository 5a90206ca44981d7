// Package db persists finished captions in SQLite with an FTS5 mirror
// of the caption text for full-text search.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/types"
)

// DB represents a SQLite caption database connection
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a new database connection under dataDir
func New(dataDir string, logger *log.Logger) (*DB, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "captions.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("failed to set database pragmas: %v", err)
	}

	d := &DB{
		db:     db,
		logger: logger,
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return d, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS captions (
			id TEXT PRIMARY KEY,
			file TEXT NOT NULL,
			caption TEXT NOT NULL,
			tags TEXT NOT NULL,
			model TEXT NOT NULL,
			top_k INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		-- Virtual table for full-text search over caption text
		CREATE VIRTUAL TABLE IF NOT EXISTS captions_fts USING fts5(
			caption,
			content='captions',
			content_rowid='rowid'
		);

		-- Triggers to keep the FTS table in sync
		CREATE TRIGGER IF NOT EXISTS captions_ai AFTER INSERT ON captions BEGIN
			INSERT INTO captions_fts(rowid, caption) VALUES (new.rowid, new.caption);
		END;

		CREATE TRIGGER IF NOT EXISTS captions_ad AFTER DELETE ON captions BEGIN
			INSERT INTO captions_fts(captions_fts, rowid, caption) VALUES ('delete', old.rowid, old.caption);
		END;

		CREATE TRIGGER IF NOT EXISTS captions_au AFTER UPDATE ON captions BEGIN
			INSERT INTO captions_fts(captions_fts, rowid, caption) VALUES ('delete', old.rowid, old.caption);
			INSERT INTO captions_fts(rowid, caption) VALUES (new.rowid, new.caption);
		END;
	`)
	if err != nil {
		return fmt.Errorf("failed to create captions table: %v", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_captions_file ON captions(file)",
		"CREATE INDEX IF NOT EXISTS idx_captions_model ON captions(model)",
		"CREATE INDEX IF NOT EXISTS idx_captions_created_at ON captions(created_at)",
	}
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

// Store inserts or replaces a caption row
func (d *DB) Store(ctx context.Context, c types.StoredCaption) error {
	d.logger.Debug("Storing caption", "id", c.ID, "file", c.File, "caption", c.Caption)

	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %v", err)
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// The update triggers keep the FTS mirror in sync, so replace via
	// upsert rather than INSERT OR REPLACE (which would fire the delete
	// trigger against a row the FTS table no longer matches).
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO captions (id, file, caption, tags, model, top_k, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file = excluded.file,
			caption = excluded.caption,
			tags = excluded.tags,
			model = excluded.model,
			top_k = excluded.top_k,
			created_at = excluded.created_at
	`, c.ID, c.File, c.Caption, string(tagsJSON), c.Model, c.TopK, createdAt)
	if err != nil {
		return fmt.Errorf("failed to store caption: %v", err)
	}

	return nil
}

// Get retrieves a caption by clip ID, or nil if not present
func (d *DB) Get(ctx context.Context, id string) (*types.StoredCaption, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, file, caption, tags, model, top_k, created_at
		FROM captions WHERE id = ?
	`, id)

	c, err := scanCaption(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get caption: %v", err)
	}
	return c, nil
}

// Has reports whether a caption exists for the given clip ID
func (d *DB) Has(ctx context.Context, id string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM captions WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check caption: %v", err)
	}
	return count > 0, nil
}

// List returns captions ordered newest first, limited if limit > 0
func (d *DB) List(ctx context.Context, limit int) ([]types.StoredCaption, error) {
	query := `
		SELECT id, file, caption, tags, model, top_k, created_at
		FROM captions
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list captions: %w", err)
	}
	defer rows.Close()

	var captions []types.StoredCaption
	for rows.Next() {
		c, err := scanCaption(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan caption: %w", err)
		}
		captions = append(captions, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating captions: %w", err)
	}

	return captions, nil
}

// SearchCaptionsByText performs a full-text search on caption text and
// returns results ordered by BM25 relevance along with the total match
// count before the limit was applied.
func (d *DB) SearchCaptionsByText(ctx context.Context, query string, limit int) ([]types.CaptionSearchResult, int, error) {
	searchQuery := `
		SELECT c.id, c.file, c.caption, c.tags, c.model, c.top_k, c.created_at,
			bm25(captions_fts) AS rank
		FROM captions c
		JOIN captions_fts fts ON c.rowid = fts.rowid
		WHERE captions_fts MATCH ?
		ORDER BY rank
	`
	args := []any{query}
	if limit > 0 {
		searchQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, searchQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search captions: %w", err)
	}
	defer rows.Close()

	var results []types.CaptionSearchResult
	for rows.Next() {
		var r types.CaptionSearchResult
		var tagsJSON string
		var rank float64
		if err := rows.Scan(&r.ID, &r.File, &r.Caption, &tagsJSON, &r.Model, &r.TopK, &r.CreatedAt, &rank); err != nil {
			return nil, 0, fmt.Errorf("failed to scan caption: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		// bm25() returns a lower-is-better rank; negate for a
		// higher-is-better score
		r.Scores.TextScore = -rank
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating captions: %w", err)
	}

	var totalCount int
	err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM captions_fts WHERE captions_fts MATCH ?", query,
	).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count matches: %w", err)
	}

	return results, totalCount, nil
}

// Remove deletes a caption by clip ID
func (d *DB) Remove(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM captions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove caption: %v", err)
	}
	return nil
}

// Count returns the number of stored captions
func (d *DB) Count() (int, error) {
	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM captions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captions: %v", err)
	}
	return count, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// DB exposes the underlying connection for migrations
func (d *DB) DB() *sql.DB {
	return d.db
}

func scanCaption(scan func(...any) error) (*types.StoredCaption, error) {
	var c types.StoredCaption
	var tagsJSON string
	if err := scan(&c.ID, &c.File, &c.Caption, &tagsJSON, &c.Model, &c.TopK, &c.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %v", err)
	}
	return &c, nil
}
