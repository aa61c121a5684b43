package searchdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/nbpress/internal/apperr"
)

// PageRow is one row of the pages table.
type PageRow struct {
	ID        string
	Title     string
	Tags      string // comma-joined, as in the JSON index
	URL       string
	Text      string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// UpsertPage inserts or replaces a page and its FTS entry within a transaction.
func (db *DB) UpsertPage(r PageRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("searchdb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO pages (id, title, tags, url, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			tags       = excluded.tags,
			url        = excluded.url,
			body       = excluded.body,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, r.ID, r.Title, r.Tags, r.URL, r.Text, r.Checksum, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("searchdb: upsert page: %w", err)
	}

	if err := ftsUpsert(tx, r.ID, r.Title, r.Text, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePage removes a page and its FTS entry.
func (db *DB) DeletePage(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("searchdb: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("searchdb: delete page: %w", err)
	}
	return tx.Commit()
}

// GetPage returns one page. A missing id yields apperr.ErrNotFound.
func (db *DB) GetPage(id string) (*PageRow, error) {
	var r PageRow
	err := db.conn.QueryRow(`
		SELECT id, title, tags, url, body, checksum, updated_at
		FROM pages WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &r.Tags, &r.URL, &r.Text, &r.Checksum, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("searchdb: get page: %w", err)
	}
	return &r, nil
}

// ListPages returns pages ordered by id, optionally filtered to those carrying
// tag, along with the total matching count.
func (db *DB) ListPages(limit, offset int, tag string) ([]PageRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := "", []any{}
	if tag != "" {
		// Tags are stored as "a, b, c"; pad both sides so only whole tags match.
		where = ` WHERE ', ' || tags || ', ' LIKE ?`
		args = append(args, "%, "+tag+", %")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("searchdb: count pages: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, tags, url, checksum, updated_at
		FROM pages`+where+`
		ORDER BY id
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("searchdb: list pages: %w", err)
	}
	defer rows.Close()

	var out []PageRow
	for rows.Next() {
		var r PageRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Tags, &r.URL, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Count returns the number of mirrored pages.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("searchdb: count: %w", err)
	}
	return n, nil
}

// AllChecksums returns id -> checksum for every mirrored page.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("searchdb: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
