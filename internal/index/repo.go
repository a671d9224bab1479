package index

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordRow represents a row in the records table.
type RecordRow struct {
	Path      string
	TypePath  string
	Title     string
	Checksum  string
	Attrs     map[string]any
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// UpsertRecord inserts or replaces a record, its FTS entry, and outgoing
// wikilink references within a transaction.
func (db *DB) UpsertRecord(r RecordRow, body string, refs []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	attrsJSON, _ := json.Marshal(r.Attrs)

	_, err = tx.Exec(`
		INSERT INTO records (path, type_path, title, checksum, attrs, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			type_path  = excluded.type_path,
			title      = excluded.title,
			checksum   = excluded.checksum,
			attrs      = excluded.attrs,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, r.Path, r.TypePath, r.Title, r.Checksum, string(attrsJSON), body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert record: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Path, r.Title, body); err != nil {
		return err
	}

	// Replace refs: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, r.Path)
	if len(refs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO refs (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare ref insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range refs {
			if _, err := stmt.Exec(r.Path, target); err != nil {
				return fmt.Errorf("index: insert ref: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteRecord removes a record, its FTS entry, and outgoing refs.
func (db *DB) DeleteRecord(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM refs WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM records WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a record, or empty string if
// not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListRecords returns paginated records, optionally narrowed to a type
// path (subtypes included), ordered by path.
func (db *DB) ListRecords(limit, offset int, typePath string) ([]RecordRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	whereSQL := ""
	args := []any{}
	if typePath != "" {
		whereSQL = `WHERE type_path = ? OR type_path LIKE ?`
		args = append(args, typePath, typePath+"/%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM records `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count records: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT path, type_path, title, checksum, attrs, updated_at
		FROM records `+whereSQL+`
		ORDER BY path
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var r RecordRow
		var attrsJSON string
		if err := rows.Scan(&r.Path, &r.TypePath, &r.Title, &r.Checksum, &attrsJSON, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(attrsJSON), &r.Attrs)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Referencing returns all record paths whose frontmatter or body links to
// the given target.
func (db *DB) Referencing(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM refs WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: referencing: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed record.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
