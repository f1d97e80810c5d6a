// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the paper pipeline state in SQLite: listing refs
// enter as pending rows, resolution promotes them to downloadable records,
// and the download and analysis stages advance their status from there.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jyozhou/paperscout/pkg/types"
)

// Store manages the papers SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the papers database at dbPath, creating parent
// directories and the schema as needed.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("store: db path is required")
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			arxiv_id TEXT NOT NULL DEFAULT '',
			pdf_url TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '',
			abstract TEXT NOT NULL DEFAULT '',
			published_date TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(status)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_title ON papers(title)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RefID derives the stable row key for an unresolved listing ref: a short
// hash of the normalized title. Once resolution finds an arXiv ID the row
// is re-keyed to it.
func RefID(title string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "t" + hex.EncodeToString(sum[:8])
}

// AddRefs inserts listing refs as pendingTitles rows, skipping refs whose
// title hash is already present. Returns the number of rows inserted.
func (s *Store) AddRefs(ctx context.Context, refs []types.PaperRef) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO papers (id, title, url, source, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := timestamp()
	inserted := 0
	for _, ref := range refs {
		if ref.Title == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			RefID(ref.Title), ref.Title, ref.URL, ref.Source,
			string(types.StatusPending), now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting ref %q: %w", ref.Title, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing refs: %w", err)
	}
	return inserted, nil
}

// SaveResolved records a confirmed resolution for the pending row pendingID.
// When the resolution carries an arXiv ID the row is re-keyed to it; a
// pre-existing row under that key absorbs the update and the pending row is
// removed. Status advances to TobeDownloaded.
func (s *Store) SaveResolved(ctx context.Context, pendingID string, paper types.ResolvedPaper) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := paper.ArxivID
	if id == "" {
		id = pendingID
	}

	var url, createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT url, created_at FROM papers WHERE id = ?`, pendingID,
	).Scan(&url, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		createdAt = timestamp()
	case err != nil:
		return fmt.Errorf("loading pending row %s: %w", pendingID, err)
	}

	if id != pendingID {
		if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, pendingID); err != nil {
			return fmt.Errorf("removing pending row %s: %w", pendingID, err)
		}
	}

	authorsJSON, _ := json.Marshal(paper.Authors)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (id, title, url, source, arxiv_id, pdf_url, authors,
			abstract, published_date, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, source=excluded.source, arxiv_id=excluded.arxiv_id,
			pdf_url=excluded.pdf_url, authors=excluded.authors,
			abstract=excluded.abstract, published_date=excluded.published_date,
			status=excluded.status, error='', updated_at=excluded.updated_at`,
		id, paper.Title, url, paper.Source, paper.ArxivID, paper.PDFURL,
		string(authorsJSON), paper.Abstract, paper.PublishedDate,
		string(types.StatusToDownload), createdAt, timestamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting resolved paper %s: %w", id, err)
	}

	return tx.Commit()
}

// MarkStatus updates a paper's status, recording errMsg for failure states.
func (s *Store) MarkStatus(ctx context.Context, id string, status types.Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("updating status for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper %s not found", id)
	}
	return nil
}

// PapersByStatus returns up to limit papers in the given status, oldest
// first. A non-positive limit returns all.
func (s *Store) PapersByStatus(ctx context.Context, status types.Status, limit int) ([]types.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers WHERE status = ? ORDER BY created_at, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers by status: %w", err)
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// PaperByID returns the paper with the given row key, or sql.ErrNoRows.
func (s *Store) PaperByID(ctx context.Context, id string) (types.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	return scanPaper(row)
}

// CountByStatus returns the number of papers per status plus the total.
func (s *Store) CountByStatus(ctx context.Context) (map[types.Status]int, int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM papers GROUP BY status`)
	if err != nil {
		return nil, 0, fmt.Errorf("counting papers: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.Status]int)
	total := 0
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, 0, fmt.Errorf("scanning count: %w", err)
		}
		counts[types.Status(status)] = n
		total += n
	}
	return counts, total, rows.Err()
}

const paperColumns = `id, title, url, source, arxiv_id, pdf_url, authors,
	abstract, published_date, status, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaper(row rowScanner) (types.Paper, error) {
	var p types.Paper
	var status, authorsJSON string
	err := row.Scan(&p.ID, &p.Title, &p.URL, &p.Source, &p.ArxivID, &p.PDFURL,
		&authorsJSON, &p.Abstract, &p.PublishedDate, &status, &p.Error,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return types.Paper{}, err
	}
	p.Status = types.Status(status)
	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &p.Authors); err != nil {
			return types.Paper{}, fmt.Errorf("parsing authors for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
