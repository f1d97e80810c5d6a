// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// DeduplicateTitles finds groups of papers sharing a title (case-insensitive)
// and removes all but one row per group. The keeper is the row with an arXiv
// ID, earliest created_at breaking ties; among rows without one, simply the
// earliest. Without apply the plan is printed but nothing is deleted.
// Returns the number of rows deleted (or that would be).
func (s *Store) DeduplicateTitles(ctx context.Context, apply bool, w io.Writer) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, arxiv_id, created_at FROM papers
		 WHERE lower(title) IN (
			SELECT lower(title) FROM papers GROUP BY lower(title) HAVING COUNT(*) > 1
		 )
		 ORDER BY lower(title), created_at, id`)
	if err != nil {
		return 0, fmt.Errorf("querying duplicate titles: %w", err)
	}
	defer rows.Close()

	type dupRow struct {
		id, title, arxivID, createdAt string
	}
	groups := make(map[string][]dupRow)
	var order []string
	for rows.Next() {
		var r dupRow
		if err := rows.Scan(&r.id, &r.title, &r.arxivID, &r.createdAt); err != nil {
			return 0, fmt.Errorf("scanning duplicate row: %w", err)
		}
		key := strings.ToLower(r.title)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var doomed []string
	for _, key := range order {
		group := groups[key]

		// Rows arrive sorted by created_at; the first row with an arXiv ID
		// wins, else the overall first.
		keeper := 0
		for i, r := range group {
			if r.arxivID != "" {
				keeper = i
				break
			}
		}

		fmt.Fprintf(w, "duplicate %q: keeping %s\n", group[keeper].title, group[keeper].id)
		for i, r := range group {
			if i == keeper {
				continue
			}
			fmt.Fprintf(w, "  removing %s (created %s)\n", r.id, r.createdAt)
			doomed = append(doomed, r.id)
		}
	}

	if len(doomed) == 0 {
		fmt.Fprintln(w, "no duplicate titles")
		return 0, nil
	}

	if !apply {
		fmt.Fprintf(w, "\ndry run: %d rows would be removed\n", len(doomed))
		return len(doomed), nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range doomed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("deleting %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing dedup: %w", err)
	}

	fmt.Fprintf(w, "\nremoved %d duplicate rows\n", len(doomed))
	return len(doomed), nil
}
