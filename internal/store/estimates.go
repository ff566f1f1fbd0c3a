package store

import (
	"context"
	"fmt"

	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
)

// scanPageSize bounds how many estimate rows one query pulls; scans page
// through with a keyset on the id.
const scanPageSize = 1000

// Estimates returns the estimate query surface backed by this store.
func (s *Store) Estimates() estimates.Query {
	return &estimateQuery{store: s}
}

type estimateQuery struct {
	store *Store
}

func (q *estimateQuery) ScanAll(ctx context.Context) ([]estimates.Estimate, error) {
	return q.scan(ctx, ``)
}

func (q *estimateQuery) ScanByState(ctx context.Context, state string) ([]estimates.Estimate, error) {
	return q.scan(ctx, `AND state = ?`, state)
}

func (q *estimateQuery) ScanByStateCity(ctx context.Context, state, city string) ([]estimates.Estimate, error) {
	return q.scan(ctx, `AND state = ? AND city = ?`, state, city)
}

// scan pages through the estimates table keyset-style, so arbitrarily large
// datasets never need one giant result set. Callers see the aggregate only.
func (q *estimateQuery) scan(ctx context.Context, where string, args ...any) ([]estimates.Estimate, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()

	query := `
	SELECT id, state, city, category, count, pending, b_count
	FROM estimates
	WHERE id > ? ` + where + `
	ORDER BY id
	LIMIT ?
	`

	var out []estimates.Estimate
	lastID := int64(0)

	for {
		pageArgs := append([]any{lastID}, args...)
		pageArgs = append(pageArgs, scanPageSize)

		rows, err := q.store.db.QueryContext(ctx, query, pageArgs...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estimates: %w", err)
		}

		n := 0
		for rows.Next() {
			var e estimates.Estimate
			if err := rows.Scan(&e.ID, &e.State, &e.City, &e.Category, &e.Count, &e.Pending, &e.BCount); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan estimate row: %w", err)
			}
			out = append(out, e)
			lastID = e.ID
			n++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating estimates: %w", err)
		}
		rows.Close()

		if n < scanPageSize {
			return out, nil
		}
	}
}

func (q *estimateQuery) UniqueStates(ctx context.Context) ([]string, error) {
	return q.distinct(ctx, `SELECT DISTINCT state FROM estimates ORDER BY state`)
}

func (q *estimateQuery) CitiesInState(ctx context.Context, state string) ([]string, error) {
	return q.distinct(ctx, `SELECT DISTINCT city FROM estimates WHERE state = ? ORDER BY city`, state)
}

func (q *estimateQuery) distinct(ctx context.Context, query string, args ...any) ([]string, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()

	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating values: %w", err)
	}
	return out, nil
}

// InsertEstimates upserts a batch of estimate rows in one transaction. Used
// by the seed utility.
func (s *Store) InsertEstimates(ctx context.Context, batch []estimates.Estimate) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO estimates (id, state, city, category, count, pending, b_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, e.ID, e.State, e.City, e.Category, e.Count, e.Pending, e.BCount); err != nil {
			return fmt.Errorf("failed to insert estimate %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit estimates: %w", err)
	}
	return nil
}

// CountEstimates returns the number of rows in the reference dataset.
func (s *Store) CountEstimates(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM estimates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count estimates: %w", err)
	}
	return n, nil
}
