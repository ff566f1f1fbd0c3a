// Package seed loads the estimates reference dataset from a CSV export into
// the store. Rows are upserted in chunks by a bounded pool of workers so a
// multi-hundred-thousand row import does not hold a single transaction open.
package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
)

// Inserter is the store surface the seeder writes through.
type Inserter interface {
	InsertEstimates(ctx context.Context, batch []estimates.Estimate) error
}

// Config tunes the import.
type Config struct {
	ChunkSize   int
	Concurrency int
	Retry       retry.Config
}

// Seeder imports estimate rows from CSV.
type Seeder struct {
	store  Inserter
	cfg    Config
	logger zerolog.Logger
}

// New creates a Seeder.
func New(store Inserter, cfg Config, logger zerolog.Logger) *Seeder {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 25
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Seeder{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "seeder").Logger(),
	}
}

// Run reads CSV from r and upserts every row. It returns the number of rows
// written. The first record must be a header naming at least the id, state
// and city columns; other columns are matched by name and default to zero
// when absent.
func (s *Seeder) Run(ctx context.Context, r io.Reader) (int64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	var written atomic.Int64
	chunk := make([]estimates.Estimate, 0, s.cfg.ChunkSize)
	line := 1

	flush := func() {
		if len(chunk) == 0 {
			return
		}
		batch := chunk
		chunk = make([]estimates.Estimate, 0, s.cfg.ChunkSize)
		g.Go(func() error {
			err := retry.Do(gctx, s.cfg.Retry, func(ctx context.Context) error {
				return s.store.InsertEstimates(ctx, batch)
			})
			if err != nil {
				return fmt.Errorf("inserting batch of %d: %w", len(batch), err)
			}
			written.Add(int64(len(batch)))
			return nil
		})
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written.Load(), fmt.Errorf("reading csv line %d: %w", line+1, err)
		}
		line++

		est, err := cols.parse(record)
		if err != nil {
			return written.Load(), fmt.Errorf("csv line %d: %w", line, err)
		}
		chunk = append(chunk, est)
		if len(chunk) >= s.cfg.ChunkSize {
			flush()
		}
	}
	flush()

	if err := g.Wait(); err != nil {
		return written.Load(), err
	}

	s.logger.Info().Int64("rows", written.Load()).Msg("seed import finished")
	return written.Load(), nil
}

// columnMap holds the index of each known column in the CSV header, -1 for
// columns the file does not carry.
type columnMap struct {
	id, state, city, category, count, pending, bCount int
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{id: -1, state: -1, city: -1, category: -1, count: -1, pending: -1, bCount: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			cols.id = i
		case "state":
			cols.state = i
		case "city":
			cols.city = i
		case "category":
			cols.category = i
		case "count":
			cols.count = i
		case "pending":
			cols.pending = i
		case "bcount", "b_count":
			cols.bCount = i
		}
	}
	if cols.id < 0 || cols.state < 0 || cols.city < 0 {
		return cols, fmt.Errorf("%w: csv header must name id, state and city columns", derrors.ErrInvalidInput)
	}
	return cols, nil
}

func (c columnMap) parse(record []string) (estimates.Estimate, error) {
	var est estimates.Estimate
	var err error

	est.ID, err = intField(record, c.id)
	if err != nil {
		return est, fmt.Errorf("id: %w", err)
	}
	est.State = textField(record, c.state)
	est.City = textField(record, c.city)
	est.Category = textField(record, c.category)
	if est.State == "" {
		return est, fmt.Errorf("%w: empty state", derrors.ErrInvalidInput)
	}

	if est.Count, err = intField(record, c.count); err != nil {
		return est, fmt.Errorf("count: %w", err)
	}
	if est.Pending, err = intField(record, c.pending); err != nil {
		return est, fmt.Errorf("pending: %w", err)
	}
	if est.BCount, err = intField(record, c.bCount); err != nil {
		return est, fmt.Errorf("b_count: %w", err)
	}
	return est, nil
}

func textField(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func intField(record []string, idx int) (int64, error) {
	raw := textField(record, idx)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", derrors.ErrInvalidInput, raw)
	}
	return v, nil
}
