package filter

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
)

// Resolver resolves filter specs into estimate id sets against the reference
// dataset. Resolution is a pure read: no side effects, and resolving the same
// spec twice against an unchanged dataset yields the same sorted result.
// Scans are idempotent and retried on transient failures.
type Resolver struct {
	query  estimates.Query
	retry  retry.Config
	logger zerolog.Logger
}

// NewResolver creates a Resolver over the given reference dataset query.
func NewResolver(query estimates.Query, rcfg retry.Config, logger zerolog.Logger) *Resolver {
	if rcfg.MaxAttempts <= 0 {
		rcfg = retry.DefaultConfig()
	}
	return &Resolver{
		query:  query,
		retry:  rcfg,
		logger: logger.With().Str("component", "filter_resolver").Logger(),
	}
}

// scan runs one dataset read with retries.
func (r *Resolver) scan(ctx context.Context, fn func(context.Context) ([]estimates.Estimate, error)) ([]estimates.Estimate, error) {
	var rows []estimates.Estimate
	err := retry.Do(ctx, r.retry, func(ctx context.Context) error {
		var err error
		rows, err = fn(ctx)
		return err
	})
	return rows, err
}

// Resolve returns the deduplicated estimate ids selected by spec, sorted
// ascending. An empty result is valid and means "nothing to schedule".
func (r *Resolver) Resolve(ctx context.Context, spec Spec) ([]int64, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ids := make(map[int64]struct{})

	switch spec.Mode {
	case ModeEntire:
		rows, err := r.scan(ctx, r.query.ScanAll)
		if err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		for _, row := range rows {
			ids[row.ID] = struct{}{}
		}

	case ModeFiltered:
		for _, sf := range spec.States {
			if err := r.resolveState(ctx, sf, ids); err != nil {
				return nil, err
			}
		}
	}

	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	r.logger.Debug().
		Str("mode", string(spec.Mode)).
		Int("states", len(spec.States)).
		Int("resolved", len(sorted)).
		Msg("filter resolved")

	return sorted, nil
}

// resolveState unions the ids contributed by one state entry into ids.
func (r *Resolver) resolveState(ctx context.Context, sf StateFilter, ids map[int64]struct{}) error {
	// No city filters means the whole state.
	if len(sf.Cities) == 0 {
		rows, err := r.scan(ctx, func(ctx context.Context) ([]estimates.Estimate, error) {
			return r.query.ScanByState(ctx, sf.State)
		})
		if err != nil {
			return fmt.Errorf("scanning state %q: %w", sf.State, err)
		}
		for _, row := range rows {
			ids[row.ID] = struct{}{}
		}
		return nil
	}

	for _, cf := range sf.Cities {
		var rows []estimates.Estimate
		var err error

		if cf.City == All {
			rows, err = r.scan(ctx, func(ctx context.Context) ([]estimates.Estimate, error) {
				return r.query.ScanByState(ctx, sf.State)
			})
		} else {
			rows, err = r.scan(ctx, func(ctx context.Context) ([]estimates.Estimate, error) {
				return r.query.ScanByStateCity(ctx, sf.State, cf.City)
			})
		}
		if err != nil {
			return fmt.Errorf("scanning state %q city %q: %w", sf.State, cf.City, err)
		}

		if !cf.constrainsCategory() {
			for _, row := range rows {
				ids[row.ID] = struct{}{}
			}
			continue
		}

		wanted := make(map[string]struct{}, len(cf.BusinessTypes))
		for _, bt := range cf.BusinessTypes {
			wanted[bt] = struct{}{}
		}
		for _, row := range rows {
			if _, ok := wanted[row.Category]; ok {
				ids[row.ID] = struct{}{}
			}
		}
	}
	return nil
}
