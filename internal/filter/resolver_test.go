package filter

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/moseshope/scraping-admin-dashboard/internal/errors"
	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
)

// memoryQuery is an in-memory estimates.Query for resolver tests.
type memoryQuery struct {
	rows []estimates.Estimate
	err  error
}

func (m *memoryQuery) ScanAll(ctx context.Context) ([]estimates.Estimate, error) {
	return m.rows, m.err
}

func (m *memoryQuery) ScanByState(ctx context.Context, state string) ([]estimates.Estimate, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []estimates.Estimate
	for _, r := range m.rows {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryQuery) ScanByStateCity(ctx context.Context, state, city string) ([]estimates.Estimate, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []estimates.Estimate
	for _, r := range m.rows {
		if r.State == state && r.City == city {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryQuery) UniqueStates(ctx context.Context) ([]string, error)               { return nil, nil }
func (m *memoryQuery) CitiesInState(ctx context.Context, state string) ([]string, error) { return nil, nil }

func testDataset() *memoryQuery {
	return &memoryQuery{rows: []estimates.Estimate{
		{ID: 10, State: "California", City: "San Jose", Category: "Caterer"},
		{ID: 11, State: "California", City: "San Jose", Category: "Caterer"},
		{ID: 12, State: "California", City: "San Jose", Category: "Caterer"},
		{ID: 13, State: "California", City: "San Jose", Category: "Florist"},
		{ID: 14, State: "California", City: "Oakland", Category: "Caterer"},
		{ID: 20, State: "Nevada", City: "Reno", Category: "Caterer"},
		{ID: 21, State: "Nevada", City: "Las Vegas", Category: "Plumber"},
	}}
}

func newResolver(q estimates.Query) *Resolver {
	rcfg := retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return NewResolver(q, rcfg, zerolog.New(os.Stderr))
}

func TestResolve_EntireDataset(t *testing.T) {
	r := newResolver(testDataset())

	ids, err := r.Resolve(context.Background(), EntireDataset())
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12, 13, 14, 20, 21}, ids)
}

func TestResolve_StateCityBusinessType(t *testing.T) {
	r := newResolver(testDataset())

	spec := Spec{Mode: ModeFiltered, States: []StateFilter{{
		State:  "California",
		Cities: []CityFilter{{City: "San Jose", BusinessTypes: []string{"Caterer"}}},
	}}}

	ids, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12}, ids)
}

func TestResolve_StateOnly(t *testing.T) {
	r := newResolver(testDataset())

	spec := Spec{Mode: ModeFiltered, States: []StateFilter{{State: "Nevada"}}}

	ids, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 21}, ids)
}

func TestResolve_AllCityAllTypesEqualsStateOnly(t *testing.T) {
	r := newResolver(testDataset())

	stateOnly := Spec{Mode: ModeFiltered, States: []StateFilter{{State: "California"}}}
	allAll := Spec{Mode: ModeFiltered, States: []StateFilter{{
		State:  "California",
		Cities: []CityFilter{{City: All, BusinessTypes: []string{All}}},
	}}}

	got1, err := r.Resolve(context.Background(), stateOnly)
	require.NoError(t, err)
	got2, err := r.Resolve(context.Background(), allAll)
	require.NoError(t, err)
	assert.Equal(t, got1, got2)
}

func TestResolve_UnionAcrossStatesAndCities_Deduplicated(t *testing.T) {
	r := newResolver(testDataset())

	// San Jose appears twice; the result must still be a set.
	spec := Spec{Mode: ModeFiltered, States: []StateFilter{
		{State: "California", Cities: []CityFilter{
			{City: "San Jose"},
			{City: "San Jose", BusinessTypes: []string{"Caterer"}},
			{City: "Oakland"},
		}},
		{State: "Nevada", Cities: []CityFilter{{City: "Reno"}}},
	}}

	ids, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12, 13, 14, 20}, ids)
}

func TestResolve_UnknownStateYieldsEmptyContribution(t *testing.T) {
	r := newResolver(testDataset())

	spec := Spec{Mode: ModeFiltered, States: []StateFilter{
		{State: "Atlantis"},
		{State: "Nevada", Cities: []CityFilter{{City: "Reno"}}},
	}}

	ids, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, ids)
}

func TestResolve_EmptyResultIsNotAnError(t *testing.T) {
	r := newResolver(testDataset())

	spec := Spec{Mode: ModeFiltered, States: []StateFilter{{State: "Atlantis"}}}

	ids, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolve_Deterministic(t *testing.T) {
	r := newResolver(testDataset())

	first, err := r.Resolve(context.Background(), EntireDataset())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), EntireDataset())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_PropagatesQueryErrors(t *testing.T) {
	r := newResolver(&memoryQuery{err: errors.New("scan failed")})

	_, err := r.Resolve(context.Background(), EntireDataset())
	assert.Error(t, err)
}

// flakyQuery fails the first scans with a transient error, then delegates.
type flakyQuery struct {
	*memoryQuery
	failures int
	calls    int
}

func (f *flakyQuery) ScanAll(ctx context.Context) ([]estimates.Estimate, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, derrors.ErrUnavailable
	}
	return f.memoryQuery.ScanAll(ctx)
}

func TestResolve_RetriesTransientScanFailures(t *testing.T) {
	q := &flakyQuery{memoryQuery: testDataset(), failures: 2}
	r := newResolver(q)

	ids, err := r.Resolve(context.Background(), EntireDataset())
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11, 12, 13, 14, 20, 21}, ids)
	assert.Equal(t, 3, q.calls)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"entire", EntireDataset(), false},
		{"filtered no states", Spec{Mode: ModeFiltered}, true},
		{"unknown mode", Spec{Mode: "partial"}, true},
		{"empty state name", Spec{Mode: ModeFiltered, States: []StateFilter{{State: ""}}}, true},
		{"empty city name", Spec{Mode: ModeFiltered, States: []StateFilter{{
			State: "Nevada", Cities: []CityFilter{{City: ""}},
		}}}, true},
		{"all combined with literal types", Spec{Mode: ModeFiltered, States: []StateFilter{{
			State: "Nevada", Cities: []CityFilter{{City: "Reno", BusinessTypes: []string{All, "Caterer"}}},
		}}}, true},
		{"all alone is fine", Spec{Mode: ModeFiltered, States: []StateFilter{{
			State: "Nevada", Cities: []CityFilter{{City: "Reno", BusinessTypes: []string{All}}},
		}}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.wantErr {
				assert.ErrorIs(t, err, derrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
