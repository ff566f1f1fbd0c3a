package seed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moseshope/scraping-admin-dashboard/internal/estimates"
)

type fakeInserter struct {
	mu      sync.Mutex
	rows    []estimates.Estimate
	batches int
	err     error
}

func (f *fakeInserter) InsertEstimates(ctx context.Context, batch []estimates.Estimate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, batch...)
	f.batches++
	return nil
}

const sampleCSV = `id,state,city,category,count,pending,b_count
1,Texas,Austin,plumbing,120,4,16
2,Texas,Dallas,plumbing,98,0,7
3,Ohio,Columbus,roofing,45,2,0
`

func TestRun_ImportsAllRows(t *testing.T) {
	store := &fakeInserter{}
	s := New(store, Config{}, zerolog.Nop())

	n, err := s.Run(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Len(t, store.rows, 3)

	byID := map[int64]estimates.Estimate{}
	for _, e := range store.rows {
		byID[e.ID] = e
	}
	assert.Equal(t, "Austin", byID[1].City)
	assert.Equal(t, int64(98), byID[2].Count)
	assert.Equal(t, "roofing", byID[3].Category)
}

func TestRun_ChunksBatches(t *testing.T) {
	store := &fakeInserter{}
	s := New(store, Config{ChunkSize: 2}, zerolog.Nop())

	n, err := s.Run(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 2, store.batches)
}

func TestRun_ToleratesMissingOptionalColumns(t *testing.T) {
	csv := "id,state,city\n7,Maine,Portland\n"
	store := &fakeInserter{}
	s := New(store, Config{}, zerolog.Nop())

	n, err := s.Run(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, estimates.Estimate{ID: 7, State: "Maine", City: "Portland"}, store.rows[0])
}

func TestRun_RejectsHeaderWithoutRequiredColumns(t *testing.T) {
	csv := "state,city\nTexas,Austin\n"
	s := New(&fakeInserter{}, Config{}, zerolog.Nop())

	_, err := s.Run(context.Background(), strings.NewReader(csv))
	assert.Error(t, err)
}

func TestRun_RejectsNonNumericID(t *testing.T) {
	csv := "id,state,city\nabc,Texas,Austin\n"
	s := New(&fakeInserter{}, Config{}, zerolog.Nop())

	_, err := s.Run(context.Background(), strings.NewReader(csv))
	assert.Error(t, err)
}

func TestRun_RejectsEmptyState(t *testing.T) {
	csv := "id,state,city\n1,,Austin\n"
	s := New(&fakeInserter{}, Config{}, zerolog.Nop())

	_, err := s.Run(context.Background(), strings.NewReader(csv))
	assert.Error(t, err)
}

func TestRun_PropagatesInsertErrors(t *testing.T) {
	store := &fakeInserter{err: errors.New("disk full")}
	s := New(store, Config{ChunkSize: 1}, zerolog.Nop())

	_, err := s.Run(context.Background(), strings.NewReader(sampleCSV))
	assert.ErrorContains(t, err, "disk full")
}
