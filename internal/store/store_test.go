package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/ceasefire/internal/series"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRun(id string, created time.Time) Run {
	return Run{
		ID:              id,
		CreatedAt:       created,
		Name:            "test-city",
		ConfigHash:      "cfg-hash",
		ConfigJSON:      `{"name":"test-city"}`,
		DataFingerprint: "data-fp",
		SpanStart:       day(2023, 1, 1),
		SpanEnd:         day(2023, 12, 31),
		Likelihood:      "negbin",
		Chains:          2,
		Draws:           3,
		BurnIn:          100,
		Thin:            2,
		Seed:            7,
		RHatMax:         1.01,
		ESSMin:          850,
		MoveRate:        0.31,
		ParamNames:      []string{"intercept", "ceasefire", "log_dispersion"},
	}
}

func testChains(run Run) []*mat.Dense {
	chains := make([]*mat.Dense, run.Chains)
	for c := range chains {
		chain := mat.NewDense(run.Draws, len(run.ParamNames), nil)
		for i := 0; i < run.Draws; i++ {
			for j := range run.ParamNames {
				chain.Set(i, j, float64(c*100+i*10+j))
			}
		}
		chains[c] = chain
	}
	return chains
}

func TestOpen_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ceasefire.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.verifyPragma("foreign_keys", "1"))
	require.NoError(t, s.Close())

	// Reopening an existing database is a no-op for the schema.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestObservations_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obs := []series.Observation{
		{Date: day(2023, 6, 1), Count: 4},
		{Date: day(2023, 6, 3), Count: 2}, // gap on June 2
	}
	require.NoError(t, s.UpsertObservations(ctx, obs, "extract.csv"))

	n, err := s.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ReadSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, day(2023, 6, 1), got.Start)
	assert.Equal(t, []int{4, 0, 2}, got.Counts, "missing days come back as zeros")
}

func TestUpsertObservations_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertObservations(ctx, []series.Observation{
		{Date: day(2023, 6, 1), Count: 4},
	}, "v1"))

	// A corrected extract replaces the stored count for the same date.
	require.NoError(t, s.UpsertObservations(ctx, []series.Observation{
		{Date: day(2023, 6, 1), Count: 7},
	}, "v2"))

	got, err := s.ReadSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, got.Counts)

	n, err := s.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "upsert must not duplicate dates")
}

func TestUpsertObservations_RejectsNegativeCount(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertObservations(context.Background(), []series.Observation{
		{Date: day(2023, 6, 1), Count: -1},
	}, "bad")
	assert.Error(t, err)
}

func TestReadSeries_Empty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadSeries(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testRun("run-1", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	run.Seed = math.MaxUint64 // exercises the int64 storage conversion
	chains := testChains(run)
	require.NoError(t, s.WriteRun(ctx, run, chains))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Name, got.Name)
	assert.Equal(t, run.ConfigHash, got.ConfigHash)
	assert.Equal(t, run.ConfigJSON, got.ConfigJSON)
	assert.Equal(t, run.DataFingerprint, got.DataFingerprint)
	assert.Equal(t, run.SpanStart, got.SpanStart)
	assert.Equal(t, run.SpanEnd, got.SpanEnd)
	assert.Equal(t, run.Likelihood, got.Likelihood)
	assert.Equal(t, uint64(math.MaxUint64), got.Seed)
	assert.Equal(t, run.RHatMax, got.RHatMax)
	assert.Equal(t, run.ParamNames, got.ParamNames)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))

	gotChains, err := s.ReadDraws(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotChains, run.Chains)
	for c := range chains {
		assert.True(t, mat.Equal(chains[c], gotChains[c]), "chain %d", c)
	}
}

func TestWriteRun_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testRun("", time.Now())
	err := s.WriteRun(ctx, run, testChains(run))
	assert.Error(t, err, "empty run id")

	run = testRun("run-x", time.Now())
	err = s.WriteRun(ctx, run, testChains(run)[:1])
	assert.Error(t, err, "chain count mismatch")

	run = testRun("run-y", time.Now())
	narrow := []*mat.Dense{
		mat.NewDense(run.Draws, 1, nil),
		mat.NewDense(run.Draws, 1, nil),
	}
	err = s.WriteRun(ctx, run, narrow)
	assert.Error(t, err, "column count mismatch")
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestRun_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := testRun("run-a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := testRun("run-b", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.WriteRun(ctx, older, testChains(older)))
	require.NoError(t, s.WriteRun(ctx, newer, testChains(newer)))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.ID)
	assert.Equal(t, newer.ParamNames, latest.ParamNames)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID, "newest first")
	assert.Equal(t, "run-a", runs[1].ID)
}

func TestLatestRun_TieBreaksOnID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := testRun("run-1", created)
	second := testRun("run-2", created)
	require.NoError(t, s.WriteRun(ctx, first, testChains(first)))
	require.NoError(t, s.WriteRun(ctx, second, testChains(second)))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest.ID)
}

func TestLatestRun_Empty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := testRun("run-del", time.Now().UTC())
	require.NoError(t, s.WriteRun(ctx, run, testChains(run)))
	require.NoError(t, s.DeleteRun(ctx, "run-del"))

	_, err := s.GetRun(ctx, "run-del")
	assert.ErrorIs(t, err, ErrNotFound)

	var drawRows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM draws`).Scan(&drawRows))
	assert.Zero(t, drawRows, "draws must be deleted with their run")

	var paramRows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM run_params`).Scan(&paramRows))
	assert.Zero(t, paramRows, "params must be deleted with their run")
}

func TestDeleteRun_Missing(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.DeleteRun(context.Background(), "nope"))
}
