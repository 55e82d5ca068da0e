package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/ceasefire/internal/series"
)

// ErrNotFound is returned when a requested run or series does not exist.
var ErrNotFound = errors.New("not found")

// ReadSeries loads all observations as a dense daily series.
// Gaps between stored dates come back as explicit zeros via the series
// zero-fill invariant.
func (s *Store) ReadSeries(ctx context.Context) (*series.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, count FROM observations ORDER BY date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}
	defer rows.Close()

	var obs []series.Observation
	for rows.Next() {
		var dateStr string
		var count int
		if err := rows.Scan(&dateStr, &count); err != nil {
			return nil, fmt.Errorf("read series: scan: %w", err)
		}
		date, err := series.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("read series: %w", err)
		}
		obs = append(obs, series.Observation{Date: date, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("read series: %w: no observations ingested", ErrNotFound)
	}

	out, err := series.FromObservations(obs)
	if err != nil {
		return nil, fmt.Errorf("read series: %w", err)
	}
	return out, nil
}

// CountObservations returns the number of stored observation rows.
func (s *Store) CountObservations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return n, nil
}

// GetRun loads one run record by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, name, config_hash, config_json, data_fingerprint, span_start, span_end,
		       likelihood, chains, draws, burnin, thin, seed, rhat_max, ess_min, move_rate
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	run.ParamNames, err = s.readParamNames(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun loads the most recently created run.
// Creation timestamps break ties by id so the choice is deterministic.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, name, config_hash, config_json, data_fingerprint, span_start, span_end,
		       likelihood, chains, draws, burnin, thin, seed, rhat_max, ess_min, move_rate
		FROM runs ORDER BY created_at DESC, id DESC LIMIT 1
	`)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	run.ParamNames, err = s.readParamNames(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, name, config_hash, config_json, data_fingerprint, span_start, span_end,
		       likelihood, chains, draws, burnin, thin, seed, rhat_max, ess_min, move_rate
		FROM runs ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadDraws reconstructs the per-chain draw matrices of a run.
func (s *Store) ReadDraws(ctx context.Context, runID string) ([]*mat.Dense, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	nParams := len(run.ParamNames)

	rows, err := s.db.QueryContext(ctx, `
		SELECT chain, iteration, params FROM draws
		WHERE run_id = ?
		ORDER BY chain ASC, iteration ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read draws: %w", err)
	}
	defer rows.Close()

	chains := make([]*mat.Dense, run.Chains)
	for c := range chains {
		chains[c] = mat.NewDense(run.Draws, nParams, nil)
	}

	for rows.Next() {
		var chain, iteration int
		var paramsJSON string
		if err := rows.Scan(&chain, &iteration, &paramsJSON); err != nil {
			return nil, fmt.Errorf("read draws: scan: %w", err)
		}
		if chain < 0 || chain >= run.Chains {
			return nil, fmt.Errorf("read draws: chain %d out of range for run with %d chains", chain, run.Chains)
		}
		if iteration < 0 || iteration >= run.Draws {
			return nil, fmt.Errorf("read draws: iteration %d out of range for run with %d draws", iteration, run.Draws)
		}

		var vec []float64
		if err := json.Unmarshal([]byte(paramsJSON), &vec); err != nil {
			return nil, fmt.Errorf("read draws: unmarshal chain %d iteration %d: %w", chain, iteration, err)
		}
		if len(vec) != nParams {
			return nil, fmt.Errorf("read draws: chain %d iteration %d has %d values, expected %d", chain, iteration, len(vec), nParams)
		}
		chains[chain].SetRow(iteration, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read draws: %w", err)
	}
	return chains, nil
}

func (s *Store) readParamNames(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM run_params WHERE run_id = ? ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read param names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read param names: scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read param names: %w", err)
	}
	return names, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var createdAt, spanStart, spanEnd string
	var seed int64

	err := row.Scan(
		&run.ID, &createdAt, &run.Name, &run.ConfigHash, &run.ConfigJSON, &run.DataFingerprint,
		&spanStart, &spanEnd, &run.Likelihood,
		&run.Chains, &run.Draws, &run.BurnIn, &run.Thin, &seed,
		&run.RHatMax, &run.ESSMin, &run.MoveRate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Seed = uint64(seed)
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("scan run: created_at: %w", err)
	}
	if run.SpanStart, err = series.ParseDate(spanStart); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if run.SpanEnd, err = series.ParseDate(spanEnd); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
