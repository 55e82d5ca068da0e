package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/ceasefire/internal/series"
)

// Run is one persisted model fit.
type Run struct {
	ID              string // UUIDv7, assigned by the caller
	CreatedAt       time.Time
	Name            string // analysis name from the config
	ConfigHash      string
	ConfigJSON      string // canonical JSON of the config behind ConfigHash
	DataFingerprint string
	SpanStart       time.Time
	SpanEnd         time.Time
	Likelihood      string
	Chains          int
	Draws           int // kept draws per chain
	BurnIn          int
	Thin            int
	Seed            uint64
	RHatMax         float64
	ESSMin          float64
	MoveRate        float64 // mean across chains
	ParamNames      []string
}

// UpsertObservations writes a series into the observations table inside a
// single transaction. Existing dates are overwritten - re-ingesting a
// corrected extract is the expected workflow, and run records carry data
// fingerprints precisely so this overwrite is detectable.
func (s *Store) UpsertObservations(ctx context.Context, obs []series.Observation, source string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert observations: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (date, count, source)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET count = excluded.count, source = excluded.source
	`)
	if err != nil {
		return fmt.Errorf("upsert observations: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if o.Count < 0 {
			return fmt.Errorf("upsert observations: negative count %d on %s", o.Count, o.Date.Format(series.DateLayout))
		}
		if _, err := stmt.ExecContext(ctx, o.Date.Format(series.DateLayout), o.Count, source); err != nil {
			return fmt.Errorf("upsert observations: %s: %w", o.Date.Format(series.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert observations: commit: %w", err)
	}
	return nil
}

// WriteRun persists a run record, its parameter names, and all chain draws
// in one transaction. Draw vectors are stored as JSON arrays, one row per
// kept iteration per chain.
func (s *Store) WriteRun(ctx context.Context, run Run, chains []*mat.Dense) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty run id")
	}
	if len(chains) != run.Chains {
		return fmt.Errorf("write run: run records %d chains but %d draw matrices given", run.Chains, len(chains))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, name, config_hash, config_json, data_fingerprint, span_start, span_end,
		 likelihood, chains, draws, burnin, thin, seed, rhat_max, ess_min, move_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.Name,
		run.ConfigHash,
		run.ConfigJSON,
		run.DataFingerprint,
		run.SpanStart.Format(series.DateLayout),
		run.SpanEnd.Format(series.DateLayout),
		run.Likelihood,
		run.Chains,
		run.Draws,
		run.BurnIn,
		run.Thin,
		int64(run.Seed),
		run.RHatMax,
		run.ESSMin,
		run.MoveRate,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	paramStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_params (run_id, idx, name) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare params: %w", err)
	}
	defer paramStmt.Close()

	for i, name := range run.ParamNames {
		if _, err := paramStmt.ExecContext(ctx, run.ID, i, name); err != nil {
			return fmt.Errorf("write run: param %q: %w", name, err)
		}
	}

	drawStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO draws (run_id, chain, iteration, params) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write run: prepare draws: %w", err)
	}
	defer drawStmt.Close()

	for c, chain := range chains {
		rows, cols := chain.Dims()
		if cols != len(run.ParamNames) {
			return fmt.Errorf("write run: chain %d has %d columns, expected %d", c, cols, len(run.ParamNames))
		}
		vec := make([]float64, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				vec[j] = chain.At(i, j)
			}
			params, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("write run: marshal draw: %w", err)
			}
			if _, err := drawStmt.ExecContext(ctx, run.ID, c, i, string(params)); err != nil {
				return fmt.Errorf("write run: chain %d iteration %d: %w", c, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// DeleteRun removes a run and (via cascade) its params and draws.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete run: no run with id %s", id)
	}
	return nil
}
