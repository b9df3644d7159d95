// Package runstore persists run diagnostics to SQLite: one row per run, per
// phase loop of each iteration, and per realization. The store is
// append-mostly and read by the CLI and ad-hoc queries after a run; losing
// it never invalidates the model snapshots on disk.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		started_at    TIMESTAMP,
		completed_at  TIMESTAMP,
		status        TEXT,
		params_json   TEXT
	);
	CREATE TABLE IF NOT EXISTS iterations (
		run_id             TEXT,
		iteration          BIGINT,
		phase              TEXT,
		realizations       BIGINT,
		failures           BIGINT,
		candidate_arrivals BIGINT,
		dropped_arrivals   BIGINT,
		rejected_fraction  DOUBLE,
		clamped_nodes      BIGINT,
		update_norm        DOUBLE,
		mean_residual_norm DOUBLE,
		mean_node_variance DOUBLE,
		duration_ms        BIGINT,
		timestamp          TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, iteration, phase),
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS realizations (
		run_id               TEXT,
		iteration            BIGINT,
		phase                TEXT,
		realization          BIGINT,
		failed               BOOLEAN,
		error                TEXT,
		arrivals             BIGINT,
		prefilter_rejected   BIGINT,
		dropped_rays         BIGINT,
		solver_stop          TEXT,
		solver_iterations    BIGINT,
		residual_norm        DOUBLE,
		normal_residual_norm DOUBLE,
		cond_estimate        DOUBLE,
		perturbation_norm    DOUBLE,
		PRIMARY KEY (run_id, iteration, phase, realization),
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);
`

// Store wraps the diagnostics database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Status      string
	ParamsJSON  string
}

// BeginRun registers a new run and returns its ID.
func (s *Store) BeginRun(params tomo.Params) (string, error) {
	runID := uuid.NewString()
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}
	err = retryOnBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (run_id, started_at, status, params_json) VALUES (?, ?, ?, ?)`,
			runID, time.Now().UTC().Format(time.RFC3339), "running", string(paramsJSON),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("inserting run %s: %w", runID, err)
	}
	return runID, nil
}

// FinishRun marks a run done or failed.
func (s *Store) FinishRun(runID, status string) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			`UPDATE runs SET status = ?, completed_at = ? WHERE run_id = ?`,
			status, time.Now().UTC().Format(time.RFC3339), runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// GetRun returns one run row.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	var rec RunRecord
	var started string
	var completed sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id, started_at, completed_at, status, params_json FROM runs WHERE run_id = ?`,
		runID,
	).Scan(&rec.RunID, &started, &completed, &rec.Status, &rec.ParamsJSON)
	if err != nil {
		return nil, err
	}
	if rec.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if completed.Valid {
		t, err := time.Parse(time.RFC3339, completed.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// RecordIteration writes one phase loop's summary and its per-realization
// rows in a single transaction.
func (s *Store) RecordIteration(runID string, sum tomo.IterationSummary) error {
	err := retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`INSERT INTO iterations (
				run_id, iteration, phase, realizations, failures,
				candidate_arrivals, dropped_arrivals, rejected_fraction,
				clamped_nodes, update_norm, mean_residual_norm,
				mean_node_variance, duration_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, sum.Iteration, string(sum.Phase), sum.Realizations, sum.Failures,
			sum.CandidateArrivals, sum.DroppedArrivals, sum.FilterStats.RejectedFraction(),
			sum.ClampedNodes, sum.UpdateNorm, sum.MeanResidualNorm,
			sum.MeanNodeVariance, sum.Duration.Milliseconds(),
		); err != nil {
			return err
		}

		for _, rs := range sum.RealizationStats {
			stop := ""
			if !rs.Failed {
				stop = rs.Stop.String()
			}
			if _, err := tx.Exec(
				`INSERT INTO realizations (
					run_id, iteration, phase, realization, failed, error,
					arrivals, prefilter_rejected, dropped_rays, solver_stop,
					solver_iterations, residual_norm, normal_residual_norm,
					cond_estimate, perturbation_norm
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, sum.Iteration, string(sum.Phase), rs.Index, rs.Failed, rs.Err,
				rs.Arrivals, rs.PrefilterRejected, rs.DroppedRays, stop,
				rs.SolverIters, rs.ResidualNorm, rs.NormalResidualNorm,
				rs.CondEstimate, rs.PerturbationNorm,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("recording iteration %d %s-phase for run %s: %w", sum.Iteration, sum.Phase, runID, err)
	}
	return nil
}

// IterationRecord is one row of the iterations table.
type IterationRecord struct {
	Iteration         int
	Phase             tomo.Phase
	Realizations      int
	Failures          int
	CandidateArrivals int
	DroppedArrivals   int
	RejectedFraction  float64
	ClampedNodes      int
	UpdateNorm        float64
	MeanResidualNorm  float64
	MeanNodeVariance  float64
	Duration          time.Duration
}

// Iterations returns a run's iteration rows ordered by iteration then phase.
func (s *Store) Iterations(runID string) ([]IterationRecord, error) {
	rows, err := s.db.Query(
		`SELECT iteration, phase, realizations, failures, candidate_arrivals,
			dropped_arrivals, rejected_fraction, clamped_nodes, update_norm,
			mean_residual_norm, mean_node_variance, duration_ms
		FROM iterations WHERE run_id = ? ORDER BY iteration, phase`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var phase string
		var durationMs int64
		if err := rows.Scan(
			&rec.Iteration, &phase, &rec.Realizations, &rec.Failures,
			&rec.CandidateArrivals, &rec.DroppedArrivals, &rec.RejectedFraction,
			&rec.ClampedNodes, &rec.UpdateNorm, &rec.MeanResidualNorm,
			&rec.MeanNodeVariance, &durationMs,
		); err != nil {
			return nil, err
		}
		rec.Phase = tomo.Phase(phase)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RealizationRecord is one row of the realizations table.
type RealizationRecord struct {
	Realization        int
	Failed             bool
	Error              string
	Arrivals           int
	PrefilterRejected  int
	DroppedRays        int
	SolverStop         string
	SolverIterations   int
	ResidualNorm       float64
	NormalResidualNorm float64
	CondEstimate       float64
	PerturbationNorm   float64
}

// Realizations returns the realization rows for one phase loop, ordered by
// realization index.
func (s *Store) Realizations(runID string, iteration int, phase tomo.Phase) ([]RealizationRecord, error) {
	rows, err := s.db.Query(
		`SELECT realization, failed, error, arrivals, prefilter_rejected,
			dropped_rays, solver_stop, solver_iterations, residual_norm,
			normal_residual_norm, cond_estimate, perturbation_norm
		FROM realizations WHERE run_id = ? AND iteration = ? AND phase = ?
		ORDER BY realization`,
		runID, iteration, string(phase),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RealizationRecord
	for rows.Next() {
		var rec RealizationRecord
		if err := rows.Scan(
			&rec.Realization, &rec.Failed, &rec.Error, &rec.Arrivals,
			&rec.PrefilterRejected, &rec.DroppedRays, &rec.SolverStop,
			&rec.SolverIterations, &rec.ResidualNorm, &rec.NormalResidualNorm,
			&rec.CondEstimate, &rec.PerturbationNorm,
		); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
