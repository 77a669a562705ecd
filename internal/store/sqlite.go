package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteBackend struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Backend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	b := &sqliteBackend{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := b.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *sqliteBackend) migrate(ctx context.Context) error {
	sqlText, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, string(sqlText))
	return err
}

func (b *sqliteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *sqliteBackend) LoadJobs(ctx context.Context) ([]Job, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, source, category, priority, cadence, params, last_run, next_run,
		        target_output_count, success_rate, total_runs, enabled
		   FROM jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var (
			j       Job
			cadence string
			params  sql.NullString
			lastRun sql.NullString
			nextRun string
			enabled int
		)
		if err := rows.Scan(&j.ID, &j.Source, &j.Category, &j.Priority, &cadence, &params,
			&lastRun, &nextRun, &j.TargetOutputCount, &j.SuccessRate, &j.TotalRuns, &enabled); err != nil {
			return nil, err
		}
		c, err := ParseCadence(cadence)
		if err != nil {
			// A row written by a newer build; skip rather than refuse startup.
			b.log.Warn("skipping job with unknown cadence", logx.String("job", j.ID), logx.String("cadence", cadence))
			continue
		}
		j.Cadence = c
		j.Enabled = enabled != 0
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &j.Params); err != nil {
				b.log.Warn("job params unreadable", logx.String("job", j.ID), logx.Err(err))
			}
		}
		if lastRun.Valid {
			j.LastRun = parseTimeField(lastRun.String)
		}
		j.NextRun = parseTimeField(nextRun)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) SaveJob(ctx context.Context, j Job) error {
	var params any
	if len(j.Params) > 0 {
		raw, err := json.Marshal(j.Params)
		if err != nil {
			return err
		}
		params = string(raw)
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO jobs(id, source, category, priority, cadence, params, last_run, next_run,
		                  target_output_count, success_rate, total_runs, enabled)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   source=excluded.source, category=excluded.category, priority=excluded.priority,
		   cadence=excluded.cadence, params=excluded.params, last_run=excluded.last_run,
		   next_run=excluded.next_run, target_output_count=excluded.target_output_count,
		   success_rate=excluded.success_rate, total_runs=excluded.total_runs,
		   enabled=excluded.enabled`,
		j.ID, j.Source, j.Category, j.Priority, j.Cadence.String(), params,
		nullTime(j.LastRun), j.NextRun.Format(time.RFC3339Nano),
		j.TargetOutputCount, j.SuccessRate, j.TotalRuns, boolInt(j.Enabled),
	)
	return err
}

func (b *sqliteBackend) DeleteJob(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

func (b *sqliteBackend) AppendResult(ctx context.Context, r ExecutionResult) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO execution_results(job_id, source, category, output_count, duration_ms,
		                               success, error_kind, quality_score, started_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.JobID, r.Source, r.Category, r.OutputCount, r.Duration.Milliseconds(),
		boolInt(r.Success), nullStr(r.ErrorKind), r.QualityScore,
		r.StartedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (b *sqliteBackend) Results(ctx context.Context, jobID string, limit int) ([]ExecutionResult, error) {
	if limit <= 0 {
		limit = recentResultsCap
	}
	q := `SELECT job_id, source, category, output_count, duration_ms, success, error_kind,
	             quality_score, started_at
	        FROM execution_results`
	args := []any{}
	if jobID != "" {
		q += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	q += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExecutionResult
	for rows.Next() {
		var (
			r         ExecutionResult
			durMS     int64
			success   int
			errorKind sql.NullString
			startedAt string
		)
		if err := rows.Scan(&r.JobID, &r.Source, &r.Category, &r.OutputCount, &durMS,
			&success, &errorKind, &r.QualityScore, &startedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		r.Success = success != 0
		if errorKind.Valid {
			r.ErrorKind = errorKind.String
		}
		r.StartedAt = parseTimeField(startedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) SavePerfSnapshot(ctx context.Context, s PerfSnapshot) error {
	at := s.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO performance_snapshots(metric_name, metric_value, timestamp) VALUES(?,?,?)`,
		s.MetricName, s.MetricValue, at.Format(time.RFC3339Nano),
	)
	return err
}

func parseTimeField(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
