package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/coresim/pkg/model"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Pragmas are per connection, and every connection to ":memory:" is its
	// own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	workloadJSON, err := json.Marshal(run.Workload)
	if err != nil {
		return fmt.Errorf("marshal workload: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, policy, outcome, ticks, cores, hold, workload, result, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Policy), string(run.Outcome), run.Ticks, run.Cores, run.Hold,
		string(workloadJSON), string(resultJSON), run.DurationMS,
		run.CreatedAt.UTC().Format(timeFormat),
	)
	return err
}

const runColumns = `id, policy, outcome, ticks, cores, hold, workload, result, duration_ms, created_at`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var (
		where []string
		args  []any
	)
	if opts.Policy != "" {
		where = append(where, "policy = ?")
		args = append(args, strings.ToUpper(opts.Policy))
	}
	if opts.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, opts.Outcome)
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+filter, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs`+filter+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var policy, outcome, workloadJSON, resultJSON, createdAt string

	if err := row.Scan(&run.ID, &policy, &outcome, &run.Ticks, &run.Cores, &run.Hold,
		&workloadJSON, &resultJSON, &run.DurationMS, &createdAt); err != nil {
		return nil, err
	}
	run.Policy = model.Policy(policy)
	run.Outcome = model.Outcome(outcome)
	if err := json.Unmarshal([]byte(workloadJSON), &run.Workload); err != nil {
		return nil, fmt.Errorf("unmarshal workload: %w", err)
	}
	if resultJSON != "" && resultJSON != "null" {
		run.Result = &model.Result{}
		if err := json.Unmarshal([]byte(resultJSON), run.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &run, nil
}

// --- Tick trace ---

// AppendTicks stores snapshots in one transaction.
func (s *SQLiteStore) AppendTicks(ctx context.Context, runID string, ticks []model.TickSnapshot) error {
	s.logger.Debug("sql", "op", "insert", "table", "ticks", "run_id", runID, "count", len(ticks))
	if len(ticks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ticks (run_id, tick, snapshot) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range ticks {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal tick %d: %w", snap.Tick, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, snap.Tick, string(data)); err != nil {
			return fmt.Errorf("insert tick %d: %w", snap.Tick, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListTicks(ctx context.Context, runID string, opts model.ListOptions) ([]model.TickSnapshot, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "ticks", "run_id", runID, "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks WHERE run_id = ?`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot FROM ticks WHERE run_id = ? ORDER BY tick LIMIT ? OFFSET ?`,
		runID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ticks []model.TickSnapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, 0, err
		}
		var snap model.TickSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, 0, fmt.Errorf("unmarshal tick: %w", err)
		}
		ticks = append(ticks, snap)
	}
	return ticks, total, rows.Err()
}
