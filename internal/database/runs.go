package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// RunsTable stores one row per pipeline run.
const RunsTable = "pipeline_runs"

// DefaultRunLimit caps ListRuns when no positive limit is given.
const DefaultRunLimit = 50

// DB is the subset of pgxpool.Pool used by History.
type DB interface {
	Querier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// History persists run summaries to pipeline_runs.
type History struct {
	db DB
	sb squirrel.StatementBuilderType
}

// NewHistory creates a History backed by db.
func NewHistory(db DB) *History {
	return &History{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Record inserts s, or overwrites the row with the same run id.
func (h *History) Record(ctx context.Context, s *pipeline.Summary) error {
	query, args, err := h.insertRun(s)
	if err != nil {
		return fmt.Errorf("build insert run: %w", err)
	}

	if _, err := h.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", s.RunID, err)
	}
	return nil
}

func (h *History) insertRun(s *pipeline.Summary) (string, []any, error) {
	tables, err := json.Marshal(s.Tables)
	if err != nil {
		return "", nil, err
	}
	events := s.Events
	if events == nil {
		events = []core.Event{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return "", nil, err
	}

	return h.sb.Insert(RunsTable).
		Columns("id", "started_at", "finished_at", "status", "error", "warnings", "tables", "events").
		Values(
			s.RunID,
			s.StartedAt,
			s.FinishedAt,
			string(s.Status),
			pgtype.Text{String: s.Error, Valid: s.Error != ""},
			s.Warnings,
			string(tables),
			string(eventsJSON),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			warnings = EXCLUDED.warnings,
			tables = EXCLUDED.tables,
			events = EXCLUDED.events`).
		ToSql()
}

// ListRuns returns the most recent runs, newest first. Events are not loaded.
func (h *History) ListRuns(ctx context.Context, limit int) ([]*pipeline.Summary, error) {
	query, args, err := h.selectRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("build list runs: %w", err)
	}

	rows, err := h.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return runs, nil
}

func (h *History) selectRuns(limit int) (string, []any, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	return h.sb.Select("id", "started_at", "finished_at", "status", "error", "warnings", "tables").
		From(RunsTable).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
}

func scanRun(row pgx.CollectableRow) (*pipeline.Summary, error) {
	var (
		s      pipeline.Summary
		status string
		errMsg pgtype.Text
		tables []byte
	)
	if err := row.Scan(&s.RunID, &s.StartedAt, &s.FinishedAt, &status, &errMsg, &s.Warnings, &tables); err != nil {
		return nil, err
	}

	s.Status = pipeline.Status(status)
	s.Error = errMsg.String
	if err := json.Unmarshal(tables, &s.Tables); err != nil {
		return nil, fmt.Errorf("decode tables of run %s: %w", s.RunID, err)
	}
	return &s, nil
}
