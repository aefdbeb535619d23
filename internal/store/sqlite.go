package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"

	_ "modernc.org/sqlite"
)

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
	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
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

// --- Workflows ---

// CreateWorkflow stores rec. An existing id is left untouched and
// ErrAlreadyExists is returned.
func (s *SQLiteStore) CreateWorkflow(ctx context.Context, rec *WorkflowRecord) error {
	id := rec.ID.String()
	s.logger.Debug("sql", "op", "insert", "table", "workflows", "id", id)

	specJSON, err := json.Marshal(rec.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, project, domain, name, version, spec, node_count, sub_workflows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, rec.ID.Project, rec.ID.Domain, rec.ID.Name, rec.ID.Version, string(specJSON),
		len(rec.Spec.Template.Nodes), len(rec.Spec.SubWorkflows),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetWorkflow returns the stored workflow, or nil if id is unknown.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, id flow.Identifier) (*WorkflowRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "workflows", "id", id.String())

	var specJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT spec, created_at FROM workflows WHERE id = ?`, id.String(),
	).Scan(&specJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &WorkflowRecord{ID: id}
	if err := json.Unmarshal([]byte(specJSON), &rec.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal spec: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// ListWorkflows returns summaries newest first, optionally filtered by
// project and domain, with the total number of matches.
func (s *SQLiteStore) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.WorkflowSummary, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "workflows", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var conds []string
	var args []any
	if opts.Project != "" {
		conds = append(conds, "project = ?")
		args = append(args, opts.Project)
	}
	if opts.Domain != "" {
		conds = append(conds, "domain = ?")
		args = append(args, opts.Domain)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflows`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, domain, name, version, node_count, sub_workflows, created_at
		 FROM workflows`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.WorkflowSummary
	for rows.Next() {
		var ws model.WorkflowSummary
		var createdAt string
		if err := rows.Scan(&ws.ID, &ws.Project, &ws.Domain, &ws.Name, &ws.Version,
			&ws.NodeCount, &ws.SubWorkflows, &createdAt); err != nil {
			return nil, 0, err
		}
		ws.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &ws)
	}
	return out, total, rows.Err()
}

// --- Tasks ---

// CreateTask stores rec. An existing id is left untouched and
// ErrAlreadyExists is returned.
func (s *SQLiteStore) CreateTask(ctx context.Context, rec *TaskRecord) error {
	id := rec.Template.ID
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", id.String())

	tplJSON, err := json.Marshal(rec.Template)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, project, domain, name, version, task_type, template, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id.String(), id.Project, id.Domain, id.Name, id.Version, rec.Template.Type,
		string(tplJSON), createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetTask returns the stored task, or nil if id is unknown.
func (s *SQLiteStore) GetTask(ctx context.Context, id flow.Identifier) (*TaskRecord, error) {
	s.logger.Debug("sql", "op", "select", "table", "tasks", "id", id.String())

	var tplJSON, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT template, created_at FROM tasks WHERE id = ?`, id.String(),
	).Scan(&tplJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec TaskRecord
	if err := json.Unmarshal([]byte(tplJSON), &rec.Template); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &rec, nil
}
