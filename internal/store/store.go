// Package store persists finished audits in SQLite or PostgreSQL.
//
// The engine writes each successful run once, best-effort. Nothing here is
// read back during a run; reads serve GET /api/audit/{id} and the CLI.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"allycheck/internal/logging"
	"allycheck/internal/types"
)

// ErrNotFound is returned when no audit has the requested id.
var ErrNotFound = errors.New("audit not found")

// Driver names as registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS audits (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	locale TEXT NOT NULL,
	model TEXT NOT NULL,
	content_sha256 TEXT NOT NULL,
	content_bytes INTEGER NOT NULL,
	raw_analysis TEXT NOT NULL,
	metrics TEXT NOT NULL,
	tool_results TEXT NOT NULL,
	sources TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	chunks INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audits_created ON audits(created_at);

CREATE TABLE IF NOT EXISTS audit_issues (
	audit_id TEXT NOT NULL REFERENCES audits(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	criterion TEXT NOT NULL,
	severity TEXT NOT NULL,
	principle TEXT NOT NULL,
	title TEXT NOT NULL,
	issue TEXT NOT NULL,
	PRIMARY KEY (audit_id, position)
);
CREATE INDEX IF NOT EXISTS idx_audit_issues_criterion ON audit_issues(criterion);
`

// SQLStore stores audits through database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Summary is one row of ListAudits.
type Summary struct {
	ID         string             `json:"id"`
	Mode       types.Mode         `json:"mode"`
	Model      string             `json:"model"`
	Metrics    types.AuditMetrics `json:"metrics"`
	DurationMs int64              `json:"duration_ms"`
	CreatedAt  time.Time          `json:"created_at"`
}

// ParseDSN returns the driver and data source name for dsn. postgres:// and
// postgresql:// URLs select PostgreSQL; anything else is a SQLite path, with
// an optional sqlite:// prefix.
func ParseDSN(dsn string) (driver, source string) {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, dsn
	case strings.HasPrefix(lower, "sqlite://"):
		return DriverSQLite, dsn[len("sqlite://"):]
	default:
		return DriverSQLite, dsn
	}
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*SQLStore, error) {
	driver, source := ParseDSN(dsn)
	if source == "" {
		return nil, errors.New("store: empty DSN")
	}

	if driver == DriverSQLite && source != ":memory:" && !strings.HasPrefix(source, "file:") {
		if err := os.MkdirAll(filepath.Dir(source), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer avoids SQLITE_BUSY between concurrent runs.
		db.SetMaxOpenConns(1)
	}

	s, err := New(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Audit store opened (%s)", driver)
	return s, nil
}

// New wraps an open database and ensures the schema exists.
func New(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	s := &SQLStore{db: db, driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveAudit stores a finished audit and its issues in one transaction. The
// audited content itself is not kept; only its digest and size are.
func (s *SQLStore) SaveAudit(ctx context.Context, req *types.AuditRequest, res *types.AuditResult) error {
	timer := logging.StartTimer(logging.CategoryStore, "SaveAudit")
	defer timer.Stop()

	metricsJSON, err := json.Marshal(res.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	traceJSON, err := json.Marshal(nonNil(res.ToolResults))
	if err != nil {
		return fmt.Errorf("marshal tool results: %w", err)
	}
	sourcesJSON, err := json.Marshal(nonNil(res.SourcesConsulted))
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	sum := sha256.Sum256([]byte(req.Content))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO audits
		(id, mode, locale, model, content_sha256, content_bytes, raw_analysis,
		 metrics, tool_results, sources, duration_ms, chunks, iterations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		res.ID, string(req.Mode), string(req.EffectiveLocale()), modelName(req),
		hex.EncodeToString(sum[:]), len(req.Content), res.RawAnalysis,
		string(metricsJSON), string(traceJSON), string(sourcesJSON),
		res.DurationMs, res.Chunks, res.Iterations, res.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", res.ID, err)
	}

	insertIssue := s.rebind(`
		INSERT INTO audit_issues (audit_id, position, criterion, severity, principle, title, issue)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, issue := range res.Issues {
		data, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("marshal issue %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx, insertIssue, res.ID, i, issue.Criterion,
			string(issue.Severity), string(issue.Principle), issue.Title, string(data)); err != nil {
			return fmt.Errorf("insert issue %d of %s: %w", i, res.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit %s: %w", res.ID, err)
	}
	logging.StoreDebug("Stored audit %s with %d issues", res.ID, len(res.Issues))
	return nil
}

// GetAudit loads a stored audit. It returns ErrNotFound for unknown ids.
func (s *SQLStore) GetAudit(ctx context.Context, id string) (*types.AuditResult, error) {
	var (
		res                         types.AuditResult
		metricsJSON, traceJSON, src string
		createdAt                   int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, raw_analysis, metrics, tool_results, sources, duration_ms, chunks, iterations, created_at
		FROM audits WHERE id = ?`), id).
		Scan(&res.ID, &res.RawAnalysis, &metricsJSON, &traceJSON, &src,
			&res.DurationMs, &res.Chunks, &res.Iterations, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query audit %s: %w", id, err)
	}
	res.CreatedAt = time.UnixMilli(createdAt).UTC()

	if err := json.Unmarshal([]byte(metricsJSON), &res.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(traceJSON), &res.ToolResults); err != nil {
		return nil, fmt.Errorf("decode tool results of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(src), &res.SourcesConsulted); err != nil {
		return nil, fmt.Errorf("decode sources of %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT issue FROM audit_issues WHERE audit_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("query issues of %s: %w", id, err)
	}
	defer rows.Close()

	res.Issues = []types.Issue{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var issue types.Issue
		if err := json.Unmarshal([]byte(data), &issue); err != nil {
			return nil, fmt.Errorf("decode issue of %s: %w", id, err)
		}
		res.Issues = append(res.Issues, issue)
	}
	return &res, rows.Err()
}

// ListAudits returns the most recent audits, newest first.
func (s *SQLStore) ListAudits(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, mode, model, metrics, duration_ms, created_at
		FROM audits ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum         Summary
			mode        string
			metricsJSON string
			createdAt   int64
		)
		if err := rows.Scan(&sum.ID, &mode, &sum.Model, &metricsJSON, &sum.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		sum.Mode = types.Mode(mode)
		sum.CreatedAt = time.UnixMilli(createdAt).UTC()
		if err := json.Unmarshal([]byte(metricsJSON), &sum.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics of %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func modelName(req *types.AuditRequest) string {
	name := req.Model
	if name == "" {
		name = "gemini"
	}
	if req.Variant != "" {
		name += "/" + req.Variant
	}
	return name
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
