package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"allycheck/internal/types"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "audits.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id string, created time.Time) *types.AuditResult {
	conf := 0.9
	return &types.AuditResult{
		ID: id,
		Issues: []types.Issue{
			{Criterion: "1.1.1", CriterionName: "Non-text Content", Level: types.LevelA, Principle: types.PrinciplePerceivable,
				Title: "Logo lacks alt", Description: "The logo image has no alt attribute.", Severity: types.SeverityCritical,
				Source: types.SourceAutomated, Sources: []types.DetectionSource{types.SourceAutomated, types.SourceHeuristic},
				Selector: "img.logo", Confidence: &conf},
			{Criterion: "2.4.7", Principle: types.PrincipleOperable, Title: "Focus hidden", Severity: types.SeverityModerate,
				Source: types.SourceHeuristic, Chunk: 1},
		},
		Metrics:     types.AuditMetrics{Total: 2, Critical: 1, Moderate: 1, Perceivable: 1, Operable: 1},
		RawAnalysis: "analysis text",
		ToolResults: []types.ToolTrace{
			{Name: "analyze_html", Args: map[string]any{"html": "<img>"}, Output: "1 violation",
				StartedAt: created.Add(-time.Second).UTC(), DurationMs: 120, Iteration: 1},
		},
		SourcesConsulted: []string{"analyze_html"},
		DurationMs:       2300,
		Chunks:           2,
		Iterations:       1,
		CreatedAt:        created,
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		dsn, driver, source string
	}{
		{"audits.db", DriverSQLite, "audits.db"},
		{"sqlite:///var/lib/ally.db", DriverSQLite, "/var/lib/ally.db"},
		{"file:test.db?mode=memory", DriverSQLite, "file:test.db?mode=memory"},
		{"postgres://u:p@localhost/ally?sslmode=disable", DriverPostgres, "postgres://u:p@localhost/ally?sslmode=disable"},
		{"PostgreSQL://localhost/ally", DriverPostgres, "PostgreSQL://localhost/ally"},
	}
	for _, tt := range tests {
		driver, source := ParseDSN(tt.dsn)
		if driver != tt.driver || source != tt.source {
			t.Errorf("ParseDSN(%q) = (%q, %q), want (%q, %q)", tt.dsn, driver, source, tt.driver, tt.source)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind() = %q", got)
	}
	lite := &SQLStore{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind() = %q", got)
	}
}

func TestSaveAndGetAudit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	want := sampleResult("audit-1", created)
	req := &types.AuditRequest{Mode: types.ModeHTML, Content: "<img class=logo>", Variant: "pro"}

	if err := s.SaveAudit(ctx, req, want); err != nil {
		t.Fatalf("SaveAudit() error = %v", err)
	}
	got, err := s.GetAudit(ctx, "audit-1")
	if err != nil {
		t.Fatalf("GetAudit() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetAudit() mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAuditWithoutIssues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	res := &types.AuditResult{ID: "empty", CreatedAt: time.UnixMilli(1000).UTC()}
	if err := s.SaveAudit(ctx, &types.AuditRequest{Mode: types.ModeURL, Content: "https://example.se"}, res); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAudit(ctx, "empty")
	if err != nil {
		t.Fatal(err)
	}
	if got.Issues == nil || len(got.Issues) != 0 || got.ToolResults == nil || got.SourcesConsulted == nil {
		t.Errorf("empty collections should load as empty, got %+v", got)
	}
}

func TestSaveAuditDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	req := &types.AuditRequest{Mode: types.ModeHTML, Content: "<p>"}
	res := sampleResult("dup", time.Now().UTC())
	if err := s.SaveAudit(ctx, req, res); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAudit(ctx, req, res); err == nil {
		t.Fatal("second save with the same id should fail")
	}

	// The failed transaction must not leave extra issue rows behind.
	got, err := s.GetAudit(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Issues) != 2 {
		t.Errorf("issues = %d, want 2", len(got.Issues))
	}
}

func TestGetAuditNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAudit(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAudit() error = %v, want ErrNotFound", err)
	}
}

func TestListAudits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		req := &types.AuditRequest{Mode: types.ModeSnippet, Content: id}
		if err := s.SaveAudit(ctx, req, sampleResult(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListAudits(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, sum := range list {
		ids = append(ids, sum.ID)
	}
	if diff := cmp.Diff([]string{"new", "mid"}, ids); diff != "" {
		t.Errorf("ListAudits order (-want +got):\n%s", diff)
	}
	if list[0].Mode != types.ModeSnippet || list[0].Model != "gemini" || list[0].Metrics.Total != 2 {
		t.Errorf("summary = %+v", list[0])
	}
}

func TestOpenReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audits.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAudit(ctx, &types.AuditRequest{Mode: types.ModeHTML, Content: "x"}, sampleResult("kept", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, "sqlite://"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.GetAudit(ctx, "kept"); err != nil {
		t.Errorf("audit lost across reopen: %v", err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), nil, "mysql"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
