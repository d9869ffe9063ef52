//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"allycheck/internal/types"
)

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("allycheck"),
		tcpostgres.WithUsername("ally"),
		tcpostgres.WithPassword("ally"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	res := sampleResult("pg-1", time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	if err := s.SaveAudit(ctx, &types.AuditRequest{Mode: types.ModeHTML, Content: "<p>"}, res); err != nil {
		t.Fatalf("SaveAudit() error = %v", err)
	}
	got, err := s.GetAudit(ctx, "pg-1")
	if err != nil {
		t.Fatalf("GetAudit() error = %v", err)
	}
	if len(got.Issues) != 2 || got.Metrics.Total != 2 || !got.CreatedAt.Equal(res.CreatedAt) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	list, err := s.ListAudits(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAudits() = %v, %v", list, err)
	}
}
