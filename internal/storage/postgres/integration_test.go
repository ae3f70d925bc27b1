//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/FFD-Group/Tidio-Products/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_sync_runs.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_runs")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestRunStore_Record() {
	store := NewRunStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	run := &domain.SyncRun{
		Kind:          "full",
		StartedAt:     now.Add(-10 * time.Minute),
		FinishedAt:    now,
		TotalProducts: 250,
		TotalBatches:  3,
		SentBatches:   3,
		Success:       true,
	}

	err := store.Record(s.ctx, run)
	s.NoError(err)
	s.Greater(run.ID, int64(0))

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM sync_runs WHERE kind = $1", "full")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestRunStore_RecordIncompleteRun() {
	store := NewRunStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	run := &domain.SyncRun{
		Kind:          "incremental",
		StartedAt:     now.Add(-5 * time.Minute),
		FinishedAt:    now,
		TotalProducts: 250,
		TotalBatches:  3,
		SentBatches:   1,
		UnsentBatches: "1,2",
		RemoteRef:     "manifests/m-1.json",
		Success:       false,
	}

	err := store.Record(s.ctx, run)
	s.NoError(err)

	var got domain.SyncRun
	err = s.db.GetContext(s.ctx, &got, "SELECT * FROM sync_runs WHERE id = $1", run.ID)
	s.NoError(err)
	s.Equal("1,2", got.UnsentBatches)
	s.Equal("manifests/m-1.json", got.RemoteRef)
	s.False(got.Success)
}

func (s *PostgresIntegrationSuite) TestRunStore_LastIncomplete() {
	store := NewRunStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	runs := []*domain.SyncRun{
		{Kind: "full", StartedAt: now.Add(-3 * time.Hour), FinishedAt: now.Add(-3 * time.Hour), Success: true},
		{Kind: "incremental", StartedAt: now.Add(-2 * time.Hour), FinishedAt: now.Add(-2 * time.Hour), Success: false, RemoteRef: "manifests/old.json"},
		{Kind: "incremental", StartedAt: now.Add(-1 * time.Hour), FinishedAt: now.Add(-1 * time.Hour), Success: false, RemoteRef: "manifests/newer.json"},
	}
	for _, run := range runs {
		s.Require().NoError(store.Record(s.ctx, run))
	}

	got, err := store.LastIncomplete(s.ctx)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("manifests/newer.json", got.RemoteRef)
}

func (s *PostgresIntegrationSuite) TestRunStore_LastIncomplete_AllSuccessful() {
	store := NewRunStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	run := &domain.SyncRun{Kind: "full", StartedAt: now, FinishedAt: now, Success: true}
	s.Require().NoError(store.Record(s.ctx, run))

	got, err := store.LastIncomplete(s.ctx)
	s.NoError(err)
	s.Nil(got)
}

func (s *PostgresIntegrationSuite) TestRunStore_RecordFailedRunWithError() {
	store := NewRunStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	run := &domain.SyncRun{
		StartedAt:  now,
		FinishedAt: now,
		Error:      "fetch products: after 3 attempts: unexpected status: 502",
	}
	s.Require().NoError(store.Record(s.ctx, run))

	var got domain.SyncRun
	err := s.db.GetContext(s.ctx, &got, "SELECT * FROM sync_runs WHERE id = $1", run.ID)
	s.NoError(err)
	s.Contains(got.Error, "fetch products")
	s.Empty(got.Kind)
}
