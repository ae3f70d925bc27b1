package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/FFD-Group/Tidio-Products/internal/domain"
)

// RunStore keeps a history of sync runs. Its main operational value is
// holding the remote checkpoint reference of a partially failed run so the
// resume command has something to point at after the process is gone.
type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Record(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (
			kind, started_at, finished_at, total_products, total_batches,
			sent_batches, unsent_batches, remote_ref, success, error
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id`

	return s.db.QueryRowContext(ctx, query,
		run.Kind,
		run.StartedAt,
		run.FinishedAt,
		run.TotalProducts,
		run.TotalBatches,
		run.SentBatches,
		run.UnsentBatches,
		run.RemoteRef,
		run.Success,
		run.Error,
	).Scan(&run.ID)
}

// LastIncomplete returns the most recent unsuccessful run, or nil when
// every recorded run succeeded.
func (s *RunStore) LastIncomplete(ctx context.Context) (*domain.SyncRun, error) {
	var run domain.SyncRun
	query := `
		SELECT id, kind, started_at, finished_at, total_products, total_batches,
		       sent_batches, unsent_batches, remote_ref, success, error
		FROM sync_runs
		WHERE success = false
		ORDER BY finished_at DESC
		LIMIT 1`

	err := s.db.GetContext(ctx, &run, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
