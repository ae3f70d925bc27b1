package domain

import (
	"fmt"
	"time"
)

// SyncKind distinguishes a full catalog sync from an incremental
// "updated since" sync.
type SyncKind string

const (
	SyncFull        SyncKind = "full"
	SyncIncremental SyncKind = "incremental"
)

// SyncResult summarizes one sync run (fresh or resumed).
type SyncResult struct {
	Kind          SyncKind
	TotalProducts int
	TotalBatches  int
	Sent          int
	// Unsent lists the indices of batches that did not reach the "sent"
	// state, whether they failed delivery or were never attempted.
	Unsent []int
	// RemoteRef is the identifier of the last checkpoint pushed to remote
	// storage. Empty if no remote push happened during the run.
	RemoteRef string
	// Empty reports that the source had nothing to sync. This is a normal
	// outcome, not an error.
	Empty    bool
	Duration time.Duration
}

// Success reports whether every batch ended in the "sent" state.
func (r *SyncResult) Success() bool {
	return len(r.Unsent) == 0
}

// SyncRun is the persisted history row for one run.
type SyncRun struct {
	ID            int64     `db:"id"`
	Kind          string    `db:"kind"`
	StartedAt     time.Time `db:"started_at"`
	FinishedAt    time.Time `db:"finished_at"`
	TotalProducts int       `db:"total_products"`
	TotalBatches  int       `db:"total_batches"`
	SentBatches   int       `db:"sent_batches"`
	UnsentBatches string    `db:"unsent_batches"`
	RemoteRef     string    `db:"remote_ref"`
	Success       bool      `db:"success"`
	Error         string    `db:"error"`
}

// NewSyncRun builds the history row for a finished run.
func NewSyncRun(result *SyncResult, startedAt time.Time, runErr error) *SyncRun {
	run := &SyncRun{
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if result == nil {
		return run
	}

	run.Kind = string(result.Kind)
	run.TotalProducts = result.TotalProducts
	run.TotalBatches = result.TotalBatches
	run.SentBatches = result.Sent
	run.RemoteRef = result.RemoteRef
	run.Success = result.Success() && runErr == nil

	for i, idx := range result.Unsent {
		if i > 0 {
			run.UnsentBatches += ","
		}
		run.UnsentBatches += fmt.Sprintf("%d", idx)
	}
	return run
}
