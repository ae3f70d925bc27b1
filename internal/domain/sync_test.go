package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncResult_Success(t *testing.T) {
	assert.True(t, (&SyncResult{Sent: 3}).Success())
	assert.True(t, (&SyncResult{Empty: true}).Success())
	assert.False(t, (&SyncResult{Sent: 2, Unsent: []int{1}}).Success())
}

func TestNewSyncRun(t *testing.T) {
	started := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	result := &SyncResult{
		Kind:          SyncFull,
		TotalProducts: 250,
		TotalBatches:  3,
		Sent:          1,
		Unsent:        []int{1, 2},
		RemoteRef:     "manifests/m-1.json",
	}

	run := NewSyncRun(result, started, nil)

	assert.Equal(t, "full", run.Kind)
	assert.Equal(t, started, run.StartedAt)
	assert.False(t, run.FinishedAt.IsZero())
	assert.Equal(t, 250, run.TotalProducts)
	assert.Equal(t, 3, run.TotalBatches)
	assert.Equal(t, 1, run.SentBatches)
	assert.Equal(t, "1,2", run.UnsentBatches)
	assert.Equal(t, "manifests/m-1.json", run.RemoteRef)
	assert.False(t, run.Success)
	assert.Empty(t, run.Error)
}

func TestNewSyncRun_SuccessfulRun(t *testing.T) {
	run := NewSyncRun(&SyncResult{Kind: SyncIncremental, Sent: 2}, time.Now(), nil)

	assert.True(t, run.Success)
	assert.Empty(t, run.UnsentBatches)
}

func TestNewSyncRun_FailedBeforeBatching(t *testing.T) {
	run := NewSyncRun(nil, time.Now(), errors.New("fetch products: boom"))

	assert.Equal(t, "fetch products: boom", run.Error)
	assert.False(t, run.Success)
	assert.Empty(t, run.Kind)
}

func TestNewSyncRun_ErrorOverridesSuccess(t *testing.T) {
	run := NewSyncRun(&SyncResult{Sent: 1}, time.Now(), errors.New("late failure"))

	assert.False(t, run.Success)
	assert.Equal(t, "late failure", run.Error)
}
