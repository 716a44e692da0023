package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lleo5301/sports2-backend-sub005/internal/store"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingRunner struct {
	mu    sync.Mutex
	calls map[int64]string
	fail  map[int64]error
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{calls: map[int64]string{}, fail: map[int64]error{}}
}

func (r *recordingRunner) Sync(_ context.Context, syncType string, teamID int64, _ string) (*syncer.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[teamID] = syncType
	if err := r.fail[teamID]; err != nil {
		return &syncer.Result{}, err
	}
	return &syncer.Result{Created: 2, Updated: 1}, nil
}

func (r *recordingRunner) SyncAll(_ context.Context, teamID int64, _ string) (*syncer.AllResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[teamID] = syncer.TypeFull
	all := &syncer.AllResult{Created: 5, Results: map[string]*syncer.Result{}}
	if err := r.fail[teamID]; err != nil {
		all.Errors = []syncer.StepError{{Sync: "schedule", Message: err.Error()}}
	}
	return all, nil
}

func linkedStore() *store.Memory {
	m := store.NewMemory()
	m.AddTeam(store.Team{ID: 1, Name: "A", ProviderTeamID: "T1"})
	m.AddTeam(store.Team{ID: 2, Name: "B", ProviderTeamID: "T2"})
	m.AddTeam(store.Team{ID: 3, Name: "C", ProviderTeamID: "T3"})
	m.AddTeam(store.Team{ID: 4, Name: "Unlinked"})
	return m
}

func TestScheduledSyncCoversLinkedTeams(t *testing.T) {
	runner := newRecordingRunner()
	runner.fail[2] = errors.New("upstream down")
	runner.fail[3] = syncer.ErrSyncInProgress

	cfg := DefaultConfig()
	cfg.Workers = 3
	res := ScheduledSync(context.Background(), linkedStore(), runner, syncer.TypeLive, cfg, discard)

	assert.Equal(t, 3, res.Teams)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Busy)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "team 2")

	assert.Equal(t, map[int64]string{1: syncer.TypeLive, 2: syncer.TypeLive, 3: syncer.TypeLive}, runner.calls)
}

func TestRunBatchFullSync(t *testing.T) {
	runner := newRecordingRunner()
	runner.fail[2] = errors.New("season missing")

	res := RunBatch(context.Background(), runner, []int64{1, 2}, syncer.TypeFull, "scheduler", 1, discard)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 10, res.Created)
	assert.Contains(t, res.Summary(), "type=full teams=2")
}

func TestRunBatchNoTeams(t *testing.T) {
	res := RunBatch(context.Background(), newRecordingRunner(), nil, syncer.TypeRoster, "scheduler", 4, discard)
	assert.Zero(t, res.Teams)
	assert.Empty(t, res.Results)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	m := linkedStore()

	stuck := &store.SyncLog{TeamID: 1, SyncType: "roster", StartedAt: time.Now().Add(-3 * time.Hour)}
	old := &store.SyncLog{TeamID: 1, SyncType: "schedule", StartedAt: time.Now().Add(-100 * 24 * time.Hour)}
	recent := &store.SyncLog{TeamID: 1, SyncType: "record"}
	for _, l := range []*store.SyncLog{stuck, old, recent} {
		require.NoError(t, m.CreateSyncLog(ctx, l))
	}
	old.Status = store.SyncCompleted
	require.NoError(t, m.FinishSyncLog(ctx, old))

	Cleanup(ctx, m, DefaultConfig(), discard)

	got, err := m.GetSyncLog(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncFailed, got.Status)
	assert.Equal(t, abandonedReason, got.ErrorMessage)

	_, err = m.GetSyncLog(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err = m.GetSyncLog(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncRunning, got.Status)
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Start(ctx, linkedStore(), newRecordingRunner(), Config{CleanupInterval: time.Hour}, discard)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
