package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
)

// TeamResult is the outcome of one team's run within a batch.
type TeamResult struct {
	TeamID   int64
	Created  int
	Updated  int
	Failed   int
	Skipped  bool // another sync held the team's lock
	Error    string
	Duration time.Duration
}

// BatchResult tracks the outcome of a batch run.
type BatchResult struct {
	SyncType  string
	Teams     int
	Succeeded int
	Failed    int
	Busy      int
	Created   int
	Updated   int
	Duration  time.Duration
	Errors    []string
	Results   []TeamResult
}

// Summary returns a human-readable summary.
func (r *BatchResult) Summary() string {
	return fmt.Sprintf(
		"type=%s teams=%d succeeded=%d failed=%d busy=%d created=%d updated=%d dur=%s",
		r.SyncType, r.Teams, r.Succeeded, r.Failed, r.Busy,
		r.Created, r.Updated, r.Duration.Round(time.Second))
}

// RunBatch runs syncType for each team on a bounded worker pool. Teams
// are independent: one team's failure never stops the others. A team whose
// lock is held is counted as busy.
func RunBatch(ctx context.Context, runner Runner, teamIDs []int64, syncType, userID string, workers int, logger *slog.Logger) BatchResult {
	start := time.Now()
	result := BatchResult{SyncType: syncType, Teams: len(teamIDs)}
	if len(teamIDs) == 0 {
		logger.Info("No linked teams to sync", "type", syncType)
		return result
	}

	if workers < 1 {
		workers = 1
	}
	if workers > len(teamIDs) {
		workers = len(teamIDs)
	}

	ch := make(chan int64, len(teamIDs))
	for _, id := range teamIDs {
		ch <- id
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for teamID := range ch {
				if ctx.Err() != nil {
					return
				}
				tr := runTeam(ctx, runner, teamID, syncType, userID)

				mu.Lock()
				result.Results = append(result.Results, tr)
				result.Created += tr.Created
				result.Updated += tr.Updated
				switch {
				case tr.Skipped:
					result.Busy++
				case tr.Error != "":
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("team %d: %s", teamID, tr.Error))
				default:
					result.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	result.Duration = time.Since(start)

	logger.Info("Scheduled sync complete", "summary", result.Summary())
	return result
}

func runTeam(ctx context.Context, runner Runner, teamID int64, syncType, userID string) TeamResult {
	start := time.Now()
	tr := TeamResult{TeamID: teamID}

	var err error
	if syncType == syncer.TypeFull {
		var all *syncer.AllResult
		all, err = runner.SyncAll(ctx, teamID, userID)
		if all != nil {
			tr.Created, tr.Updated, tr.Failed = all.Created, all.Updated, all.Failed
			if err == nil && len(all.Errors) > 0 {
				err = fmt.Errorf("%d synchronizer(s) failed, first %s: %s",
					len(all.Errors), all.Errors[0].Sync, all.Errors[0].Message)
			}
		}
	} else {
		var res *syncer.Result
		res, err = runner.Sync(ctx, syncType, teamID, userID)
		if res != nil {
			tr.Created, tr.Updated, tr.Failed = res.Created, res.Updated, res.Failed()
		}
	}

	switch {
	case errors.Is(err, syncer.ErrSyncInProgress):
		tr.Skipped = true
	case err != nil:
		tr.Error = err.Error()
	}
	tr.Duration = time.Since(start)
	return tr
}
