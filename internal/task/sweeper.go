package task

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// StartRetentionSweeper runs a background loop that removes terminal task
// records, and their working directories, once they are older than the
// configured retention. This keeps artifacts and task records from
// accumulating unbounded. The sweeper stops when ctx is cancelled.
func (o *Orchestrator) StartRetentionSweeper(ctx context.Context) {
	slog.Info("retention sweeper started",
		"retention", o.opts.Retention,
		"interval", o.opts.SweepInterval,
	)

	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			o.sweepExpired(time.Now())
		}
	}
}

// sweepExpired removes tasks that reached a terminal state before
// now minus the retention window.
func (o *Orchestrator) sweepExpired(now time.Time) {
	cutoff := now.Add(-o.opts.Retention)

	var expired []*runningTask
	o.mu.Lock()
	for id, rt := range o.tasks {
		rt.mu.Lock()
		gone := rt.task.State.Terminal() && rt.task.UpdatedAt.Before(cutoff)
		rt.mu.Unlock()
		if gone {
			delete(o.tasks, id)
			expired = append(expired, rt)
		}
	}
	o.mu.Unlock()

	for _, rt := range expired {
		if err := os.RemoveAll(rt.task.WorkDir); err != nil {
			slog.Warn("failed to remove task working directory",
				"task_id", rt.task.ID, "dir", rt.task.WorkDir, "error", err)
			continue
		}
		slog.Debug("task record swept", "task_id", rt.task.ID)
	}
}
