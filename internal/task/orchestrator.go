package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/datapull/fetchtozip/internal/events"
	"github.com/datapull/fetchtozip/internal/export"
	"github.com/datapull/fetchtozip/internal/fetch"
	"github.com/datapull/fetchtozip/internal/table"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Options tune orchestrator behavior.
type Options struct {
	// TmpRoot is the directory under which each task gets an exclusive
	// working directory (<TmpRoot>/<task_id>/).
	TmpRoot string

	// MaxConcurrent bounds the number of pipelines executing at once.
	// Additional tasks queue in Pending until a slot frees (default 4).
	MaxConcurrent int64

	// RunTimeout bounds one pipeline run end to end (default 10m).
	RunTimeout time.Duration

	// Retention is how long terminal task records and their working
	// directories are kept before the sweeper removes them (default 24h).
	Retention time.Duration

	// SweepInterval is how often the retention sweeper runs (default 1h).
	SweepInterval time.Duration
}

// runningTask is the live, orchestrator-owned record for one task.
// The embedded mutex serializes every read and write of the task snapshot,
// and terminal transitions commit atomically under it.
type runningTask struct {
	mu     sync.Mutex
	task   Task
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator owns all tasks and their background execution.
type Orchestrator struct {
	fetcher *fetch.Fetcher
	bus     *events.Bus
	opts    Options
	sem     *semaphore.Weighted

	mu    sync.RWMutex
	tasks map[string]*runningTask
}

// NewOrchestrator creates an orchestrator publishing status events on bus.
func NewOrchestrator(fetcher *fetch.Fetcher, bus *events.Bus, opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Hour
	}
	if opts.TmpRoot == "" {
		opts.TmpRoot = filepath.Join(os.TempDir(), "fetchtozip")
	}

	return &Orchestrator{
		fetcher: fetcher,
		bus:     bus,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		tasks:   make(map[string]*runningTask),
	}
}

// Start allocates a new task, snapshots cfg and specs, and schedules the
// pipeline on a background goroutine. It returns the task id immediately;
// progress is observable via Status and Subscribe.
//
// Validation failures (a malformed source descriptor, an unknown format)
// are returned synchronously; all later errors surface only through the
// task record.
func (o *Orchestrator) Start(cfg Config, specs []table.ColumnSpec) (string, error) {
	if err := cfg.Source.Validate(); err != nil {
		return "", err
	}
	if cfg.Format == "" {
		cfg.Format = export.FormatCSV
	}
	if _, err := export.ParseFormat(string(cfg.Format)); err != nil {
		return "", err
	}

	id := uuid.New().String()

	root := cfg.WorkDir
	if root == "" {
		root = o.opts.TmpRoot
	}
	workDir := filepath.Join(root, id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create working directory: %w", err)
	}

	// Independent of the caller's request context: the pipeline outlives
	// the HTTP request that started it.
	runCtx, cancel := context.WithTimeout(context.Background(), o.opts.RunTimeout)

	now := time.Now()
	snapshot := make([]table.ColumnSpec, len(specs))
	copy(snapshot, specs)

	rt := &runningTask{
		task: Task{
			ID:        id,
			State:     StatePending,
			WorkDir:   workDir,
			CreatedAt: now,
			UpdatedAt: now,
			Config:    cfg,
			Specs:     snapshot,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	o.mu.Lock()
	o.tasks[id] = rt
	o.mu.Unlock()

	slog.Info("task started", "task_id", id, "format", cfg.Format, "specs", len(snapshot))
	go o.run(runCtx, rt)

	return id, nil
}

// run executes one pipeline. Every stage checks the task context so
// cancellation and the run timeout take effect between stages; the stages
// themselves take the context for their own blocking work.
func (o *Orchestrator) run(ctx context.Context, rt *runningTask) {
	defer rt.cancel()
	defer close(rt.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in task pipeline", "task_id", rt.task.ID, "panic", r)
			o.commitTerminal(rt, StateFailed, fmt.Sprintf("internal error: %v", r), "")
		}
	}()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.finishErr(rt, ctx, err)
		return
	}
	defer o.sem.Release(1)

	if !o.advance(rt, StateRunning, 0, "fetching source data") {
		return
	}

	tbl, err := o.fetcher.Fetch(ctx, rt.task.Config.Source)
	if err != nil {
		o.finishErr(rt, ctx, err)
		return
	}
	if !o.advance(rt, StateRunning, 50, "applying column transformations") {
		return
	}

	out, err := table.Apply(tbl, rt.task.Specs)
	if err != nil {
		o.finishErr(rt, ctx, err)
		return
	}
	if !o.advance(rt, StateRunning, 90, "writing artifact") {
		return
	}

	// Last cancellation point before the export commit; past here the task
	// completes even if a cancel request races in.
	if ctx.Err() != nil {
		o.finishErr(rt, ctx, ctx.Err())
		return
	}

	var path string
	if rt.task.Config.Format == export.FormatZip {
		path, err = export.WriteZip(out, rt.task.Config.ZipInner, rt.task.WorkDir, rt.task.ID)
	} else {
		path, err = export.Write(out, rt.task.Config.Format, rt.task.WorkDir, rt.task.ID)
	}
	if err != nil {
		o.finishErr(rt, ctx, err)
		return
	}

	if o.commitTerminal(rt, StateCompleted, "", path) {
		slog.Info("task completed", "task_id", rt.task.ID, "artifact", path)
	}
}

// advance moves the task to state/progress and publishes the change.
// Returns false without touching the record if the task is already
// terminal (a cancel committed first).
func (o *Orchestrator) advance(rt *runningTask, state State, progress int, message string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.task.State.Terminal() {
		return false
	}
	rt.task.State = state
	if progress > rt.task.Progress {
		rt.task.Progress = progress
	}
	rt.task.UpdatedAt = time.Now()
	o.publishLocked(rt, message)
	return true
}

// finishErr commits the terminal state for a failed or cancelled run.
func (o *Orchestrator) finishErr(rt *runningTask, ctx context.Context, err error) {
	state := StateFailed
	detail := err.Error()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		state = StateCancelled
		detail = "cancelled by caller"
	}

	if o.commitTerminal(rt, state, detail, "") && state == StateFailed {
		slog.Warn("task failed", "task_id", rt.task.ID, "error", detail)
	}
}

// commitTerminal atomically commits a terminal transition. The first
// terminal transition wins; later attempts (a cancel racing a completion,
// or vice versa) are no-ops. Returns whether this call committed.
func (o *Orchestrator) commitTerminal(rt *runningTask, state State, detail, artifact string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.task.State.Terminal() {
		return false
	}
	rt.task.State = state
	rt.task.Error = detail
	rt.task.ArtifactPath = artifact
	if state == StateCompleted {
		rt.task.Progress = 100
	}
	rt.task.UpdatedAt = time.Now()

	message := detail
	if state == StateCompleted {
		message = "artifact ready"
	}
	o.publishLocked(rt, message)
	o.bus.CloseTopic(rt.task.ID)
	return true
}

// publishLocked emits a status event for the current record state.
// Callers hold rt.mu; publication is non-blocking by bus contract.
func (o *Orchestrator) publishLocked(rt *runningTask, message string) {
	o.bus.Publish(events.StatusEvent{
		TaskID:    rt.task.ID,
		State:     string(rt.task.State),
		Progress:  rt.task.Progress,
		Message:   message,
		Timestamp: rt.task.UpdatedAt,
	})
}

// Cancel requests cooperative cancellation. For a Pending or Running task
// it cancels the pipeline context and returns nil; the task transitions to
// Cancelled once the background unit acknowledges. For a terminal task it
// returns ErrTaskTerminal, and for an unknown id ErrNotFound.
func (o *Orchestrator) Cancel(id string) error {
	rt, ok := o.lookup(id)
	if !ok {
		return ErrNotFound
	}

	rt.mu.Lock()
	terminal := rt.task.State.Terminal()
	rt.mu.Unlock()
	if terminal {
		return ErrTaskTerminal
	}

	slog.Info("task cancellation requested", "task_id", id)
	rt.cancel()
	return nil
}

// Status returns a snapshot of the task record.
func (o *Orchestrator) Status(id string) (Task, error) {
	rt, ok := o.lookup(id)
	if !ok {
		return Task{}, ErrNotFound
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.snapshotLocked(), nil
}

// Result returns the artifact path of a completed task. It fails with
// ErrNotReady while the task is still in flight or ended without an
// artifact, and ErrNotFound for unknown ids.
func (o *Orchestrator) Result(id string) (string, error) {
	rt, ok := o.lookup(id)
	if !ok {
		return "", ErrNotFound
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.task.State != StateCompleted {
		return "", ErrNotReady
	}
	return rt.task.ArtifactPath, nil
}

// Subscribe opens an independent status event stream for one task. For a
// live task the stream is seeded with the current state so a late
// subscriber starts from the truth; for a terminal task it delivers the
// terminal event once and closes. The returned cancel function releases
// the subscription.
func (o *Orchestrator) Subscribe(id string) (<-chan events.StatusEvent, func(), error) {
	rt, ok := o.lookup(id)
	if !ok {
		return nil, nil, ErrNotFound
	}

	// Holding rt.mu excludes a concurrent terminal commit, which publishes
	// and closes the topic under the same lock.
	rt.mu.Lock()
	defer rt.mu.Unlock()

	current := events.StatusEvent{
		TaskID:    rt.task.ID,
		State:     string(rt.task.State),
		Progress:  rt.task.Progress,
		Message:   rt.task.Error,
		Timestamp: rt.task.UpdatedAt,
	}

	if rt.task.State.Terminal() {
		ch := make(chan events.StatusEvent, 1)
		ch <- current
		close(ch)
		return ch, func() {}, nil
	}

	ch, cancel := o.bus.Subscribe(id, 16, current)
	return ch, cancel, nil
}

// Wait blocks until the task's background unit finishes, for tests and
// graceful shutdown.
func (o *Orchestrator) Wait(id string) error {
	rt, ok := o.lookup(id)
	if !ok {
		return ErrNotFound
	}
	<-rt.done
	return nil
}

// List returns snapshots of all known tasks.
func (o *Orchestrator) List() []Task {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Task, 0, len(o.tasks))
	for _, rt := range o.tasks {
		rt.mu.Lock()
		out = append(out, rt.snapshotLocked())
		rt.mu.Unlock()
	}
	return out
}

func (o *Orchestrator) lookup(id string) (*runningTask, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rt, ok := o.tasks[id]
	return rt, ok
}

// snapshotLocked copies the task record. Caller holds rt.mu.
func (rt *runningTask) snapshotLocked() Task {
	snap := rt.task
	snap.Specs = make([]table.ColumnSpec, len(rt.task.Specs))
	copy(snap.Specs, rt.task.Specs)
	return snap
}
