// Package task owns the export task lifecycle: it accepts processing
// requests, runs fetch -> transform -> export as cancellable background
// work, records per-task status and progress, and fans out status-change
// events to subscribers.
//
// Tasks are owned exclusively by the Orchestrator for their whole life;
// callers only ever hold a task id and read snapshots.
package task

import (
	"errors"
	"time"

	"github.com/datapull/fetchtozip/internal/export"
	"github.com/datapull/fetchtozip/internal/fetch"
	"github.com/datapull/fetchtozip/internal/table"
)

// State is a task lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition can occur from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Sentinel errors returned by orchestrator operations.
var (
	// ErrNotFound means no task exists with the given id.
	ErrNotFound = errors.New("task not found")

	// ErrNotReady means the task has not completed, so no artifact exists yet.
	ErrNotReady = errors.New("task artifact not ready")

	// ErrTaskTerminal means the requested transition is a no-op because the
	// task already reached a terminal state.
	ErrTaskTerminal = errors.New("task already in a terminal state")
)

// Config is the processing configuration snapshotted into a task at start.
type Config struct {
	// Format is the artifact output format; the zero value defaults to csv.
	Format export.Format

	// ZipInner lists the formats bundled when Format is zip.
	// Empty means a single csv entry.
	ZipInner []export.Format

	// WorkDir overrides the orchestrator's temporary root for this task.
	WorkDir string

	// Source says where the input table comes from.
	Source fetch.Source
}

// Task is one tracked run of the fetch-transform-export pipeline.
// All fields are snapshots; the orchestrator holds the live record.
type Task struct {
	ID           string
	State        State
	Progress     int    // 0..100, monotonic until a terminal state
	Error        string // human-readable detail when State is failed
	ArtifactPath string // set when State is completed
	WorkDir      string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Config Config
	Specs  []table.ColumnSpec // registry snapshot captured at start
}
