// Package events provides the status notification channel for export
// tasks: a channel-based pub-sub bus keyed by task id.
//
// Publication is fire-and-forget and never blocks the publisher. The bus is
// a best-effort delivery layer only; the task record held by the
// orchestrator remains the durable source of truth, so a subscriber that
// misses a dropped event can always recover the latest state by polling.
package events

import "time"

// StatusEvent describes one observable change of a task: a state
// transition or a progress update.
type StatusEvent struct {
	TaskID    string    `json:"task_id"`
	State     string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
