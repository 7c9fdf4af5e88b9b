package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSONL history file
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord is one finished dispatch run. This is operational history
// (counts and timing), not message persistence.
type RunRecord struct {
	Topic        string    `json:"topic"`
	Trigger      string    `json:"trigger"` // "cli" or "schedule"
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Sent         int       `json:"sent"`
	Failed       int       `json:"failed"`
	Attempted    int       `json:"attempted"`
	TerminatedBy string    `json:"terminated_by"`
}
