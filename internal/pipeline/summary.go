package pipeline

import (
	"time"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/google/uuid"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TableStats counts rows of one logical table through the stages of a run.
type TableStats struct {
	Extracted int   `json:"extracted"`
	Cleaned   int   `json:"cleaned"`
	Loaded    int64 `json:"loaded"`
}

// Dropped returns the number of rows removed by cleaning.
func (s TableStats) Dropped() int {
	if s.Cleaned > s.Extracted {
		return 0
	}
	return s.Extracted - s.Cleaned
}

// Summary describes a finished (or in-flight) run.
type Summary struct {
	RunID      uuid.UUID             `json:"run_id"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Status     Status                `json:"status"`
	Error      string                `json:"error,omitempty"`
	Tables     map[string]TableStats `json:"tables"`
	Warnings   int                   `json:"warnings"`
	Events     []core.Event          `json:"events,omitempty"`
}

// Duration returns the wall time of the run, or zero if it has not finished.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Succeeded reports whether the run completed without error.
func (s *Summary) Succeeded() bool {
	return s.Status == StatusSucceeded
}

func (s *Summary) update(table string, fn func(*TableStats)) {
	st := s.Tables[table]
	fn(&st)
	s.Tables[table] = st
}
