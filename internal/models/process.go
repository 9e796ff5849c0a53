package models

import "time"

// ProcessType tags the user-initiated operation a [Process] stands for.
type ProcessType string

const (
	ProcessSyncForward ProcessType = "sync-forward"
	ProcessSyncReverse ProcessType = "sync-reverse"
	ProcessDownload    ProcessType = "download"
	ProcessMerge       ProcessType = "merge"
)

// IsSync reports whether the type belongs to the mutually exclusive sync family.
func (t ProcessType) IsSync() bool {
	return t == ProcessSyncForward || t == ProcessSyncReverse
}

// Direction maps a sync type back to its direction. Non-sync types map to [Forward].
func (t ProcessType) Direction() Direction {
	if t == ProcessSyncReverse {
		return Reverse
	}
	return Forward
}

// ProcessStatus is the display state of a [Process].
type ProcessStatus string

const (
	ProcessPending    ProcessStatus = "pending"
	ProcessInProgress ProcessStatus = "in-progress"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessError      ProcessStatus = "error"
	ProcessDone       ProcessStatus = "done"
)

// Process is a client-local display entry for one user-initiated operation.
type Process struct {
	ID           string        `json:"id"`
	Type         ProcessType   `json:"type"`
	Status       ProcessStatus `json:"status"`
	Message      string        `json:"message"`
	SubMessage   string        `json:"sub_message,omitempty"`
	JobID        string        `json:"job_id,omitempty"`
	Interactive  bool          `json:"interactive,omitempty"`
	CountdownEnd time.Time     `json:"countdown_end,omitzero"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Remaining returns the cosmetic time left on the countdown, zero when none is set or it has passed.
func (p Process) Remaining(now time.Time) time.Duration {
	if p.CountdownEnd.IsZero() || !p.CountdownEnd.After(now) {
		return 0
	}
	return p.CountdownEnd.Sub(now)
}
