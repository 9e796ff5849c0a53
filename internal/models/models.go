// package models defines the data model for the sync job client
package models

import (
	"fmt"
	"time"
)

// JobStatus is the backend-reported lifecycle state of a [Job].
type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobInProgress      JobStatus = "in-progress"
	JobReadyToFinalize JobStatus = "ready_to_finalize"
	JobCompleted       JobStatus = "completed"
	JobError           JobStatus = "error"
)

// Terminal reports whether no further backend work will happen without client action.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// StopsPolling reports whether a poll loop should stop after observing this status.
func (s JobStatus) StopsPolling() bool {
	return s.Terminal() || s == JobReadyToFinalize
}

// Running reports whether the backend is still working on the job.
func (s JobStatus) Running() bool {
	return s == JobPending || s == JobInProgress
}

// Direction selects which way a sync runs and which cross-platform id a [SongMatch] carries.
type Direction string

const (
	Forward Direction = "forward" // source platform → destination platform, ids in yt_id
	Reverse Direction = "reverse" // destination platform → source platform, ids in sp_id
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Forward, Reverse:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction %q (must be forward or reverse)", s)
	}
}

// ProcessType returns the sync process tag for the direction.
func (d Direction) ProcessType() ProcessType {
	if d == Reverse {
		return ProcessSyncReverse
	}
	return ProcessSyncForward
}

// Job is one backend-tracked sync or merge operation.
//
// Jobs are created and mutated only by the backend; the client fetches and interprets them.
type Job struct {
	JobID        string     `json:"job_id"`
	Status       JobStatus  `json:"status"`
	PlaylistName string     `json:"playlist_name,omitempty"`
	Direction    Direction  `json:"direction,omitempty"`
	Result       *JobResult `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// JobResult holds the output of the backend's matching step.
type JobResult struct {
	Songs []SongMatch `json:"songs"`
}

// Songs returns the matched songs or nil when no matching work has happened yet.
func (j *Job) Songs() []SongMatch {
	if j == nil || j.Result == nil {
		return nil
	}
	return j.Result.Songs
}

// SyncedCount returns the number of songs that ended up found.
func (j *Job) SyncedCount() int {
	n := 0
	for _, s := range j.Songs() {
		if s.Status == SongFound {
			n++
		}
	}
	return n
}

// SongStatus is the resolution outcome of a single [SongMatch].
type SongStatus string

const (
	SongFound    SongStatus = "found"
	SongNotFound SongStatus = "not_found"
	SongSkipped  SongStatus = "skipped"
)

// SongMatch is one line item of a sync's outcome.
type SongMatch struct {
	Name                 string     `json:"name"`
	Artist               string     `json:"artist"`
	Status               SongStatus `json:"status"`
	YouTubeID            string     `json:"yt_id,omitempty"`
	SpotifyID            string     `json:"sp_id,omitempty"`
	MatchedTitle         string     `json:"matched_title,omitempty"`
	MatchedArtist        string     `json:"matched_artist,omitempty"`
	RequiresManualSearch bool       `json:"requires_manual_search"`
}

// Unresolved reports whether the entry still blocks finalization.
func (s SongMatch) Unresolved() bool {
	return s.Status == SongNotFound && s.RequiresManualSearch
}

// CrossPlatformID returns the match id relevant to the direction.
func (s SongMatch) CrossPlatformID(d Direction) string {
	if d == Reverse {
		return s.SpotifyID
	}
	return s.YouTubeID
}

// CanFinalize reports whether no entry in any of the lists is still unresolved.
func CanFinalize(lists ...[]SongMatch) bool {
	for _, songs := range lists {
		for _, s := range songs {
			if s.Unresolved() {
				return false
			}
		}
	}
	return true
}

// Candidate is one manual-search result.
type Candidate struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail,omitempty"`
	ID        string `json:"id"`
}

// Review is the persisted pair of directional song lists for one job.
type Review struct {
	JobID   string      `json:"job_id,omitempty"`
	Forward []SongMatch `json:"forward,omitempty"`
	Reverse []SongMatch `json:"reverse,omitempty"`
}

// Songs returns the list for a direction.
func (r Review) Songs(d Direction) []SongMatch {
	if d == Reverse {
		return r.Reverse
	}
	return r.Forward
}

// Empty reports whether both lists are empty.
func (r Review) Empty() bool {
	return len(r.Forward) == 0 && len(r.Reverse) == 0
}

// Overlay is the modal UI mode derived from job and review state.
type Overlay string

const (
	OverlayNone           Overlay = "none"
	OverlayProcesses      Overlay = "processes"
	OverlayFinalizing     Overlay = "finalizing"
	OverlaySongSyncStatus Overlay = "songSyncStatus"
)

// JobRecord is a locally persisted snapshot of an observed [Job].
type JobRecord struct {
	ID           string    `json:"id"`
	Sequence     int       `json:"sequence"`
	JobID        string    `json:"job_id"`
	Direction    Direction `json:"direction"`
	PlaylistName string    `json:"playlist_name,omitempty"`
	Status       JobStatus `json:"status"`
	SongsTotal   int       `json:"songs_total"`
	SongsFound   int       `json:"songs_found"`
	SongsSkipped int       `json:"songs_skipped"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJobRecord summarizes a job for the history table.
func NewJobRecord(job *Job, dir Direction) *JobRecord {
	rec := &JobRecord{
		JobID:        job.JobID,
		Direction:    dir,
		PlaylistName: job.PlaylistName,
		Status:       job.Status,
		ErrorMessage: job.Error,
		Notes:        job.Notes,
	}
	for _, s := range job.Songs() {
		rec.SongsTotal++
		switch s.Status {
		case SongFound:
			rec.SongsFound++
		case SongSkipped:
			rec.SongsSkipped++
		}
	}
	return rec
}

// Validate checks the record has the fields the history table requires.
func (r *JobRecord) Validate() error {
	if r.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if r.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}
