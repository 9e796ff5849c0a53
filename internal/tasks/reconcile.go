package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
)

// Counts summarizes one directional list.
type Counts struct {
	Total      int `json:"total"`
	Found      int `json:"found"`
	NotFound   int `json:"not_found"`
	Skipped    int `json:"skipped"`
	Unresolved int `json:"unresolved"`
}

// Reconciler owns the two directional SongMatch lists and the single open manual-search target.
//
// Lists are persisted with the job id they belong to, so corrections survive a restart.
type Reconciler struct {
	review *store.Cell[models.Review]
	jobs   services.JobsClient
	userID string

	mu        sync.Mutex
	active    *models.SongMatch
	activeIdx *int
	activeDir models.Direction
	listeners []func()
}

func NewReconciler(review *store.Cell[models.Review], jobs services.JobsClient, userID string) *Reconciler {
	r := &Reconciler{review: review, jobs: jobs, userID: userID}
	review.OnChange(func(models.Review) { r.changed() })
	return r
}

// JobID returns the job the lists were seeded from.
func (r *Reconciler) JobID() string {
	return r.review.Get().JobID
}

// SetSongs replaces the list for dir. The other list is untouched.
func (r *Reconciler) SetSongs(dir models.Direction, songs []models.SongMatch) {
	r.review.Update(func(rv models.Review) models.Review {
		return withList(rv, dir, slices.Clone(songs))
	})
	r.changed()
}

// Seed loads a job's songs into dir. Lists already seeded from the same job are kept so local corrections survive re-observation.
func (r *Reconciler) Seed(jobID string, dir models.Direction, songs []models.SongMatch) {
	current := r.review.Get()
	if current.JobID == jobID && jobID != "" {
		return
	}
	rv := withList(models.Review{JobID: jobID}, dir, slices.Clone(songs))
	r.review.Set(rv)

	r.mu.Lock()
	r.clearActiveLocked()
	r.mu.Unlock()
	r.changed()
}

// Songs returns a copy of the list for dir.
func (r *Reconciler) Songs(dir models.Direction) []models.SongMatch {
	return slices.Clone(r.review.Get().Songs(dir))
}

// Empty reports whether both lists are empty.
func (r *Reconciler) Empty() bool {
	return r.review.Get().Empty()
}

// Clear empties both lists and drops the active target.
func (r *Reconciler) Clear() {
	r.review.Set(models.Review{})
	r.mu.Lock()
	r.clearActiveLocked()
	r.mu.Unlock()
	r.changed()
}

// BeginManualSearch records which entry is being corrected. The list is not modified.
func (r *Reconciler) BeginManualSearch(dir models.Direction, song models.SongMatch, index int) {
	r.mu.Lock()
	s := song
	i := index
	r.active = &s
	r.activeIdx = &i
	r.activeDir = dir
	r.mu.Unlock()
	r.changed()
}

// Active returns the entry open for correction.
func (r *Reconciler) Active() (models.Direction, int, models.SongMatch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeIdx == nil || r.active == nil {
		return "", 0, models.SongMatch{}, false
	}
	return r.activeDir, *r.activeIdx, *r.active, true
}

// Search queries the manual search endpoint for the active entry. An empty query uses the entry's name.
func (r *Reconciler) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	_, _, song, ok := r.Active()
	if !ok {
		return nil, shared.ErrNoActiveSearch
	}
	if query == "" {
		query = song.Name
	}
	candidates, err := r.jobs.ManualSearch(ctx, query, song.Artist, r.userID)
	if err != nil {
		return nil, fmt.Errorf("manual search for %q failed: %w", query, err)
	}
	return candidates, nil
}

// ApplySelection resolves the entry at index with the chosen candidate and closes the active target.
// It does nothing when no target is open or index is out of range.
func (r *Reconciler) ApplySelection(dir models.Direction, index int, c models.Candidate) bool {
	r.mu.Lock()
	if r.activeIdx == nil {
		r.mu.Unlock()
		return false
	}
	r.clearActiveLocked()
	r.mu.Unlock()

	applied := r.updateAt(dir, index, func(s *models.SongMatch) {
		s.Status = models.SongFound
		if dir == models.Reverse {
			s.SpotifyID = c.ID
		} else {
			s.YouTubeID = c.ID
		}
		s.MatchedTitle = c.Title
		s.MatchedArtist = c.Artist
		s.RequiresManualSearch = false
	})
	r.changed()
	return applied
}

// ApplySkip marks the entry at index skipped and closes the active target.
func (r *Reconciler) ApplySkip(dir models.Direction, index int) bool {
	r.mu.Lock()
	r.clearActiveLocked()
	r.mu.Unlock()

	applied := r.updateAt(dir, index, func(s *models.SongMatch) {
		s.Status = models.SongSkipped
		s.RequiresManualSearch = false
	})
	r.changed()
	return applied
}

// updateAt copies the dir list, changes one entry and stores the copy.
func (r *Reconciler) updateAt(dir models.Direction, index int, fn func(*models.SongMatch)) bool {
	applied := false
	r.review.Update(func(rv models.Review) models.Review {
		songs := rv.Songs(dir)
		if index < 0 || index >= len(songs) {
			return rv
		}
		next := slices.Clone(songs)
		fn(&next[index])
		applied = true
		return withList(rv, dir, next)
	})
	return applied
}

// CanFinalize reports whether no entry in either list still requires a manual search.
func (r *Reconciler) CanFinalize() bool {
	rv := r.review.Get()
	return models.CanFinalize(rv.Forward, rv.Reverse)
}

func (r *Reconciler) Counts(dir models.Direction) Counts {
	var c Counts
	for _, s := range r.review.Get().Songs(dir) {
		c.Total++
		switch s.Status {
		case models.SongFound:
			c.Found++
		case models.SongNotFound:
			c.NotFound++
		case models.SongSkipped:
			c.Skipped++
		}
		if s.Unresolved() {
			c.Unresolved++
		}
	}
	return c
}

// OnChange registers fn to run after any list or active-target change.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Reconciler) clearActiveLocked() {
	r.active = nil
	r.activeIdx = nil
	r.activeDir = ""
}

func (r *Reconciler) changed() {
	r.mu.Lock()
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func withList(rv models.Review, dir models.Direction, songs []models.SongMatch) models.Review {
	if dir == models.Reverse {
		rv.Reverse = songs
	} else {
		rv.Forward = songs
	}
	return rv
}
