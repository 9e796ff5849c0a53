package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/jobsync/internal/models"
)

// SuggestOpts contains configuration for [Reconciler.Suggest].
type SuggestOpts struct {
	Workers   int     // Concurrent searches (default: 4, max: 10)
	RateLimit float64 // Searches per second (default: 5)
	Limit     int     // Candidates kept per song (default: 3, 0 keeps the default)
}

// Suggestion holds manual search candidates for one unresolved entry.
type Suggestion struct {
	Direction  models.Direction   `json:"direction"`
	Index      int                `json:"index"`
	Song       models.SongMatch   `json:"song"`
	Candidates []models.Candidate `json:"candidates"`
	Err        error              `json:"-"`
}

type suggestTarget struct {
	dir   models.Direction
	index int
	song  models.SongMatch
}

// Suggest runs manual searches for every unresolved entry concurrently, paced by a rate limiter.
//
// The review lists are not modified and no target is opened; callers apply a candidate through
// [Reconciler.BeginManualSearch] and [Reconciler.ApplySelection]. A failed search is reported on its
// [Suggestion] and does not stop the others. Progress is sent without blocking when prog is non-nil.
func (r *Reconciler) Suggest(ctx context.Context, opts SuggestOpts, prog chan<- Notification) ([]Suggestion, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > 10 {
		opts.Workers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Limit <= 0 {
		opts.Limit = 3
	}

	var targets []suggestTarget
	for _, dir := range []models.Direction{models.Forward, models.Reverse} {
		for i, s := range r.Songs(dir) {
			if s.Unresolved() {
				targets = append(targets, suggestTarget{dir: dir, index: i, song: s})
			}
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan suggestTarget, len(targets))
	results := make(chan Suggestion, len(targets))

	var wg sync.WaitGroup
	for range opts.Workers {
		wg.Add(1)
		go r.suggestWorker(ctx, &wg, jobs, results, opts.Limit)
	}

	go func() {
		defer close(jobs)
		for _, t := range targets {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			jobs <- t
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]Suggestion, 0, len(targets))
	for res := range results {
		out = append(out, res)
		msg := fmt.Sprintf("Searched %d/%d: %s", len(out), len(targets), res.Song.Name)
		kind := NotifyInfo
		if res.Err != nil {
			kind = NotifyError
			msg = fmt.Sprintf("Search failed for %s: %v", res.Song.Name, res.Err)
		}
		sendNotification(prog, newNotification(kind, r.JobID(), msg))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction == models.Forward
		}
		return out[i].Index < out[j].Index
	})

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Reconciler) suggestWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan suggestTarget, results chan<- Suggestion, limit int) {
	defer wg.Done()

	for t := range jobs {
		if ctx.Err() != nil {
			return
		}

		res := Suggestion{Direction: t.dir, Index: t.index, Song: t.song}
		candidates, err := r.jobs.ManualSearch(ctx, t.song.Name, t.song.Artist, r.userID)
		if err != nil {
			res.Err = err
		} else {
			if len(candidates) > limit {
				candidates = candidates[:limit]
			}
			res.Candidates = candidates
		}
		results <- res
	}
}

// sendNotification delivers n without blocking; it is dropped when the channel is full.
func sendNotification(ch chan<- Notification, n Notification) {
	if ch == nil {
		return
	}
	select {
	case ch <- n:
	default:
	}
}
