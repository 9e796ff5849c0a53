package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/formatter"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/tasks"
)

// reviewDirection resolves --direction, defaulting to the current job's direction.
func (r *Runner) reviewDirection(c *tasks.Client, cmd *cli.Command) (models.Direction, error) {
	dir, err := optionalDirection(cmd.String("direction"))
	if err != nil || dir != "" {
		return dir, err
	}
	return c.Poller.JobDirection(), nil
}

// openEntry opens the song at --index for a manual search.
func (r *Runner) openEntry(ctx context.Context, cmd *cli.Command) (*tasks.Client, models.Direction, int, error) {
	c, err := r.open(ctx)
	if err != nil {
		return nil, "", 0, err
	}
	dir, err := r.reviewDirection(c, cmd)
	if err != nil {
		return nil, "", 0, err
	}

	index := cmd.Int("index")
	songs := c.Reconciler.Songs(dir)
	if index < 0 || index >= len(songs) {
		return nil, "", 0, fmt.Errorf("%w: %d (%s list has %d songs)", shared.ErrIndexOutOfRange, index, dir, len(songs))
	}
	c.Reconciler.BeginManualSearch(dir, songs[index], index)
	return c, dir, index, nil
}

// ReviewList prints one review list.
func (r *Runner) ReviewList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	dir, err := r.reviewDirection(c, cmd)
	if err != nil {
		return err
	}

	songs := c.Reconciler.Songs(dir)
	if cmd.Bool("json") {
		if songs == nil {
			songs = []models.SongMatch{}
		}
		return r.writeJSON(songs, true)
	}

	if len(songs) == 0 {
		r.writePlain("No songs to review in the %s list\n", dir)
		return nil
	}

	report := &formatter.Report{JobID: c.Reconciler.JobID()}
	if dir == models.Reverse {
		report.Reverse = songs
	} else {
		report.Forward = songs
	}
	r.writePlain("%s\n", formatter.ExportToTable(report, r.plain))

	counts := c.Reconciler.Counts(dir)
	r.writePlain("%d unresolved, can finalize: %v\n", counts.Unresolved, c.Reconciler.CanFinalize())
	return nil
}

// ReviewSearch lists manual search candidates for one song.
func (r *Runner) ReviewSearch(ctx context.Context, cmd *cli.Command) error {
	c, _, index, err := r.openEntry(ctx, cmd)
	if err != nil {
		return err
	}

	candidates, err := c.Reconciler.Search(ctx, cmd.String("query"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, true)
	}
	if len(candidates) == 0 {
		r.writePlain("No candidates found\n")
		return nil
	}
	for i, cand := range candidates {
		r.writePlain("%d. %s - %s [%s]\n", i, cand.Artist, cand.Title, cand.ID)
	}
	r.writePlainln("Run 'jobsync review select --index %d --candidate N' to pick one", index)
	return nil
}

// ReviewSelect repeats the search and applies candidate --candidate.
func (r *Runner) ReviewSelect(ctx context.Context, cmd *cli.Command) error {
	c, dir, index, err := r.openEntry(ctx, cmd)
	if err != nil {
		return err
	}

	candidates, err := c.Reconciler.Search(ctx, cmd.String("query"))
	if err != nil {
		return err
	}
	k := cmd.Int("candidate")
	if k < 0 || k >= len(candidates) {
		return fmt.Errorf("%w: candidate %d of %d", shared.ErrIndexOutOfRange, k, len(candidates))
	}

	cand := candidates[k]
	if !c.Reconciler.ApplySelection(dir, index, cand) {
		return fmt.Errorf("%w: %d", shared.ErrIndexOutOfRange, index)
	}
	r.writePlain("✓ Matched #%d to %s - %s\n", index, cand.Artist, cand.Title)
	return nil
}

// ReviewSkip marks one song skipped.
func (r *Runner) ReviewSkip(ctx context.Context, cmd *cli.Command) error {
	c, dir, index, err := r.openEntry(ctx, cmd)
	if err != nil {
		return err
	}

	if !c.Reconciler.ApplySkip(dir, index) {
		return fmt.Errorf("%w: %d", shared.ErrIndexOutOfRange, index)
	}
	r.writePlain("✓ Skipped #%d\n", index)
	return nil
}

// ReviewSuggest searches all unresolved songs without changing the lists.
func (r *Runner) ReviewSuggest(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}

	prog := make(chan tasks.Notification, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := range prog {
			r.logger.Debug(n.Message, "kind", n.Kind)
		}
	}()

	suggestions, err := c.Reconciler.Suggest(ctx, tasks.SuggestOpts{
		Workers:   cmd.Int("workers"),
		RateLimit: cmd.Float("rate"),
		Limit:     cmd.Int("limit"),
	}, prog)
	close(prog)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if suggestions == nil {
			suggestions = []tasks.Suggestion{}
		}
		return r.writeJSON(suggestions, true)
	}
	if len(suggestions) == 0 {
		r.writePlain("Nothing to search\n")
		return nil
	}

	for _, s := range suggestions {
		r.writePlain("%s #%d %s - %s\n", s.Direction, s.Index, s.Song.Artist, s.Song.Name)
		if s.Err != nil {
			r.writePlain("  ✗ %v\n", s.Err)
			continue
		}
		if len(s.Candidates) == 0 {
			r.writePlain("  no candidates\n")
		}
		for k, cand := range s.Candidates {
			r.writePlain("  %d. %s - %s [%s]\n", k, cand.Artist, cand.Title, cand.ID)
		}
	}
	return nil
}
