package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/formatter"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/tasks"
)

// followInterval is how often --wait checks whether polling has stopped.
const followInterval = 250 * time.Millisecond

// optionalDirection parses a --direction value; empty means the command's default.
func optionalDirection(s string) (models.Direction, error) {
	if s == "" {
		return "", nil
	}
	d, err := models.ParseDirection(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return d, nil
}

// SyncStart starts a job and optionally follows it.
func (r *Runner) SyncStart(ctx context.Context, cmd *cli.Command) error {
	dir, err := optionalDirection(cmd.String("direction"))
	if err != nil {
		return err
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}

	jobID, err := c.Start(ctx, tasks.StartRequest{
		Direction:    dir,
		PlaylistName: cmd.String("playlist"),
		Tracks:       cmd.StringSlice("track"),
		Supersede:    cmd.Bool("supersede"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("wait") {
		if err := r.follow(ctx, c); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(c.Snapshot(), true)
	}
	r.writePlain("✓ Started job %s\n", jobID)
	return nil
}

// SyncStatus prints the session snapshot.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	c.Health.Check(ctx)

	snap := c.Snapshot()
	if snap.JobID != "" && snap.Status == "" {
		if job, err := r.jobs.GetJob(ctx, snap.JobID); err == nil {
			snap.Status = job.Status
		} else {
			r.logger.Debug("job lookup failed", "job_id", snap.JobID, "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(snap, true)
	}
	r.printSnapshot(snap)
	return nil
}

// SyncResume rejoins the current or latest job.
func (r *Runner) SyncResume(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}

	jobID := c.Resume(ctx)
	if jobID == "" {
		r.writePlain("No job to resume\n")
		return nil
	}
	r.writePlain("Following job %s\n", jobID)

	if cmd.Bool("wait") {
		if err := r.follow(ctx, c); err != nil {
			return err
		}
		r.printSnapshot(c.Snapshot())
	}
	return nil
}

// SyncFinalize submits the review lists of the current job.
func (r *Runner) SyncFinalize(ctx context.Context, cmd *cli.Command) error {
	c, err := r.open(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("skip-unresolved") {
		for _, dir := range []models.Direction{models.Forward, models.Reverse} {
			for i, s := range c.Reconciler.Songs(dir) {
				if s.Unresolved() {
					c.Reconciler.ApplySkip(dir, i)
					r.logger.Debug("skipped unresolved song", "direction", dir, "index", i, "name", s.Name)
				}
			}
		}
	}

	jobID := c.Poller.CurrentJobID()
	if err := c.Finalize(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Finalize accepted for job %s\n", jobID)

	if !cmd.Bool("wait") {
		r.writePlain("Run 'jobsync sync resume --wait' to follow it\n")
		return nil
	}
	return r.follow(ctx, c)
}

// follow prints notifications until the poller stops.
func (r *Runner) follow(ctx context.Context, c *tasks.Client) error {
	if c.Observer() {
		r.logger.Warn("observer mode: the owning process is polling this job")
		return nil
	}

	notifications := c.Session.Notifications()
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-notifications:
			r.printNotification(n)
		case <-ticker.C:
			if c.Poller.Polling() {
				continue
			}
			for {
				select {
				case n := <-notifications:
					r.printNotification(n)
				default:
					return nil
				}
			}
		}
	}
}

func (r *Runner) printNotification(n tasks.Notification) {
	icon := "•"
	switch n.Kind {
	case tasks.NotifySuccess:
		icon = "✓"
	case tasks.NotifyError:
		icon = "✗"
	}
	r.writePlain("%s %s\n", icon, n.Message)
}

func (r *Runner) printSnapshot(s tasks.Snapshot) {
	if s.JobID == "" {
		r.writePlainHeader("No active job")
	} else {
		r.writePlainHeader("Job " + s.JobID)
		r.writePlain("Status:       %s\n", s.Status)
	}

	r.writePlain("Direction:    %s\n", s.Direction)
	r.writePlain("Overlay:      %s\n", s.Overlay)
	if s.Finalizing {
		r.writePlain("Finalizing:   yes\n")
	}
	if s.Observer {
		r.writePlain("Mode:         observer\n")
	}

	conn := "unreachable"
	if s.Connected {
		conn = "reachable"
	}
	r.writePlain("Backend:      %s\n", conn)
	r.writePlain("Store:        %s\n", s.Backend)

	for _, sec := range []struct {
		name   string
		counts tasks.Counts
	}{{"Forward", s.Forward}, {"Reverse", s.Reverse}} {
		if sec.counts.Total == 0 {
			continue
		}
		c := sec.counts
		r.writePlain("%-13s %d songs, %d found, %d skipped, %d unresolved\n", sec.name+":", c.Total, c.Found, c.Skipped, c.Unresolved)
	}
	if s.Forward.Total+s.Reverse.Total > 0 {
		r.writePlain("Can finalize: %v\n", s.CanFinal)
	}
	if s.Message != "" {
		r.writePlain("Last:         %s\n", s.Message)
	}

	if len(s.Processes) > 0 {
		r.writePlainln("%s", formatter.ProcessTable(s.Processes, time.Now(), r.plain))
	}
}
