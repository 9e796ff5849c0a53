package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/formatter"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/repositories"
	"github.com/desertthunder/jobsync/internal/shared"
)

// JobsHistory lists recorded jobs.
func (r *Runner) JobsHistory(ctx context.Context, cmd *cli.Command) error {
	dir, err := optionalDirection(cmd.String("direction"))
	if err != nil {
		return err
	}
	history, err := r.jobHistory()
	if err != nil {
		return err
	}

	records, err := history.List(ctx, repositories.JobFilter{
		Status:    models.JobStatus(cmd.String("status")),
		Direction: dir,
		Limit:     cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if records == nil {
			records = []*models.JobRecord{}
		}
		return r.writeJSON(records, true)
	}
	if len(records) == 0 {
		r.writePlain("No jobs recorded\n")
		return nil
	}
	r.writePlain("%s\n", formatter.HistoryTable(records, r.plain))
	return nil
}

// JobsPrune keeps the newest --keep records.
func (r *Runner) JobsPrune(ctx context.Context, cmd *cli.Command) error {
	history, err := r.jobHistory()
	if err != nil {
		return err
	}

	n, err := history.Prune(ctx, cmd.Int("keep"))
	if err != nil {
		return err
	}
	r.logger.Info("pruned job history", "deleted", n)
	r.writePlain("✓ Deleted %d job(s)\n", n)
	return nil
}

// JobsReport exports the current review lists.
func (r *Runner) JobsReport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	c, err := r.open(ctx)
	if err != nil {
		return err
	}
	review := c.Review.Get()
	if review.Empty() {
		return fmt.Errorf("%w: no review lists to export", shared.ErrNoCurrentJob)
	}

	playlist := ""
	if history, err := r.jobHistory(); err == nil && review.JobID != "" {
		rec, err := history.Get(ctx, review.JobID)
		switch {
		case err == nil:
			playlist = rec.PlaylistName
		case !errors.Is(err, shared.ErrJobNotFound):
			r.logger.Warn("failed to look up job", "job_id", review.JobID, "error", err)
		}
	}
	report := formatter.NewReport(review, playlist)

	output := cmd.String("output")
	if output == "" && (format == formatter.FormatTable || format == formatter.FormatJSON) {
		if format == formatter.FormatJSON {
			return r.writeJSON(report, true)
		}
		r.writePlain("%s\n", formatter.ExportToTable(report, r.plain))
		return nil
	}

	path, err := formatter.WriteReport(report, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("report written", "path", path, "format", format)
	r.writePlain("✓ Report written to %s\n", path)
	return nil
}
