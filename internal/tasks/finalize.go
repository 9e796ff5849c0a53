package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/telemetry"
)

// Finalizer sends reviewed songs back to the backend and follows the job to its terminal state.
type Finalizer struct {
	jobs       services.JobsClient
	poller     *Poller
	session    *Session
	ledger     *Ledger
	reconciler *Reconciler
	logger     *log.Logger
}

func NewFinalizer(jobs services.JobsClient, poller *Poller, session *Session, ledger *Ledger, reconciler *Reconciler, logger *log.Logger) *Finalizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Finalizer{
		jobs:       jobs,
		poller:     poller,
		session:    session,
		ledger:     ledger,
		reconciler: reconciler,
		logger:     shared.WithLogger(logger, "component", "finalizer"),
	}
}

// Finalize submits the reviewed list of the current job's direction.
//
// The review lists must have been seeded from the current job and that job must be waiting for review.
// Preconditions are checked before anything changes. When the request fails the finalizing flag is
// cleared and the overlay is put back; the current job id is never touched on that path.
func (f *Finalizer) Finalize(ctx context.Context) error {
	jobID := f.poller.CurrentJobID()
	if jobID == "" {
		return shared.ErrNoCurrentJob
	}
	if f.poller.Observer() {
		return shared.ErrObserverMode
	}
	if owner := f.reconciler.JobID(); owner != jobID {
		return fmt.Errorf("%w: review lists belong to %q, not %s", shared.ErrNotReviewable, owner, jobID)
	}
	if !f.reconciler.CanFinalize() {
		return shared.ErrUnresolvedSongs
	}
	if f.session.Finalizing() {
		return fmt.Errorf("%w: finalize of %s already running", shared.ErrJobInFlight, jobID)
	}
	if err := f.checkReviewable(ctx, jobID); err != nil {
		return err
	}
	if !f.session.BeginFinalizing() {
		return fmt.Errorf("%w: finalize of %s already running", shared.ErrJobInFlight, jobID)
	}

	dir := f.poller.JobDirection()
	songs := f.reconciler.Songs(dir)
	prev := f.session.Overlay()
	f.session.SetOverlay(models.OverlayFinalizing)

	if err := f.jobs.FinalizeJob(ctx, jobID, songs); err != nil {
		telemetry.FinalizeRequests.WithLabelValues("error").Inc()
		f.session.SetFinalizing(false)
		f.session.SetOverlay(prev)
		f.logger.Error("finalize request failed", "job_id", jobID, "error", err)
		return fmt.Errorf("failed to finalize job %s: %w", jobID, err)
	}
	telemetry.FinalizeRequests.WithLabelValues("ok").Inc()

	f.session.Notify(finalizingNotification(jobID))
	f.session.SetOverlay(models.OverlayProcesses)

	pid := f.poller.ProcessID()
	if pid == "" {
		pid = f.ledger.AddProcess(dir.ProcessType(), "Finalizing…", ProcessExtra{JobID: jobID})
	} else {
		f.ledger.UpdateProcess(pid, models.ProcessInProgress, WithMessage("Finalizing…"), WithInteractive(false))
	}

	if err := f.poller.runFinalizeLoop(jobID, pid, f.handler(jobID)); err != nil {
		f.session.SetFinalizing(false)
		return err
	}
	f.logger.Info("finalize accepted", "job_id", jobID, "songs", len(songs))
	return nil
}

// checkReviewable asks the backend for the job's status when this process has not observed one yet.
func (f *Finalizer) checkReviewable(ctx context.Context, jobID string) error {
	status := f.poller.LastStatus()
	if status == "" {
		job, err := f.jobs.GetJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to check job %s: %w", jobID, err)
		}
		status = job.Status
	}
	switch status {
	case models.JobReadyToFinalize, models.JobError:
		return nil
	default:
		return fmt.Errorf("%w: %s is %s", shared.ErrNotReviewable, jobID, status)
	}
}

// handler runs with the poller lock held.
func (f *Finalizer) handler(jobID string) loopHandler {
	p := f.poller
	return loopHandler{
		onJob: func(job *models.Job) bool {
			p.lastStatus = job.Status
			telemetry.JobTransitions.WithLabelValues(string(job.Status)).Inc()
			if !job.Status.Terminal() {
				return false
			}

			pid := p.processID
			f.session.SetFinalizing(false)
			f.session.SetOverlay(models.OverlayNone)
			if job.Status == models.JobCompleted {
				f.ledger.UpdateProcess(pid, models.ProcessCompleted, WithMessage(completedMessage(job)), WithSubMessage(syncedMessage(job)))
				f.session.Notify(finalizeSucceededNotification(job))
			} else {
				f.ledger.UpdateProcess(pid, models.ProcessError, WithMessage(failedMessage(job)))
				f.session.Notify(finalizeFailedNotification(job))
			}
			f.ledger.RemoveAfter(pid, processLinger)
			f.reconciler.Clear()
			p.forgetLocked()
			return true
		},
		onFail: func(err error) {
			f.logger.Error("finalize poll failed", "job_id", jobID, "error", err)
			f.session.Notify(pollFailedNotification(jobID, err))
			f.session.SetFinalizing(false)
			f.ledger.UpdateProcess(p.processID, models.ProcessError, WithMessage(err.Error()))
			f.ledger.RemoveAfter(p.processID, processLinger)
			p.forgetLocked()
		},
	}
}
