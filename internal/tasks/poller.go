package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
	"github.com/desertthunder/jobsync/internal/telemetry"
)

// processLinger is how long a finished non-interactive process stays visible.
const processLinger = 10 * time.Second

// JobRecorder stores snapshots of observed jobs.
type JobRecorder interface {
	Upsert(ctx context.Context, rec *models.JobRecord) error
}

// PollerConfig tunes the poll loop and the transition table.
type PollerConfig struct {
	Interval             time.Duration
	ReviewPartialResults bool
	AdoptPending         bool
	EstimatePerTrack     time.Duration
}

// PollerConfigFrom reads the [shared.PollConfig] section.
func PollerConfigFrom(c shared.PollConfig) PollerConfig {
	return PollerConfig{
		Interval:             c.Interval,
		ReviewPartialResults: c.ReviewPartialResults,
		AdoptPending:         c.AdoptPending,
		EstimatePerTrack:     c.EstimatePerTrack,
	}
}

// StartRequest describes a new sync job.
type StartRequest struct {
	Direction    models.Direction
	PlaylistName string
	UserID       string
	Tracks       []string
	// Supersede cancels tracking of a job that is still in flight instead of failing with [shared.ErrJobInFlight].
	Supersede bool
}

// loopHandler interprets fetched jobs for one poll loop. Both callbacks run with the poller's lock held
// and only while the loop's generation is current.
type loopHandler struct {
	onJob  func(job *models.Job) (stop bool)
	onFail func(err error)
}

// Poller owns the current job id, polls the job it names and applies the transition table.
//
// Every loop carries a generation number; starting a loop invalidates the previous one before it
// begins, and results from a loop whose generation is no longer current are dropped.
type Poller struct {
	jobs       services.JobsClient
	current    *store.Cell[string]
	direction  *store.Cell[models.Direction]
	session    *Session
	ledger     *Ledger
	reconciler *Reconciler
	history    JobRecorder
	cfg        PollerConfig
	logger     *log.Logger

	startMu sync.Mutex

	mu         sync.Mutex
	gen        uint64
	cancel     context.CancelFunc
	processID  string
	jobDir     models.Direction
	lastStatus models.JobStatus
	observer   bool
	wg         sync.WaitGroup
}

// PollerDeps are the collaborators of a [Poller].
type PollerDeps struct {
	Jobs       services.JobsClient
	Current    *store.Cell[string]
	Direction  *store.Cell[models.Direction]
	Session    *Session
	Ledger     *Ledger
	Reconciler *Reconciler
	History    JobRecorder
	Logger     *log.Logger
}

func NewPoller(deps PollerDeps, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{
		jobs:       deps.Jobs,
		current:    deps.Current,
		direction:  deps.Direction,
		session:    deps.Session,
		ledger:     deps.Ledger,
		reconciler: deps.Reconciler,
		history:    deps.History,
		cfg:        cfg,
		logger:     shared.WithLogger(logger, "component", "poller"),
	}
}

// SetObserver puts the poller in read-only mode: it neither polls nor writes the current job id.
func (p *Poller) SetObserver(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = v
}

func (p *Poller) Observer() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observer
}

// CurrentJobID returns the tracked job id, empty when idle.
func (p *Poller) CurrentJobID() string {
	return p.current.Get()
}

// JobDirection returns the direction of the tracked job.
func (p *Poller) JobDirection() models.Direction {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jobDir != "" {
		return p.jobDir
	}
	return p.defaultDirection()
}

// LastStatus returns the last status observed for the tracked job.
func (p *Poller) LastStatus() models.JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStatus
}

// ProcessID returns the ledger entry of the tracked job.
func (p *Poller) ProcessID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processID
}

func (p *Poller) defaultDirection() models.Direction {
	if p.direction != nil {
		if d := p.direction.Get(); d != "" {
			return d
		}
	}
	return models.Forward
}

// Start creates a sync process, asks the backend for a job and begins polling it.
func (p *Poller) Start(ctx context.Context, req StartRequest) (string, error) {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if p.Observer() {
		return "", shared.ErrObserverMode
	}
	if _, err := models.ParseDirection(string(req.Direction)); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if req.PlaylistName == "" {
		return "", fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	held := p.current.Get()
	if held != "" && p.inFlight(ctx, held) && !req.Supersede {
		return "", fmt.Errorf("%w: %s", shared.ErrJobInFlight, held)
	}
	heldProc, hadProc := p.ledger.Get(p.ProcessID())

	extra := ProcessExtra{}
	if n := len(req.Tracks); n > 0 && p.cfg.EstimatePerTrack > 0 {
		extra.CountdownEnd = time.Now().Add(time.Duration(n) * p.cfg.EstimatePerTrack)
	}
	pid := p.ledger.AddProcess(req.Direction.ProcessType(), fmt.Sprintf("Syncing %s…", req.PlaylistName), extra)

	jobID, err := p.jobs.StartJob(ctx, req.Direction, services.StartJobRequest{
		PlaylistName: req.PlaylistName,
		UserID:       req.UserID,
		TracksToSync: req.Tracks,
	})
	if err != nil {
		p.session.Notify(startFailedNotification(err))
		if held != "" && hadProc && p.current.Get() == held {
			// The held job is still tracked; give it back its ledger entry.
			p.ledger.RemoveProcess(pid)
			p.ledger.Restore(heldProc)
		} else {
			p.ledger.UpdateProcess(pid, models.ProcessError, WithMessage(err.Error()))
			p.ledger.RemoveAfter(pid, processLinger)
		}
		return "", fmt.Errorf("failed to start sync: %w", err)
	}

	p.ledger.AttachJob(pid, jobID)
	if p.direction != nil {
		p.direction.Set(req.Direction)
	}
	p.session.Notify(jobStartedNotification(jobID, req.PlaylistName))
	p.logger.Info("job started", "job_id", jobID, "direction", req.Direction)

	p.mu.Lock()
	defer p.mu.Unlock()
	if held != "" {
		p.supersedeLocked(held)
	}
	p.trackLocked(jobID, pid, req.Direction, false)
	return jobID, nil
}

// supersedeLocked stops following held and drops the review state seeded from it. Caller holds mu.
func (p *Poller) supersedeLocked(held string) {
	p.stopLocked()
	p.session.SetFinalizing(false)
	p.session.SetOverlay(models.OverlayProcesses)
	p.reconciler.Clear()
	p.logger.Info("superseding job", "job_id", held)
}

// inFlight reports whether the held job may still be doing backend work. A job waiting for review is
// not in flight unless a finalize is running.
func (p *Poller) inFlight(ctx context.Context, jobID string) bool {
	if p.session.Finalizing() {
		return true
	}
	status := p.LastStatus()
	if status == "" {
		job, err := p.jobs.GetJob(ctx, jobID)
		switch {
		case errors.Is(err, shared.ErrJobNotFound):
			return false
		case err != nil:
			return true
		}
		status = job.Status
	}
	return status.Running()
}

// Track makes jobID current and starts polling it, superseding any running loop.
func (p *Poller) Track(jobID, processID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observer {
		return shared.ErrObserverMode
	}
	p.trackLocked(jobID, processID, p.defaultDirection(), false)
	return nil
}

func (p *Poller) trackLocked(jobID, processID string, dir models.Direction, fresh bool) {
	p.current.Set(jobID)
	p.processID = processID
	p.jobDir = dir
	p.lastStatus = ""
	p.launchLocked(jobID, p.transitionHandler(jobID, fresh))
}

func (p *Poller) transitionHandler(jobID string, fresh bool) loopHandler {
	return loopHandler{
		onJob: func(job *models.Job) bool {
			p.applyLocked(job, fresh)
			fresh = false
			return job.Status.StopsPolling()
		},
		onFail: func(err error) {
			p.logger.Error("poll failed", "job_id", jobID, "error", err)
			p.session.Notify(pollFailedNotification(jobID, err))
			p.ledger.UpdateProcess(p.processID, models.ProcessError, WithMessage(err.Error()))
			p.ledger.SetCountdown(p.processID, time.Time{})
			p.current.Set("")
		},
	}
}

// applyLocked runs the transition table for a freshly fetched job. Caller holds mu.
func (p *Poller) applyLocked(job *models.Job, fresh bool) {
	p.lastStatus = job.Status
	if job.Direction != "" {
		p.jobDir = job.Direction
	}
	pid := p.processID
	telemetry.JobTransitions.WithLabelValues(string(job.Status)).Inc()

	switch job.Status {
	case models.JobCompleted:
		p.reconciler.Clear()
		p.session.SetOverlay(models.OverlayProcesses)
		p.session.SetFinalizing(false)
		p.ledger.UpdateProcess(pid, models.ProcessCompleted, WithMessage(completedMessage(job)), WithSubMessage(syncedMessage(job)))
		p.ledger.SetCountdown(pid, time.Time{})
		p.ledger.RemoveAfter(pid, processLinger)
		p.session.Notify(jobCompletedNotification(job))
		p.current.Set("")
	case models.JobError:
		songs := job.Songs()
		review := len(songs) > 0 && p.cfg.ReviewPartialResults
		if review {
			p.reconciler.Seed(job.JobID, p.jobDir, songs)
			p.session.SetOverlay(models.OverlaySongSyncStatus)
		} else {
			p.reconciler.Clear()
			p.session.SetOverlay(models.OverlayProcesses)
		}
		p.session.SetFinalizing(false)
		p.ledger.UpdateProcess(pid, models.ProcessError, WithMessage(failedMessage(job)))
		p.ledger.SetCountdown(pid, time.Time{})
		p.session.Notify(jobFailedNotification(job))
		if !review {
			p.ledger.RemoveAfter(pid, processLinger)
			p.current.Set("")
		}
	case models.JobReadyToFinalize:
		p.reconciler.Seed(job.JobID, p.jobDir, job.Songs())
		p.session.SetOverlay(models.OverlaySongSyncStatus)
		p.ledger.UpdateProcess(pid, models.ProcessDone, WithInteractive(true), WithSubMessage(syncedMessage(job)))
		p.ledger.SetCountdown(pid, time.Time{})
		if len(job.Songs()) > 0 {
			p.session.Notify(reviewReadyNotification(job))
		}
	case models.JobPending, models.JobInProgress:
		if fresh {
			p.session.SetOverlay(models.OverlayProcesses)
		}
	default:
		p.logger.Warn("unknown job status", "job_id", job.JobID, "status", job.Status)
	}
}

// launchLocked stops the running loop and starts a new one. Caller holds mu.
func (p *Poller) launchLocked(jobID string, h loopHandler) uint64 {
	p.stopLocked()
	p.gen++
	gen := p.gen

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	telemetry.ActiveLoops.Inc()
	go p.loop(ctx, gen, jobID, h)
	return gen
}

func (p *Poller) loop(ctx context.Context, gen uint64, jobID string, h loopHandler) {
	defer p.wg.Done()
	defer telemetry.ActiveLoops.Dec()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err := p.jobs.GetJob(ctx, jobID)
		if ctx.Err() != nil {
			return
		}

		p.mu.Lock()
		if gen != p.gen {
			p.mu.Unlock()
			telemetry.StaleTransitions.Inc()
			return
		}

		if err != nil {
			telemetry.PollRequests.WithLabelValues("error").Inc()
			h.onFail(err)
			p.releaseLocked(gen)
			p.mu.Unlock()
			return
		}

		telemetry.PollRequests.WithLabelValues("ok").Inc()
		stop := h.onJob(job)
		dir := p.jobDir
		if stop {
			p.releaseLocked(gen)
		}
		p.mu.Unlock()

		// A stopping loop has already cancelled ctx.
		p.record(context.WithoutCancel(ctx), job, dir)
		if stop {
			return
		}
	}
}

// releaseLocked drops the cancel func of a loop that ended on its own.
func (p *Poller) releaseLocked(gen uint64) {
	if gen == p.gen && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
}

func (p *Poller) record(ctx context.Context, job *models.Job, dir models.Direction) {
	if p.history == nil {
		return
	}
	if err := p.history.Upsert(ctx, models.NewJobRecord(job, dir)); err != nil {
		p.logger.Warn("failed to record job history", "job_id", job.JobID, "error", err)
	}
}

// Resume rejoins a job after a restart and returns the id being tracked.
//
// A held id is kept and polled. Otherwise the user's latest job is adopted when it is in progress or
// ready to finalize, and only if no id was set while it was being fetched. Failures are logged at
// debug level and leave the poller idle.
func (p *Poller) Resume(ctx context.Context, userID string) string {
	select {
	case <-p.current.Ready():
	case <-ctx.Done():
		return ""
	}

	if p.Observer() {
		return p.current.Get()
	}

	if held := p.current.Get(); held != "" {
		return p.resumeHeld(ctx, userID, held)
	}

	if userID == "" {
		p.logger.Debug("resume skipped: no user id")
		return ""
	}

	latest, err := p.jobs.LatestJob(ctx, userID)
	if err != nil {
		p.logger.Debug("resume failed", "error", err)
		return ""
	}
	if latest == nil || !p.adoptable(latest.Status) {
		return ""
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current.Get() != "" {
		return p.current.Get()
	}

	dir := latest.Direction
	if dir == "" {
		dir = p.defaultDirection()
	}
	pid := p.ensureProcessLocked(latest, dir)

	p.current.Set(latest.JobID)
	p.processID = pid
	p.jobDir = dir
	p.logger.Info("adopted job", "job_id", latest.JobID, "status", latest.Status)

	p.applyLocked(latest, true)
	if latest.Status.Running() {
		p.launchLocked(latest.JobID, p.transitionHandler(latest.JobID, false))
	} else {
		p.stopLocked()
	}
	return latest.JobID
}

func (p *Poller) resumeHeld(ctx context.Context, userID, held string) string {
	var latest *models.Job
	if userID != "" {
		job, err := p.jobs.LatestJob(ctx, userID)
		if err != nil {
			p.logger.Debug("latest job lookup failed", "error", err)
		}
		latest = job
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current.Get() != held || p.cancel != nil {
		return p.current.Get()
	}

	dir := p.defaultDirection()
	if latest != nil && latest.JobID == held && latest.Direction != "" {
		dir = latest.Direction
	}

	job := &models.Job{JobID: held, Status: models.JobInProgress}
	if latest != nil && latest.JobID == held {
		job = latest
	}
	pid := p.ensureProcessLocked(job, dir)
	p.processID = pid
	p.jobDir = dir

	if latest != nil && latest.JobID == held && latest.Status.Running() {
		p.session.SetOverlay(models.OverlayProcesses)
	}

	p.launchLocked(held, p.transitionHandler(held, false))
	return held
}

func (p *Poller) adoptable(s models.JobStatus) bool {
	switch s {
	case models.JobInProgress, models.JobReadyToFinalize:
		return true
	case models.JobPending:
		return p.cfg.AdoptPending
	default:
		return false
	}
}

// ensureProcessLocked returns the ledger entry for job, creating one for a job started by an earlier process.
func (p *Poller) ensureProcessLocked(job *models.Job, dir models.Direction) string {
	if proc, ok := p.ledger.FindByJob(job.JobID); ok {
		return proc.ID
	}
	name := job.PlaylistName
	if name == "" {
		name = job.JobID
	}
	return p.ledger.AddProcess(dir.ProcessType(), fmt.Sprintf("Syncing %s…", name), ProcessExtra{JobID: job.JobID})
}

// Stop cancels the running loop. The current job id is kept.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Clear stops polling and forgets the current job.
func (p *Poller) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.processID = ""
	p.lastStatus = ""
	p.jobDir = ""
	if !p.observer {
		p.current.Set("")
	}
}

// Polling reports whether a loop is running.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Wait blocks until every loop has exited.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// runFinalizeLoop polls jobID with h under a new generation.
func (p *Poller) runFinalizeLoop(jobID, processID string, h loopHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.observer {
		return shared.ErrObserverMode
	}
	if p.current.Get() != jobID {
		return fmt.Errorf("%w: %s is no longer current", shared.ErrNoCurrentJob, jobID)
	}
	p.processID = processID
	p.launchLocked(jobID, h)
	return nil
}

// forgetLocked drops the current job after it reached a terminal state. Caller holds mu.
func (p *Poller) forgetLocked() {
	p.processID = ""
	p.current.Set("")
}
