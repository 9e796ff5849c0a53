package tasks

import (
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// ProcessExtra carries optional fields for [Ledger.AddProcess].
type ProcessExtra struct {
	JobID        string
	SubMessage   string
	Interactive  bool
	CountdownEnd time.Time
}

// ProcessUpdate changes one optional field in [Ledger.UpdateProcess].
type ProcessUpdate func(*models.Process)

func WithMessage(msg string) ProcessUpdate {
	return func(p *models.Process) { p.Message = msg }
}

func WithSubMessage(msg string) ProcessUpdate {
	return func(p *models.Process) { p.SubMessage = msg }
}

func WithInteractive(v bool) ProcessUpdate {
	return func(p *models.Process) { p.Interactive = v }
}

// Ledger is the in-memory list of user-visible operations.
//
// At most one sync-family process exists at a time: adding one evicts the previous.
type Ledger struct {
	mu        sync.Mutex
	processes []models.Process
	timers    map[string]*time.Timer
	listeners []func([]models.Process)
	now       func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// AddProcess appends a process and returns its time-ordered id.
func (l *Ledger) AddProcess(t models.ProcessType, message string, extra ProcessExtra) string {
	l.mu.Lock()

	if t.IsSync() {
		l.processes = slices.DeleteFunc(l.processes, func(p models.Process) bool {
			if p.Type.IsSync() {
				l.stopTimerLocked(p.ID)
				return true
			}
			return false
		})
	}

	status := models.ProcessPending
	if t.IsSync() {
		status = models.ProcessInProgress
	}

	p := models.Process{
		ID:           shared.GenerateTimeID(),
		Type:         t,
		Status:       status,
		Message:      message,
		SubMessage:   extra.SubMessage,
		JobID:        extra.JobID,
		Interactive:  extra.Interactive,
		CountdownEnd: extra.CountdownEnd,
		CreatedAt:    l.now(),
	}
	l.processes = append(l.processes, p)
	l.mu.Unlock()

	l.changed()
	return p.ID
}

// UpdateProcess sets status and any given fields. Unknown ids are ignored.
func (l *Ledger) UpdateProcess(id string, status models.ProcessStatus, updates ...ProcessUpdate) {
	l.mutate(id, func(p *models.Process) {
		p.Status = status
		for _, u := range updates {
			u(p)
		}
	})
}

// AttachJob records the backend job id once it is known.
func (l *Ledger) AttachJob(id, jobID string) {
	l.mutate(id, func(p *models.Process) { p.JobID = jobID })
}

func (l *Ledger) SetSubMessage(id, msg string) {
	l.mutate(id, func(p *models.Process) { p.SubMessage = msg })
}

// SetCountdown sets the estimated completion time. The zero time clears it.
func (l *Ledger) SetCountdown(id string, end time.Time) {
	l.mutate(id, func(p *models.Process) { p.CountdownEnd = end })
}

func (l *Ledger) mutate(id string, fn func(*models.Process)) {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return
	}
	fn(&l.processes[i])
	l.mu.Unlock()
	l.changed()
}

func (l *Ledger) RemoveProcess(id string) {
	l.mu.Lock()
	l.stopTimerLocked(id)
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return
	}
	l.processes = slices.Delete(l.processes, i, i+1)
	l.mu.Unlock()
	l.changed()
}

// Restore puts back a process evicted by [Ledger.AddProcess]. A process whose id is still present is left alone.
func (l *Ledger) Restore(p models.Process) {
	l.mu.Lock()
	if l.indexLocked(p.ID) >= 0 {
		l.mu.Unlock()
		return
	}
	l.processes = append(l.processes, p)
	l.mu.Unlock()
	l.changed()
}

// RemoveAfter removes the process after d unless it became interactive in the meantime.
func (l *Ledger) RemoveAfter(id string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked(id)
	l.timers[id] = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, id)
		i := l.indexLocked(id)
		keep := i >= 0 && l.processes[i].Interactive
		l.mu.Unlock()
		if !keep {
			l.RemoveProcess(id)
		}
	})
}

// Processes returns a copy of the ledger in insertion order.
func (l *Ledger) Processes() []models.Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.processes)
}

func (l *Ledger) Get(id string) (models.Process, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexLocked(id); i >= 0 {
		return l.processes[i], true
	}
	return models.Process{}, false
}

// FindByJob returns the process backing jobID.
func (l *Ledger) FindByJob(jobID string) (models.Process, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.processes {
		if p.JobID == jobID {
			return p, true
		}
	}
	return models.Process{}, false
}

// Subscribe registers fn to receive a copy of the ledger after every change.
func (l *Ledger) Subscribe(fn func([]models.Process)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Close cancels pending removals.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.timers {
		l.stopTimerLocked(id)
	}
}

func (l *Ledger) indexLocked(id string) int {
	return slices.IndexFunc(l.processes, func(p models.Process) bool { return p.ID == id })
}

func (l *Ledger) stopTimerLocked(id string) {
	if t, ok := l.timers[id]; ok {
		t.Stop()
		delete(l.timers, id)
	}
}

func (l *Ledger) changed() {
	l.mu.Lock()
	snapshot := slices.Clone(l.processes)
	listeners := slices.Clone(l.listeners)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}
