package tasks

import (
	"sync"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// AutoDismiss closes the review overlay when a job produced nothing to review.
//
// The condition is: overlay is songSyncStatus and both lists are empty. While it holds, a fade timer
// and a dismiss timer run; if it stops holding both are cancelled. AutoDismiss never touches job state.
type AutoDismiss struct {
	session    *Session
	reconciler *Reconciler
	fadeAfter  time.Duration
	after      time.Duration

	mu           sync.Mutex
	active       bool
	fading       bool
	closed       bool
	gen          uint64
	fadeTimer    *time.Timer
	dismissTimer *time.Timer
	onDismiss    []func()
}

func NewAutoDismiss(session *Session, reconciler *Reconciler, cfg shared.DismissConfig) *AutoDismiss {
	d := &AutoDismiss{
		session:    session,
		reconciler: reconciler,
		fadeAfter:  cfg.FadeAfter,
		after:      cfg.After,
	}
	session.OnChange(d.evaluate)
	reconciler.OnChange(d.evaluate)
	d.evaluate()
	return d
}

func (d *AutoDismiss) holds() bool {
	return d.session.Overlay() == models.OverlaySongSyncStatus && d.reconciler.Empty()
}

func (d *AutoDismiss) evaluate() {
	holds := d.holds()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	notify := false
	switch {
	case holds && !d.active:
		d.active = true
		d.fading = false
		d.gen++
		gen := d.gen
		d.fadeTimer = time.AfterFunc(d.fadeAfter, func() { d.fade(gen) })
		d.dismissTimer = time.AfterFunc(d.after, func() { d.dismiss(gen) })
		notify = true
	case !holds && d.active:
		d.cancelLocked()
	}
	d.mu.Unlock()

	if notify {
		d.session.Notify(emptyResultNotification())
	}
}

func (d *AutoDismiss) fade(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen == d.gen && d.active {
		d.fading = true
	}
}

func (d *AutoDismiss) dismiss(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	d.fading = false
	d.fadeTimer = nil
	d.dismissTimer = nil
	d.mu.Unlock()

	// Overlay first, so clearing the lists cannot re-arm the timers.
	d.session.SetOverlay(models.OverlayNone)
	d.reconciler.Clear()

	d.mu.Lock()
	hooks := append([]func(){}, d.onDismiss...)
	d.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// OnDismiss registers fn to run after the overlay was dismissed.
func (d *AutoDismiss) OnDismiss(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDismiss = append(d.onDismiss, fn)
}

func (d *AutoDismiss) cancelLocked() {
	if d.fadeTimer != nil {
		d.fadeTimer.Stop()
		d.fadeTimer = nil
	}
	if d.dismissTimer != nil {
		d.dismissTimer.Stop()
		d.dismissTimer = nil
	}
	d.active = false
	d.fading = false
	d.gen++
}

// Active reports whether the dismiss window is open.
func (d *AutoDismiss) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Fading reports whether the fade part of the window has begun.
func (d *AutoDismiss) Fading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fading
}

// Close cancels the timers and stops observing.
func (d *AutoDismiss) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}
