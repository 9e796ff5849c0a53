package tasks

import (
	"sync"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/store"
)

const notificationBuffer = 32

// Session holds the process-wide UI state: overlay mode, finalizing flag and the latest status message.
//
// The overlay is persisted; the other fields live only as long as the process.
type Session struct {
	overlay *store.Cell[models.Overlay]

	mu            sync.Mutex
	finalizing    bool
	status        Notification
	listeners     []func()
	notifications chan Notification
}

func NewSession(overlay *store.Cell[models.Overlay]) *Session {
	s := &Session{
		overlay:       overlay,
		notifications: make(chan Notification, notificationBuffer),
	}
	overlay.OnChange(func(models.Overlay) { s.changed() })
	return s
}

// Overlay returns the current overlay mode, [models.OverlayNone] if unset.
func (s *Session) Overlay() models.Overlay {
	if o := s.overlay.Get(); o != "" {
		return o
	}
	return models.OverlayNone
}

func (s *Session) SetOverlay(o models.Overlay) {
	if s.overlay.Get() == o {
		return
	}
	s.overlay.Set(o)
	s.changed()
}

func (s *Session) Finalizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizing
}

func (s *Session) SetFinalizing(v bool) {
	s.mu.Lock()
	if s.finalizing == v {
		s.mu.Unlock()
		return
	}
	s.finalizing = v
	s.mu.Unlock()
	s.changed()
}

// BeginFinalizing sets the finalizing flag and reports whether it was clear before.
func (s *Session) BeginFinalizing() bool {
	s.mu.Lock()
	if s.finalizing {
		s.mu.Unlock()
		return false
	}
	s.finalizing = true
	s.mu.Unlock()
	s.changed()
	return true
}

// Notify records n as the status line and forwards it without blocking.
func (s *Session) Notify(n Notification) {
	s.mu.Lock()
	s.status = n
	s.mu.Unlock()

	select {
	case s.notifications <- n:
	default:
		// Channel full, the status line still holds the latest message
	}
	s.changed()
}

// Status returns the latest notification.
func (s *Session) Status() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Notifications streams every notification. Updates are dropped when nobody reads.
func (s *Session) Notifications() <-chan Notification {
	return s.notifications
}

// OnChange registers fn to run after any overlay, finalizing or status change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) changed() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
