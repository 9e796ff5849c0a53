package store

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jobsync/internal/telemetry"
)

// WriteState is the position of a [Cell] in its write cycle.
type WriteState int

const (
	Idle     WriteState = iota // nothing to write
	Pending                    // a change is waiting for the debounce timer
	Writing                    // a save is in flight
	Cooldown                   // a save just completed; notifications are echoes
)

func (s WriteState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Writing:
		return "writing"
	case Cooldown:
		return "cooldown"
	default:
		return ""
	}
}

// Cell is a typed value persisted under one key.
//
// Reads never block: until the initial load resolves, Get returns the default.
// Set updates memory at once and schedules a write Debounce after the last change.
// Notifications from the backend are dropped while Writing or Cooldown, and
// applied otherwise only if their JSON differs from the in-memory value.
// Backend errors are logged and never surfaced to callers.
type Cell[T any] struct {
	key     string
	backend Backend
	opts    Options
	logger  *log.Logger

	mu        sync.Mutex
	value     T
	state     WriteState
	dirty     bool
	touched   bool
	debounce  *time.Timer
	cooldown  *time.Timer
	observers []func(T)
	closed    bool

	ready  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCell binds key to a value of type T. The initial load and change watch run in the background.
func NewCell[T any](s *Store, key string, def T) *Cell[T] {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cell[T]{
		key:     key,
		backend: s.backend,
		opts:    s.opts,
		logger:  s.logger.With("key", key),
		value:   def,
		ready:   make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Cell[T]) run() {
	defer c.wg.Done()

	changes, err := c.backend.Watch(c.ctx, c.key)
	if err != nil {
		c.logger.Warn("failed to watch key", "error", err)
	}

	c.load()

	if changes == nil {
		return
	}
	for data := range changes {
		c.applyExternal(data)
	}
}

func (c *Cell[T]) load() {
	defer close(c.ready)

	data, ok, err := c.backend.Load(c.ctx, c.key)
	if err != nil {
		c.logger.Warn("failed to load key", "error", err)
		return
	}
	if !ok {
		return
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("failed to decode stored value", "error", err)
		return
	}

	c.mu.Lock()
	if c.touched {
		// a local Set raced the load and is newer
		c.mu.Unlock()
		return
	}
	c.value = v
	c.mu.Unlock()
}

func (c *Cell[T]) applyExternal(data []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	switch c.state {
	case Writing, Cooldown:
		c.mu.Unlock()
		telemetry.StoreEchoesSuppressed.Inc()
		return
	case Pending:
		// the local change will overwrite it
		c.mu.Unlock()
		return
	}

	current, err := json.Marshal(c.value)
	if err == nil && bytes.Equal(current, data) {
		c.mu.Unlock()
		return
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.mu.Unlock()
		c.logger.Warn("ignoring undecodable change", "error", err)
		return
	}
	c.value = v
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	c.logger.Debug("applied external change")
	for _, fn := range observers {
		fn(v)
	}
}

// Get returns the in-memory value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Ready is closed once the initial load has resolved, successfully or not.
func (c *Cell[T]) Ready() <-chan struct{} {
	return c.ready
}

// Key returns the persisted key.
func (c *Cell[T]) Key() string { return c.key }

// State reports the write cycle position.
func (c *Cell[T]) State() WriteState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Set replaces the value and schedules a debounced write.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.value = v
	c.touched = true

	if c.state == Writing {
		c.dirty = true
		return
	}
	c.schedule()
}

// Update applies fn to the current value under the cell's lock and schedules a write.
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.value = fn(c.value)
	c.touched = true

	if c.state == Writing {
		c.dirty = true
		return
	}
	c.schedule()
}

// schedule moves to Pending and (re)arms the debounce timer. Caller holds mu.
func (c *Cell[T]) schedule() {
	c.state = Pending
	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.AfterFunc(c.opts.Debounce, func() {
		c.mu.Lock()
		if c.state != Pending || c.closed {
			c.mu.Unlock()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.write(ctx)
	})
}

// write persists the current value. Caller holds mu; write releases it.
func (c *Cell[T]) write(ctx context.Context) error {
	data, err := json.Marshal(c.value)
	c.state = Writing
	if c.cooldown != nil {
		c.cooldown.Stop()
	}
	c.mu.Unlock()

	if err == nil {
		err = c.backend.Save(ctx, c.key, data)
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.logger.Error("failed to persist value", "error", err)
	}
	telemetry.StoreWrites.WithLabelValues(c.backend.Name(), result).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.state = Idle
		return err
	}

	c.state = Cooldown
	c.cooldown = time.AfterFunc(c.opts.EchoWindow, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == Cooldown {
			c.state = Idle
		}
	})

	if c.dirty {
		c.dirty = false
		c.schedule()
	}
	return err
}

// OnChange registers fn for changes made by other writers.
func (c *Cell[T]) OnChange(fn func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Flush writes a pending change now instead of waiting for the debounce timer.
func (c *Cell[T]) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Pending || c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	return c.write(ctx)
}

// Close stops timers and the watch goroutine. A pending change is dropped; call Flush first to keep it.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.debounce != nil {
		c.debounce.Stop()
	}
	if c.cooldown != nil {
		c.cooldown.Stop()
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
