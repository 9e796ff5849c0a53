package tasks

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
	tu "github.com/desertthunder/jobsync/internal/testing"
)

const testUser = "u1"

func testConfig() *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.User.ID = testUser
	cfg.Poll.Interval = 10 * time.Millisecond
	cfg.Poll.EstimatePerTrack = time.Second
	cfg.Dismiss.FadeAfter = 45 * time.Millisecond
	cfg.Dismiss.After = 50 * time.Millisecond
	cfg.Health.Interval = 20 * time.Millisecond
	return cfg
}

type harness struct {
	fake   *tu.FakeBackend
	mem    *store.MemoryBackend
	cfg    *shared.Config
	client *Client
}

func newHarness(t *testing.T, cfg *shared.Config, mem *store.MemoryBackend) *harness {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if mem == nil {
		mem = store.NewMemoryBackend()
	}
	h := &harness{fake: tu.NewFakeBackend(t), mem: mem, cfg: cfg}
	h.client = h.open(t, "-")
	return h
}

// open builds another client on the same backend and store.
func (h *harness) open(t *testing.T, lockPath string) *Client {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	s := store.New(h.mem, store.Options{Debounce: 5 * time.Millisecond, EchoWindow: 5 * time.Millisecond}, logger)
	jobs := services.NewJobsService(services.NewAPIService(h.fake.URL(), nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := NewClient(ctx, ClientOptions{Config: h.cfg, Store: s, Jobs: jobs, Logger: logger, LockPath: lockPath})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

// persist writes a raw JSON value as if another session had stored it.
func (h *harness) persist(t *testing.T, key, value string) {
	t.Helper()
	if err := h.mem.Save(context.Background(), key, []byte(value)); err != nil {
		t.Fatalf("failed to seed %s: %v", key, err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

// drain returns every notification currently buffered.
func drain(s *Session) []Notification {
	var out []Notification
	for {
		select {
		case n := <-s.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func countKind(ns []Notification, kind NotifyKind) int {
	n := 0
	for _, x := range ns {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

func song(name string, status models.SongStatus, manual bool) models.SongMatch {
	return models.SongMatch{Name: name, Artist: "Artist " + name, Status: status, RequiresManualSearch: manual}
}

func withSongs(status models.JobStatus, songs ...models.SongMatch) models.Job {
	if songs == nil {
		songs = []models.SongMatch{}
	}
	return models.Job{Status: status, Result: &models.JobResult{Songs: songs}}
}

func syncProcesses(l *Ledger) []models.Process {
	var out []models.Process
	for _, p := range l.Processes() {
		if p.Type.IsSync() {
			out = append(out, p)
		}
	}
	return out
}
