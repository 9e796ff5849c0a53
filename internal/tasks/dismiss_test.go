package tasks

import (
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
)

func TestAutoDismiss(t *testing.T) {
	t.Run("Empty Result Is Dismissed", func(t *testing.T) {
		cfg := testConfig()
		cfg.Dismiss.FadeAfter = 60 * time.Millisecond
		cfg.Dismiss.After = 80 * time.Millisecond
		h := newHarness(t, cfg, nil)
		c := h.client

		h.fake.Script("J1",
			models.Job{Status: models.JobPending},
			models.Job{Status: models.JobInProgress},
			withSongs(models.JobReadyToFinalize),
		)
		c.Poller.Track("J1", "")

		if !waitFor(t, time.Second, c.Dismiss.Active) {
			t.Fatal("expected dismiss window to open")
		}
		opened := time.Now()
		if c.Session.Overlay() != models.OverlaySongSyncStatus {
			t.Fatalf("expected review overlay, got %s", c.Session.Overlay())
		}
		if msg := c.Session.Status().Message; msg == "" {
			t.Error("expected the empty-result message")
		}

		time.Sleep(40 * time.Millisecond)
		if c.Session.Overlay() != models.OverlaySongSyncStatus {
			t.Fatal("dismissed before the fade began")
		}
		if c.Dismiss.Fading() {
			t.Error("expected no fade yet")
		}

		if !waitFor(t, time.Second, c.Dismiss.Fading) {
			t.Error("expected fade to begin")
		}
		if !waitFor(t, time.Second, func() bool { return c.Session.Overlay() == models.OverlayNone }) {
			t.Fatal("expected overlay none")
		}
		if elapsed := time.Since(opened); elapsed > 500*time.Millisecond {
			t.Errorf("dismissed too late: %v", elapsed)
		}
		if c.Dismiss.Active() || c.Dismiss.Fading() {
			t.Error("expected window closed")
		}
		if !c.Reconciler.Empty() {
			t.Error("expected lists cleared")
		}
		if c.Poller.CurrentJobID() != "" {
			t.Error("expected the empty job to be forgotten")
		}
	})

	t.Run("Cancelled When Data Arrives", func(t *testing.T) {
		c := newHarness(t, nil, nil).client

		c.Session.SetOverlay(models.OverlaySongSyncStatus)
		if !c.Dismiss.Active() {
			t.Fatal("expected dismiss window to open")
		}

		c.Reconciler.SetSongs(models.Forward, []models.SongMatch{song("A", models.SongFound, false)})
		if c.Dismiss.Active() {
			t.Error("expected window to close when songs arrive")
		}

		time.Sleep(3 * dismissWindow())
		if c.Session.Overlay() != models.OverlaySongSyncStatus {
			t.Errorf("expected overlay kept, got %s", c.Session.Overlay())
		}
		if len(c.Reconciler.Songs(models.Forward)) != 1 {
			t.Error("expected songs kept")
		}
	})

	t.Run("Cancelled When Overlay Changes", func(t *testing.T) {
		c := newHarness(t, nil, nil).client

		c.Session.SetOverlay(models.OverlaySongSyncStatus)
		c.Session.SetOverlay(models.OverlayProcesses)
		if c.Dismiss.Active() {
			t.Error("expected window closed")
		}

		time.Sleep(3 * dismissWindow())
		if c.Session.Overlay() != models.OverlayProcesses {
			t.Errorf("expected overlay kept, got %s", c.Session.Overlay())
		}
	})

	t.Run("Other Overlays Are Ignored", func(t *testing.T) {
		c := newHarness(t, nil, nil).client

		for _, o := range []models.Overlay{models.OverlayNone, models.OverlayProcesses, models.OverlayFinalizing} {
			c.Session.SetOverlay(o)
			if c.Dismiss.Active() {
				t.Errorf("expected no window for overlay %s", o)
			}
		}
	})

	t.Run("Close Stops Timers", func(t *testing.T) {
		c := newHarness(t, nil, nil).client

		c.Session.SetOverlay(models.OverlaySongSyncStatus)
		c.Dismiss.Close()

		time.Sleep(3 * dismissWindow())
		if c.Session.Overlay() != models.OverlaySongSyncStatus {
			t.Error("expected no dismissal after Close")
		}
	})
}

// dismissWindow is the dismiss delay of testConfig.
func dismissWindow() time.Duration { return testConfig().Dismiss.After }
