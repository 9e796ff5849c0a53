package tasks

import (
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
)

func TestLedger(t *testing.T) {
	t.Run("AddProcess", func(t *testing.T) {
		tests := []struct {
			name     string
			types    []models.ProcessType
			wantSync int
			wantLen  int
		}{
			{"single sync", []models.ProcessType{models.ProcessSyncForward}, 1, 1},
			{"sync replaces sync", []models.ProcessType{models.ProcessSyncForward, models.ProcessSyncReverse}, 1, 1},
			{"non-sync kept", []models.ProcessType{models.ProcessDownload, models.ProcessSyncForward, models.ProcessMerge, models.ProcessSyncReverse}, 1, 3},
			{"only non-sync", []models.ProcessType{models.ProcessDownload, models.ProcessMerge}, 0, 2},
			{"many syncs", []models.ProcessType{
				models.ProcessSyncForward, models.ProcessSyncForward, models.ProcessSyncReverse,
				models.ProcessSyncForward, models.ProcessSyncReverse,
			}, 1, 1},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				l := NewLedger()
				defer l.Close()

				var lastSync string
				for _, typ := range tt.types {
					id := l.AddProcess(typ, string(typ), ProcessExtra{})
					if typ.IsSync() {
						lastSync = id
					}
					if n := len(syncProcesses(l)); n > 1 {
						t.Fatalf("expected at most one sync process, got %d", n)
					}
				}

				syncs := syncProcesses(l)
				if len(syncs) != tt.wantSync {
					t.Fatalf("expected %d sync processes, got %d", tt.wantSync, len(syncs))
				}
				if tt.wantSync == 1 && syncs[0].ID != lastSync {
					t.Errorf("expected most recent sync %s to remain, got %s", lastSync, syncs[0].ID)
				}
				if got := len(l.Processes()); got != tt.wantLen {
					t.Errorf("expected %d processes, got %d", tt.wantLen, got)
				}
			})
		}
	})

	t.Run("Initial Status", func(t *testing.T) {
		l := NewLedger()
		defer l.Close()

		syncID := l.AddProcess(models.ProcessSyncReverse, "sync", ProcessExtra{JobID: "J1", SubMessage: "0 of 3"})
		dlID := l.AddProcess(models.ProcessDownload, "download", ProcessExtra{})

		p, _ := l.Get(syncID)
		if p.Status != models.ProcessInProgress {
			t.Errorf("expected sync process in-progress, got %s", p.Status)
		}
		if p.JobID != "J1" || p.SubMessage != "0 of 3" {
			t.Errorf("extra fields not applied: %+v", p)
		}
		if p.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}

		d, _ := l.Get(dlID)
		if d.Status != models.ProcessPending {
			t.Errorf("expected download process pending, got %s", d.Status)
		}
	})

	t.Run("UpdateProcess", func(t *testing.T) {
		l := NewLedger()
		defer l.Close()

		id := l.AddProcess(models.ProcessSyncForward, "Syncing", ProcessExtra{})
		l.UpdateProcess(id, models.ProcessDone, WithMessage("Ready for review"), WithInteractive(true))

		p, ok := l.Get(id)
		if !ok {
			t.Fatal("expected process")
		}
		if p.Status != models.ProcessDone || p.Message != "Ready for review" || !p.Interactive {
			t.Errorf("update not applied: %+v", p)
		}

		t.Run("Unknown Id Is Ignored", func(t *testing.T) {
			l.UpdateProcess("missing", models.ProcessError, WithMessage("nope"))
			if len(l.Processes()) != 1 {
				t.Error("expected ledger unchanged")
			}
		})

		t.Run("Countdown", func(t *testing.T) {
			end := time.Now().Add(time.Minute)
			l.SetCountdown(id, end)
			p, _ := l.Get(id)
			if rem := p.Remaining(time.Now()); rem <= 0 || rem > time.Minute {
				t.Errorf("unexpected remaining %v", rem)
			}

			l.SetCountdown(id, time.Time{})
			p, _ = l.Get(id)
			if p.Remaining(time.Now()) != 0 {
				t.Error("expected cleared countdown")
			}
		})
	})

	t.Run("AttachJob", func(t *testing.T) {
		l := NewLedger()
		defer l.Close()

		id := l.AddProcess(models.ProcessSyncForward, "Syncing", ProcessExtra{})
		l.AttachJob(id, "J7")

		p, ok := l.FindByJob("J7")
		if !ok || p.ID != id {
			t.Errorf("expected to find process %s by job, got %+v", id, p)
		}
	})

	t.Run("RemoveAfter", func(t *testing.T) {
		l := NewLedger()
		defer l.Close()

		gone := l.AddProcess(models.ProcessDownload, "download", ProcessExtra{})
		kept := l.AddProcess(models.ProcessMerge, "merge", ProcessExtra{Interactive: true})

		l.RemoveAfter(gone, 10*time.Millisecond)
		l.RemoveAfter(kept, 10*time.Millisecond)

		if !waitFor(t, time.Second, func() bool { _, ok := l.Get(gone); return !ok }) {
			t.Fatal("expected non-interactive process to be removed")
		}
		if _, ok := l.Get(kept); !ok {
			t.Error("expected interactive process to be kept")
		}
	})

	t.Run("Close Cancels Removal", func(t *testing.T) {
		l := NewLedger()
		id := l.AddProcess(models.ProcessDownload, "download", ProcessExtra{})
		l.RemoveAfter(id, 10*time.Millisecond)
		l.Close()

		time.Sleep(30 * time.Millisecond)
		if _, ok := l.Get(id); !ok {
			t.Error("expected process to survive after Close")
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		l := NewLedger()
		defer l.Close()

		var mu sync.Mutex
		var snapshots [][]models.Process
		l.Subscribe(func(ps []models.Process) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, ps)
		})

		id := l.AddProcess(models.ProcessSyncForward, "Syncing", ProcessExtra{})
		l.UpdateProcess(id, models.ProcessCompleted)
		l.RemoveProcess(id)

		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) != 3 {
			t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
		}
		if snapshots[1][0].Status != models.ProcessCompleted {
			t.Errorf("expected second snapshot to carry the update, got %s", snapshots[1][0].Status)
		}
		if len(snapshots[2]) != 0 {
			t.Errorf("expected empty ledger after removal, got %d", len(snapshots[2]))
		}
	})
}
