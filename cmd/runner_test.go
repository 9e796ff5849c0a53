package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/repositories"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
	"github.com/desertthunder/jobsync/internal/tasks"
	tu "github.com/desertthunder/jobsync/internal/testing"
)

type testEnv struct {
	runner *Runner
	fake   *tu.FakeBackend
	out    *bytes.Buffer
	db     *sql.DB
	store  *store.Store
	cfg    *shared.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := tu.NewFakeBackend(t)
	cfg := shared.DefaultConfig()
	cfg.User.ID = "u1"
	cfg.API.BaseURL = fake.URL()
	cfg.Poll.Interval = 10 * time.Millisecond
	cfg.Store.DataDir = t.TempDir()

	db, err := shared.OpenMigrated(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	logger := shared.NewLogger(io.Discard)
	s := store.New(store.NewMemoryBackend(), store.Options{Debounce: 5 * time.Millisecond, EchoWindow: 5 * time.Millisecond}, logger)

	env := &testEnv{fake: fake, out: &bytes.Buffer{}, db: db, store: s, cfg: cfg}
	env.runner = env.newRunner()

	t.Cleanup(func() {
		env.runner.Close(context.Background())
		s.Close()
		db.Close()
	})
	return env
}

// newRunner returns a runner sharing the env's database and store, like a second process would.
func (e *testEnv) newRunner() *Runner {
	logger := shared.NewLogger(io.Discard)
	return NewRunner(RunnerOpts{
		Config:   e.cfg,
		Jobs:     services.NewJobsService(services.NewAPIService(e.fake.URL(), nil)),
		Logger:   logger,
		Output:   e.out,
		DB:       e.db,
		Store:    e.store,
		LockPath: "-",
	})
}

func (e *testEnv) run(args ...string) error {
	app := &cli.Command{Name: "jobsync", Commands: e.runner.register()}
	return app.Run(context.Background(), append([]string{"jobsync"}, args...))
}

func (e *testEnv) client(t *testing.T) *tasks.Client {
	t.Helper()
	c, err := e.runner.open(context.Background())
	if err != nil {
		t.Fatalf("failed to open client: %v", err)
	}
	return c
}

func reviewSongs() []models.SongMatch {
	return []models.SongMatch{
		{Name: "Lost", Artist: "Band", Status: models.SongNotFound, RequiresManualSearch: true},
		{Name: "Found", Artist: "Band", Status: models.SongFound, YouTubeID: "yt2"},
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			jobs := services.NewJobsService(services.NewAPIService("http://127.0.0.1:1", nil))

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Jobs:       jobs,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.jobs != jobs {
				t.Error("expected jobs client to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if !runner.plain {
				t.Error("expected plain output for a non-terminal writer")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.jobs == nil {
				t.Error("expected jobs client built from config")
			}
		})

		t.Run("does not open anything until used", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.db != nil || runner.store != nil || runner.client != nil {
				t.Error("expected lazy initialization")
			}
			if err := runner.Close(context.Background()); err != nil {
				t.Errorf("expected no error closing an unused runner, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"key\":\"value\"}\n" {
				t.Errorf("expected compact JSON, got %q", output.String())
			}
		})

		t.Run("returns error for unmarshalable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected error for channel")
			}
		})

		t.Run("returns error on write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.writePlain("Hello %s\n", "World")
		runner.writePlainln("Section")
		runner.writePlainHeader("Title")

		result := output.String()
		if !strings.HasPrefix(result, "Hello World\n\nSection\n") {
			t.Errorf("unexpected output %q", result)
		}
		if !strings.Contains(result, "═\nTitle\n═") {
			t.Errorf("expected header, got %q", result)
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		commands := runner.register()

		names := make(map[string]bool, len(commands))
		for _, cmd := range commands {
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "health", "sync", "review", "jobs", "store", "serve", "tui"} {
			if !names[want] {
				t.Errorf("expected command %q to be registered", want)
			}
		}
	})
}

func TestOptionalDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    models.Direction
		wantErr bool
	}{
		{"", "", false},
		{"forward", models.Forward, false},
		{"reverse", models.Reverse, false},
		{"sideways", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := optionalDirection(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("expected %q, got %q (%v)", tt.want, got, err)
			}
		})
	}
}

func TestSetupCommands(t *testing.T) {
	t.Run("Config", func(t *testing.T) {
		env := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := env.run("setup", "config", "--path", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("expected a loadable config, got %v", err)
		}
		if err := env.run("setup", "config", "--path", path); err == nil {
			t.Error("expected error when the file exists")
		}
	})

	t.Run("Database", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "Database ready") {
			t.Errorf("unexpected output %q", env.out.String())
		}
	})

	t.Run("Health", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("health"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "Backend reachable") {
			t.Errorf("unexpected output %q", env.out.String())
		}

		env.fake.SetHealth("degraded")
		if err := env.run("health"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSyncCommands(t *testing.T) {
	t.Run("Start", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.run("sync", "start", "--playlist", "Road Trip", "--track", "a", "--track", "b")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "Started job job-1") {
			t.Errorf("unexpected output %q", env.out.String())
		}

		starts := env.fake.Starts()
		if len(starts) != 1 {
			t.Fatalf("expected 1 start, got %d", len(starts))
		}
		if starts[0].PlaylistName != "Road Trip" || len(starts[0].TracksToSync) != 2 || starts[0].Direction != "forward" {
			t.Errorf("unexpected start call %+v", starts[0])
		}

		env.out.Reset()
		if err := env.run("sync", "status", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var snap tasks.Snapshot
		if err := json.Unmarshal(env.out.Bytes(), &snap); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, env.out.String())
		}
		if snap.JobID != "job-1" || !snap.Connected {
			t.Errorf("unexpected snapshot %+v", snap)
		}

		if err := env.run("sync", "start", "--playlist", "Again"); !errors.Is(err, shared.ErrJobInFlight) {
			t.Errorf("expected ErrJobInFlight, got %v", err)
		}
	})

	t.Run("Start Validation", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("sync", "start", "--playlist", "X", "--direction", "up"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := env.run("sync", "start"); err == nil {
			t.Error("expected error without --playlist")
		}

		env.cfg.User.ID = ""
		if err := env.run("sync", "start", "--playlist", "X"); !errors.Is(err, shared.ErrMissingUser) {
			t.Errorf("expected ErrMissingUser, got %v", err)
		}
	})

	t.Run("Review And Finalize", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.Script("job-1",
			models.Job{Status: models.JobInProgress},
			models.Job{Status: models.JobReadyToFinalize, Result: &models.JobResult{Songs: reviewSongs()}},
		)

		if err := env.run("sync", "start", "--playlist", "Road Trip", "--wait"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "2 songs ready for review") {
			t.Errorf("expected review notification, got:\n%s", env.out.String())
		}

		env.out.Reset()
		if err := env.run("review", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, want := range []string{"Lost", "needs search", "1 unresolved, can finalize: false"} {
			if !strings.Contains(env.out.String(), want) {
				t.Errorf("review list missing %q, got:\n%s", want, env.out.String())
			}
		}

		if err := env.run("sync", "finalize"); !errors.Is(err, shared.ErrUnresolvedSongs) {
			t.Fatalf("expected ErrUnresolvedSongs, got %v", err)
		}
		if err := env.run("review", "skip", "--index", "0"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		env.out.Reset()
		if err := env.run("sync", "finalize", "--wait"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := env.out.String()
		if !strings.Contains(out, "Finalize accepted for job job-1") || !strings.Contains(out, "✓ Sync finalized") {
			t.Errorf("unexpected output:\n%s", out)
		}

		songs, ok := env.fake.Finalized("job-1")
		if !ok || len(songs) != 2 || songs[0].Status != models.SongSkipped {
			t.Errorf("unexpected finalized songs %+v", songs)
		}

		c := env.client(t)
		c.Poller.Wait()
		if c.Poller.CurrentJobID() != "" {
			t.Error("expected current job cleared")
		}

		env.out.Reset()
		if err := env.run("jobs", "history", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var records []*models.JobRecord
		if err := json.Unmarshal(env.out.Bytes(), &records); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(records) != 1 || records[0].JobID != "job-1" || records[0].Status != models.JobCompleted {
			t.Errorf("unexpected history %+v", records)
		}
	})

	t.Run("Finalize Skip Unresolved", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.Script("job-1", models.Job{Status: models.JobReadyToFinalize, Result: &models.JobResult{Songs: reviewSongs()}})

		if err := env.run("sync", "start", "--playlist", "Road Trip", "--wait"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := env.run("sync", "finalize", "--skip-unresolved"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "sync resume --wait") {
			t.Errorf("expected follow hint, got:\n%s", env.out.String())
		}
		if songs, _ := env.fake.Finalized("job-1"); len(songs) != 2 || songs[0].Status != models.SongSkipped {
			t.Errorf("unexpected finalized songs %+v", songs)
		}
	})

	t.Run("Finalize Without Job", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("sync", "finalize"); !errors.Is(err, shared.ErrNoCurrentJob) {
			t.Errorf("expected ErrNoCurrentJob, got %v", err)
		}
	})

	t.Run("Resume", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("sync", "resume"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "No job to resume") {
			t.Errorf("unexpected output %q", env.out.String())
		}

		env.fake.Script("job-7", models.Job{Status: models.JobInProgress}, models.Job{Status: models.JobCompleted, Notes: "All done"})
		env.fake.SetLatest("u1", "job-7")

		env.out.Reset()
		if err := env.run("sync", "resume", "--wait"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		out := env.out.String()
		if !strings.Contains(out, "Following job job-7") || !strings.Contains(out, "✓ All done") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestReviewCommands(t *testing.T) {
	seed := func(t *testing.T, env *testEnv) *tasks.Client {
		t.Helper()
		c := env.client(t)
		c.Reconciler.Seed("job-1", models.Forward, reviewSongs())
		return c
	}

	t.Run("Search And Select", func(t *testing.T) {
		env := newTestEnv(t)
		c := seed(t, env)
		env.fake.SetCandidates(
			models.Candidate{Title: "Lost (Remaster)", Artist: "Band", ID: "vid-9"},
			models.Candidate{Title: "Lost Live", Artist: "Band", ID: "vid-10"},
		)

		if err := env.run("review", "search", "--index", "0"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "1. Band - Lost Live [vid-10]") {
			t.Errorf("unexpected output:\n%s", env.out.String())
		}

		if err := env.run("review", "select", "--index", "0", "--candidate", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got := c.Reconciler.Songs(models.Forward)[0]
		if got.Status != models.SongFound || got.YouTubeID != "vid-10" {
			t.Errorf("expected selection applied, got %+v", got)
		}
		if !c.Reconciler.CanFinalize() {
			t.Error("expected finalize allowed")
		}
		if env.fake.Hits("GET /manual_search") != 2 {
			t.Errorf("expected select to repeat the search, got %d searches", env.fake.Hits("GET /manual_search"))
		}
	})

	t.Run("Out Of Range", func(t *testing.T) {
		env := newTestEnv(t)
		seed(t, env)
		env.fake.SetCandidates(models.Candidate{Title: "Lost", ID: "vid-1"})

		if err := env.run("review", "skip", "--index", "9"); !errors.Is(err, shared.ErrIndexOutOfRange) {
			t.Errorf("expected ErrIndexOutOfRange, got %v", err)
		}
		if err := env.run("review", "select", "--index", "0", "--candidate", "3"); !errors.Is(err, shared.ErrIndexOutOfRange) {
			t.Errorf("expected ErrIndexOutOfRange, got %v", err)
		}
		if err := env.run("review", "list", "--direction", "reverse"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "No songs to review in the reverse list") {
			t.Errorf("unexpected output %q", env.out.String())
		}
	})

	t.Run("Suggest", func(t *testing.T) {
		env := newTestEnv(t)
		seed(t, env)
		env.fake.SetCandidates(models.Candidate{Title: "Lost (Remaster)", Artist: "Band", ID: "vid-9"})

		if err := env.run("review", "suggest", "--rate", "1000", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var got []tasks.Suggestion
		if err := json.Unmarshal(env.out.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 1 || got[0].Index != 0 || len(got[0].Candidates) != 1 {
			t.Errorf("unexpected suggestions %+v", got)
		}
	})

	t.Run("Persists Across Processes", func(t *testing.T) {
		env := newTestEnv(t)
		seed(t, env)
		if err := env.run("review", "skip", "--index", "0"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := env.runner.Close(context.Background()); err != nil {
			t.Fatalf("failed to close runner: %v", err)
		}

		env.runner = env.newRunner()
		env.out.Reset()
		if err := env.run("review", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var songs []models.SongMatch
		if err := json.Unmarshal(env.out.Bytes(), &songs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(songs) != 2 || songs[0].Status != models.SongSkipped {
			t.Errorf("expected persisted review, got %+v", songs)
		}
	})
}

func TestJobsCommands(t *testing.T) {
	t.Run("Prune", func(t *testing.T) {
		env := newTestEnv(t)
		repo := repositories.NewJobRepository(env.db)
		for _, id := range []string{"j1", "j2", "j3"} {
			rec := models.NewJobRecord(&models.Job{JobID: id, Status: models.JobCompleted}, models.Forward)
			if err := repo.Upsert(context.Background(), rec); err != nil {
				t.Fatalf("failed to seed history: %v", err)
			}
		}

		if err := env.run("jobs", "prune", "--keep", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "Deleted 2 job(s)") {
			t.Errorf("unexpected output %q", env.out.String())
		}

		env.out.Reset()
		if err := env.run("jobs", "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "j3") || strings.Contains(env.out.String(), "j1") {
			t.Errorf("expected only the newest job, got:\n%s", env.out.String())
		}
	})

	t.Run("Empty History", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("jobs", "history", "--status", "error"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), "No jobs recorded") {
			t.Errorf("unexpected output %q", env.out.String())
		}
	})

	t.Run("Report", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("jobs", "report"); !errors.Is(err, shared.ErrNoCurrentJob) {
			t.Errorf("expected ErrNoCurrentJob, got %v", err)
		}

		env.client(t).Reconciler.Seed("job-1", models.Forward, reviewSongs())
		path := filepath.Join(t.TempDir(), "report.csv")
		if err := env.run("jobs", "report", "--format", "csv", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.HasPrefix(string(data), "Direction,Index,Name") || !strings.Contains(string(data), "Lost") {
			t.Errorf("unexpected report:\n%s", data)
		}

		env.out.Reset()
		if err := env.run("jobs", "report", "--format", "json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(env.out.String(), `"job_id": "job-1"`) {
			t.Errorf("unexpected JSON report %s", env.out.String())
		}

		if err := env.run("jobs", "report", "--format", "xlsx"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestStoreCommands(t *testing.T) {
	env := newTestEnv(t)

	if err := env.run("store", "set", store.KeyOverlay, `"processes"`); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	env.out.Reset()
	if err := env.run("store", "get", store.KeyOverlay); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.TrimSpace(env.out.String()) != `"processes"` {
		t.Errorf("unexpected value %q", env.out.String())
	}

	if err := env.run("store", "set", store.KeyOverlay, "processes"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := env.run("store", "get", "missing"); !errors.Is(err, shared.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	if err := env.run("store", "get"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestServeCommand(t *testing.T) {
	env := newTestEnv(t)
	if err := env.run("serve"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}
