package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "jobs")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	t.Run("Unknown Table", func(t *testing.T) {
		if _, err := NextSequence(db, "nope"); err == nil {
			t.Error("expected error for missing sequence table")
		}
	})
}

func TestJobRepository(t *testing.T) {
	ctx := context.Background()

	record := func(jobID string, status models.JobStatus) *models.JobRecord {
		return &models.JobRecord{JobID: jobID, Status: status, Direction: models.Forward, PlaylistName: "Road Trip"}
	}

	t.Run("Upsert", func(t *testing.T) {
		t.Run("Creates", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			rec := record("J1", models.JobPending)

			if err := repo.Upsert(ctx, rec); err != nil {
				t.Fatalf("failed to upsert job: %v", err)
			}
			if rec.ID == "" || rec.Sequence != 1 {
				t.Errorf("expected id and sequence to be set, got %q #%d", rec.ID, rec.Sequence)
			}

			got, err := repo.Get(ctx, "J1")
			if err != nil {
				t.Fatalf("failed to get job: %v", err)
			}
			if got.Status != models.JobPending || got.PlaylistName != "Road Trip" || got.Direction != models.Forward {
				t.Errorf("unexpected record %+v", got)
			}
			if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
				t.Error("expected timestamps")
			}
		})

		t.Run("Updates In Place", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			first := record("J1", models.JobReadyToFinalize)
			first.SongsTotal, first.SongsFound, first.SongsSkipped = 10, 8, 1
			if err := repo.Upsert(ctx, first); err != nil {
				t.Fatalf("failed to upsert job: %v", err)
			}

			repo.now = func() time.Time { return time.Now().Add(time.Minute) }
			next := &models.JobRecord{JobID: "J1", Status: models.JobCompleted, Notes: "8 added"}
			if err := repo.Upsert(ctx, next); err != nil {
				t.Fatalf("failed to upsert job: %v", err)
			}

			got, err := repo.Get(ctx, "J1")
			if err != nil {
				t.Fatalf("failed to get job: %v", err)
			}
			if got.ID != first.ID || got.Sequence != 1 {
				t.Errorf("expected same row, got %q #%d", got.ID, got.Sequence)
			}
			if got.Status != models.JobCompleted || got.Notes != "8 added" {
				t.Errorf("expected updated status and notes, got %+v", got)
			}
			if got.PlaylistName != "Road Trip" {
				t.Errorf("expected playlist name kept, got %q", got.PlaylistName)
			}
			if got.SongsTotal != 10 || got.SongsFound != 8 || got.SongsSkipped != 1 {
				t.Errorf("expected counts kept, got %+v", got)
			}
			if !got.UpdatedAt.After(got.CreatedAt) {
				t.Error("expected updated_at to move forward")
			}
		})

		t.Run("Validation", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewJobRepository(db)
			tests := []struct {
				name string
				rec  *models.JobRecord
			}{
				{"missing job id", &models.JobRecord{Status: models.JobPending}},
				{"missing status", &models.JobRecord{JobID: "J1"}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					if err := repo.Upsert(ctx, tt.rec); err == nil {
						t.Error("expected validation error")
					}
				})
			}
		})

		t.Run("Closed Database", func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewJobRepository(db)
			db.Close()

			if err := repo.Upsert(ctx, record("J1", models.JobPending)); err == nil {
				t.Error("expected error on closed database")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewJobRepository(db).Get(ctx, "missing")
			if !errors.Is(err, shared.ErrJobNotFound) {
				t.Errorf("expected ErrJobNotFound, got %v", err)
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		for _, rec := range []*models.JobRecord{
			record("J1", models.JobCompleted),
			{JobID: "J2", Status: models.JobError, Direction: models.Reverse, ErrorMessage: "boom"},
			record("J3", models.JobCompleted),
		} {
			if err := repo.Upsert(ctx, rec); err != nil {
				t.Fatalf("failed to upsert job: %v", err)
			}
		}

		tests := []struct {
			name   string
			filter JobFilter
			want   []string
		}{
			{"all newest first", JobFilter{}, []string{"J3", "J2", "J1"}},
			{"by status", JobFilter{Status: models.JobCompleted}, []string{"J3", "J1"}},
			{"by direction", JobFilter{Direction: models.Reverse}, []string{"J2"}},
			{"limit", JobFilter{Limit: 1}, []string{"J3"}},
			{"no match", JobFilter{Status: models.JobPending}, nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.List(ctx, tt.filter)
				if err != nil {
					t.Fatalf("failed to list jobs: %v", err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("expected %d jobs, got %d", len(tt.want), len(got))
				}
				for i, id := range tt.want {
					if got[i].JobID != id {
						t.Errorf("position %d: expected %s, got %s", i, id, got[i].JobID)
					}
				}
			})
		}

		t.Run("Error Message", func(t *testing.T) {
			got, _ := repo.Get(ctx, "J2")
			if got.ErrorMessage != "boom" {
				t.Errorf("expected error message, got %q", got.ErrorMessage)
			}
		})
	})

	t.Run("Prune", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewJobRepository(db)
		for _, id := range []string{"J1", "J2", "J3", "J4"} {
			if err := repo.Upsert(ctx, record(id, models.JobCompleted)); err != nil {
				t.Fatalf("failed to upsert job: %v", err)
			}
		}

		removed, err := repo.Prune(ctx, 2)
		if err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 removed, got %d", removed)
		}

		left, _ := repo.List(ctx, JobFilter{})
		if len(left) != 2 || left[0].JobID != "J4" || left[1].JobID != "J3" {
			t.Errorf("expected J4 and J3 to remain, got %+v", left)
		}

		if _, err := repo.Prune(ctx, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
