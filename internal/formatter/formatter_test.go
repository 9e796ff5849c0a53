package formatter

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

func testReport() *Report {
	return &Report{
		JobID:        "J1",
		PlaylistName: "Road Trip",
		Forward: []models.SongMatch{
			{Name: "Song One", Artist: "Artist One", Status: models.SongFound, YouTubeID: "yt1", MatchedTitle: "Song One (Live)", MatchedArtist: "Artist One"},
			{Name: "Song Two", Artist: "Artist Two", Status: models.SongNotFound, RequiresManualSearch: true},
			{Name: "Song Three", Artist: "Artist Three", Status: models.SongSkipped},
		},
		Reverse: []models.SongMatch{
			{Name: "Back", Artist: "Artist Four", Status: models.SongFound, SpotifyID: "sp4"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ext  string
	}{
		{"csv", FormatCSV, ".csv"},
		{"md", FormatMarkdown, ".md"},
		{"Markdown", FormatMarkdown, ".md"},
		{"text", FormatText, ".txt"},
		{"", FormatTable, ".txt"},
		{"json", FormatJSON, ".json"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want || got.Extension() != tt.ext {
				t.Errorf("expected %s (%s), got %s (%s)", tt.want, tt.ext, got, got.Extension())
			}
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		if _, err := ParseFormat("xlsx"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testReport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("expected header and 4 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Direction,Index,Name,Artist,Status,Match ID,Matched Title,Matched Artist,Manual" {
			t.Errorf("unexpected headers %v", records[0])
		}
		if records[1][5] != "yt1" || records[2][8] != "true" {
			t.Errorf("unexpected forward rows %v %v", records[1], records[2])
		}
		if records[4][0] != "reverse" || records[4][5] != "sp4" {
			t.Errorf("expected reverse row with sp id, got %v", records[4])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testReport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"# Road Trip",
			"**Job**: `J1`",
			"**Can finalize**: no",
			"## Forward",
			"3 songs, 1 found, 1 skipped, 1 unresolved",
			"1. Artist One - Song One [found] → Artist One - Song One (Live)",
			"2. Artist Two - Song Two [not_found]",
			"## Reverse",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testReport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Road Trip\n") {
			t.Errorf("expected title first, got %q", output)
		}
		if !strings.Contains(output, "! 1. Artist Two - Song Two (not_found)") {
			t.Errorf("expected unresolved marker, got:\n%s", output)
		}
		if !strings.Contains(output, "  0. Artist One - Song One (found)") {
			t.Errorf("expected resolved row, got:\n%s", output)
		}
	})

	t.Run("Empty Report", func(t *testing.T) {
		data, err := ExportToText(&Report{})
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		if string(data) != "Sync report\n" {
			t.Errorf("unexpected output %q", data)
		}
	})

	t.Run("ExportToTable", func(t *testing.T) {
		output := ExportToTable(testReport(), true)
		for _, want := range []string{"DIR", "ARTIST", "needs search", "sp4"} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "╭") {
			t.Error("expected ASCII borders in plain mode")
		}
		if !strings.Contains(ExportToTable(testReport(), false), "╭") {
			t.Error("expected rounded borders")
		}
	})

	t.Run("Export JSON", func(t *testing.T) {
		data, err := Export(testReport(), FormatJSON)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if !strings.Contains(string(data), `"job_id": "J1"`) {
			t.Errorf("unexpected JSON %s", data)
		}
	})
}

func TestTables(t *testing.T) {
	t.Run("HistoryTable", func(t *testing.T) {
		records := []*models.JobRecord{
			{Sequence: 2, JobID: "J2", Direction: models.Reverse, Status: models.JobError, ErrorMessage: "quota", UpdatedAt: time.Now()},
			{Sequence: 1, JobID: "J1", Direction: models.Forward, PlaylistName: "Road Trip", Status: models.JobCompleted, SongsTotal: 3, SongsFound: 2, UpdatedAt: time.Now()},
		}
		output := HistoryTable(records, true)

		if !strings.Contains(output, "error: quota") || !strings.Contains(output, "Road Trip") {
			t.Errorf("unexpected table:\n%s", output)
		}
		if strings.Index(output, "J2") > strings.Index(output, "J1") {
			t.Error("expected given order to be kept")
		}
	})

	t.Run("ProcessTable", func(t *testing.T) {
		now := time.Now()
		procs := []models.Process{
			{ID: "0192f1aa-bbbb", Type: models.ProcessSyncForward, Status: models.ProcessInProgress, JobID: "J1", CountdownEnd: now.Add(90 * time.Second), Message: "Syncing"},
			{ID: "p2", Type: models.ProcessMerge, Status: models.ProcessDone},
		}
		output := ProcessTable(procs, now, true)

		for _, want := range []string{"0192f1aa", "sync-forward", "1:30", "Syncing", "merge"} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "0192f1aa-bbbb") {
			t.Error("expected shortened process id")
		}
	})
}

func TestWriteReport(t *testing.T) {
	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "report.md")

		got, err := WriteReport(testReport(), FormatMarkdown, path)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "# Road Trip") {
			t.Error("unexpected report contents")
		}
	})

	t.Run("WithDefaultPath", func(t *testing.T) {
		t.Chdir(t.TempDir())

		got, err := WriteReport(testReport(), FormatCSV, "")
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != "J1_report.csv" {
			t.Errorf("expected J1_report.csv, got %s", got)
		}
		if _, err := os.Stat(got); err != nil {
			t.Errorf("expected file to exist: %v", err)
		}
	})

	t.Run("Unknown Format", func(t *testing.T) {
		if _, err := WriteReport(testReport(), Format("xlsx"), filepath.Join(t.TempDir(), "x")); err == nil {
			t.Error("expected error")
		}
	})
}
