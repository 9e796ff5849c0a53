// package formatter exports review lists and job history to CSV, Markdown, plain text and terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias (md, text).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension used by [WriteReport].
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatTable:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Report is one job's review lists, ready for export.
type Report struct {
	JobID        string             `json:"job_id,omitempty"`
	PlaylistName string             `json:"playlist_name,omitempty"`
	Forward      []models.SongMatch `json:"forward,omitempty"`
	Reverse      []models.SongMatch `json:"reverse,omitempty"`
}

// NewReport builds a [Report] from the persisted review lists.
func NewReport(review models.Review, playlist string) *Report {
	return &Report{
		JobID:        review.JobID,
		PlaylistName: playlist,
		Forward:      review.Forward,
		Reverse:      review.Reverse,
	}
}

type section struct {
	dir   models.Direction
	songs []models.SongMatch
}

// sections returns the non-empty lists, forward first.
func (r *Report) sections() []section {
	var out []section
	if len(r.Forward) > 0 {
		out = append(out, section{models.Forward, r.Forward})
	}
	if len(r.Reverse) > 0 {
		out = append(out, section{models.Reverse, r.Reverse})
	}
	return out
}

func (r *Report) title() string {
	switch {
	case r.PlaylistName != "":
		return r.PlaylistName
	case r.JobID != "":
		return "Job " + r.JobID
	default:
		return "Sync report"
	}
}

// Export renders the report in format f.
func Export(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(r)
	case FormatMarkdown:
		return ExportToMarkdown(r)
	case FormatText:
		return ExportToText(r)
	case FormatTable:
		return []byte(ExportToTable(r, false) + "\n"), nil
	case FormatJSON:
		return shared.MarshalJSON(r, true)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// ExportToCSV writes one row per song with columns: Direction, Index, Name, Artist, Status, Match ID, Matched Title, Matched Artist, Manual
func ExportToCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Direction", "Index", "Name", "Artist", "Status", "Match ID", "Matched Title", "Matched Artist", "Manual"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range r.sections() {
		for i, song := range s.songs {
			record := []string{
				string(s.dir),
				strconv.Itoa(i),
				song.Name,
				song.Artist,
				string(song.Status),
				song.CrossPlatformID(s.dir),
				song.MatchedTitle,
				song.MatchedArtist,
				strconv.FormatBool(song.RequiresManualSearch),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading per direction with a numbered song list and a summary line.
func ExportToMarkdown(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", r.title()))
	if r.JobID != "" {
		buf.WriteString(fmt.Sprintf("**Job**: `%s`\n", r.JobID))
	}
	buf.WriteString(fmt.Sprintf("**Can finalize**: %s\n\n", yesNo(models.CanFinalize(r.Forward, r.Reverse))))

	for _, s := range r.sections() {
		buf.WriteString(fmt.Sprintf("## %s\n\n", titleCase(string(s.dir))))
		buf.WriteString(summary(s.songs) + "\n\n")
		for i, song := range s.songs {
			buf.WriteString(fmt.Sprintf("%d. %s - %s [%s]%s\n", i+1, song.Artist, song.Name, song.Status, matchSuffix(song)))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders the report as plain text
func ExportToText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", r.title()))
	for _, s := range r.sections() {
		buf.WriteString(fmt.Sprintf("\n%s: %s\n", titleCase(string(s.dir)), summary(s.songs)))
		for i, song := range s.songs {
			mark := " "
			if song.Unresolved() {
				mark = "!"
			}
			buf.WriteString(fmt.Sprintf("%s %d. %s - %s (%s)\n", mark, i, song.Artist, song.Name, song.Status))
		}
	}

	return buf.Bytes(), nil
}

// ExportToTable renders every list as one table. plain selects an ASCII style for non-terminals.
func ExportToTable(r *Report, plain bool) string {
	headers := []string{"Dir", "#", "Artist", "Name", "Status", "Match"}
	var rows [][]string
	for _, s := range r.sections() {
		for i, song := range s.songs {
			match := song.CrossPlatformID(s.dir)
			if song.Unresolved() {
				match = "needs search"
			}
			rows = append(rows, []string{string(s.dir), strconv.Itoa(i), song.Artist, song.Name, string(song.Status), match})
		}
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight}, plain)
}

// HistoryTable renders job history records, most recent first as given.
func HistoryTable(records []*models.JobRecord, plain bool) string {
	headers := []string{"#", "Job", "Direction", "Playlist", "Status", "Songs", "Found", "Skipped", "Updated"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		status := string(rec.Status)
		if rec.ErrorMessage != "" {
			status += ": " + rec.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.Itoa(rec.Sequence),
			rec.JobID,
			string(rec.Direction),
			rec.PlaylistName,
			status,
			strconv.Itoa(rec.SongsTotal),
			strconv.Itoa(rec.SongsFound),
			strconv.Itoa(rec.SongsSkipped),
			rec.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
	return renderTable(headers, rows, aligns, plain)
}

// ProcessTable renders process ledger entries with their remaining countdown.
func ProcessTable(procs []models.Process, now time.Time, plain bool) string {
	headers := []string{"Process", "Type", "Status", "Job", "Remaining", "Message"}
	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		remaining := ""
		if !p.CountdownEnd.IsZero() {
			remaining = shared.FormatRemaining(p.Remaining(now))
		}
		rows = append(rows, []string{shortID(p.ID), string(p.Type), string(p.Status), p.JobID, remaining, p.Message})
	}
	return renderTable(headers, rows, nil, plain)
}

// WriteReport writes the report to path, defaulting to {job id}_report{ext}, and returns the path written.
func WriteReport(r *Report, f Format, path string) (string, error) {
	if path == "" {
		base := r.JobID
		if base == "" {
			base = "jobsync"
		}
		path = base + "_report" + f.Extension()
	}

	data, err := Export(r, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, plain bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if plain {
		tw.SetStyle(table.StyleDefault)
	} else {
		tw.SetStyle(table.StyleRounded)
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func summary(songs []models.SongMatch) string {
	var found, skipped, unresolved int
	for _, s := range songs {
		switch {
		case s.Status == models.SongFound:
			found++
		case s.Status == models.SongSkipped:
			skipped++
		case s.Unresolved():
			unresolved++
		}
	}
	return fmt.Sprintf("%d songs, %d found, %d skipped, %d unresolved", len(songs), found, skipped, unresolved)
}

func matchSuffix(s models.SongMatch) string {
	if s.MatchedTitle == "" {
		return ""
	}
	if s.MatchedArtist == "" {
		return " → " + s.MatchedTitle
	}
	return fmt.Sprintf(" → %s - %s", s.MatchedArtist, s.MatchedTitle)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
