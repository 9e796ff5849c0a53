package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/jobsync/internal/models"
)

var (
	_ list.Item = songItem{}
	_ list.Item = candidateItem{}
)

// songItem wraps one review entry and its position in the directional list.
type songItem struct {
	index int
	dir   models.Direction
	song  models.SongMatch
}

func (i songItem) FilterValue() string { return i.song.Name }
func (i songItem) Title() string {
	mark := "✓"
	switch {
	case i.song.Unresolved():
		mark = "!"
	case i.song.Status == models.SongSkipped:
		mark = "–"
	case i.song.Status == models.SongNotFound:
		mark = "✗"
	}
	return fmt.Sprintf("%s %s", mark, i.song.Name)
}
func (i songItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.song.Artist, i.song.Status)
	if i.song.MatchedTitle != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.song.MatchedTitle)
	}
	if i.song.Unresolved() {
		desc += " • needs manual search"
	}
	return desc
}

// candidateItem wraps [models.Candidate] to implement [list.Item].
type candidateItem struct {
	candidate models.Candidate
}

func (i candidateItem) FilterValue() string { return i.candidate.Title }
func (i candidateItem) Title() string       { return i.candidate.Title }
func (i candidateItem) Description() string {
	if i.candidate.Artist == "" {
		return i.candidate.ID
	}
	return fmt.Sprintf("%s • %s", i.candidate.Artist, i.candidate.ID)
}
