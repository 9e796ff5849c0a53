package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateChanged MsgKind = iota
	MsgNotification
	MsgTick
	MsgCandidates
	MsgFinalized
	MsgResumed
)

type candidatesResult struct {
	candidates []models.Candidate
	err        error
}

// stateChangedMsg is the constructor for [MsgStateChanged]
func stateChangedMsg() Msg {
	return Msg{kind: MsgStateChanged}
}

// notificationMsg is the constructor for [MsgNotification]
func notificationMsg(n tasks.Notification) Msg {
	return Msg{kind: MsgNotification, data: n}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// candidatesMsg is the constructor for [MsgCandidates]
func candidatesMsg(candidates []models.Candidate, err error) Msg {
	return Msg{kind: MsgCandidates, data: candidatesResult{candidates, err}}
}

// finalizedMsg is the constructor for [MsgFinalized]
func finalizedMsg(err error) Msg {
	return Msg{kind: MsgFinalized, data: err}
}

// resumedMsg is the constructor for [MsgResumed]
func resumedMsg(jobID string) Msg {
	return Msg{kind: MsgResumed, data: jobID}
}
