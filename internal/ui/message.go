package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/tasks"
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
	MsgStatsLoaded MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type statsLoaded struct {
	window string
	stats  *windowStats
	err    error
}

type syncComplete struct {
	run *models.Run
	err error
}

// statsLoadedMsg is the constructor for [MsgStatsLoaded]
func statsLoadedMsg(window string, stats *windowStats, err error) Msg {
	return Msg{kind: MsgStatsLoaded, data: statsLoaded{window, stats, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(run *models.Run, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncComplete{run, err}}
}
