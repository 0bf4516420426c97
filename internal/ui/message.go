package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/cosmic/internal/tasks"
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
	MsgFrame MsgKind = iota
	MsgSyncUpdate
	MsgSyncStopped
	MsgSnapshotSaved
	MsgOpened
)

// frameMsg is the constructor for [MsgFrame]
func frameMsg(t time.Time) Msg {
	return Msg{kind: MsgFrame, data: t}
}

// syncUpdateMsg is the constructor for [MsgSyncUpdate]
func syncUpdateMsg(update tasks.SyncUpdate) Msg {
	return Msg{kind: MsgSyncUpdate, data: update}
}

// syncStoppedMsg is the constructor for [MsgSyncStopped]
func syncStoppedMsg(err error) Msg {
	return Msg{kind: MsgSyncStopped, data: err}
}

// snapshotSavedMsg is the constructor for [MsgSnapshotSaved]
func snapshotSavedMsg(path string, err error) Msg {
	return Msg{
		kind: MsgSnapshotSaved,
		data: struct {
			path string
			err  error
		}{path, err},
	}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(url string, err error) Msg {
	return Msg{
		kind: MsgOpened,
		data: struct {
			url string
			err error
		}{url, err},
	}
}
