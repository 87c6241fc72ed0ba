package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/tasks"
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
	MsgGalleryLoaded MsgKind = iota
	MsgImageDeleted
	MsgProgressUpdate
	MsgTransferComplete
	MsgOpened
)

type pageResult struct {
	page *models.GalleryPage
	err  error
}

type transferResult struct {
	result *tasks.TransferResult
	err    error
}

// galleryLoadedMsg is the constructor for [MsgGalleryLoaded]
func galleryLoadedMsg(page *models.GalleryPage, err error) Msg {
	return Msg{kind: MsgGalleryLoaded, data: pageResult{page, err}}
}

// imageDeletedMsg is the constructor for [MsgImageDeleted]
func imageDeletedMsg(page *models.GalleryPage, err error) Msg {
	return Msg{kind: MsgImageDeleted, data: pageResult{page, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// transferCompleteMsg is the constructor for [MsgTransferComplete]
func transferCompleteMsg(result *tasks.TransferResult, err error) Msg {
	return Msg{kind: MsgTransferComplete, data: transferResult{result, err}}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(err error) Msg {
	return Msg{kind: MsgOpened, data: err}
}
