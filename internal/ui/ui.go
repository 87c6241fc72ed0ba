package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stylx/internal/formatter"
	"github.com/desertthunder/stylx/internal/gallery"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/desertthunder/stylx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GalleryView ViewState = iota
	ConfirmView
	StyleListView
	TransferView
	ResultView
)

var sortCycle = map[gallery.SortOrder]gallery.SortOrder{
	gallery.SortNewest: gallery.SortOldest,
	gallery.SortOldest: gallery.SortName,
	gallery.SortName:   gallery.SortServer,
	gallery.SortServer: gallery.SortNewest,
}

// Options holds the TUI's dependencies. Engine, Loader and ContentPath are only needed for transfers.
type Options struct {
	Gallery     *gallery.State
	Engine      *tasks.TransferEngine
	Loader      *images.Loader
	StylesDir   string
	ContentPath string
	Email       string
	Open        func(target string) error // opens an image URL externally
	Resolve     func(path string) string  // turns a backend path into a URL
	Location    *time.Location
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	opts         Options
	view         ViewState
	width        int
	height       int
	imageList    list.Model
	styleList    list.Model
	pending      *models.ImageResult
	progressChan chan tasks.ProgressUpdate
	done         chan transferResult
	progress     tasks.ProgressUpdate
	bar          progress.Model
	result       *tasks.TransferResult
	transferErr  error
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Resolve == nil {
		opts.Resolve = func(p string) string { return p }
	}
	if opts.Open == nil {
		opts.Open = shared.OpenExternal
	}
	if opts.Email != "" && opts.Gallery.Email() != opts.Email {
		opts.Gallery.SetEmail(opts.Email)
	}

	imageList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	imageList.Title = "Gallery"
	styleList := list.New(styleItems(), list.NewDefaultDelegate(), 0, 0)
	styleList.Title = "Choose a style"

	return &Model{
		ctx:       ctx,
		opts:      opts,
		view:      GalleryView,
		imageList: imageList,
		styleList: styleList,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading the first gallery page.
func (m *Model) Init() tea.Cmd {
	return m.loadPage(1)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.imageList.SetSize(msg.Width-4, msg.Height-8)
		m.styleList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = min(max(msg.Width-8, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case GalleryView:
			return m.handleGalleryKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case StyleListView:
			return m.handleStyleKeys(msg)
		case TransferView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgGalleryLoaded:
		res := msg.data.(pageResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		m.setImages(res.page)
		return m, nil

	case MsgImageDeleted:
		res := msg.data.(pageResult)
		m.view = GalleryView
		m.pending = nil
		switch {
		case errors.Is(res.err, shared.ErrNotConfirmed):
			m.status = "Deletion cancelled"
		case res.err != nil:
			m.err = res.err
		default:
			m.err = nil
			m.status = "Image deleted"
			m.setImages(res.page)
		}
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgTransferComplete:
		res := msg.data.(transferResult)
		m.result, m.transferErr = res.result, res.err
		m.progressChan, m.done = nil, nil
		m.view = ResultView
		if page := m.opts.Gallery.View(); page != nil {
			m.setImages(page)
		}
		return m, nil

	case MsgOpened:
		if err, _ := msg.data.(error); err != nil {
			m.status = fmt.Sprintf("Could not open image: %v", err)
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case GalleryView:
		return m.renderGallery()
	case ConfirmView:
		return m.renderConfirm()
	case StyleListView:
		return m.renderStyles()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleGalleryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.imageList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.imageList, cmd = m.imageList.Update(msg)
		return m, cmd
	}

	m.status = ""
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		return m, m.step(m.opts.Gallery.Next)
	case key.Matches(msg, m.keys.prev):
		return m, m.step(m.opts.Gallery.Prev)
	case key.Matches(msg, m.keys.refresh):
		return m, m.step(m.opts.Gallery.Refresh)
	case key.Matches(msg, m.keys.sort):
		order := sortCycle[m.opts.Gallery.Sort()]
		m.opts.Gallery.SetSort(order)
		m.setImages(m.opts.Gallery.View())
		m.status = fmt.Sprintf("Sorted by %s", order)
		return m, nil
	case key.Matches(msg, m.keys.del):
		if img, ok := m.selectedImage(); ok {
			m.pending = &img
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.open):
		if img, ok := m.selectedImage(); ok {
			return m, m.openImage(img)
		}
		return m, nil
	case key.Matches(msg, m.keys.transfer):
		if m.opts.Engine == nil || m.opts.ContentPath == "" {
			m.status = "Start the TUI with --content to transform an image"
			return m, nil
		}
		m.view = StyleListView
		return m, nil
	}

	var cmd tea.Cmd
	m.imageList, cmd = m.imageList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.deleteImage(true)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		return m, m.deleteImage(false)
	}
	return m, nil
}

func (m *Model) handleStyleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = GalleryView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.styleList.SelectedItem().(styleItem); ok {
			return m, m.startTransfer(item.style.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.styleList, cmd = m.styleList.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.retry):
		if m.transferErr != nil {
			m.view = StyleListView
			m.transferErr = nil
			return m, nil
		}
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = GalleryView
		m.result, m.transferErr = nil, nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case GalleryView:
		m.imageList, cmd = m.imageList.Update(msg)
	case StyleListView:
		m.styleList, cmd = m.styleList.Update(msg)
	}
	return m, cmd
}

func (m *Model) setImages(page *models.GalleryPage) {
	m.imageList.SetItems(imageItems(page, m.opts.Location))
	if page != nil {
		m.imageList.Title = fmt.Sprintf("Gallery · page %d of %d · %s",
			page.Pagination.CurrentPage, max(page.Pagination.TotalPages, 1), m.opts.Gallery.Sort())
	}
}

func (m *Model) selectedImage() (models.ImageResult, bool) {
	item, ok := m.imageList.SelectedItem().(imageItem)
	if !ok {
		return models.ImageResult{}, false
	}
	return item.image, true
}

func (m *Model) loadPage(page int) tea.Cmd {
	return func() tea.Msg {
		res, err := m.opts.Gallery.LoadPage(m.ctx, m.opts.Email, page, m.opts.Gallery.PerPage())
		return galleryLoadedMsg(res, err)
	}
}

func (m *Model) step(fn func(context.Context) (*models.GalleryPage, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := fn(m.ctx)
		return galleryLoadedMsg(res, err)
	}
}

// deleteImage answers the pending confirmation and deletes on approval.
func (m *Model) deleteImage(approved bool) tea.Cmd {
	if m.pending == nil {
		m.view = GalleryView
		return nil
	}
	filename := m.pending.StoredName()
	confirm := gallery.ConfirmFunc(func(context.Context, string) (bool, error) { return approved, nil })
	return func() tea.Msg {
		res, err := m.opts.Gallery.Delete(m.ctx, filename, confirm)
		return imageDeletedMsg(res, err)
	}
}

func (m *Model) openImage(img models.ImageResult) tea.Cmd {
	target := m.opts.Resolve(img.Path)
	return func() tea.Msg {
		return openedMsg(m.opts.Open(target))
	}
}

func (m *Model) startTransfer(styleID string) tea.Cmd {
	content, err := m.opts.Loader.Load(m.opts.ContentPath)
	if err != nil {
		m.view = ResultView
		m.transferErr = err
		return nil
	}
	style, _, err := m.opts.Loader.LoadStyle(m.opts.StylesDir, styleID)
	if err != nil {
		m.view = ResultView
		m.transferErr = err
		return nil
	}

	m.view = TransferView
	m.progress = tasks.ProgressUpdate{Message: "Starting..."}
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan transferResult, 1)

	progressChan, done := m.progressChan, m.done
	go func() {
		result, err := m.opts.Engine.Submit(m.ctx, content, style, progressChan)
		done <- transferResult{result, err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		if progressChan == nil {
			return transferCompleteMsg(nil, shared.ErrChannelClosed)
		}

		update, ok := <-progressChan
		if !ok {
			res := <-done
			return transferCompleteMsg(res.result, res.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderGallery() string {
	var status string
	if m.err != nil {
		status = styles.err.Render(errorMessage(m.err) + " (r to retry)")
	} else if m.status != "" {
		status = styles.help.Render(m.status)
	}

	helpKeys := []key.Binding{m.keys.prev, m.keys.next, m.keys.refresh, m.keys.sort, m.keys.del, m.keys.open, m.keys.transfer, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	if len(m.imageList.Items()) == 0 && m.err == nil {
		return fmt.Sprintf("%s\n\nNo transformed images yet.\n\n%s\n%s", styles.title.Render(m.imageList.Title), status, helpView)
	}
	return fmt.Sprintf("%s\n%s\n%s", m.imageList.View(), status, helpView)
}

func (m *Model) renderConfirm() string {
	if m.pending == nil {
		return ""
	}
	title := styles.warn.Render("Are you sure you want to delete this image?")
	info := fmt.Sprintf("\n%s\n%s • %s\n",
		m.pending.Title(),
		formatter.StyleLabel(m.pending.StyleName),
		formatter.FormatFileSize(m.pending.Size),
	)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderStyles() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.styleList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTransfer() string {
	title := styles.title.Render("Transforming Image")

	var pct float64
	switch m.progress.Phase {
	case tasks.Transform:
		pct, _ = m.progress.Data.(float64)
	case tasks.Complete, tasks.RefreshGallery:
		pct = 100
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, m.bar.ViewAs(pct/100), m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.transferErr != nil {
		return styles.err.Render(fmt.Sprintf("Transfer failed: %v\n\nPress r to retry, esc to go back, q to quit", m.transferErr))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress esc to go back, q to quit")
	}

	title := styles.ok.Render("✓ Transfer Complete!")
	info := fmt.Sprintf("\nImage: %s\nStyle: %s\nTook: %s",
		m.result.Image.Path,
		formatter.StyleLabel(m.result.Image.StyleName),
		m.result.Duration.Round(time.Millisecond),
	)

	var warn string
	if m.result.GalleryErr != nil {
		warn = "\n\n" + styles.warn.Render("Gallery could not be refreshed: "+errorMessage(m.result.GalleryErr))
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, warn, m.help.ShortHelpView(helpKeys))
}

func errorMessage(err error) string {
	var le *gallery.LoadError
	if errors.As(err, &le) {
		return le.Message()
	}
	return err.Error()
}
