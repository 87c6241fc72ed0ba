package ui

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stylx/internal/gallery"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/desertthunder/stylx/internal/tasks"
	tu "github.com/desertthunder/stylx/internal/testing"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

const email = "user@example.com"

type sessionStub struct{}

func (sessionStub) Email() (string, error) { return email, nil }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	_, next := m.Update(cmd())
	return next
}

func newModel(t *testing.T, n int, opts Options) (*Model, *tu.MockService, *tu.CallLog) {
	t.Helper()
	log := &tu.CallLog{}
	backend := tu.NewMockService(log)
	for i := range n {
		backend.AddImages(email, tu.Image(fmt.Sprintf("img_%02d.jpg", i), 2048, i+1))
	}
	opts.Gallery = gallery.New(backend, 20, gallery.SortNewest, shared.NewLogger(io.Discard))
	opts.Email = email
	m := NewModel(context.Background(), opts)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	run(t, m, m.Init())
	return m, backend, log
}

func TestGalleryView(t *testing.T) {
	t.Run("Loads First Page", func(t *testing.T) {
		m, _, _ := newModel(t, 3, Options{})
		if got := len(m.imageList.Items()); got != 3 {
			t.Fatalf("expected 3 items, got %d", got)
		}
		if !strings.Contains(m.imageList.Title, "page 1 of 1") {
			t.Errorf("unexpected title %q", m.imageList.Title)
		}
		first := m.imageList.Items()[0].(imageItem)
		if first.image.StoredName() != "img_02.jpg" {
			t.Errorf("expected newest first, got %s", first.image.StoredName())
		}
		if !strings.Contains(first.Description(), "2 KB") {
			t.Errorf("expected size in description, got %q", first.Description())
		}
	})

	t.Run("Empty Gallery", func(t *testing.T) {
		m, _, _ := newModel(t, 0, Options{})
		if !strings.Contains(m.View(), "No transformed images yet.") {
			t.Errorf("expected empty message, got %s", m.View())
		}
	})

	t.Run("Load Error Offers Retry", func(t *testing.T) {
		log := &tu.CallLog{}
		backend := tu.NewMockService(log)
		backend.GalleryErr = shared.ErrServiceUnavailable
		m := NewModel(context.Background(), Options{
			Gallery: gallery.New(backend, 20, gallery.SortNewest, shared.NewLogger(io.Discard)),
			Email:   email,
		})
		run(t, m, m.Init())
		if m.err == nil {
			t.Fatal("expected load error")
		}
		if !strings.Contains(m.View(), "(r to retry)") {
			t.Errorf("expected retry hint, got %s", m.View())
		}

		backend.GalleryErr = nil
		backend.AddImages(email, tu.Image("a.jpg", 1, 1))
		_, cmd := m.Update(runes("r"))
		run(t, m, cmd)
		if m.err != nil || len(m.imageList.Items()) != 1 {
			t.Errorf("expected retry to recover, got err %v and %d items", m.err, len(m.imageList.Items()))
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		m, _, _ := newModel(t, 25, Options{})
		_, cmd := m.Update(runes("l"))
		run(t, m, cmd)
		if !strings.Contains(m.imageList.Title, "page 2 of 2") || len(m.imageList.Items()) != 5 {
			t.Errorf("expected page 2 with 5 items, got %q with %d", m.imageList.Title, len(m.imageList.Items()))
		}

		_, cmd = m.Update(runes("h"))
		run(t, m, cmd)
		if !strings.Contains(m.imageList.Title, "page 1 of 2") {
			t.Errorf("expected page 1, got %q", m.imageList.Title)
		}
	})

	t.Run("Sort Cycle", func(t *testing.T) {
		m, _, _ := newModel(t, 3, Options{})
		m.Update(runes("s"))
		if m.opts.Gallery.Sort() != gallery.SortOldest {
			t.Errorf("expected oldest, got %s", m.opts.Gallery.Sort())
		}
		if first := m.imageList.Items()[0].(imageItem); first.image.StoredName() != "img_00.jpg" {
			t.Errorf("expected oldest first, got %s", first.image.StoredName())
		}
		m.Update(runes("s"))
		m.Update(runes("s"))
		if m.opts.Gallery.Sort() != gallery.SortServer {
			t.Errorf("expected server order after name, got %s", m.opts.Gallery.Sort())
		}
		m.Update(runes("s"))
		if m.opts.Gallery.Sort() != gallery.SortNewest {
			t.Errorf("expected cycle back to newest, got %s", m.opts.Gallery.Sort())
		}
	})

	t.Run("Open", func(t *testing.T) {
		var opened string
		m, _, _ := newModel(t, 1, Options{
			Open:    func(target string) error { opened = target; return nil },
			Resolve: func(p string) string { return "http://backend" + p },
		})
		_, cmd := m.Update(runes("o"))
		run(t, m, cmd)
		if opened != "http://backend/static/transformed/img_00.jpg" {
			t.Errorf("unexpected open target %q", opened)
		}
	})
}

func TestDeleteConfirmation(t *testing.T) {
	t.Run("Approved", func(t *testing.T) {
		m, backend, _ := newModel(t, 2, Options{})
		m.Update(runes("d"))
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.view)
		}
		if !strings.Contains(m.View(), "Are you sure you want to delete this image?") {
			t.Errorf("unexpected confirm view %s", m.View())
		}

		_, cmd := m.Update(runes("y"))
		run(t, m, cmd)
		if m.view != GalleryView || m.status != "Image deleted" {
			t.Errorf("expected gallery with status, got view %v status %q", m.view, m.status)
		}
		if len(backend.Deleted) != 1 || backend.Deleted[0] != "img_01.jpg" {
			t.Errorf("unexpected deletions %v", backend.Deleted)
		}
		if len(m.imageList.Items()) != 1 {
			t.Errorf("expected reloaded list with 1 item, got %d", len(m.imageList.Items()))
		}
	})

	t.Run("Refused", func(t *testing.T) {
		m, backend, log := newModel(t, 2, Options{})
		m.Update(runes("d"))
		_, cmd := m.Update(runes("n"))
		run(t, m, cmd)
		if m.status != "Deletion cancelled" {
			t.Errorf("expected cancellation status, got %q", m.status)
		}
		if len(backend.Deleted) != 0 || log.Count("backend.delete") != 0 {
			t.Error("expected no backend call")
		}
	})
}

func TestTransferFlow(t *testing.T) {
	encode := func(t *testing.T) []byte {
		var buf bytes.Buffer
		img := imaging.New(20, 20, color.NRGBA{R: 10, G: 200, B: 30, A: 255})
		if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		return buf.Bytes()
	}

	t.Run("Requires Content", func(t *testing.T) {
		m, _, _ := newModel(t, 0, Options{})
		m.Update(runes("t"))
		if m.view != GalleryView || !strings.Contains(m.status, "--content") {
			t.Errorf("expected hint, got view %v status %q", m.view, m.status)
		}
	})

	t.Run("Runs To Result", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		afero.WriteFile(fs, "/photos/beach.jpg", encode(t), 0o644)
		afero.WriteFile(fs, "/styles/style_1.jpg", encode(t), 0o644)

		log := &tu.CallLog{}
		dialer := tu.NewFakeDialer(log)
		m, backend, _ := newModel(t, 0, Options{
			Loader:      images.NewLoader(fs, 0, shared.NewLogger(io.Discard)),
			StylesDir:   "/styles",
			ContentPath: "/photos/beach.jpg",
		})
		backend.OnSubmit = func(req services.TransferRequest) {
			go dialer.Stream(req.ClientID).Send(
				models.Partial{Percentage: 50},
				models.Completed{Image: models.ImageResult{Path: "/static/transformed/out.jpg"}},
			)
		}
		m.opts.Engine = tasks.NewTransferEngine(tasks.EngineOpts{
			Backend: backend,
			Dialer:  dialer,
			Session: sessionStub{},
			Gallery: m.opts.Gallery,
			Logger:  shared.NewLogger(io.Discard),
		})

		m.Update(runes("t"))
		if m.view != StyleListView {
			t.Fatalf("expected style list, got %v", m.view)
		}

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != TransferView {
			t.Fatalf("expected transfer view, got %v (err %v)", m.view, m.transferErr)
		}
		for i := 0; cmd != nil && m.view == TransferView; i++ {
			if i > 100 {
				t.Fatal("transfer did not finish")
			}
			cmd = run(t, m, cmd)
		}

		if m.view != ResultView || m.transferErr != nil {
			t.Fatalf("expected result view, got %v (err %v)", m.view, m.transferErr)
		}
		if !strings.Contains(m.View(), "Transfer Complete") {
			t.Errorf("unexpected result view %s", m.View())
		}
		if len(backend.Submitted) != 1 || backend.Submitted[0].Content.Name != "beach.jpg" {
			t.Errorf("unexpected submissions %+v", backend.Submitted)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != GalleryView {
			t.Errorf("expected gallery view, got %v", m.view)
		}
	})

	t.Run("Failure Offers Retry", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		m, _, _ := newModel(t, 0, Options{
			Engine:      tasks.NewTransferEngine(tasks.EngineOpts{}),
			Loader:      images.NewLoader(fs, 0, shared.NewLogger(io.Discard)),
			StylesDir:   "/styles",
			ContentPath: "/photos/missing.jpg",
		})
		m.Update(runes("t"))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != ResultView || m.transferErr == nil {
			t.Fatalf("expected failed result, got view %v err %v", m.view, m.transferErr)
		}
		if !strings.Contains(m.View(), "Press r to retry") {
			t.Errorf("expected retry hint, got %s", m.View())
		}
		m.Update(runes("r"))
		if m.view != StyleListView {
			t.Errorf("expected style list after retry, got %v", m.view)
		}
	})
}
