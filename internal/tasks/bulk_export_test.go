package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/shared"
	tu "github.com/desertthunder/stylx/internal/testing"
	"github.com/spf13/afero"
)

func seedGallery(f *fixture, n int, missing ...int) {
	skip := make(map[int]bool, len(missing))
	for _, i := range missing {
		skip[i] = true
	}
	for i := range n {
		img := tu.Image(fmt.Sprintf("img_%02d.jpg", i), 4, i%28+1)
		f.backend.AddImages(email, img)
		if !skip[i] {
			f.backend.AddFile(img.Path, []byte(fmt.Sprintf("data%02d", i)))
		}
	}
}

func TestBulkExport(t *testing.T) {
	ctx := context.Background()
	loader := images.NewLoader(afero.NewOsFs(), 0, shared.NewLogger(io.Discard))

	tests := []struct {
		name        string
		format      string
		count       int
		missing     []int
		wantSuccess int
		wantFailed  int
		index       string
	}{
		{name: "json index", format: "json", count: 3, wantSuccess: 3, index: "gallery.json"},
		{name: "csv index across pages", format: "csv", count: 7, wantSuccess: 7, index: "gallery.csv"},
		{name: "markdown index", format: "markdown", count: 2, wantSuccess: 2, index: "README.md"},
		{name: "partial failures", format: "txt", count: 4, missing: []int{1, 3}, wantSuccess: 2, wantFailed: 2, index: "gallery.txt"},
		{name: "empty gallery", format: "json", count: 0, index: "gallery.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			seedGallery(f, tt.count, tt.missing...)
			dir := t.TempDir()

			progress := make(chan ProgressUpdate, 64)
			res, err := f.engine.BulkExport(ctx, progress, BulkExportOpts{
				Format:     tt.format,
				OutputDir:  dir,
				NumWorkers: 3,
				RateLimit:  1000,
				PerPage:    3,
				Loader:     loader,
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if res.TotalImages != tt.count {
				t.Errorf("expected %d images, got %d", tt.count, res.TotalImages)
			}
			if res.SuccessfulImages != tt.wantSuccess || res.FailedImages != tt.wantFailed {
				t.Errorf("expected %d/%d success/failed, got %d/%d", tt.wantSuccess, tt.wantFailed, res.SuccessfulImages, res.FailedImages)
			}
			if filepath.Base(res.IndexPath) != tt.index {
				t.Errorf("expected index %s, got %s", tt.index, res.IndexPath)
			}
			tu.AssertFileExists(t, res.IndexPath)
			tu.AssertFileExists(t, res.ManifestPath)

			for _, r := range res.Results {
				if !r.Success {
					if r.Message == "" {
						t.Errorf("expected error message for %s", r.Filename)
					}
					continue
				}
				if got := tu.MustReadFile(t, r.File); !strings.HasPrefix(got, "data") {
					t.Errorf("unexpected contents %q in %s", got, r.File)
				}
			}

			var manifest BulkExportResult
			if err := json.Unmarshal([]byte(tu.MustReadFile(t, res.ManifestPath)), &manifest); err != nil {
				t.Fatalf("expected valid manifest, got %v", err)
			}
			if manifest.Email != email || manifest.SuccessfulImages != tt.wantSuccess || len(manifest.Results) != tt.count {
				t.Errorf("unexpected manifest %+v", manifest)
			}
		})
	}

	t.Run("Progress Updates", func(t *testing.T) {
		f := newFixture(t, 0)
		seedGallery(f, 5)

		progress := make(chan ProgressUpdate, 64)
		_, err := f.engine.BulkExport(ctx, progress, BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 1000, PerPage: 2, Loader: loader})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		fetches, exports := 0, 0
		for u := range progress {
			switch u.Phase {
			case FetchGallery:
				fetches++
			case ExportImages:
				exports++
				if u.Total != 5 {
					t.Errorf("expected total 5, got %d", u.Total)
				}
			}
		}
		if fetches != 3 || exports != 5 {
			t.Errorf("expected 3 fetches and 5 exports, got %d and %d", fetches, exports)
		}
	})

	t.Run("Not Authenticated", func(t *testing.T) {
		f := newFixture(t, 0)
		f.engine.session = fixedSession{err: shared.ErrNotAuthenticated}
		if _, err := f.engine.BulkExport(ctx, nil, BulkExportOpts{OutputDir: t.TempDir()}); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Gallery Error", func(t *testing.T) {
		f := newFixture(t, 0)
		f.backend.GalleryErr = shared.ErrServiceUnavailable
		if _, err := f.engine.BulkExport(ctx, nil, BulkExportOpts{OutputDir: t.TempDir(), Loader: loader}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		f := newFixture(t, 0)
		seedGallery(f, 4)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.engine.BulkExport(cctx, nil, BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 0.001, Loader: loader})
		if err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("In-Memory Filesystem", func(t *testing.T) {
		f := newFixture(t, 0)
		seedGallery(f, 2)
		fs := afero.NewMemMapFs()
		dir := t.TempDir()

		res, err := f.engine.BulkExport(ctx, nil, BulkExportOpts{OutputDir: dir, RateLimit: 1000, Loader: images.NewLoader(fs, 0, nil)})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, r := range res.Results {
			if ok, _ := afero.Exists(fs, r.File); !ok {
				t.Errorf("expected %s in memory filesystem", r.File)
			}
		}
	})
}
