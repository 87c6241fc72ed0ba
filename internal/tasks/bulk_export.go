package tasks

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/stylx/internal/formatter"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk gallery exports.
type BulkExportOpts struct {
	Format     string         // Index format: json, csv, markdown, txt
	OutputDir  string         // Base output directory (default: stylx_export_{epoch})
	NumWorkers int            // Concurrent workers (default: 5, max: 10)
	RateLimit  float64        // Downloads per second (default: 5)
	PerPage    int            // Gallery page size used while listing (default: 50)
	Loader     *images.Loader // Destination filesystem (default: OS filesystem)
}

// ImageExportResult is the outcome of exporting one gallery image.
type ImageExportResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	File     string `json:"file,omitempty"`
	Size     int64  `json:"size"`
	Success  bool   `json:"success"`
	Error    error  `json:"-"`
	Message  string `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export and doubles as its manifest.
type BulkExportResult struct {
	Email            string              `json:"email"`
	ExportedAt       time.Time           `json:"exported_at"`
	TotalImages      int                 `json:"total_images"`
	SuccessfulImages int                 `json:"successful_images"`
	FailedImages     int                 `json:"failed_images"`
	OutputDirectory  string              `json:"output_directory"`
	IndexPath        string              `json:"index_path,omitempty"`
	ManifestPath     string              `json:"-"`
	Results          []ImageExportResult `json:"results"`
}

// BulkExport downloads every image in the signed-in user's gallery with rate limiting and progress tracking.
//
// This method implements a worker pool pattern: the gallery is listed page by page,
// then workers download images concurrently. Partial failures are recorded, not fatal.
// An index in opts.Format and a manifest file summarizing the export are written to the output directory.
func (e *TransferEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.backend == nil {
		return nil, fmt.Errorf("%w: backend not initialized", shared.ErrServiceUnavailable)
	}
	if e.session == nil {
		return nil, shared.ErrNotAuthenticated
	}
	email, err := e.session.Email()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("stylx_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 50
	}
	if opts.Loader == nil {
		opts.Loader = images.NewLoader(nil, 0, e.logger)
	}

	if err := opts.Loader.Fs().MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	all, err := e.listGallery(ctx, prog, email, opts.PerPage)
	if err != nil {
		return nil, err
	}

	result := &BulkExportResult{
		Email:           email,
		ExportedAt:      e.now().UTC(),
		TotalImages:     len(all),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ImageExportResult, 0, len(all)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	imagesDir := filepath.Join(opts.OutputDir, "images")

	jobs := make(chan models.ImageResult, len(all))
	results := make(chan ImageExportResult, len(all))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, limiter, jobs, results, opts.Loader, imagesDir)
	}

	for _, img := range all {
		jobs <- img
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulImages++
			sendProgress(prog, exportCompletedUpdate(completed, len(all), res.Filename, res.Size))
		} else {
			result.FailedImages++
			sendProgress(prog, exportFailedUpdate(completed, len(all), res.Filename, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	index := &models.GalleryPage{
		Images:     all,
		Pagination: models.Pagination{CurrentPage: 1, TotalPages: 1, PerPage: len(all), TotalImages: len(all)},
	}
	indexPath, err := formatter.WriteGalleryExport(index, opts.Format, opts.OutputDir)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to write index: %w", err)
	}
	result.IndexPath = indexPath

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// listGallery collects every page of the user's gallery.
func (e *TransferEngine) listGallery(ctx context.Context, prog chan<- ProgressUpdate, email string, perPage int) ([]models.ImageResult, error) {
	var all []models.ImageResult
	for page, total := 1, 1; page <= total; page++ {
		sendProgress(prog, fetchGalleryUpdate(page, total))
		res, err := e.backend.Gallery(ctx, email, page, perPage)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch gallery page %d: %w", page, err)
		}
		all = append(all, res.Images...)
		total = res.Pagination.TotalPages
	}
	return all, nil
}

// exportWorker is a worker goroutine that downloads images from the jobs channel.
func (e *TransferEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan models.ImageResult,
	results chan<- ImageExportResult,
	loader *images.Loader,
	dir string,
) {
	defer wg.Done()

	for img := range jobs {
		res := ImageExportResult{Filename: img.StoredName(), Path: img.Path}
		if err := limiter.Wait(ctx); err != nil {
			res.Error = err
			res.Message = err.Error()
			results <- res
			continue
		}
		results <- e.exportSingleImage(ctx, img, loader, dir)
	}
}

// exportSingleImage downloads one image and stores it under dir.
func (e *TransferEngine) exportSingleImage(ctx context.Context, img models.ImageResult, loader *images.Loader, dir string) ImageExportResult {
	res := ImageExportResult{Filename: img.StoredName(), Path: img.Path}

	var buf bytes.Buffer
	if _, err := e.backend.Download(ctx, img.Path, &buf); err != nil {
		res.Error = fmt.Errorf("download failed: %w", err)
		res.Message = res.Error.Error()
		return res
	}

	dest, n, err := loader.Save(dir, res.Filename, &buf)
	if err != nil {
		res.Error = err
		res.Message = err.Error()
		return res
	}

	res.File, res.Size, res.Success = dest, n, true
	return res
}
