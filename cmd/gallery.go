package main

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/desertthunder/stylx/internal/formatter"
	"github.com/desertthunder/stylx/internal/gallery"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/desertthunder/stylx/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// GalleryList prints one page of the signed-in user's gallery.
func (r *Runner) GalleryList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireBackend(); err != nil {
		return err
	}
	email, err := r.currentEmail()
	if err != nil {
		return err
	}

	if name := cmd.String("sort"); name != "" {
		order, err := gallery.ParseSort(name)
		if err != nil {
			return err
		}
		r.gallery.SetSort(order)
	}

	page, err := r.gallery.LoadPage(ctx, email, cmd.Int("page"), cmd.Int("per-page"))
	if err != nil {
		var le *gallery.LoadError
		if errors.As(err, &le) {
			return fmt.Errorf("%s: %w", le.Message(), err)
		}
		return err
	}

	switch format := cmd.String("format"); format {
	case "json":
		return r.writeJSON(page, true)
	case "csv":
		data, err := formatter.GalleryToCSV(page.Images)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case "markdown", "md":
		return r.writePlain("%s", formatter.GalleryToMarkdown(page, time.Local))
	case "table", "":
		r.writeGalleryTable(page)
		return nil
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

func (r *Runner) writeGalleryTable(page *models.GalleryPage) {
	p := page.Pagination
	r.writePlainHeader(fmt.Sprintf("Gallery (page %d of %d, %d images, %s)", p.CurrentPage, max(p.TotalPages, 1), p.TotalImages, r.gallery.Sort()))
	if len(page.Images) == 0 {
		r.writePlain("No transformed images yet.\n")
		return
	}
	for _, img := range page.Images {
		r.writePlain("%-32s %-10s %10s  %s\n",
			img.StoredName(),
			formatter.StyleLabel(img.StyleName),
			formatter.FormatFileSize(img.Size),
			formatter.FormatTimestamp(img.Time(), time.Local),
		)
	}
	if p.CurrentPage < p.TotalPages {
		r.writePlainln("Next: stylx gallery list --page %d", p.CurrentPage+1)
	}
}

// GalleryDelete removes an image after the user confirms.
func (r *Runner) GalleryDelete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireBackend(); err != nil {
		return err
	}
	email, err := r.currentEmail()
	if err != nil {
		return err
	}
	filename := cmd.Args().First()
	if filename == "" {
		return fmt.Errorf("%w: FILENAME", shared.ErrMissingArgument)
	}

	var confirm gallery.Confirmer = r.prompter
	if cmd.Bool("yes") {
		confirm = gallery.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	}

	r.gallery.SetEmail(email)
	if _, err := r.gallery.Delete(ctx, path.Base(filename), confirm); err != nil {
		if errors.Is(err, shared.ErrNotConfirmed) {
			r.writePlain("Deletion cancelled\n")
			return nil
		}
		return err
	}

	r.writePlain("✓ Image deleted: %s\n", path.Base(filename))
	return nil
}

// GalleryDownload saves one image from the backend into the download directory.
func (r *Runner) GalleryDownload(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireBackend(); err != nil {
		return err
	}
	src := cmd.Args().First()
	if src == "" {
		return fmt.Errorf("%w: PATH", shared.ErrMissingArgument)
	}
	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Images.DownloadDir
	}

	f, err := r.loader.Create(dir, path.Base(src))
	if err != nil {
		return err
	}
	n, err := r.backend.Download(ctx, src, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		r.loader.Fs().Remove(f.Name())
		return fmt.Errorf("failed to download %s: %w", src, err)
	}

	r.logger.Info("image downloaded", "path", src, "dest", f.Name(), "size", n)
	r.writePlain("✓ Saved %s (%s)\n", f.Name(), formatter.FormatFileSize(n))
	return nil
}

// GalleryOpen opens an image's URL with the system handler.
func (r *Runner) GalleryOpen(ctx context.Context, cmd *cli.Command) error {
	src := cmd.Args().First()
	if src == "" {
		return fmt.Errorf("%w: PATH", shared.ErrMissingArgument)
	}
	target := r.resolve(src)
	if err := r.open(target); err != nil {
		return err
	}
	r.writePlain("Opened %s\n", target)
	return nil
}

// GalleryExport downloads the whole gallery with an index and manifest.
func (r *Runner) GalleryExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireBackend(); err != nil {
		return err
	}
	if _, err := r.currentEmail(); err != nil {
		return err
	}

	quiet := cmd.Bool("json")
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var bar *progressbar.ProgressBar
		for update := range progressCh {
			if quiet {
				continue
			}
			switch update.Phase {
			case tasks.FetchGallery:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ExportImages:
				if bar == nil {
					bar = progressbar.NewOptions(update.Total,
						progressbar.OptionSetWriter(r.output),
						progressbar.OptionSetDescription("⏳ exporting"),
						progressbar.OptionSetWidth(30),
						progressbar.OptionClearOnFinish(),
					)
				}
				bar.Add(1)
			}
		}
	}()

	result, err := r.engine.BulkExport(ctx, progressCh, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("dir"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		PerPage:    r.config.Gallery.PerPage,
		Loader:     r.loader,
	})
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Exported:  %d/%d\n", result.SuccessfulImages, result.TotalImages)
	if result.IndexPath != "" {
		r.writePlain("Index:     %s\n", result.IndexPath)
	}
	r.writePlain("Manifest:  %s\n", result.ManifestPath)
	if result.FailedImages > 0 {
		r.writePlainln("Failed to export %d images:", result.FailedImages)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ %s: %s\n", res.Filename, res.Message)
			}
		}
	}
	return nil
}
