package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/desertthunder/stylx/internal/formatter"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/desertthunder/stylx/internal/tasks"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// transferRow is the JSON shape of one history record.
type transferRow struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	Email       string     `json:"email"`
	Content     string     `json:"content"`
	Style       string     `json:"style"`
	Status      string     `json:"status"`
	ResultPath  string     `json:"result_path,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TransferRun submits one job and follows its progress to completion.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireBackend(); err != nil {
		return err
	}
	if _, err := r.currentEmail(); err != nil {
		return err
	}

	content, err := r.loader.Load(cmd.String("content"))
	if err != nil {
		return fmt.Errorf("failed to load content image: %w", err)
	}
	style, styleName, err := r.loader.LoadStyle(r.config.Images.StylesDir, cmd.String("style"))
	if err != nil {
		return fmt.Errorf("failed to load style image: %w", err)
	}

	quiet := cmd.Bool("quiet") || cmd.Bool("json")
	r.logger.Info("starting transfer", "content", content.Name, "style", styleName)
	if !quiet {
		r.writePlain("Content: %s (%s)\n", content.Name, formatter.FormatFileSize(content.Size()))
		r.writePlain("Style:   %s\n\n", formatter.StyleLabel(styleName))
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renderProgress(progressCh, quiet)
	}()

	result, err := r.engine.Submit(ctx, content, style, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result.Image, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Transfer Complete!")
	r.writePlain("Image:    %s\n", result.Image.Title())
	r.writePlain("Style:    %s\n", formatter.StyleLabel(result.Image.StyleName))
	r.writePlain("URL:      %s\n", r.resolve(result.Image.Path))
	r.writePlain("Duration: %s\n", result.Duration.Round(time.Millisecond))
	if result.GalleryErr != nil {
		r.writePlain("\n⚠ Gallery refresh failed: %v\n", result.GalleryErr)
	}
	return nil
}

// renderProgress drains updates until the channel closes, driving a progress bar for the transform phase.
func (r *Runner) renderProgress(updates <-chan tasks.ProgressUpdate, quiet bool) {
	var bar *progressbar.ProgressBar
	for update := range updates {
		r.logger.Debug("progress", "phase", update.Phase, "step", update.Step, "message", update.Message)
		if quiet {
			continue
		}

		switch update.Phase {
		case tasks.OpenChannel:
			r.writePlain("🔌 %s\n", update.Message)
		case tasks.SubmitJob:
			r.writePlain("📤 %s\n", update.Message)
		case tasks.Transform:
			if bar == nil {
				bar = progressbar.NewOptions(100,
					progressbar.OptionSetWriter(r.output),
					progressbar.OptionSetDescription("🎨 transforming"),
					progressbar.OptionSetWidth(30),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Set(update.Step)
		case tasks.Complete:
			if bar != nil {
				bar.Finish()
			}
			r.writePlain("✓ %s\n", update.Message)
		case tasks.RefreshGallery:
			r.writePlain("🖼  %s\n", update.Message)
		}
	}
}

// TransferHistory lists locally recorded transfers for the signed-in user.
func (r *Runner) TransferHistory(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: local database unavailable, run 'stylx setup database'", shared.ErrServiceUnavailable)
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if email, err := r.cache.Email(); err == nil {
		criteria["email"] = email
	}

	transfers, err := r.history.List(criteria)
	if err != nil {
		return err
	}

	rows := make([]transferRow, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, transferRow{
			ID:          t.ID(),
			ClientID:    t.ClientID(),
			Email:       t.Email(),
			Content:     t.ContentName(),
			Style:       t.StyleName(),
			Status:      string(t.Status()),
			ResultPath:  t.ResultPath(),
			Error:       t.ErrorMessage(),
			CreatedAt:   t.CreatedAt(),
			CompletedAt: t.CompletedAt(),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	if len(rows) == 0 {
		r.writePlain("No transfers recorded yet.\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Transfers (%d)", len(rows)))
	for _, row := range rows {
		r.writePlain("%-9s %s  %s → %s\n", row.Status, formatter.FormatTimestamp(row.CreatedAt, time.Local), row.Content, formatter.StyleLabel(row.Style))
		switch {
		case row.ResultPath != "":
			r.writePlain("          %s\n", r.resolve(row.ResultPath))
		case row.Error != "":
			r.writePlain("          error: %s\n", row.Error)
		}
	}
	return nil
}

// Styles lists the predefined styles and where their images are expected.
func (r *Runner) Styles(ctx context.Context, cmd *cli.Command) error {
	r.writePlainHeader("Styles")
	for _, s := range images.Styles {
		r.writePlain("%-8s %-8s %s\n", s.ID, s.Name, s.Description)
		r.writePlain("         %s\n", filepath.Join(r.config.Images.StylesDir, s.File))
	}
	r.writePlainln("Pass --style with an ID above or a path to any image.")
	return nil
}
