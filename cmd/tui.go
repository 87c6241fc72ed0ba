package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stylx/internal/gallery"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/desertthunder/stylx/internal/tasks"
	"github.com/desertthunder/stylx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for the gallery and style transfers.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireBackend(); err != nil {
		return err
	}
	email, err := r.currentEmail()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(r.config.Logging)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	r.SetLogger(fileLogger)

	order, err := gallery.ParseSort(r.config.Gallery.Sort)
	if err != nil {
		order = gallery.SortServer
	}
	state := gallery.New(r.backend, r.config.Gallery.PerPage, order, fileLogger)
	engineOpts := tasks.EngineOpts{
		Backend:    r.backend,
		Dialer:     r.dialer,
		Session:    r.cache,
		Gallery:    state,
		JobTimeout: r.config.Backend.JobTimeout(),
		Logger:     fileLogger,
	}
	if r.history != nil {
		engineOpts.History = r.history
	}

	model := ui.NewModel(ctx, ui.Options{
		Gallery:     state,
		Engine:      tasks.NewTransferEngine(engineOpts),
		Loader:      r.loader,
		StylesDir:   r.config.Images.StylesDir,
		ContentPath: cmd.String("content"),
		Email:       email,
		Open:        r.open,
		Resolve:     r.resolve,
	})
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
