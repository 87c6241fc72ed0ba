package main

import (
	"context"
	"errors"

	"github.com/desertthunder/stylx/internal/auth"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/urfave/cli/v3"
)

// flagOrPrompt returns the flag value, prompting for it when empty.
func (r *Runner) flagOrPrompt(cmd *cli.Command, name, label string, secret bool) (string, error) {
	if v := cmd.String(name); v != "" {
		return v, nil
	}
	if secret {
		return r.prompter.Password(label)
	}
	return r.prompter.Line(label)
}

// AuthRegister creates a provider account and registers it with the backend.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	name, err := r.flagOrPrompt(cmd, "name", "Name", false)
	if err != nil {
		return err
	}
	email, err := r.flagOrPrompt(cmd, "email", "Email", false)
	if err != nil {
		return err
	}
	password, err := r.flagOrPrompt(cmd, "password", "Password", true)
	if err != nil {
		return err
	}

	if _, err := r.auth.Register(ctx, name, email, password); err != nil {
		return err
	}

	r.writePlain("✓ %s\n", auth.MsgRegistered)
	return nil
}

// AuthLogin signs in with the provider and syncs the profile with the backend.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	email, err := r.flagOrPrompt(cmd, "email", "Email", false)
	if err != nil {
		return err
	}
	password, err := r.flagOrPrompt(cmd, "password", "Password", true)
	if err != nil {
		return err
	}

	result, err := r.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if result.State.Degraded() {
		r.logger.Warn("backend sync failed", "error", result.BackendErr)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result.Session, true)
	}

	if result.State.Degraded() {
		r.writePlain("⚠ %s\n", result.Message)
	} else {
		r.writePlain("✓ %s\n", result.Message)
	}
	r.writeSession(result.Session)
	return nil
}

// AuthLogout clears the local session and signs out of the provider.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	if err := r.auth.Logout(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Logged out\n")
	return nil
}

// AuthStatus waits for the first auth observation and reports the signed-in user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	s, err := r.auth.CheckAuth(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		r.writePlain("%s\n", auth.MsgPleaseLogin)
		return nil
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(s, true)
	}
	r.writeSession(s)
	return nil
}

func (r *Runner) writeSession(s *models.UserSession) {
	r.writePlainHeader("Signed in")
	if s.Name != "" {
		r.writePlain("Name:  %s\n", s.Name)
	}
	r.writePlain("Email: %s\n", s.Email)
	r.writePlain("UID:   %s\n", s.UID)
	if s.Restored {
		r.writePlain("(restored from local session)\n")
	}
}
