// Command stylx applies artistic styles to photos and manages the resulting gallery.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/auth"
	"github.com/desertthunder/stylx/internal/identity"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/repositories"
	"github.com/desertthunder/stylx/internal/services"
	"github.com/desertthunder/stylx/internal/session"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func loadConfig(logger *log.Logger) (*shared.Config, string) {
	path := os.Getenv(shared.EnvPrefix + "CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		if !errors.Is(err, shared.ErrMissingConfig) {
			logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		}
		config = shared.DefaultConfig()
	}
	if err := shared.ApplyEnv(config, ".env"); err != nil {
		logger.Warn("failed to apply environment overrides", "error", err)
	}
	return config, path
}

func main() {
	logger := shared.NewLogger(nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config, configPath := loadConfig(logger)
	if err := config.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))

	httpClient := &http.Client{Timeout: config.Backend.RequestTimeout()}
	opts := RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		HTTPClient: httpClient,
		Logger:     logger,
		Loader:     images.NewLoader(nil, config.Images.MaxDimension, logger),
	}

	var sessions session.Store
	var credentials identity.CredentialStore
	if db, err := shared.OpenDatabase(config.Database); err == nil {
		defer db.Close()
		store := repositories.NewStore(db)
		sessions, credentials = store.Sessions, store.Credentials
		opts.History = store.Transfers
	} else {
		logger.Warn("local database unavailable, session will not persist", "error", err)
	}
	opts.Cache = session.NewCache(sessions, logger)

	apiOpts := services.APIOpts{Config: config.Backend, HTTPClient: httpClient, Logger: logger}
	if firebase, err := identity.NewFirebase(identity.FirebaseOpts{
		Config:     config.Identity,
		Store:      credentials,
		HTTPClient: httpClient,
		Logger:     logger,
	}); err == nil {
		if _, err := firebase.Restore(ctx); err != nil {
			logger.Warn("failed to restore stored credential", "error", err)
		}
		opts.Provider = firebase
		apiOpts.Tokens = firebase.TokenSource()
	} else {
		logger.Debug("identity provider disabled", "error", err)
	}

	backend := services.NewAPIService(apiOpts)
	opts.Backend = backend
	opts.Resolve = backend.ResolveURL
	opts.Dialer = services.NewWebSocketDialer(services.WebSocketOpts{Config: config.Backend, Logger: logger})

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "stylx",
		Usage:    "Apply artistic styles to your photos and manage your gallery",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case auth.ReasonOf(err) != "":
			logger.Fatal(auth.MessageOf(err), "reason", auth.ReasonOf(err))
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
