package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/auth"
	"github.com/desertthunder/stylx/internal/gallery"
	"github.com/desertthunder/stylx/internal/identity"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
	"github.com/desertthunder/stylx/internal/session"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/desertthunder/stylx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// HistoryStore is the local transfer history the CLI reads and the engine writes.
type HistoryStore interface {
	tasks.TransferHistory
	List(criteria map[string]any) ([]*models.Transfer, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	provider   identity.Provider
	backend    services.Service
	dialer     services.ProgressDialer
	cache      *session.Cache
	history    HistoryStore
	auth       *auth.Orchestrator
	gallery    *gallery.State
	engine     *tasks.TransferEngine
	loader     *images.Loader
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	prompter   Prompter
	open       func(target string) error
	resolve    func(path string) string
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Provider   identity.Provider
	Backend    services.Service
	Dialer     services.ProgressDialer
	Cache      *session.Cache
	History    HistoryStore
	Loader     *images.Loader
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Prompter   Prompter
	Open       func(target string) error
	Resolve    func(path string) string
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Cache == nil {
		opts.Cache = session.NewCache(nil, opts.Logger)
	}
	if opts.Loader == nil {
		opts.Loader = images.NewLoader(nil, opts.Config.Images.MaxDimension, opts.Logger)
	}
	if opts.Prompter == nil {
		opts.Prompter = NewTerminalPrompter(os.Stdin, opts.Output)
	}
	if opts.Open == nil {
		opts.Open = shared.OpenExternal
	}
	if opts.Resolve == nil {
		opts.Resolve = func(p string) string { return p }
	}

	order, err := gallery.ParseSort(opts.Config.Gallery.Sort)
	if err != nil {
		opts.Logger.Warn("invalid gallery sort in config, using server order", "error", err)
		order = gallery.SortServer
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		provider:   opts.Provider,
		backend:    opts.Backend,
		dialer:     opts.Dialer,
		cache:      opts.Cache,
		history:    opts.History,
		loader:     opts.Loader,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		prompter:   opts.Prompter,
		open:       opts.Open,
		resolve:    opts.Resolve,
	}

	if opts.Provider != nil && opts.Backend != nil {
		r.auth = auth.New(auth.Opts{
			Provider:       opts.Provider,
			Backend:        opts.Backend,
			Cache:          opts.Cache,
			ObserveTimeout: opts.Config.Identity.ObserveTimeout(),
			Logger:         opts.Logger,
		})
	}
	if opts.Backend != nil {
		r.gallery = gallery.New(opts.Backend, opts.Config.Gallery.PerPage, order, opts.Logger)
		engineOpts := tasks.EngineOpts{
			Backend:    opts.Backend,
			Dialer:     opts.Dialer,
			Session:    opts.Cache,
			Gallery:    r.gallery,
			JobTimeout: opts.Config.Backend.JobTimeout(),
			Logger:     opts.Logger,
		}
		if opts.History != nil {
			engineOpts.History = opts.History
		}
		r.engine = tasks.NewTransferEngine(engineOpts)
	}
	return r
}

// SetLogger swaps the runner's logger, e.g. to a file while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, stylesCommand, transferCommand, galleryCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireAuth() error {
	if r.auth == nil {
		return fmt.Errorf("%w: identity.api_key is not configured", shared.ErrMissingCredentials)
	}
	if r.backend == nil {
		return fmt.Errorf("%w: backend not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) requireBackend() error {
	if r.backend == nil || r.engine == nil {
		return fmt.Errorf("%w: backend not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// currentEmail returns the signed-in user's email or a "please log in" error.
func (r *Runner) currentEmail() (string, error) {
	email, err := r.cache.Email()
	if err != nil {
		return "", fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, auth.MsgPleaseLogin)
	}
	return email, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
