// Package auth orchestrates the identity provider, the backend and the session cache.
//
// [Orchestrator.ObserveSession] reconciles provider auth-state changes with the
// [session.Cache]. [Orchestrator.Register] and [Orchestrator.Login] run the
// two-system account flows: registration compensates a half-created account,
// and login succeeds in a degraded state when only the backend fails.
package auth

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/identity"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
	"github.com/desertthunder/stylx/internal/session"
	"github.com/desertthunder/stylx/internal/shared"
)

const defaultObserveTimeout = 10 * time.Second

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Orchestrator runs the auth flows.
type Orchestrator struct {
	provider       identity.Provider
	backend        services.Service
	cache          *session.Cache
	observeTimeout time.Duration
	now            func() time.Time
	logger         *log.Logger
}

// Opts configures [New].
type Opts struct {
	Provider identity.Provider
	Backend  services.Service
	Cache    *session.Cache
	// ObserveTimeout bounds ObserveSession; defaults to 10s.
	ObserveTimeout time.Duration
	Logger         *log.Logger
}

// New creates an Orchestrator.
func New(opts Opts) *Orchestrator {
	if opts.ObserveTimeout <= 0 {
		opts.ObserveTimeout = defaultObserveTimeout
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Cache == nil {
		opts.Cache = session.NewCache(nil, opts.Logger)
	}
	return &Orchestrator{
		provider:       opts.Provider,
		backend:        opts.Backend,
		cache:          opts.Cache,
		observeTimeout: opts.ObserveTimeout,
		now:            time.Now,
		logger:         shared.WithLogger(opts.Logger, "component", "auth"),
	}
}

// Cache returns the session cache the orchestrator writes to.
func (o *Orchestrator) Cache() *session.Cache { return o.cache }

// Observation is one reconciled auth state. A nil Session with a nil Err means unauthenticated.
type Observation struct {
	Session *models.UserSession
	Err     error
}

// ObserveSession subscribes to provider auth-state changes and emits a reconciled session for each.
//
// The returned channel closes, and the provider subscription is dropped, when
// ctx ends or the observe timeout elapses, whichever comes first.
func (o *Orchestrator) ObserveSession(ctx context.Context) <-chan Observation {
	out := make(chan Observation, 1)
	states, unsubscribe := o.provider.Subscribe()
	ctx, cancel := context.WithTimeout(ctx, o.observeTimeout)

	go func() {
		defer close(out)
		defer unsubscribe()
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				o.logger.Debug("session observation ended", "reason", ctx.Err())
				return
			case id, ok := <-states:
				if !ok {
					return
				}
				obs := o.reconcile(id)
				select {
				case out <- obs:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (o *Orchestrator) reconcile(id *identity.Identity) Observation {
	cur, err := o.cache.Get()
	if err != nil {
		return Observation{Err: err}
	}

	if id == nil {
		if !cur.Authenticated() {
			o.logger.Debug("no identity and no cached session")
			return Observation{}
		}
		o.logger.Debug("restoring cached session", "email", cur.Email)
		cur.Restored = true
		return Observation{Session: cur}
	}

	next := id.Session()
	if cur != nil && cur.UID == id.UID {
		next.Extra = maps.Clone(cur.Extra)
		if next.Name == "" {
			next.Name = cur.Name
		}
	}
	if err := o.cache.Set(next); err != nil {
		return Observation{Err: err}
	}
	return Observation{Session: next.Clone()}
}

// CheckAuth waits for the first observation and returns the session it carries.
//
// Unauthenticated maps to [shared.ErrNotAuthenticated]; callers send the user to log in.
func (o *Orchestrator) CheckAuth(ctx context.Context) (*models.UserSession, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	obs, ok := <-o.ObserveSession(ctx)
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: waiting for auth state", shared.ErrTimeout)
	case obs.Err != nil:
		return nil, obs.Err
	case obs.Session == nil:
		return nil, shared.ErrNotAuthenticated
	default:
		return obs.Session, nil
	}
}

// Logout clears the session cache and signs out of the provider.
//
// The cache is cleared first so that observers of the sign-out do not soft-restore it.
func (o *Orchestrator) Logout(ctx context.Context) error {
	if err := o.cache.Clear(); err != nil {
		return err
	}
	if err := o.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	o.logger.Info("logged out")
	return nil
}

// ValidateEmail reports whether email has the shape a@b.c.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// validate checks that every required value is non-blank and that email is well formed.
func validate(email string, required ...string) error {
	for _, v := range append(required, email) {
		if strings.TrimSpace(v) == "" {
			return fail(ReasonInvalidInput, MsgMissingFields, fmt.Errorf("%w: missing required field", shared.ErrInvalidInput))
		}
	}
	if !ValidateEmail(email) {
		return fail(ReasonInvalidInput, MsgInvalidEmailFormat, fmt.Errorf("%w: malformed email %q", shared.ErrInvalidInput, email))
	}
	return nil
}
