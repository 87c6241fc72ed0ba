package auth

import (
	"context"
	"time"

	"github.com/desertthunder/stylx/internal/identity"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
)

// LoginState is a step of the login flow.
type LoginState int

const (
	StateIdle LoginState = iota
	StateProviderAuthenticating
	StateFailed
	StateProvisionalSession
	StateBackendSyncing
	StateSynced
	StateDegradedSynced
)

func (s LoginState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProviderAuthenticating:
		return "provider_authenticating"
	case StateFailed:
		return "failed"
	case StateProvisionalSession:
		return "provisional_session"
	case StateBackendSyncing:
		return "backend_syncing"
	case StateSynced:
		return "synced"
	case StateDegradedSynced:
		return "degraded_synced"
	default:
		return "unknown"
	}
}

// Degraded reports a login that succeeded with the provider only.
func (s LoginState) Degraded() bool { return s == StateDegradedSynced }

// LoginResult is a successful login. State is [StateSynced] or [StateDegradedSynced].
type LoginResult struct {
	Session *models.UserSession
	State   LoginState
	Message string
	// BackendErr is why the backend sync degraded, if it did.
	BackendErr error
}

type loginFlow struct {
	o     *Orchestrator
	state LoginState
	email string
}

func (f *loginFlow) to(next LoginState) {
	f.o.logger.Debug("login transition", "email", f.email, "from", f.state, "to", next)
	f.state = next
}

// Login signs in with the provider and then syncs with the backend.
//
// Once the provider accepts the credentials a provisional session is cached, so
// the call succeeds even if every backend step fails; the result then carries
// [StateDegradedSynced]. Provider and validation failures are [*Error] values.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	flow := &loginFlow{o: o, state: StateIdle, email: email}

	if err := validate(email, password); err != nil {
		flow.to(StateFailed)
		return nil, err
	}

	flow.to(StateProviderAuthenticating)
	id, err := o.provider.SignIn(ctx, email, password)
	if err != nil {
		flow.to(StateFailed)
		o.logger.Error("provider sign in failed", "email", email, "error", err)
		return nil, providerLoginError(err)
	}

	provisional := id.Session()
	if err := o.cache.Set(provisional); err != nil {
		flow.to(StateFailed)
		return nil, err
	}
	flow.to(StateProvisionalSession)

	flow.to(StateBackendSyncing)
	res, err := o.backend.Login(ctx, services.LoginRequest{Email: email, Password: password, UID: id.UID})
	if err != nil {
		flow.to(StateDegradedSynced)
		o.logger.Warn("backend login failed, continuing with provider session", "email", email, "error", err)
		return &LoginResult{Session: provisional.Clone(), State: StateDegradedSynced, Message: MsgDegradedLogin, BackendErr: err}, nil
	}

	o.updateUser(ctx, id)

	merged, err := o.cache.Merge(res.User)
	if err != nil {
		flow.to(StateDegradedSynced)
		o.logger.Warn("failed to merge backend user", "error", err)
		return &LoginResult{Session: provisional.Clone(), State: StateDegradedSynced, Message: MsgDegradedLogin, BackendErr: err}, nil
	}

	flow.to(StateSynced)
	msg := res.Message
	if msg == "" {
		msg = MsgLoggedIn
	}
	o.logger.Info("login complete", "email", email, "uid", id.UID)
	return &LoginResult{Session: merged, State: StateSynced, Message: msg}, nil
}

// updateUser refreshes the backend's copy of the provider profile. Failures are logged and swallowed.
func (o *Orchestrator) updateUser(ctx context.Context, id *identity.Identity) {
	err := o.backend.UpdateUser(ctx, services.UpdateUserRequest{
		Name:      id.DisplayName,
		Email:     id.Email,
		UID:       id.UID,
		LastLogin: o.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		o.logger.Warn("failed to update user information", "email", id.Email, "error", err)
	}
}

func providerLoginError(err error) *Error {
	switch identity.CodeOf(err) {
	case identity.CodeEmailNotFound, identity.CodeInvalidPassword, identity.CodeInvalidLoginCredentials:
		return fail(ReasonInvalidCredentials, MsgInvalidCredentials, err)
	case identity.CodeInvalidEmail:
		return fail(ReasonInvalidEmail, MsgInvalidEmail, err)
	default:
		return fail(ReasonProviderFailure, MsgLoginFailed, err)
	}
}
