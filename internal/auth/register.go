package auth

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/identity"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
)

// Register creates the provider account and the backend record for a new user.
//
// A backend that already knows the email short-circuits before the provider is
// touched. When backend provisioning fails for any reason other than a
// duplicate email, the just-created provider account is deleted (best-effort).
// Failures are [*Error] values.
func (o *Orchestrator) Register(ctx context.Context, name, email, password string) (*models.UserSession, error) {
	if err := validate(email, name, password); err != nil {
		return nil, err
	}
	logger := o.logger.With("flow", "register", "email", email)

	exists, err := o.backend.CheckUser(ctx, email)
	if err != nil {
		logger.Warn("user existence check failed, assuming new user", "error", err)
		exists = false
	}
	if exists {
		logger.Info("email already registered with backend")
		return nil, fail(ReasonDuplicateAccount, MsgDuplicateAccount, nil)
	}

	id, err := o.provider.CreateAccount(ctx, email, password)
	if err != nil {
		logger.Error("provider account creation failed", "error", err)
		return nil, providerRegisterError(err)
	}
	logger = logger.With("uid", id.UID)
	logger.Debug("provider account created")

	if err := o.provider.UpdateProfile(ctx, name); err != nil {
		logger.Error("failed to set display name", "error", err)
		o.compensate(ctx, logger)
		return nil, fail(ReasonProviderFailure, MsgRegisterFailed, err)
	}

	user, err := o.backend.Register(ctx, services.RegisterRequest{Name: name, Email: email, Password: password, UID: id.UID})
	if err != nil {
		logger.Error("backend registration failed", "error", err)
		if he, ok := services.AsHTTPError(err); ok && he.IsDuplicateEmail() {
			logger.Info("email already registered in backend, keeping provider account")
			return nil, fail(ReasonDuplicateAccount, MsgDuplicateAccount, err)
		}

		o.compensate(ctx, logger)
		if services.IsUnavailable(err) {
			return nil, fail(ReasonBackendUnavailable, MsgConnection, err)
		}
		msg := MsgRegisterFailed
		if he, ok := services.AsHTTPError(err); ok && he.Detail != "" {
			msg = he.Detail
		}
		return nil, fail(ReasonRegistrationRejected, msg, err)
	}

	s := (&models.UserSession{Name: name, Email: email, UID: id.UID}).Merge(user)
	if err := o.cache.Set(s); err != nil {
		return nil, err
	}
	logger.Info("registration complete")
	return s.Clone(), nil
}

// compensate deletes the provider account created earlier in the flow. Failures are logged only.
func (o *Orchestrator) compensate(ctx context.Context, logger *log.Logger) {
	if err := o.provider.DeleteAccount(context.WithoutCancel(ctx)); err != nil {
		logger.Error("failed to clean up provider account", "error", err)
	}
}

func providerRegisterError(err error) *Error {
	switch identity.CodeOf(err) {
	case identity.CodeEmailExists:
		return fail(ReasonDuplicateAccount, MsgDuplicateAccount, err)
	case identity.CodeWeakPassword:
		return fail(ReasonWeakPassword, MsgWeakPassword, err)
	case identity.CodeInvalidEmail:
		return fail(ReasonInvalidEmail, MsgInvalidEmail, err)
	default:
		return fail(ReasonProviderFailure, MsgRegisterFailed, err)
	}
}
