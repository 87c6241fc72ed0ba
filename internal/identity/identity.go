// Package identity talks to the identity provider that issues user identities.
//
// [Provider] is the capability surface the rest of the client depends on:
// create account, sign in, update profile, delete, sign out, and an
// auth-state subscription. [Firebase] implements it over the Identity
// Toolkit REST API and persists tokens through a [CredentialStore].
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/stylx/internal/models"
)

// Identity is the provider's view of a signed-in user.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Fields returns the provider fields that are merged into a session.
func (i *Identity) Fields() map[string]any {
	return map[string]any{"name": i.DisplayName, "email": i.Email, "uid": i.UID}
}

// Session builds a provider-only session.
func (i *Identity) Session() *models.UserSession {
	return &models.UserSession{Name: i.DisplayName, Email: i.Email, UID: i.UID}
}

// Provider is the identity provider capability surface.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// UpdateProfile sets the display name of the signed-in identity.
	UpdateProfile(ctx context.Context, displayName string) error
	// DeleteAccount deletes the signed-in identity and signs out.
	DeleteAccount(ctx context.Context) error
	SignOut(ctx context.Context) error
	Current() *Identity
	// Subscribe delivers the current state immediately and then every auth-state change.
	// A nil *Identity means signed out. The returned func unsubscribes and closes the channel.
	Subscribe() (<-chan *Identity, func())
}

// Code is a provider error code as reported by the Identity Toolkit API.
type Code string

const (
	CodeEmailExists             Code = "EMAIL_EXISTS"
	CodeWeakPassword            Code = "WEAK_PASSWORD"
	CodeInvalidEmail            Code = "INVALID_EMAIL"
	CodeEmailNotFound           Code = "EMAIL_NOT_FOUND"
	CodeInvalidPassword         Code = "INVALID_PASSWORD"
	CodeInvalidLoginCredentials Code = "INVALID_LOGIN_CREDENTIALS"
	CodeUserDisabled            Code = "USER_DISABLED"
	CodeTooManyAttempts         Code = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeTokenExpired            Code = "TOKEN_EXPIRED"
	CodeNoCurrentUser           Code = "NO_CURRENT_USER"
	CodeNetwork                 Code = "NETWORK_REQUEST_FAILED"
	CodeUnknown                 Code = "UNKNOWN"
)

// Error is a failed provider call.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity provider: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider: %s", e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the provider code from err, or "" if err is not an [*Error].
func CodeOf(err error) Code {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// parseCode splits "WEAK_PASSWORD : Password should be at least 6 characters".
func parseCode(message string) (Code, string) {
	code, detail, _ := strings.Cut(message, ":")
	code = strings.TrimSpace(code)
	if code == "" {
		return CodeUnknown, strings.TrimSpace(detail)
	}
	return Code(code), strings.TrimSpace(detail)
}
