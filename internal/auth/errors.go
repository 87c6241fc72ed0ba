package auth

import (
	"errors"
	"fmt"
)

// Reason classifies why a registration or login failed.
type Reason string

const (
	ReasonInvalidInput         Reason = "invalid_input"
	ReasonDuplicateAccount     Reason = "duplicate_account"
	ReasonInvalidCredentials   Reason = "invalid_credentials"
	ReasonWeakPassword         Reason = "weak_password"
	ReasonInvalidEmail         Reason = "invalid_email"
	ReasonBackendUnavailable   Reason = "backend_unavailable"
	ReasonRegistrationRejected Reason = "registration_rejected"
	ReasonProviderFailure      Reason = "provider_failure"
)

// User-facing messages.
const (
	MsgMissingFields      = "Please fill in all required fields"
	MsgInvalidEmailFormat = "Please enter a valid email address"
	MsgDuplicateAccount   = "This email is already registered. Please try logging in instead."
	MsgWeakPassword       = "Password is too weak. Please use a stronger password."
	MsgInvalidEmail       = "Invalid email address. Please enter a valid email."
	MsgInvalidCredentials = "Invalid email or password. Please try again."
	MsgRegisterFailed     = "Registration failed. Please try again."
	MsgLoginFailed        = "Login failed. Please try again."
	MsgConnection         = "An error occurred. Please check your connection and try again."
	MsgRegistered         = "Registration successful! You can now log in."
	MsgDegradedLogin      = "Logged in with Firebase (Backend temporarily unavailable)"
	MsgLoggedIn           = "Login successful"
	MsgPleaseLogin        = "Please login to continue"
)

// Error is a failed auth flow with a user-facing message.
type Error struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the [Reason] from err, or "" when err is not an [*Error].
func ReasonOf(err error) Reason {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func fail(reason Reason, message string, err error) *Error {
	return &Error{Reason: reason, Message: message, Err: err}
}
