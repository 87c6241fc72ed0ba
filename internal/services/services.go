package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
)

// Service is the backend REST surface consumed by the client.
type Service interface {
	// CheckUser reports whether the backend already has an account for email.
	CheckUser(ctx context.Context, email string) (bool, error)

	// Register provisions a backend account and returns the backend user record.
	Register(ctx context.Context, req RegisterRequest) (map[string]any, error)

	// Login records a login and returns the backend user record.
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)

	// UpdateUser refreshes the backend copy of provider fields (non-essential).
	UpdateUser(ctx context.Context, req UpdateUserRequest) error

	// AddTransformedImage appends to the user's transform history (non-essential).
	AddTransformedImage(ctx context.Context, req HistoryEntry) error

	// SubmitTransfer sends a style-transfer job. Progress arrives on the job's progress channel.
	SubmitTransfer(ctx context.Context, req TransferRequest) error

	// Gallery fetches one page of the user's transformed images.
	Gallery(ctx context.Context, email string, page, perPage int) (*models.GalleryPage, error)

	// DeleteImage removes one image by stored filename.
	DeleteImage(ctx context.Context, email, filename string) error

	// Download streams an image by backend path into w.
	Download(ctx context.Context, path string, w io.Writer) (int64, error)
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UID      string `json:"uid"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UID      string `json:"uid"`
}

// LoginResponse is the backend's reply to a login.
type LoginResponse struct {
	Message string         `json:"message"`
	User    map[string]any `json:"user"`
}

// UpdateUserRequest is the body of POST /api/update-user.
type UpdateUserRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	UID       string `json:"uid"`
	LastLogin string `json:"last_login"`
}

// HistoryEntry is the body of POST /api/add-transformed-image.
type HistoryEntry struct {
	Email         string `json:"email"`
	ImagePath     string `json:"image_path"`
	StyleName     string `json:"style_name"`
	TransformedAt string `json:"transformed_at"`
}

// Upload is one multipart file part.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// TransferRequest is the multipart body of POST /api/transfer.
type TransferRequest struct {
	Content  Upload
	Style    Upload
	Email    string
	ClientID string
}

// HTTPError is a non-success backend response.
type HTTPError struct {
	StatusCode int
	Detail     string
	Path       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend API error (status %d): %s", e.StatusCode, e.Detail)
}

func (e *HTTPError) Unwrap() error { return shared.ErrAPIRequest }

// IsDuplicateEmail reports whether the backend rejected a registration because the email exists.
func (e *HTTPError) IsDuplicateEmail() bool {
	return strings.Contains(strings.ToLower(e.Detail), "email already registered")
}

// IsServerError reports a 5xx response.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsUnauthorized reports a 401 or 403 response.
func (e *HTTPError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// AsHTTPError unwraps err into an [*HTTPError].
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// ImageNotFound marks a 404 for the image name so it matches [shared.ErrImageNotFound].
// Other errors are returned unchanged.
func ImageNotFound(name string, err error) error {
	if he, ok := AsHTTPError(err); ok && he.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", shared.ErrImageNotFound, name, he)
	}
	return err
}

// IsUnavailable reports a transport failure or 5xx, i.e. the backend could not serve the call.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrServiceUnavailable) {
		return true
	}
	he, ok := AsHTTPError(err)
	return ok && he.IsServerError()
}
