package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "http://127.0.0.1:5000"

// APIService implements [Service] over HTTP with resty.
type APIService struct {
	baseURL string
	client  *resty.Client
	limiter *rate.Limiter
	tokens  oauth2.TokenSource
	logger  *log.Logger
}

var _ Service = (*APIService)(nil)

// APIOpts configures [NewAPIService].
type APIOpts struct {
	Config     shared.BackendConfig
	HTTPClient *http.Client
	// Tokens, when set, supplies a bearer token for every request.
	Tokens oauth2.TokenSource
	Logger *log.Logger
}

// NewAPIService creates a new backend client, applying defaults for unset options.
func NewAPIService(opts APIOpts) *APIService {
	baseURL := strings.TrimRight(opts.Config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	limit := rate.Inf
	if opts.Config.RateLimit > 0 {
		limit = rate.Limit(opts.Config.RateLimit)
	}

	a := &APIService{
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
		tokens:  opts.Tokens,
		logger:  shared.WithLogger(opts.Logger, "component", "backend"),
	}

	a.client = resty.NewWithClient(opts.HTTPClient).
		SetBaseURL(baseURL).
		SetLogger(a.logger).
		OnBeforeRequest(a.beforeRequest)
	if timeout := opts.Config.RequestTimeout(); timeout > 0 {
		a.client.SetTimeout(timeout)
	}
	return a
}

// BaseURL returns the backend root the client talks to.
func (a *APIService) BaseURL() string { return a.baseURL }

func (a *APIService) beforeRequest(_ *resty.Client, req *resty.Request) error {
	if err := a.limiter.Wait(req.Context()); err != nil {
		return err
	}
	if a.tokens == nil {
		return nil
	}
	tok, err := a.tokens.Token()
	if err != nil {
		a.logger.Debug("sending request without bearer token", "error", err)
		return nil
	}
	req.SetAuthToken(tok.AccessToken)
	return nil
}

// CheckUser implements [Service].
func (a *APIService) CheckUser(ctx context.Context, email string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	req := a.client.R().SetContext(ctx).SetPathParam("email", email).SetResult(&out)
	if err := a.do(req, http.MethodGet, "/api/check-user/{email}"); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// Register implements [Service].
func (a *APIService) Register(ctx context.Context, body RegisterRequest) (map[string]any, error) {
	var out struct {
		User map[string]any `json:"user"`
	}
	req := a.client.R().SetContext(ctx).SetBody(body).SetResult(&out)
	if err := a.do(req, http.MethodPost, "/api/register"); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Login implements [Service].
func (a *APIService) Login(ctx context.Context, body LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	req := a.client.R().SetContext(ctx).SetBody(body).SetResult(&out)
	if err := a.do(req, http.MethodPost, "/api/login"); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser implements [Service].
func (a *APIService) UpdateUser(ctx context.Context, body UpdateUserRequest) error {
	return a.do(a.client.R().SetContext(ctx).SetBody(body), http.MethodPost, "/api/update-user")
}

// AddTransformedImage implements [Service].
func (a *APIService) AddTransformedImage(ctx context.Context, body HistoryEntry) error {
	return a.do(a.client.R().SetContext(ctx).SetBody(body), http.MethodPost, "/api/add-transformed-image")
}

// SubmitTransfer implements [Service]. The backend answers 202 Accepted.
func (a *APIService) SubmitTransfer(ctx context.Context, t TransferRequest) error {
	if len(t.Content.Data) == 0 || len(t.Style.Data) == 0 {
		return fmt.Errorf("%w: content and style images are required", shared.ErrInvalidInput)
	}

	req := a.client.R().
		SetContext(ctx).
		SetMultipartField("content", t.Content.Name, t.Content.ContentType, bytes.NewReader(t.Content.Data)).
		SetMultipartField("style", t.Style.Name, t.Style.ContentType, bytes.NewReader(t.Style.Data)).
		SetMultipartFormData(map[string]string{"email": t.Email, "client_id": t.ClientID})

	return a.do(req, http.MethodPost, "/api/transfer")
}

// Gallery implements [Service].
func (a *APIService) Gallery(ctx context.Context, email string, page, perPage int) (*models.GalleryPage, error) {
	var out models.GalleryPage
	req := a.client.R().
		SetContext(ctx).
		SetPathParam("email", email).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("per_page", strconv.Itoa(perPage)).
		SetResult(&out)
	if err := a.do(req, http.MethodGet, "/api/gallery/{email}"); err != nil {
		return nil, err
	}
	if out.Images == nil {
		out.Images = []models.ImageResult{}
	}
	return &out, nil
}

// DeleteImage implements [Service].
func (a *APIService) DeleteImage(ctx context.Context, email, filename string) error {
	req := a.client.R().SetContext(ctx).SetPathParams(map[string]string{"email": email, "filename": filename})
	return ImageNotFound(filename, a.do(req, http.MethodDelete, "/api/images/{email}/{filename}"))
}

// Download implements [Service]. path may be absolute or relative to the backend root.
func (a *APIService) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	req := a.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	res, err := req.Get(a.ResolveURL(path))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		data, _ := io.ReadAll(io.LimitReader(body, 4096))
		return 0, ImageNotFound(path, &HTTPError{StatusCode: res.StatusCode(), Detail: detailOf(data), Path: path})
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to write download: %w", err)
	}
	return n, nil
}

// ResolveURL turns a backend-relative image path into an absolute URL.
func (a *APIService) ResolveURL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return a.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (a *APIService) do(req *resty.Request, method, path string) error {
	start := time.Now()
	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	a.logger.Debug("backend call", "method", method, "path", path, "status", res.StatusCode(), "took", time.Since(start))
	if !res.IsSuccess() {
		return &HTTPError{StatusCode: res.StatusCode(), Detail: detailOf(res.Body()), Path: path}
	}
	return nil
}

// detailOf extracts FastAPI's {"detail": ...} message, falling back to the raw body.
func detailOf(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var s string
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		if len(payload.Detail) > 0 {
			return string(payload.Detail)
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(http.StatusInternalServerError)
	}
	return text
}
