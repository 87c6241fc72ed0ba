package identity

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

const subscriberBuffer = 16

// CredentialStore persists provider tokens. Implemented by [repositories.CredentialRepository].
type CredentialStore interface {
	Latest() (*models.Credential, error)
	Save(*models.Credential) error
	Delete(uid string) error
}

// Firebase implements [Provider] against the Firebase Identity Toolkit REST API.
type Firebase struct {
	client     *resty.Client
	httpClient *http.Client
	oauth      *oauth2.Config
	store      CredentialStore
	logger     *log.Logger

	mu          sync.Mutex
	current     *models.Credential
	tokens      oauth2.TokenSource
	subscribers map[int]chan *Identity
	nextSub     int
}

var _ Provider = (*Firebase)(nil)

// FirebaseOpts configures [NewFirebase].
type FirebaseOpts struct {
	Config     shared.IdentityConfig
	Store      CredentialStore
	HTTPClient *http.Client
	Logger     *log.Logger
}

type authResponse struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	DisplayName  string `json:"displayName"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewFirebase creates a provider client. An API key is required.
func NewFirebase(opts FirebaseOpts) (*Firebase, error) {
	if opts.Config.APIKey == "" {
		return nil, fmt.Errorf("%w: identity.api_key is not set", shared.ErrMissingCredentials)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Config.AuthURL == "" {
		opts.Config.AuthURL = "https://identitytoolkit.googleapis.com/v1"
	}
	if opts.Config.TokenURL == "" {
		opts.Config.TokenURL = "https://securetoken.googleapis.com/v1/token"
	}

	logger := shared.WithLogger(opts.Logger, "component", "identity")
	client := resty.NewWithClient(opts.HTTPClient).
		SetBaseURL(opts.Config.AuthURL).
		SetQueryParam("key", opts.Config.APIKey).
		SetHeader("Content-Type", "application/json").
		SetLogger(logger)

	return &Firebase{
		client:     client,
		httpClient: opts.HTTPClient,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  opts.Config.TokenURL + "?key=" + opts.Config.APIKey,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:       opts.Store,
		logger:      logger,
		subscribers: make(map[int]chan *Identity),
	}, nil
}

// Restore loads the last persisted credential and announces it to subscribers.
//
// An expired credential is refreshed; if that fails the stored credential is dropped and the
// provider stays signed out.
func (f *Firebase) Restore(ctx context.Context) (*Identity, error) {
	if f.store == nil {
		return nil, nil
	}
	c, err := f.store.Latest()
	if err != nil {
		return nil, fmt.Errorf("failed to load stored credential: %w", err)
	}
	if c == nil {
		return nil, nil
	}

	f.mu.Lock()
	f.setCurrentLocked(c)
	f.mu.Unlock()

	if c.Expired(0) {
		if _, err := f.IDToken(ctx); err != nil {
			f.logger.Warn("stored credential could not be refreshed", "uid", c.UID, "error", err)
			f.clear(c.UID)
			return nil, nil
		}
	}

	id := f.Current()
	f.notify(id)
	return id, nil
}

// CreateAccount registers a new email/password identity and signs it in.
func (f *Firebase) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	return f.authenticate(ctx, "/accounts:signUp", email, password)
}

// SignIn authenticates an existing email/password identity.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	return f.authenticate(ctx, "/accounts:signInWithPassword", email, password)
}

func (f *Firebase) authenticate(ctx context.Context, path, email, password string) (*Identity, error) {
	var out authResponse
	body := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	if err := f.post(ctx, path, body, &out); err != nil {
		return nil, err
	}

	c, err := credentialFrom(out, "")
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.setCurrentLocked(c)
	f.mu.Unlock()
	f.persist(c)

	id := identityOf(c)
	f.notify(id)
	return id, nil
}

// UpdateProfile sets the display name of the signed-in identity.
func (f *Firebase) UpdateProfile(ctx context.Context, displayName string) error {
	token, err := f.IDToken(ctx)
	if err != nil {
		return err
	}

	var out authResponse
	body := map[string]any{"idToken": token, "displayName": displayName, "returnSecureToken": true}
	if err := f.post(ctx, "/accounts:update", body, &out); err != nil {
		return err
	}

	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return &Error{Code: CodeNoCurrentUser}
	}
	c := *f.current
	c.DisplayName = displayName
	if out.IDToken != "" {
		if updated, err := credentialFrom(out, displayName); err == nil {
			c = *updated
		}
	}
	f.setCurrentLocked(&c)
	f.mu.Unlock()

	f.persist(&c)
	return nil
}

// DeleteAccount deletes the signed-in identity and signs out.
func (f *Firebase) DeleteAccount(ctx context.Context) error {
	cur := f.Current()
	if cur == nil {
		return &Error{Code: CodeNoCurrentUser, Err: shared.ErrNotAuthenticated}
	}
	token, err := f.IDToken(ctx)
	if err != nil {
		return err
	}

	if err := f.post(ctx, "/accounts:delete", map[string]any{"idToken": token}, nil); err != nil {
		return err
	}

	f.clear(cur.UID)
	f.notify(nil)
	return nil
}

// SignOut forgets the signed-in identity locally.
func (f *Firebase) SignOut(ctx context.Context) error {
	cur := f.Current()
	if cur == nil {
		return nil
	}
	f.clear(cur.UID)
	f.notify(nil)
	return nil
}

// Current returns the signed-in identity or nil.
func (f *Firebase) Current() *Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	return identityOf(f.current)
}

// IDToken returns a valid id token for the signed-in identity, refreshing it when expired.
func (f *Firebase) IDToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	ts := f.tokens
	var cur models.Credential
	if f.current != nil {
		cur = *f.current
	}
	f.mu.Unlock()
	if ts == nil || cur.UID == "" {
		return "", &Error{Code: CodeNoCurrentUser, Err: shared.ErrNotAuthenticated}
	}

	tok, err := ts.Token()
	if err != nil {
		cause := shared.ErrRefreshFailed
		if cur.RefreshToken == "" {
			cause = shared.ErrNoRefreshToken
		}
		return "", &Error{Code: CodeTokenExpired, Message: err.Error(), Err: fmt.Errorf("%w: %w", shared.ErrTokenExpired, cause)}
	}

	idToken := tok.AccessToken
	if v, ok := tok.Extra("id_token").(string); ok && v != "" {
		idToken = v
	}
	if idToken != cur.IDToken {
		f.mu.Lock()
		if f.current != nil && f.current.UID == cur.UID {
			f.current.IDToken = idToken
			f.current.ExpiresAt = tok.Expiry
			if tok.RefreshToken != "" {
				f.current.RefreshToken = tok.RefreshToken
			}
			refreshed := *f.current
			f.mu.Unlock()
			f.persist(&refreshed)
		} else {
			f.mu.Unlock()
		}
	}
	return idToken, nil
}

// TokenSource exposes the signed-in identity's id token as a bearer [oauth2.TokenSource].
func (f *Firebase) TokenSource() oauth2.TokenSource {
	return tokenSourceFunc(func() (*oauth2.Token, error) {
		token, err := f.IDToken(context.Background())
		if err != nil {
			return nil, err
		}
		return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
	})
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (fn tokenSourceFunc) Token() (*oauth2.Token, error) { return fn() }

// Subscribe implements [Provider].
func (f *Firebase) Subscribe() (<-chan *Identity, func()) {
	ch := make(chan *Identity, subscriberBuffer)

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subscribers[id] = ch
	if f.current != nil {
		ch <- identityOf(f.current)
	} else {
		ch <- nil
	}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subscribers, id)
			close(ch)
		})
	}
}

func (f *Firebase) notify(id *Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subscribers {
		var v *Identity
		if id != nil {
			c := *id
			v = &c
		}
		select {
		case ch <- v:
		default:
			f.logger.Warn("auth state subscriber is not draining, dropping update")
		}
	}
}

func (f *Firebase) setCurrentLocked(c *models.Credential) {
	cp := *c
	f.current = &cp
	tok := &oauth2.Token{
		AccessToken:  c.IDToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.ExpiresAt,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, f.httpClient)
	f.tokens = f.oauth.TokenSource(ctx, tok)
}

func (f *Firebase) clear(uid string) {
	f.mu.Lock()
	f.current = nil
	f.tokens = nil
	f.mu.Unlock()

	if f.store != nil {
		if err := f.store.Delete(uid); err != nil {
			f.logger.Warn("failed to delete stored credential", "uid", uid, "error", err)
		}
	}
}

func (f *Firebase) persist(c *models.Credential) {
	if f.store == nil {
		return
	}
	if err := f.store.Save(c); err != nil {
		f.logger.Warn("failed to persist credential", "uid", c.UID, "error", err)
	}
}

func (f *Firebase) post(ctx context.Context, path string, body any, out any) error {
	var apiErr apiError
	req := f.client.R().SetContext(ctx).SetBody(body).SetError(&apiErr)
	if out != nil {
		req.SetResult(out)
	}

	res, err := req.Post(path)
	if err != nil {
		return &Error{Code: CodeNetwork, Message: err.Error(), Err: fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)}
	}
	if res.IsError() {
		code, detail := parseCode(apiErr.Error.Message)
		f.logger.Debug("provider call failed", "path", path, "status", res.StatusCode(), "code", code)
		return &Error{Code: code, Message: detail, Err: causeOf(code)}
	}
	return nil
}

func causeOf(code Code) error {
	switch code {
	case CodeEmailNotFound, CodeInvalidPassword, CodeInvalidLoginCredentials:
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, shared.ErrInvalidCredentials)
	default:
		return shared.ErrAuthFailed
	}
}

func credentialFrom(r authResponse, displayName string) (*models.Credential, error) {
	if r.LocalID == "" || r.IDToken == "" {
		return nil, &Error{Code: CodeUnknown, Message: "response missing identity"}
	}
	ttl, err := strconv.Atoi(r.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3600
	}
	if r.DisplayName != "" {
		displayName = r.DisplayName
	}
	return &models.Credential{
		UID:          r.LocalID,
		Email:        r.Email,
		DisplayName:  displayName,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(ttl) * time.Second),
	}, nil
}

func identityOf(c *models.Credential) *Identity {
	return &Identity{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName}
}
