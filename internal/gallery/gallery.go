// Package gallery holds the client-side view of a user's transformed images.
//
// [State] is rebuilt wholesale from each backend page. The only local edit is
// [State.InsertHead], which shows a just-finished job's image before the next
// refresh reconciles with the server. Paging bounds always come from the
// server's pagination block.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/maruel/natural"
	"github.com/microcosm-cc/bluemonday"
)

const DefaultPerPage = 20

// Backend is the subset of [services.Service] the gallery needs.
type Backend interface {
	Gallery(ctx context.Context, email string, page, perPage int) (*models.GalleryPage, error)
	DeleteImage(ctx context.Context, email, filename string) error
}

// ErrorKind classifies a failed page load.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindConnectivity
	KindNotAuthenticated
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindNotAuthenticated:
		return "not_authenticated"
	default:
		return "other"
	}
}

// LoadError is a classified page load failure.
type LoadError struct {
	Kind ErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("gallery load failed (%s): %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Message is the user-facing text for the failure.
func (e *LoadError) Message() string {
	switch e.Kind {
	case KindConnectivity:
		return "Failed to connect to server. Please check if the server is running."
	case KindNotAuthenticated:
		return "Please login to view gallery"
	default:
		return "Failed to load gallery. Please try refreshing the page."
	}
}

// Classify maps a backend error to a [LoadError].
func Classify(err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		return &LoadError{Kind: KindNotAuthenticated, Err: err}
	case errors.Is(err, shared.ErrServiceUnavailable):
		return &LoadError{Kind: KindConnectivity, Err: err}
	}
	if he, ok := services.AsHTTPError(err); ok && he.IsUnauthorized() {
		return &LoadError{Kind: KindNotAuthenticated, Err: err}
	}
	return &LoadError{Kind: KindOther, Err: err}
}

// Confirmer approves a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to [Confirmer].
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// State is the gallery view for one user.
type State struct {
	mu      sync.Mutex
	backend Backend
	email   string
	perPage int
	order   SortOrder
	view    *models.GalleryPage
	served  []models.ImageResult // current page in backend order
	policy  *bluemonday.Policy
	logger  *log.Logger
}

// New creates an empty gallery view.
func New(backend Backend, perPage int, order SortOrder, logger *log.Logger) *State {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if order == "" {
		order = SortServer
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &State{
		backend: backend,
		perPage: perPage,
		order:   order,
		policy:  bluemonday.StrictPolicy(),
		logger:  shared.WithLogger(logger, "component", "gallery"),
	}
}

// LoadPage fetches page for email and replaces the view. On failure the previous view is kept
// and the error is a [*LoadError].
func (s *State) LoadPage(ctx context.Context, email string, page, perPage int) (*models.GalleryPage, error) {
	if email == "" {
		return nil, &LoadError{Kind: KindNotAuthenticated, Err: shared.ErrNotAuthenticated}
	}
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.PerPage()
	}

	res, err := s.backend.Gallery(ctx, email, page, perPage)
	if err != nil {
		le := Classify(err)
		s.logger.Error("failed to load gallery", "email", email, "page", page, "kind", le.Kind, "error", err)
		return nil, le
	}

	res = res.Clone()
	for i := range res.Images {
		res.Images[i] = s.sanitize(res.Images[i])
	}
	if res.Pagination.CurrentPage < 1 {
		res.Pagination.CurrentPage = page
	}
	if res.Pagination.PerPage <= 0 {
		res.Pagination.PerPage = perPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.perPage = perPage
	s.view = res
	s.served = slices.Clone(res.Images)
	sortImages(s.view.Images, s.order)
	s.logger.Debug("gallery loaded", "page", res.Pagination.CurrentPage, "total_pages", res.Pagination.TotalPages, "images", len(res.Images))
	return s.view.Clone(), nil
}

// Refresh reloads the current page, or page 1 for the last email if nothing is loaded.
func (s *State) Refresh(ctx context.Context) (*models.GalleryPage, error) {
	s.mu.Lock()
	email, page, perPage := s.email, s.currentPageLocked(), s.perPage
	s.mu.Unlock()
	return s.LoadPage(ctx, email, page, perPage)
}

// Next loads the following page. At the last page it returns the current view unchanged.
func (s *State) Next(ctx context.Context) (*models.GalleryPage, error) {
	if !s.HasNext() {
		return s.View(), nil
	}
	s.mu.Lock()
	email, page, perPage := s.email, s.currentPageLocked()+1, s.perPage
	s.mu.Unlock()
	return s.LoadPage(ctx, email, page, perPage)
}

// Prev loads the preceding page. At the first page it returns the current view unchanged.
func (s *State) Prev(ctx context.Context) (*models.GalleryPage, error) {
	if !s.HasPrev() {
		return s.View(), nil
	}
	s.mu.Lock()
	email, page, perPage := s.email, s.currentPageLocked()-1, s.perPage
	s.mu.Unlock()
	return s.LoadPage(ctx, email, page, perPage)
}

// HasPrev reports whether a previous page exists.
func (s *State) HasPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view != nil && s.view.Pagination.CurrentPage > 1
}

// HasNext reports whether a following page exists.
func (s *State) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view != nil && s.view.Pagination.CurrentPage < s.view.Pagination.TotalPages
}

// InsertHead shows img at the top of the view ahead of the next refresh.
//
// Returns false when an image with the same path is already shown.
func (s *State) InsertHead(img models.ImageResult) bool {
	img = s.sanitize(img)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view == nil {
		s.view = &models.GalleryPage{Pagination: models.Pagination{CurrentPage: 1, TotalPages: 1, PerPage: s.perPage}}
	}
	paths := mapset.NewThreadUnsafeSetWithSize[string](len(s.view.Images))
	for _, existing := range s.view.Images {
		paths.Add(existing.Path)
	}
	if paths.Contains(img.Path) {
		return false
	}
	s.view.Images = slices.Insert(s.view.Images, 0, img)
	s.served = slices.Insert(s.served, 0, img)
	s.view.Pagination.TotalImages++
	return true
}

// Delete asks confirm to approve, deletes filename on the backend and reloads the current page.
//
// A refused confirmation returns [shared.ErrNotConfirmed] without calling the backend.
func (s *State) Delete(ctx context.Context, filename string, confirm Confirmer) (*models.GalleryPage, error) {
	email := s.Email()
	if email == "" {
		return nil, shared.ErrNotAuthenticated
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", shared.ErrInvalidInput)
	}
	if confirm == nil {
		return nil, shared.ErrNotConfirmed
	}

	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Are you sure you want to delete %s?", filename))
	if err != nil {
		return nil, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return nil, shared.ErrNotConfirmed
	}

	if err := s.backend.DeleteImage(ctx, email, filename); err != nil {
		s.logger.Error("failed to delete image", "filename", filename, "error", err)
		return nil, fmt.Errorf("failed to delete image: %w", err)
	}
	s.logger.Info("image deleted", "filename", filename)

	page, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	if len(page.Images) == 0 && page.Pagination.CurrentPage > 1 && page.Pagination.CurrentPage > page.Pagination.TotalPages {
		return s.LoadPage(ctx, email, max(page.Pagination.TotalPages, 1), page.Pagination.PerPage)
	}
	return page, nil
}

// SetSort changes the client-side order and re-sorts the current view.
// [SortServer] restores the order the backend returned.
func (s *State) SetSort(order SortOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = order
	if s.view == nil {
		return
	}
	if order == SortServer {
		s.view.Images = slices.Clone(s.served)
		return
	}
	sortImages(s.view.Images, order)
}

// Sort returns the current order.
func (s *State) Sort() SortOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order
}

// View returns a copy of the current page, or nil before the first load.
func (s *State) View() *models.GalleryPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Clone()
}

// Find returns the shown image with the given stored filename.
func (s *State) Find(filename string) (models.ImageResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view == nil {
		return models.ImageResult{}, false
	}
	i := slices.IndexFunc(s.view.Images, func(img models.ImageResult) bool { return img.StoredName() == filename })
	if i < 0 {
		return models.ImageResult{}, false
	}
	return s.view.Images[i], true
}

// Email is the user the view was last loaded for.
func (s *State) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// SetEmail selects the user for later Refresh calls without loading.
func (s *State) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if email != s.email {
		s.view = nil
		s.served = nil
	}
	s.email = email
}

// PerPage is the page size used for reloads.
func (s *State) PerPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perPage
}

func (s *State) currentPageLocked() int {
	if s.view == nil || s.view.Pagination.CurrentPage < 1 {
		return 1
	}
	return s.view.Pagination.CurrentPage
}

// sanitize strips markup from the backend-supplied display fields.
func (s *State) sanitize(img models.ImageResult) models.ImageResult {
	img.OriginalFilename = s.strip(img.OriginalFilename)
	img.StyleName = s.strip(img.StyleName)
	return img
}

func (s *State) strip(text string) string {
	if !strings.ContainsAny(text, "<>") {
		return text
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// SortOrder is a client-side gallery ordering.
type SortOrder string

const (
	SortServer SortOrder = "server" // as returned by the backend
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortName   SortOrder = "name"
)

// ParseSort validates a sort name.
func ParseSort(name string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(name))); o {
	case "":
		return SortServer, nil
	case SortServer, SortNewest, SortOldest, SortName:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q (want server, newest, oldest or name)", shared.ErrInvalidFlag, name)
	}
}

func sortImages(imgs []models.ImageResult, order SortOrder) {
	switch order {
	case SortServer:
	case SortOldest:
		sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].Time().Before(imgs[j].Time()) })
	case SortName:
		sort.SliceStable(imgs, func(i, j int) bool { return natural.Less(imgs[i].Title(), imgs[j].Title()) })
	default:
		sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].Time().After(imgs[j].Time()) })
	}
}
