package testing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
)

// MockService is an in-memory [services.Service].
type MockService struct {
	mu     sync.Mutex
	users  map[string]map[string]any
	images map[string][]models.ImageResult
	files  map[string][]byte

	CheckErr    error
	RegisterErr error
	LoginErr    error
	UpdateErr   error
	HistoryErr  error
	SubmitErr   error
	GalleryErr  error
	DeleteErr   error

	// OnSubmit runs after a successful submission, e.g. to drive a progress stream.
	OnSubmit func(services.TransferRequest)

	Registered []services.RegisterRequest
	Updated    []services.UpdateUserRequest
	History    []services.HistoryEntry
	Submitted  []services.TransferRequest
	Deleted    []string

	Log *CallLog
}

var _ services.Service = (*MockService)(nil)

func NewMockService(log *CallLog) *MockService {
	return &MockService{
		users:  make(map[string]map[string]any),
		images: make(map[string][]models.ImageResult),
		files:  make(map[string][]byte),
		Log:    log,
	}
}

// AddUser seeds a backend user record.
func (m *MockService) AddUser(email string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = fields
}

// HasUser reports whether a backend record exists for email.
func (m *MockService) HasUser(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[email]
	return ok
}

// AddImages appends gallery images for email, newest first.
func (m *MockService) AddImages(email string, imgs ...models.ImageResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[email] = append(m.images[email], imgs...)
}

// AddFile seeds downloadable bytes at path.
func (m *MockService) AddFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
}

func (m *MockService) CheckUser(_ context.Context, email string) (bool, error) {
	m.Log.Add("backend.check")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	_, ok := m.users[email]
	return ok, nil
}

func (m *MockService) Register(_ context.Context, req services.RegisterRequest) (map[string]any, error) {
	m.Log.Add("backend.register")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Registered = append(m.Registered, req)
	if m.RegisterErr != nil {
		return nil, m.RegisterErr
	}
	if _, ok := m.users[req.Email]; ok {
		return nil, &services.HTTPError{StatusCode: http.StatusBadRequest, Detail: "400: Email already registered"}
	}
	user := map[string]any{"name": req.Name, "email": req.Email, "uid": req.UID, "transformed_images": []any{}}
	m.users[req.Email] = user
	return user, nil
}

func (m *MockService) Login(_ context.Context, req services.LoginRequest) (*services.LoginResponse, error) {
	m.Log.Add("backend.login")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	user, ok := m.users[req.Email]
	if !ok {
		return nil, &services.HTTPError{StatusCode: http.StatusNotFound, Detail: "User not found"}
	}
	return &services.LoginResponse{Message: "Login successful", User: user}, nil
}

func (m *MockService) UpdateUser(_ context.Context, req services.UpdateUserRequest) error {
	m.Log.Add("backend.update")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updated = append(m.Updated, req)
	return m.UpdateErr
}

func (m *MockService) AddTransformedImage(_ context.Context, req services.HistoryEntry) error {
	m.Log.Add("backend.history")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.History = append(m.History, req)
	return m.HistoryErr
}

func (m *MockService) SubmitTransfer(_ context.Context, req services.TransferRequest) error {
	m.Log.Add("backend.submit")
	m.mu.Lock()
	m.Submitted = append(m.Submitted, req)
	err := m.SubmitErr
	hook := m.OnSubmit
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		hook(req)
	}
	return nil
}

func (m *MockService) Gallery(_ context.Context, email string, page, perPage int) (*models.GalleryPage, error) {
	m.Log.Add("backend.gallery")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GalleryErr != nil {
		return nil, m.GalleryErr
	}
	if perPage <= 0 {
		perPage = 20
	}
	all := m.images[email]
	total := len(all)
	totalPages := (total + perPage - 1) / perPage

	start := min((page-1)*perPage, total)
	if start < 0 {
		start = 0
	}
	end := min(start+perPage, total)

	return &models.GalleryPage{
		Images: slices.Clone(all[start:end]),
		Pagination: models.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			PerPage:     perPage,
			TotalImages: total,
		},
	}, nil
}

func (m *MockService) DeleteImage(_ context.Context, email, filename string) error {
	m.Log.Add("backend.delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	imgs := m.images[email]
	i := slices.IndexFunc(imgs, func(img models.ImageResult) bool { return img.StoredName() == filename })
	if i < 0 {
		return services.ImageNotFound(filename, &services.HTTPError{StatusCode: http.StatusNotFound, Detail: "Image not found"})
	}
	m.images[email] = slices.Delete(imgs, i, i+1)
	m.Deleted = append(m.Deleted, filename)
	return nil
}

func (m *MockService) Download(_ context.Context, path string, w io.Writer) (int64, error) {
	m.Log.Add("backend.download")
	m.mu.Lock()
	data, ok := m.files[path]
	m.mu.Unlock()
	if !ok {
		return 0, services.ImageNotFound(path, &services.HTTPError{StatusCode: http.StatusNotFound, Detail: "Not Found", Path: path})
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Image builds a gallery image named name under /static/transformed, transformed on January day of 2026.
func Image(name string, size int64, day int) models.ImageResult {
	return models.ImageResult{
		Path:             "/static/transformed/" + name,
		Filename:         name,
		OriginalFilename: "orig_" + name,
		StyleName:        "style_1",
		Size:             size,
		TransformedAt:    fmt.Sprintf("2026-01-%02dT10:00:00Z", day),
	}
}
