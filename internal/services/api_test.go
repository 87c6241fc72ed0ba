package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/stylx/internal/shared"
	"golang.org/x/oauth2"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) (*APIService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := NewAPIService(APIOpts{
		Config: shared.BackendConfig{BaseURL: server.URL, TimeoutSeconds: 5},
		Logger: shared.NewLogger(io.Discard),
	})
	return api, server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestAPIService(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			api := NewAPIService(APIOpts{})
			if api.BaseURL() != defaultBaseURL {
				t.Errorf("expected default base URL %s, got %s", defaultBaseURL, api.BaseURL())
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			api := NewAPIService(APIOpts{Config: shared.BackendConfig{BaseURL: "http://example.com/"}})
			if api.BaseURL() != "http://example.com" {
				t.Errorf("expected trimmed base URL, got %s", api.BaseURL())
			}
		})
	})

	t.Run("CheckUser", func(t *testing.T) {
		api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			exists := r.URL.Path == "/api/check-user/ada@example.com"
			writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
		})

		exists, err := api.CheckUser(ctx, "ada@example.com")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !exists {
			t.Error("expected user to exist")
		}

		exists, _ = api.CheckUser(ctx, "new@example.com")
		if exists {
			t.Error("expected user not to exist")
		}
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				var body RegisterRequest
				json.NewDecoder(r.Body).Decode(&body)
				if body.UID != "uid-1" || body.Password != "secret123" {
					t.Errorf("unexpected register body %+v", body)
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"message": "User registered successfully",
					"user":    map[string]any{"email": body.Email, "name": body.Name, "plan": "free"},
				})
			})

			user, err := api.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret123", UID: "uid-1"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if user["plan"] != "free" {
				t.Errorf("expected backend fields, got %v", user)
			}
		})

		t.Run("Duplicate Email", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "400: Email already registered"})
			})

			_, err := api.Register(ctx, RegisterRequest{Email: "ada@example.com"})
			he, ok := AsHTTPError(err)
			if !ok {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if !he.IsDuplicateEmail() {
				t.Errorf("expected duplicate email detail, got %q", he.Detail)
			}
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest in chain, got %v", err)
			}
			if IsUnavailable(err) {
				t.Error("expected 400 not to count as unavailable")
			}
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{
					"message": "Login successful",
					"user":    map[string]any{"email": "ada@example.com", "name": "Ada"},
				})
			})

			res, err := api.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret123", UID: "uid-1"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.Message != "Login successful" || res.User["name"] != "Ada" {
				t.Errorf("unexpected login response %+v", res)
			}
		})

		t.Run("Server Error Is Unavailable", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			})

			_, err := api.Login(ctx, LoginRequest{Email: "ada@example.com"})
			if !IsUnavailable(err) {
				t.Errorf("expected unavailable, got %v", err)
			}
			if he, _ := AsHTTPError(err); he == nil || he.Detail != "boom" {
				t.Errorf("expected raw body as detail, got %v", err)
			}
		})

		t.Run("Transport Error Is Unavailable", func(t *testing.T) {
			api := NewAPIService(APIOpts{
				Config: shared.BackendConfig{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1},
				Logger: shared.NewLogger(io.Discard),
			})

			_, err := api.Login(ctx, LoginRequest{Email: "ada@example.com"})
			if !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
			if !IsUnavailable(err) {
				t.Error("expected IsUnavailable to report transport errors")
			}
		})
	})

	t.Run("Non-Essential Posts", func(t *testing.T) {
		var mu sync.Mutex
		paths := map[string]map[string]any{}
		api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			paths[r.URL.Path] = body
			mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
		})

		if err := api.UpdateUser(ctx, UpdateUserRequest{Name: "Ada", Email: "ada@example.com", UID: "uid-1", LastLogin: "2026-01-01T00:00:00Z"}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if err := api.AddTransformedImage(ctx, HistoryEntry{Email: "ada@example.com", ImagePath: "/static/out.jpg", StyleName: "style_1"}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		if got := paths["/api/update-user"]; got["last_login"] != "2026-01-01T00:00:00Z" {
			t.Errorf("expected last_login in update body, got %v", got)
		}
		if got := paths["/api/add-transformed-image"]; got["image_path"] != "/static/out.jpg" {
			t.Errorf("expected image_path in history body, got %v", got)
		}
	})

	t.Run("SubmitTransfer", func(t *testing.T) {
		t.Run("Multipart Fields", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/transfer" || r.Method != http.MethodPost {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Fatalf("failed to parse multipart form: %v", err)
				}
				if r.FormValue("email") != "ada@example.com" || r.FormValue("client_id") != "client_1" {
					t.Errorf("unexpected form values %v", r.MultipartForm.Value)
				}
				for _, field := range []string{"content", "style"} {
					f, hdr, err := r.FormFile(field)
					if err != nil {
						t.Errorf("expected %s file part, got %v", field, err)
						continue
					}
					data, _ := io.ReadAll(f)
					f.Close()
					if !bytes.HasPrefix(data, []byte(field)) {
						t.Errorf("unexpected %s data %q", field, data)
					}
					if hdr.Filename == "" {
						t.Errorf("expected %s filename", field)
					}
				}
				writeJSON(w, http.StatusAccepted, map[string]string{"message": "Processing started"})
			})

			err := api.SubmitTransfer(ctx, TransferRequest{
				Content:  Upload{Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte("content-bytes")},
				Style:    Upload{Name: "style_1.jpg", ContentType: "image/jpeg", Data: []byte("style-bytes")},
				Email:    "ada@example.com",
				ClientID: "client_1",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Missing Images", func(t *testing.T) {
			api := NewAPIService(APIOpts{Logger: shared.NewLogger(io.Discard)})
			err := api.SubmitTransfer(ctx, TransferRequest{Email: "ada@example.com"})
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Rejected", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "field required"}}})
			})
			err := api.SubmitTransfer(ctx, TransferRequest{
				Content: Upload{Name: "a.jpg", Data: []byte("a")},
				Style:   Upload{Name: "b.jpg", Data: []byte("b")},
			})
			he, ok := AsHTTPError(err)
			if !ok || he.StatusCode != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422 HTTPError, got %v", err)
			}
			if !strings.Contains(he.Detail, "field required") {
				t.Errorf("expected structured detail preserved, got %q", he.Detail)
			}
		})
	})

	t.Run("Gallery", func(t *testing.T) {
		api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/gallery/ada@example.com" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("per_page") != "20" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"images": []map[string]any{
					{"path": "/static/a.jpg", "filename": "a.jpg", "size": 2048, "style_name": "style_1"},
				},
				"pagination": map[string]any{"current_page": 2, "total_pages": 3, "per_page": 20, "total_images": 41},
			})
		})

		page, err := api.Gallery(ctx, "ada@example.com", 2, 20)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Images) != 1 || page.Images[0].Filename != "a.jpg" || page.Images[0].Size != 2048 {
			t.Errorf("unexpected images %+v", page.Images)
		}
		if page.Pagination.CurrentPage != 2 || page.Pagination.TotalPages != 3 {
			t.Errorf("unexpected pagination %+v", page.Pagination)
		}

		t.Run("Empty Images Not Nil", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"pagination": map[string]any{"current_page": 1, "total_pages": 0}})
			})
			page, err := api.Gallery(ctx, "ada@example.com", 1, 20)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if page.Images == nil {
				t.Error("expected empty slice, got nil")
			}
		})

		t.Run("Unauthorized", func(t *testing.T) {
			api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			})
			_, err := api.Gallery(ctx, "ada@example.com", 1, 20)
			if he, ok := AsHTTPError(err); !ok || !he.IsUnauthorized() {
				t.Errorf("expected unauthorized HTTPError, got %v", err)
			}
		})
	})

	t.Run("DeleteImage", func(t *testing.T) {
		var got string
		api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			got = r.URL.Path
			writeJSON(w, http.StatusOK, map[string]string{"message": "Image deleted successfully"})
		})

		if err := api.DeleteImage(ctx, "ada@example.com", "a.jpg"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "/api/images/ada@example.com/a.jpg" {
			t.Errorf("unexpected delete path %s", got)
		}
	})

	t.Run("Download", func(t *testing.T) {
		api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/static/missing.jpg" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte("jpeg-bytes"))
		})

		var buf bytes.Buffer
		n, err := api.Download(ctx, "/static/a.jpg", &buf)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n != int64(len("jpeg-bytes")) || buf.String() != "jpeg-bytes" {
			t.Errorf("unexpected download %d %q", n, buf.String())
		}

		_, err = api.Download(ctx, "static/missing.jpg", io.Discard)
		if he, ok := AsHTTPError(err); !ok || he.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 HTTPError, got %v", err)
		}
	})

	t.Run("ResolveURL", func(t *testing.T) {
		api := NewAPIService(APIOpts{Config: shared.BackendConfig{BaseURL: "http://host:5000"}})
		tc := []struct{ in, want string }{
			{"/static/a.jpg", "http://host:5000/static/a.jpg"},
			{"static/a.jpg", "http://host:5000/static/a.jpg"},
			{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		}
		for _, tt := range tc {
			if got := api.ResolveURL(tt.in); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		}
	})

	t.Run("Bearer Token", func(t *testing.T) {
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, map[string]bool{"exists": true})
		}))
		defer server.Close()

		api := NewAPIService(APIOpts{
			Config: shared.BackendConfig{BaseURL: server.URL},
			Tokens: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "id-token"}),
			Logger: shared.NewLogger(io.Discard),
		})
		if _, err := api.CheckUser(ctx, "ada@example.com"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if auth != "Bearer id-token" {
			t.Errorf("expected bearer header, got %q", auth)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		api, _ := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"exists": true})
		})
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := api.CheckUser(canceled, "ada@example.com"); err == nil {
			t.Error("expected error for canceled context")
		}
	})
}

func TestDetailOf(t *testing.T) {
	tc := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"400: Email already registered"}`, "400: Email already registered"},
		{"error field", `{"error":"bad"}`, "bad"},
		{"plain text", "oops\n", "oops"},
		{"empty", "", "Internal Server Error"},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := detailOf([]byte(tt.body)); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
