package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/gorilla/websocket"
)

// progressServer upgrades /ws/{client_id} and plays script to the client.
func progressServer(t *testing.T, script func(clientID string, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := strings.TrimPrefix(r.URL.Path, "/ws/")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(clientID, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestDialer(server *httptest.Server) *WebSocketDialer {
	return NewWebSocketDialer(WebSocketOpts{
		Config: shared.BackendConfig{ProgressURL: "ws" + strings.TrimPrefix(server.URL, "http") + "/ws", DialAttempts: 2},
		Delay:  10 * time.Millisecond,
		Logger: shared.NewLogger(io.Discard),
	})
}

func collect(t *testing.T, stream ProgressStream) []models.ProgressEvent {
	t.Helper()
	var events []models.ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for progress events")
			return events
		}
	}
}

func TestWebSocketDialer(t *testing.T) {
	ctx := context.Background()

	t.Run("URL", func(t *testing.T) {
		d := NewWebSocketDialer(WebSocketOpts{})
		if got := d.URL("client_1"); got != "ws://127.0.0.1:5000/ws/client_1" {
			t.Errorf("unexpected URL %s", got)
		}
	})

	t.Run("Requires Client ID", func(t *testing.T) {
		d := NewWebSocketDialer(WebSocketOpts{})
		if _, err := d.Dial(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Partial Then Completed", func(t *testing.T) {
		server := progressServer(t, func(clientID string, conn *websocket.Conn) {
			if clientID != "client_1" {
				t.Errorf("expected client_1, got %s", clientID)
			}
			conn.WriteJSON(map[string]any{"percentage": 12.4})
			conn.WriteJSON(map[string]any{"percentage": 150})
			conn.WriteJSON(map[string]any{"completed": true, "image_data": map[string]any{
				"path":              "/static/out.jpg",
				"thumbnail_path":    "/static/thumb_out.jpg",
				"original_filename": "cat.jpg",
				"size":              2048,
				"transformed_at":    "2024-05-01T10:00:00",
			}})
			conn.WriteJSON(map[string]any{"percentage": 99})
			conn.ReadMessage()
		})

		stream, err := newTestDialer(server).Dial(ctx, "client_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer stream.Close()

		events := collect(t, stream)
		if len(events) != 3 {
			t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
		}
		if p, ok := events[0].(models.Partial); !ok || p.Percentage != 12.4 {
			t.Errorf("expected partial 12.4, got %+v", events[0])
		}
		if p, ok := events[1].(models.Partial); !ok || p.Percentage != 100 {
			t.Errorf("expected clamped partial 100, got %+v", events[1])
		}
		c, ok := events[2].(models.Completed)
		if !ok || c.Image.Path != "/static/out.jpg" {
			t.Fatalf("expected completed with path, got %+v", events[2])
		}
		if c.Image.ThumbnailPath != "/static/thumb_out.jpg" || c.Image.OriginalFilename != "cat.jpg" || c.Image.Size != 2048 {
			t.Errorf("expected image metadata to survive decoding, got %+v", c.Image)
		}
		if c.Image.TransformedAt != "2024-05-01T10:00:00" {
			t.Errorf("expected transformed_at, got %q", c.Image.TransformedAt)
		}
		if stream.Err() != nil {
			t.Errorf("expected no error after completion, got %v", stream.Err())
		}
	})

	t.Run("Drops Foreign And Malformed Messages", func(t *testing.T) {
		server := progressServer(t, func(_ string, conn *websocket.Conn) {
			conn.WriteMessage(websocket.TextMessage, []byte("not json"))
			conn.WriteJSON(map[string]any{"client_id": "client_other", "percentage": 50})
			conn.WriteJSON(map[string]any{"status": "queued"})
			conn.WriteJSON(map[string]any{"completed": true, "image_data": []int{1, 2}})
			conn.WriteJSON(map[string]any{"client_id": "client_1", "completed": true, "image_data": map[string]any{"path": "/static/out.jpg"}})
			conn.ReadMessage()
		})

		stream, err := newTestDialer(server).Dial(ctx, "client_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		events := collect(t, stream)
		if len(events) != 1 {
			t.Fatalf("expected only the completion, got %+v", events)
		}
		if c, ok := events[0].(models.Completed); !ok || c.Image.Path != "/static/out.jpg" {
			t.Errorf("expected completed with path, got %+v", events[0])
		}
	})

	t.Run("Completed With Bare Path", func(t *testing.T) {
		server := progressServer(t, func(_ string, conn *websocket.Conn) {
			conn.WriteJSON(map[string]any{"completed": true, "image_data": "/static/out.jpg"})
			conn.ReadMessage()
		})

		stream, err := newTestDialer(server).Dial(ctx, "client_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		events := collect(t, stream)
		if len(events) != 1 {
			t.Fatalf("expected one completion, got %+v", events)
		}
		if c, ok := events[0].(models.Completed); !ok || c.Image.Path != "/static/out.jpg" {
			t.Errorf("expected completed with path, got %+v", events[0])
		}
	})

	t.Run("Server Closes Early", func(t *testing.T) {
		server := progressServer(t, func(_ string, conn *websocket.Conn) {
			conn.WriteJSON(map[string]any{"percentage": 10})
		})

		stream, err := newTestDialer(server).Dial(ctx, "client_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		events := collect(t, stream)
		if len(events) != 1 {
			t.Errorf("expected one partial before close, got %+v", events)
		}
		if !errors.Is(stream.Err(), shared.ErrChannelClosed) {
			t.Errorf("expected ErrChannelClosed, got %v", stream.Err())
		}
	})

	t.Run("Server Reports Error", func(t *testing.T) {
		server := progressServer(t, func(_ string, conn *websocket.Conn) {
			conn.WriteJSON(map[string]any{"error": "model crashed"})
			conn.ReadMessage()
		})

		stream, err := newTestDialer(server).Dial(ctx, "client_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		collect(t, stream)
		if !errors.Is(stream.Err(), shared.ErrSubmissionFailed) {
			t.Errorf("expected ErrSubmissionFailed, got %v", stream.Err())
		}
	})

	t.Run("Close Is Idempotent", func(t *testing.T) {
		server := progressServer(t, func(_ string, conn *websocket.Conn) {
			conn.ReadMessage()
		})

		stream, err := newTestDialer(server).Dial(ctx, "client_1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stream.Close()
		stream.Close()
		collect(t, stream)
		if stream.Err() != nil {
			t.Errorf("expected no error after local close, got %v", stream.Err())
		}
	})

	t.Run("Dial Failure", func(t *testing.T) {
		d := NewWebSocketDialer(WebSocketOpts{
			Config: shared.BackendConfig{ProgressURL: "ws://127.0.0.1:1/ws", DialAttempts: 2},
			Delay:  time.Millisecond,
			Logger: shared.NewLogger(io.Discard),
		})
		_, err := d.Dial(ctx, "client_1")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
