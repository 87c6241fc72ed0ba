package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
	"github.com/gorilla/websocket"
)

const defaultProgressURL = "ws://127.0.0.1:5000/ws"

// ProgressDialer opens the per-job progress channel.
type ProgressDialer interface {
	Dial(ctx context.Context, clientID string) (ProgressStream, error)
}

// ProgressStream yields the events of one job.
type ProgressStream interface {
	// Events is closed after a [models.Completed] event, on read failure, or after Close.
	Events() <-chan models.ProgressEvent
	// Err reports why Events closed early; nil after a normal completion or Close.
	Err() error
	Close() error
}

// progressMessage is the wire form sent by the backend.
type progressMessage struct {
	ClientID   string          `json:"client_id"`
	Percentage *float64        `json:"percentage"`
	Completed  bool            `json:"completed"`
	ImageData  json.RawMessage `json:"image_data"`
	Error      string          `json:"error"`
}

// imageData accepts the ImageResult object the backend sends, or a bare path.
func imageData(raw json.RawMessage) (models.ImageResult, error) {
	var img models.ImageResult
	if len(raw) == 0 || string(raw) == "null" {
		return img, nil
	}
	if raw[0] == '"' {
		err := json.Unmarshal(raw, &img.Path)
		return img, err
	}
	err := json.Unmarshal(raw, &img)
	return img, err
}

// WebSocketDialer dials {progress_url}/{client_id} with gorilla/websocket.
type WebSocketDialer struct {
	baseURL  string
	attempts uint
	delay    time.Duration
	dialer   *websocket.Dialer
	header   http.Header
	logger   *log.Logger
}

var _ ProgressDialer = (*WebSocketDialer)(nil)

// WebSocketOpts configures [NewWebSocketDialer].
type WebSocketOpts struct {
	Config shared.BackendConfig
	// Delay between dial attempts; defaults to 200ms.
	Delay  time.Duration
	Dialer *websocket.Dialer
	Logger *log.Logger
}

// NewWebSocketDialer creates a progress dialer.
func NewWebSocketDialer(opts WebSocketOpts) *WebSocketDialer {
	baseURL := strings.TrimRight(opts.Config.ProgressURL, "/")
	if baseURL == "" {
		baseURL = defaultProgressURL
	}
	attempts := uint(1)
	if opts.Config.DialAttempts > 0 {
		attempts = uint(opts.Config.DialAttempts)
	}
	if opts.Delay <= 0 {
		opts.Delay = 200 * time.Millisecond
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &WebSocketDialer{
		baseURL:  baseURL,
		attempts: attempts,
		delay:    opts.Delay,
		dialer:   opts.Dialer,
		logger:   shared.WithLogger(opts.Logger, "component", "progress"),
	}
}

// URL returns the channel address for clientID.
func (d *WebSocketDialer) URL(clientID string) string {
	return d.baseURL + "/" + clientID
}

// Dial implements [ProgressDialer]. The connection is established before Dial returns.
func (d *WebSocketDialer) Dial(ctx context.Context, clientID string) (ProgressStream, error) {
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", shared.ErrInvalidInput)
	}

	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			c, res, err := d.dialer.DialContext(ctx, d.URL(clientID), d.header)
			if res != nil && res.Body != nil {
				res.Body.Close()
			}
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Debug("retrying progress channel", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: progress channel: %v", shared.ErrServiceUnavailable, err)
	}

	d.logger.Debug("progress channel open", "client_id", clientID)
	ch := &ProgressChannel{
		conn:     conn,
		clientID: clientID,
		events:   make(chan models.ProgressEvent, 16),
		done:     make(chan struct{}),
		logger:   d.logger,
	}
	go ch.read()
	return ch, nil
}

// ProgressChannel is a [ProgressStream] over one WebSocket connection.
type ProgressChannel struct {
	conn     *websocket.Conn
	clientID string
	events   chan models.ProgressEvent
	done     chan struct{}
	logger   *log.Logger

	mu   sync.Mutex
	err  error
	once sync.Once
}

// Events implements [ProgressStream].
func (c *ProgressChannel) Events() <-chan models.ProgressEvent { return c.events }

// Err implements [ProgressStream].
func (c *ProgressChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close implements [ProgressStream]. Safe to call more than once.
func (c *ProgressChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *ProgressChannel) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *ProgressChannel) read() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					err = nil
				}
				c.fail(fmt.Errorf("%w: %v", shared.ErrChannelClosed, errOrEOF(err)))
			}
			return
		}

		event, ok := c.decode(data)
		if !ok {
			continue
		}

		select {
		case c.events <- event:
		case <-c.done:
			return
		}

		if _, completed := event.(models.Completed); completed {
			c.Close()
			return
		}
	}
}

// decode parses one message. Messages for another client or without a known shape are dropped.
func (c *ProgressChannel) decode(data []byte) (models.ProgressEvent, bool) {
	var msg progressMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping malformed progress message", "error", err)
		return nil, false
	}
	if msg.ClientID != "" && msg.ClientID != c.clientID {
		c.logger.Debug("dropping progress for other client", "client_id", msg.ClientID)
		return nil, false
	}

	switch {
	case msg.Error != "":
		c.fail(fmt.Errorf("%w: %s", shared.ErrSubmissionFailed, msg.Error))
		c.Close()
		return nil, false
	case msg.Completed:
		img, err := imageData(msg.ImageData)
		if err != nil {
			c.logger.Warn("dropping completion with malformed image data", "error", err)
			return nil, false
		}
		return models.Completed{Image: img}, true
	case msg.Percentage != nil:
		return models.Partial{Percentage: models.ClampPercentage(*msg.Percentage)}, true
	default:
		return nil, false
	}
}

func errOrEOF(err error) error {
	if err == nil {
		return errors.New("connection closed by server")
	}
	return err
}
