package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
)

// FakeDialer is a [services.ProgressDialer] whose streams are driven by the test.
type FakeDialer struct {
	mu      sync.Mutex
	streams map[string]*FakeStream

	DialErr error
	Log     *CallLog
}

var _ services.ProgressDialer = (*FakeDialer)(nil)

func NewFakeDialer(log *CallLog) *FakeDialer {
	return &FakeDialer{streams: make(map[string]*FakeStream), Log: log}
}

func (d *FakeDialer) Dial(_ context.Context, clientID string) (services.ProgressStream, error) {
	d.Log.Add("progress.dial")
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	s := &FakeStream{ClientID: clientID, events: make(chan models.ProgressEvent, 64), log: d.Log}
	d.streams[clientID] = s
	return s, nil
}

// Stream returns the stream dialed for clientID.
func (d *FakeDialer) Stream(clientID string) *FakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[clientID]
}

// FakeStream is a [services.ProgressStream] fed by Send/Fail.
type FakeStream struct {
	ClientID string
	events   chan models.ProgressEvent
	log      *CallLog

	mu     sync.Mutex
	err    error
	closed bool
	closes int
}

func (s *FakeStream) Events() <-chan models.ProgressEvent { return s.events }

func (s *FakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Send delivers events; ignored after close.
func (s *FakeStream) Send(events ...models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if s.closed {
			return
		}
		s.events <- ev
		if _, done := ev.(models.Completed); done {
			s.closeLocked()
			return
		}
	}
}

// Fail ends the stream with err.
func (s *FakeStream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	s.closeLocked()
}

func (s *FakeStream) Close() error {
	s.log.Add("progress.close")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.closeLocked()
	return nil
}

func (s *FakeStream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Closed reports whether the stream is closed.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
