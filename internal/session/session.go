// Package session owns the active [models.UserSession].
//
// The [Cache] is the only writer of session state. Login, registration and
// restoration all go through it; writes replace the whole value and the last
// writer wins. An optional [Store] makes the cache survive process restarts.
package session

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
)

// Store persists the cached session. Implemented by [repositories.SessionRepository].
type Store interface {
	Load() (*models.UserSession, error)
	Save(*models.UserSession) error
	Clear() error
}

// Cache holds the last-known authenticated user.
type Cache struct {
	mu      sync.RWMutex
	current *models.UserSession
	loaded  bool
	store   Store
	logger  *log.Logger
}

// NewCache creates a cache backed by store. A nil store keeps the session in memory only.
func NewCache(store Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Cache{store: store, logger: shared.WithLogger(logger, "component", "session")}
}

// Get returns a copy of the cached session, or nil when empty.
func (c *Cache) Get() (*models.UserSession, error) {
	c.mu.RLock()
	if c.loaded || c.store == nil {
		defer c.mu.RUnlock()
		return c.current.Clone(), nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		s, err := c.store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load cached session: %w", err)
		}
		c.current = s
		c.loaded = true
	}
	return c.current.Clone(), nil
}

// Email returns the cached user's email, or [shared.ErrNotAuthenticated].
func (c *Cache) Email() (string, error) {
	s, err := c.Get()
	if err != nil {
		return "", err
	}
	if !s.Authenticated() {
		return "", shared.ErrNotAuthenticated
	}
	return s.Email, nil
}

// Set replaces the cached session.
func (c *Cache) Set(s *models.UserSession) error {
	if !s.Authenticated() {
		return fmt.Errorf("%w: session requires uid and email", shared.ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(s); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}
	c.current = s.Clone()
	c.loaded = true
	c.logger.Debug("session cached", "uid", s.UID, "restored", s.Restored)
	return nil
}

// Merge overlays fields onto the cached session and stores the result.
//
// uid and email of an existing session are never replaced.
func (c *Cache) Merge(fields map[string]any) (*models.UserSession, error) {
	cur, err := c.Get()
	if err != nil {
		return nil, err
	}
	if !cur.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}

	merged := cur.Merge(fields)
	if err := c.Set(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Clear empties the cache. Used on explicit logout.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	c.current = nil
	c.loaded = true
	c.logger.Debug("session cleared")
	return nil
}
