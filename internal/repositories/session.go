package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/stylx/internal/models"
)

// SessionRepository persists the single cached [models.UserSession].
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Load returns the cached session, or nil when none is stored.
func (r *SessionRepository) Load() (*models.UserSession, error) {
	var (
		uid, email, name string
		extra            string
	)
	err := r.db.QueryRow(`SELECT uid, email, name, extra FROM sessions WHERE id = 1`).Scan(&uid, &email, &name, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	session := &models.UserSession{Name: name, Email: email, UID: uid}
	if extra != "" && extra != "{}" {
		if err := json.Unmarshal([]byte(extra), &session.Extra); err != nil {
			return nil, fmt.Errorf("failed to decode session fields: %w", err)
		}
	}
	return session, nil
}

// Save replaces the cached session.
func (r *SessionRepository) Save(s *models.UserSession) error {
	if !s.Authenticated() {
		return fmt.Errorf("validation failed: session requires uid and email")
	}

	extra := []byte("{}")
	if len(s.Extra) > 0 {
		var err error
		if extra, err = json.Marshal(s.Extra); err != nil {
			return fmt.Errorf("failed to encode session fields: %w", err)
		}
	}

	query := `
		INSERT INTO sessions (id, uid, email, name, extra, updated_at) VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uid = excluded.uid, email = excluded.email, name = excluded.name,
			extra = excluded.extra, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, s.UID, s.Email, s.Name, string(extra), time.Now()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the cached session. Clearing an empty cache is not an error.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
