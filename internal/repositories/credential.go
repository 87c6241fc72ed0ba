package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/stylx/internal/models"
)

// CredentialRepository persists identity provider tokens so a sign-in survives process restarts.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save upserts a credential keyed by uid.
func (r *CredentialRepository) Save(c *models.Credential) error {
	if c == nil || c.UID == "" || c.Email == "" {
		return fmt.Errorf("validation failed: credential requires uid and email")
	}
	if c.RefreshToken == "" {
		return fmt.Errorf("validation failed: credential requires a refresh token")
	}

	query := `
		INSERT INTO credentials (uid, email, display_name, id_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			email = excluded.email, display_name = excluded.display_name,
			id_token = excluded.id_token, refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at, updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, c.UID, c.Email, c.DisplayName, c.IDToken, c.RefreshToken, c.ExpiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Latest returns the most recently saved credential, or nil when none exists.
func (r *CredentialRepository) Latest() (*models.Credential, error) {
	query := `
		SELECT uid, email, display_name, id_token, refresh_token, expires_at
		FROM credentials
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var c models.Credential
	err := r.db.QueryRow(query).Scan(&c.UID, &c.Email, &c.DisplayName, &c.IDToken, &c.RefreshToken, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return &c, nil
}

// Delete removes the credential for uid.
func (r *CredentialRepository) Delete(uid string) error {
	if _, err := r.db.Exec(`DELETE FROM credentials WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// DeleteAll removes every stored credential.
func (r *CredentialRepository) DeleteAll() error {
	if _, err := r.db.Exec(`DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
