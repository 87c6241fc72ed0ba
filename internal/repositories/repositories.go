package repositories

import (
	"database/sql"
	"fmt"
)

// requireRow turns a zero-row write into a not-found error.
func requireRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// Store bundles the repositories backed by one database handle.
type Store struct {
	Sessions    *SessionRepository
	Credentials *CredentialRepository
	Transfers   *TransferRepository
}

// NewStore wires every repository to db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Sessions:    NewSessionRepository(db),
		Credentials: NewCredentialRepository(db),
		Transfers:   NewTransferRepository(db),
	}
}
