package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/shared"
)

var _ models.Repository[*models.Transfer] = (*TransferRepository)(nil)

// TransferRepository implements models.Repository[*models.Transfer] for local job history.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

const transferColumns = `id, client_id, email, content_name, style_name, status, result_path, error, created_at, completed_at`

// Create inserts a new transfer with a generated ID
func (r *TransferRepository) Create(t *models.Transfer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	query := `INSERT INTO transfers (` + transferColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		id,
		t.ClientID(),
		t.Email(),
		t.ContentName(),
		t.StyleName(),
		string(t.Status()),
		t.ResultPath(),
		t.ErrorMessage(),
		t.CreatedAt(),
		t.CompletedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}

	t.SetID(id)
	return nil
}

// Get retrieves a transfer by ID
func (r *TransferRepository) Get(id string) (*models.Transfer, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+transferColumns+` FROM transfers WHERE id = ?`, id), id)
}

// GetByClientID retrieves a transfer by its job correlation id
func (r *TransferRepository) GetByClientID(clientID string) (*models.Transfer, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+transferColumns+` FROM transfers WHERE client_id = ?`, clientID), clientID)
}

// Update writes status, result and completion fields
func (r *TransferRepository) Update(t *models.Transfer) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE transfers
		SET status = ?, result_path = ?, error = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, string(t.Status()), t.ResultPath(), t.ErrorMessage(), t.CompletedAt(), t.ID())
	if err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	return requireRow(result, "transfer", t.ID())
}

// Delete removes a transfer by ID
func (r *TransferRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transfer: %w", err)
	}
	return requireRow(result, "transfer", id)
}

// List retrieves transfers newest first.
//
// Supported criteria: "email" (string), "status" ([models.TransferStatus]), "limit" (int).
func (r *TransferRepository) List(criteria map[string]any) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE 1 = 1`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, email)
	}
	if status, ok := criteria["status"].(models.TransferStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY created_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*models.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return transfers, nil
}

func (r *TransferRepository) scanOne(row *sql.Row, key string) (*models.Transfer, error) {
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer not found: %s", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(s scanner) (*models.Transfer, error) {
	var (
		id, clientID, email, contentName, styleName string
		status, resultPath, errMsg                  string
		createdAt                                   time.Time
		completedAt                                 sql.NullTime
	)
	if err := s.Scan(&id, &clientID, &email, &contentName, &styleName, &status, &resultPath, &errMsg, &createdAt, &completedAt); err != nil {
		return nil, err
	}

	var completed *time.Time
	if completedAt.Valid {
		completed = &completedAt.Time
	}
	return models.RestoreTransfer(id, clientID, email, contentName, styleName,
		models.TransferStatus(status), resultPath, errMsg, createdAt, completed), nil
}
