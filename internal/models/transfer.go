package models

import (
	"fmt"
	"time"
)

// TransferStatus is the lifecycle state of a locally recorded job.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferRunning   TransferStatus = "running"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
)

// Transfer is the local history record of one submitted style-transfer job.
type Transfer struct {
	id          string
	clientID    string
	email       string
	contentName string
	styleName   string
	status      TransferStatus
	resultPath  string
	errMsg      string
	createdAt   time.Time
	updatedAt   time.Time
	completedAt *time.Time
}

var _ Model = (*Transfer)(nil)

// NewTransfer creates a pending transfer record.
func NewTransfer(clientID, email, contentName, styleName string) *Transfer {
	now := time.Now()
	return &Transfer{
		clientID:    clientID,
		email:       email,
		contentName: contentName,
		styleName:   styleName,
		status:      TransferPending,
		createdAt:   now,
		updatedAt:   now,
	}
}

// RestoreTransfer rebuilds a record read from storage.
func RestoreTransfer(id, clientID, email, contentName, styleName string, status TransferStatus,
	resultPath, errMsg string, createdAt time.Time, completedAt *time.Time) *Transfer {
	t := &Transfer{
		id:          id,
		clientID:    clientID,
		email:       email,
		contentName: contentName,
		styleName:   styleName,
		status:      status,
		resultPath:  resultPath,
		errMsg:      errMsg,
		createdAt:   createdAt,
		updatedAt:   createdAt,
		completedAt: completedAt,
	}
	if completedAt != nil {
		t.updatedAt = *completedAt
	}
	return t
}

func (t *Transfer) ID() string                 { return t.id }
func (t *Transfer) SetID(id string)            { t.id = id }
func (t *Transfer) ClientID() string           { return t.clientID }
func (t *Transfer) Email() string              { return t.email }
func (t *Transfer) ContentName() string        { return t.contentName }
func (t *Transfer) StyleName() string          { return t.styleName }
func (t *Transfer) Status() TransferStatus     { return t.status }
func (t *Transfer) ResultPath() string         { return t.resultPath }
func (t *Transfer) ErrorMessage() string       { return t.errMsg }
func (t *Transfer) CreatedAt() time.Time       { return t.createdAt }
func (t *Transfer) UpdatedAt() time.Time       { return t.updatedAt }
func (t *Transfer) CompletedAt() *time.Time    { return t.completedAt }
func (t *Transfer) SetStatus(s TransferStatus) { t.status = s; t.updatedAt = time.Now() }

// Complete marks the transfer done with the backend path of its result.
func (t *Transfer) Complete(resultPath string) {
	now := time.Now()
	t.status = TransferCompleted
	t.resultPath = resultPath
	t.completedAt = &now
	t.updatedAt = now
}

// Fail marks the transfer failed with err's message.
func (t *Transfer) Fail(err error) {
	now := time.Now()
	t.status = TransferFailed
	if err != nil {
		t.errMsg = err.Error()
	}
	t.completedAt = &now
	t.updatedAt = now
}

// Validate checks required fields and status.
func (t *Transfer) Validate() error {
	if t.clientID == "" {
		return fmt.Errorf("client id is required")
	}
	if t.email == "" {
		return fmt.Errorf("email is required")
	}
	switch t.status {
	case TransferPending, TransferRunning, TransferCompleted, TransferFailed:
		return nil
	default:
		return fmt.Errorf("unknown transfer status %q", t.status)
	}
}
