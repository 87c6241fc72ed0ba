package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stylx/internal/images"
	"github.com/desertthunder/stylx/internal/models"
	"github.com/desertthunder/stylx/internal/services"
	"github.com/desertthunder/stylx/internal/shared"
	"golang.org/x/sync/errgroup"
)

// SessionSource yields the signed-in user's email. Satisfied by [session.Cache].
type SessionSource interface {
	Email() (string, error)
}

// Gallery is the view a completed job is reconciled into. Satisfied by [gallery.State].
type Gallery interface {
	Email() string
	SetEmail(email string)
	InsertHead(img models.ImageResult) bool
	Refresh(ctx context.Context) (*models.GalleryPage, error)
}

// TransferHistory persists local job records. Satisfied by [repositories.TransferRepository].
type TransferHistory interface {
	Create(t *models.Transfer) error
	Update(t *models.Transfer) error
}

// TransferResult is the outcome of one completed job.
type TransferResult struct {
	ClientID   string
	Image      models.ImageResult
	Transfer   *models.Transfer
	Duration   time.Duration
	GalleryErr error // refresh failure after completion; the job itself succeeded
}

// EngineOpts configures a [TransferEngine]. Gallery and History are optional.
type EngineOpts struct {
	Backend    services.Service
	Dialer     services.ProgressDialer
	Session    SessionSource
	Gallery    Gallery
	History    TransferHistory
	JobTimeout time.Duration
	Logger     *log.Logger
}

// TransferEngine submits style-transfer jobs and follows them to completion.
type TransferEngine struct {
	backend    services.Service
	dialer     services.ProgressDialer
	session    SessionSource
	gallery    Gallery
	history    TransferHistory
	jobTimeout time.Duration
	now        func() time.Time
	logger     *log.Logger
}

// NewTransferEngine creates a new TransferEngine with the provided dependencies.
func NewTransferEngine(opts EngineOpts) *TransferEngine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(nil)
	}
	return &TransferEngine{
		backend:    opts.Backend,
		dialer:     opts.Dialer,
		session:    opts.Session,
		gallery:    opts.Gallery,
		history:    opts.History,
		jobTimeout: opts.JobTimeout,
		now:        time.Now,
		logger:     logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Submit runs one style-transfer job for the signed-in user.
//
// The progress channel is opened before the job is sent so no event can be missed.
// Returns [shared.ErrSubmissionFailed] when the backend rejects the job and [shared.ErrTimeout] when the job timeout elapses.
func (e *TransferEngine) Submit(ctx context.Context, content, style *images.Image, progress chan<- ProgressUpdate) (*TransferResult, error) {
	if e.backend == nil || e.dialer == nil {
		return nil, fmt.Errorf("%w: transfer engine not initialized", shared.ErrServiceUnavailable)
	}
	if content == nil || style == nil {
		return nil, fmt.Errorf("%w: content and style images are required", shared.ErrInvalidInput)
	}
	if e.session == nil {
		return nil, shared.ErrNotAuthenticated
	}
	email, err := e.session.Email()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	started := e.now()
	clientID := shared.NewClientID()
	logger := shared.WithLogger(e.logger, "client_id", clientID)

	record := models.NewTransfer(clientID, email, content.Name, style.Name)
	e.createRecord(logger, record)

	if e.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.jobTimeout)
		defer cancel()
	}

	sendProgress(progress, openChannelUpdate(clientID))
	stream, err := e.dialer.Dial(ctx, clientID)
	if err != nil {
		e.failRecord(logger, record, err)
		return nil, err
	}
	defer stream.Close()

	sendProgress(progress, submitUpdate(content.Name, style.Name))
	req := services.TransferRequest{
		Content:  upload(content),
		Style:    upload(style),
		Email:    email,
		ClientID: clientID,
	}
	if err := e.backend.SubmitTransfer(ctx, req); err != nil {
		stream.Close()
		e.failRecord(logger, record, err)
		logger.Error("submission failed", "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrSubmissionFailed, err)
	}
	record.SetStatus(models.TransferRunning)
	e.updateRecord(logger, record)
	logger.Info("job submitted", "content", content.Name, "style", style.Name)

	img, err := e.await(ctx, stream, progress)
	if err != nil {
		stream.Close()
		e.failRecord(logger, record, err)
		logger.Error("job failed", "error", err)
		return nil, err
	}
	stream.Close()

	if img.TransformedAt == "" && img.Timestamp == "" {
		img.TransformedAt = e.now().UTC().Format(time.RFC3339)
	}
	if img.StyleName == "" {
		img.StyleName = style.Name
	}
	if img.OriginalFilename == "" {
		img.OriginalFilename = content.Name
	}
	sendProgress(progress, completeUpdate(img))

	result := &TransferResult{ClientID: clientID, Image: img, Transfer: record}
	result.GalleryErr = e.reconcile(ctx, logger, email, img, progress)

	record.Complete(img.Path)
	e.updateRecord(logger, record)

	result.Duration = e.now().Sub(started)
	logger.Info("job completed", "path", img.Path, "duration", result.Duration)
	return result, nil
}

// await consumes the stream until its single Completed event.
func (e *TransferEngine) await(ctx context.Context, stream services.ProgressStream, progress chan<- ProgressUpdate) (models.ImageResult, error) {
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return models.ImageResult{}, fmt.Errorf("%w: job did not complete in time", shared.ErrTimeout)
			}
			return models.ImageResult{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					return models.ImageResult{}, err
				}
				return models.ImageResult{}, shared.ErrChannelClosed
			}
			switch ev := ev.(type) {
			case models.Partial:
				sendProgress(progress, transformUpdate(models.ClampPercentage(ev.Percentage)))
			case models.Completed:
				return ev.Image, nil
			}
		}
	}
}

// reconcile shows img in the gallery, reloads it and records the history entry on the backend.
//
// Both follow-ups are non-essential: their errors are logged and only the refresh error is returned.
func (e *TransferEngine) reconcile(ctx context.Context, logger *log.Logger, email string, img models.ImageResult, progress chan<- ProgressUpdate) error {
	var refreshErr error
	var g errgroup.Group

	if e.gallery != nil {
		if e.gallery.Email() == "" {
			e.gallery.SetEmail(email)
		}
		e.gallery.InsertHead(img)

		sendProgress(progress, refreshUpdate())
		g.Go(func() error {
			if _, err := e.gallery.Refresh(ctx); err != nil {
				logger.Warn("gallery refresh failed", "error", err)
				refreshErr = err
			}
			return nil
		})
	}

	g.Go(func() error {
		entry := services.HistoryEntry{
			Email:         email,
			ImagePath:     img.Path,
			StyleName:     img.StyleName,
			TransformedAt: img.TransformedAt,
		}
		if err := e.backend.AddTransformedImage(ctx, entry); err != nil {
			logger.Warn("failed to record transformed image", "error", err)
		}
		return nil
	})

	_ = g.Wait()
	return refreshErr
}

func (e *TransferEngine) createRecord(logger *log.Logger, t *models.Transfer) {
	if e.history == nil {
		return
	}
	if err := e.history.Create(t); err != nil {
		logger.Warn("failed to record transfer", "error", err)
	}
}

func (e *TransferEngine) updateRecord(logger *log.Logger, t *models.Transfer) {
	if e.history == nil || t.ID() == "" {
		return
	}
	if err := e.history.Update(t); err != nil {
		logger.Warn("failed to update transfer", "error", err)
	}
}

func (e *TransferEngine) failRecord(logger *log.Logger, t *models.Transfer, err error) {
	t.Fail(err)
	e.updateRecord(logger, t)
}

func upload(img *images.Image) services.Upload {
	return services.Upload{Name: img.Name, ContentType: img.ContentType, Data: img.Data}
}
