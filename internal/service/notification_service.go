package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
	"github.com/noah-isme/odl-api/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, readAt time.Time) error
}

type dispatchObserver interface {
	ObserveNotificationDispatch(delivered bool)
}

// NotificationConfig tunes the dispatch worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService is the notification sink boundary. Workflow transitions
// hand it intents after their state commit; a worker pool persists them as
// inbox rows with bounded retry. Dispatch failures are logged and dropped,
// never propagated back to the workflow.
type NotificationService struct {
	repo    notificationStore
	queue   *jobs.Queue
	metrics dispatchObserver
	logger  *zap.Logger
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithNotificationMetrics wires dispatch counters.
func WithNotificationMetrics(metrics dispatchObserver) NotificationServiceOption {
	return func(s *NotificationService) { s.metrics = metrics }
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationStore, logger *zap.Logger, cfg NotificationConfig, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{repo: repo, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues the intents produced by a committed workflow transition.
// Best effort: it never waits for buffer space, so a saturated sink cannot
// stall the caller. An intent that cannot be enqueued is logged and dropped.
func (s *NotificationService) Dispatch(intents []models.NotificationIntent) {
	for _, intent := range intents {
		if intent.RecipientID == "" {
			continue
		}
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    string(intent.Category),
			Payload: intent,
		}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification",
				zap.String("recipient_id", intent.RecipientID),
				zap.String("category", string(intent.Category)),
				zap.Error(err))
			if s.metrics != nil {
				s.metrics.ObserveNotificationDispatch(false)
			}
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	intent, ok := job.Payload.(models.NotificationIntent)
	if !ok {
		s.logger.Error("notification job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	submissionID := intent.SubmissionID
	notification := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    intent.RecipientID,
		Category:  intent.Category,
		Title:     intent.Title,
		Body:      intent.Body,
		CreatedAt: time.Now().UTC(),
	}
	if submissionID != "" {
		notification.SubmissionID = &submissionID
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveNotificationDispatch(false)
		}
		return fmt.Errorf("persist notification for %s: %w", intent.RecipientID, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveNotificationDispatch(true)
	}
	return nil
}

// List returns the actor's inbox.
func (s *NotificationService) List(ctx context.Context, actor *models.JWTClaims, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notifications, err := s.repo.List(ctx, models.NotificationFilter{
		UserID:     actor.UserID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// CountUnread returns the actor's unread badge count.
func (s *NotificationService) CountUnread(ctx context.Context, actor *models.JWTClaims) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	count, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, id, actor.UserID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
