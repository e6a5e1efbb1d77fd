package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/odl-api/internal/dto"
	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
)

type workflowSubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	UpdateWorkflowState(ctx context.Context, sub *models.Submission) error
}

type stagePermissionChecker interface {
	CanActAt(ctx context.Context, principal *models.JWTClaims, sub *models.Submission, stage models.Stage) (bool, error)
}

type intentDispatcher interface {
	Dispatch(intents []models.NotificationIntent)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type workflowCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type decisionObserver interface {
	ObserveDecision(stage models.Stage, approved bool)
}

// ApprovalService orchestrates the approval workflow: it loads the aggregate,
// authorizes the actor, runs the engine, commits the new state under the
// optimistic version check, and only then hands the notification intents to
// the dispatcher. Dispatch is fire-and-forget; a notification failure never
// affects the committed decision.
type ApprovalService struct {
	repo       workflowSubmissionStore
	verifier   stagePermissionChecker
	engine     ApprovalEngine
	dispatcher intentDispatcher
	audit      auditLogger
	cache      workflowCache
	metrics    decisionObserver
	logger     *zap.Logger
	now        func() time.Time
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalCache wires the read-side cache invalidated on workflow writes.
func WithApprovalCache(cache workflowCache) ApprovalServiceOption {
	return func(s *ApprovalService) { s.cache = cache }
}

// WithApprovalMetrics wires decision counters.
func WithApprovalMetrics(metrics decisionObserver) ApprovalServiceOption {
	return func(s *ApprovalService) { s.metrics = metrics }
}

// WithApprovalAudit wires the audit trail sink.
func WithApprovalAudit(audit auditLogger) ApprovalServiceOption {
	return func(s *ApprovalService) { s.audit = audit }
}

// NewApprovalService constructs the service.
func NewApprovalService(repo workflowSubmissionStore, verifier stagePermissionChecker, dispatcher intentDispatcher, logger *zap.Logger, opts ...ApprovalServiceOption) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		repo:       repo,
		verifier:   verifier,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Decide applies an approve/reject decision at the given stage.
func (s *ApprovalService) Decide(ctx context.Context, submissionID string, stage models.Stage, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Approved == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "approved is required")
	}

	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	// Stage validity and staleness come first: a request naming the wrong
	// stage is a state conflict regardless of who sent it. Authorization is
	// then checked against the validated current stage.
	if err := s.engine.ValidateStage(sub, stage); err != nil {
		return nil, err
	}

	allowed, err := s.verifier.CanActAt(ctx, actor, sub, stage)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check stage permission")
	}
	if !allowed {
		return nil, appErrors.ErrNotAuthorized
	}

	intents, err := s.engine.Apply(sub, DecisionInput{
		Stage:    stage,
		Approved: *req.Approved,
		ActorID:  actor.UserID,
		Comments: req.Comments,
		Now:      s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, sub, intents); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveDecision(stage, *req.Approved)
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionStageDecision, sub.ID,
		[]byte(fmt.Sprintf(`{"stage":%q,"approved":%t}`, stage, *req.Approved)))
	return sub, nil
}

// Resubmit re-enters a revision-requested submission at the rejecting stage.
func (s *ApprovalService) Resubmit(ctx context.Context, submissionID string, req dto.ResubmitRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	intents, err := s.engine.Resubmit(sub, ResubmitInput{
		ActorID:       actor.UserID,
		RevisedFields: req.RevisedFields,
		NewMentorID:   req.NewMentorID,
		Comments:      req.Comments,
		Now:           s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, sub, intents); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionResubmission, sub.ID,
		[]byte(fmt.Sprintf(`{"stage":%q}`, sub.CurrentStage)))
	return sub, nil
}

// Projection returns the read-only approvals view: per-stage records in chain
// order, the audit timeline, and a speculative can-act flag for the caller.
func (s *ApprovalService) Projection(ctx context.Context, submissionID string, actor *models.JWTClaims) (*dto.ApprovalProjection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	sub, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !canViewSubmission(sub, actor) {
		return nil, appErrors.ErrForbidden
	}

	projection := &dto.ApprovalProjection{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		CurrentStage: sub.CurrentStage,
		Timeline:     sub.Timeline,
	}
	for _, stage := range sub.StageSequence().Stages() {
		projection.Stages = append(projection.Stages, dto.ApprovalStageView{
			Stage:      stage,
			ApproverID: sub.ApproverFor(stage),
			Record:     sub.Record(stage),
			Current:    stage == sub.CurrentStage,
		})
	}
	if !sub.Terminal() {
		canAct, err := s.verifier.CanActAt(ctx, actor, sub, sub.CurrentStage)
		if err != nil {
			s.logger.Warn("failed to compute can-act flag", zap.String("submission_id", sub.ID), zap.Error(err))
		} else {
			projection.CanAct = canAct
		}
	}
	return projection, nil
}

func (s *ApprovalService) load(ctx context.Context, submissionID string) (*models.Submission, error) {
	sub, err := s.repo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return sub, nil
}

// commit persists the transition atomically under the version check and, only
// after the write succeeds, hands the intents to the dispatcher and drops the
// stale cache entries.
func (s *ApprovalService) commit(ctx context.Context, sub *models.Submission, intents []models.NotificationIntent) error {
	if err := s.repo.UpdateWorkflowState(ctx, sub); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrConcurrentModification
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist submission")
	}

	if s.dispatcher != nil && len(intents) > 0 {
		s.dispatcher.Dispatch(intents)
	}
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, submissionCachePattern(sub.ID)); err != nil {
			s.logger.Warn("failed to invalidate submission cache", zap.String("submission_id", sub.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *ApprovalService) emitAudit(ctx context.Context, userID, action, submissionID string, payload []byte) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "submission",
		ResourceID: &submissionID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "approval-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func canViewSubmission(sub *models.Submission, actor *models.JWTClaims) bool {
	switch {
	case actor.Role == models.RoleAdmin:
		return true
	case sub.StudentID == actor.UserID:
		return true
	case sub.IsPinnedApprover(actor.UserID):
		return true
	case actor.Role == models.RoleHOD && actor.DepartmentID == sub.DepartmentID:
		return true
	case actor.Role == models.RolePrincipal:
		return true
	default:
		return false
	}
}

func submissionCachePattern(id string) string {
	return "submissions:" + id + "*"
}
