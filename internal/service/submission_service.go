package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/odl-api/internal/dto"
	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, sub *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type approverDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindDepartmentHead(ctx context.Context, departmentID string) (*models.User, error)
	FindInnovationCoordinator(ctx context.Context, departmentID string) (*models.User, error)
	FindPrincipal(ctx context.Context) (*models.User, error)
}

type submissionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SubmissionService owns the registration flow and the read side of
// submissions. Approver references are resolved from the directory exactly
// once, at creation time, and pinned to the submission.
type SubmissionService struct {
	repo       submissionStore
	directory  approverDirectory
	dispatcher intentDispatcher
	cache      submissionCache
	cacheTTL   time.Duration
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
}

// SubmissionServiceOption configures the service.
type SubmissionServiceOption func(*SubmissionService)

// WithSubmissionCache enables the read-through submission cache.
func WithSubmissionCache(cache submissionCache, ttl time.Duration) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithSubmissionAudit wires the audit trail sink.
func WithSubmissionAudit(audit auditLogger) SubmissionServiceOption {
	return func(s *SubmissionService) { s.audit = audit }
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionStore, directory approverDirectory, dispatcher intentDispatcher, logger *zap.Logger, opts ...SubmissionServiceOption) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SubmissionService{
		repo:       repo,
		directory:  directory,
		dispatcher: dispatcher,
		validator:  validator.New(),
		cacheTTL:   5 * time.Minute,
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create registers a new submission for the acting student, pins every
// approver of the applicable chain, and notifies the first one.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may create submissions")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if actor.DepartmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student has no department assigned")
	}

	level := req.EventLevel
	if level == "" {
		level = models.EventLevelDepartment
	}

	mentor, err := s.resolveFaculty(ctx, req.MentorID, "mentor")
	if err != nil {
		return nil, err
	}
	advisor, err := s.resolveFaculty(ctx, req.AdvisorID, "class advisor")
	if err != nil {
		return nil, err
	}
	coordinator, err := s.directory.FindInnovationCoordinator(ctx, actor.DepartmentID)
	if err != nil {
		return nil, s.directoryError(err, "no innovation coordinator is assigned for the department")
	}
	hod, err := s.directory.FindDepartmentHead(ctx, actor.DepartmentID)
	if err != nil {
		return nil, s.directoryError(err, "no department head is assigned for the department")
	}

	now := time.Now().UTC()
	mentorID := mentor.ID
	sub := &models.Submission{
		ID:            uuid.NewString(),
		StudentID:     actor.UserID,
		EventID:       req.EventID,
		EventLevel:    level,
		DepartmentID:  actor.DepartmentID,
		MentorID:      &mentorID,
		AdvisorID:     advisor.ID,
		CoordinatorID: coordinator.ID,
		HODID:         hod.ID,
		Status:        models.SubmissionStatusSubmitted,
		Details:       req.Details,
		Approvals:     make(models.ApprovalSet),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if level == models.EventLevelInstitution {
		principal, err := s.directory.FindPrincipal(ctx)
		if err != nil {
			return nil, s.directoryError(err, "no principal account is configured")
		}
		principalID := principal.ID
		sub.PrincipalID = &principalID
	}

	seq := sub.StageSequence()
	sub.CurrentStage = seq.First()
	for _, stage := range seq.Stages() {
		sub.SetRecord(stage, models.ApprovalRecord{Decision: models.DecisionPending})
	}
	sub.AppendTimeline(models.TimelineEntry{
		Stage:   sub.CurrentStage,
		Action:  models.TimelineActionSubmitted,
		ActorID: actor.UserID,
		At:      now,
	})

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch([]models.NotificationIntent{{
			RecipientID:  mentor.ID,
			Category:     models.NotificationCategoryApprovalRequest,
			Title:        "On-duty leave request awaiting your approval",
			Body:         "A student selected you as mentor for an on-duty leave request.",
			SubmissionID: sub.ID,
		}})
	}
	s.emitAudit(ctx, actor.UserID, sub.ID)
	return sub, nil
}

// Get returns a submission enforcing view scope.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	cacheKey := "submissions:" + id
	if s.cache != nil {
		var cached models.Submission
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			if !canViewSubmission(&cached, actor) {
				return nil, appErrors.ErrForbidden
			}
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("submission cache read failed", zap.String("submission_id", id), zap.Error(err))
		}
	}

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if !canViewSubmission(sub, actor) {
		return nil, appErrors.ErrForbidden
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, sub, s.cacheTTL); err != nil {
			s.logger.Warn("submission cache write failed", zap.String("submission_id", id), zap.Error(err))
		}
	}
	return sub, nil
}

// List returns submissions visible to the actor: students see their own,
// approvers see their queue, admins see everything.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	filter := models.SubmissionFilter{
		Status:       query.Status,
		CurrentStage: query.Stage,
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	switch actor.Role {
	case models.RoleAdmin:
		// no extra scope
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	default:
		filter.ApproverID = actor.UserID
		if query.Pending {
			filter.Status = []models.SubmissionStatus{
				models.SubmissionStatusSubmitted,
				models.SubmissionStatusInReview,
				models.SubmissionStatusResubmitted,
			}
		}
	}

	subs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

func (s *SubmissionService) resolveFaculty(ctx context.Context, id, role string) (*models.User, error) {
	user, err := s.directory.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, role+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve "+role)
	}
	if user.Role != models.RoleFaculty || !user.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, role+" must be an active faculty member")
	}
	return user, nil
}

func (s *SubmissionService) directoryError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "directory lookup failed")
}

func (s *SubmissionService) emitAudit(ctx context.Context, userID, submissionID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionSubmissionCreate,
		Resource:   "submission",
		ResourceID: &submissionID,
		NewValues:  []byte(`{"status":"SUBMITTED"}`),
		IPAddress:  "system",
		UserAgent:  "submission-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
