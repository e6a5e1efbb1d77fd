package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/odl-api/internal/models"
)

const submissionColumns = `id, student_id, event_id, event_level, department_id, mentor_id, advisor_id, coordinator_id, hod_id, principal_id, current_stage, status, details, approvals, timeline, version, created_at, updated_at`

// SubmissionRepository provides database access for on-duty leave submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission. Version starts at 1.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.Version == 0 {
		sub.Version = 1
	}
	const query = `INSERT INTO submissions (id, student_id, event_id, event_level, department_id, mentor_id, advisor_id, coordinator_id, hod_id, principal_id, current_stage, status, details, approvals, timeline, version, created_at, updated_at)
	VALUES (:id, :student_id, :event_id, :event_level, :department_id, :mentor_id, :advisor_id, :coordinator_id, :hod_id, :principal_id, :current_stage, :status, :details, :approvals, :timeline, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID returns a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 LIMIT 1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// List returns submissions matching the filter, newest first. ApproverID
// matches any pinned approver slot so a faculty member sees every submission
// they appear on regardless of stage.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var (
		conditions []string
		args       []interface{}
	)
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != "" {
		conditions = append(conditions, "student_id = "+next(filter.StudentID))
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, "department_id = "+next(filter.DepartmentID))
	}
	if filter.ApproverID != "" {
		p := next(filter.ApproverID)
		conditions = append(conditions, fmt.Sprintf("(mentor_id = %[1]s OR advisor_id = %[1]s OR coordinator_id = %[1]s OR hod_id = %[1]s OR principal_id = %[1]s)", p))
	}
	if filter.CurrentStage != "" {
		conditions = append(conditions, "current_stage = "+next(filter.CurrentStage))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			placeholders = append(placeholders, next(status))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// UpdateWorkflowState persists a workflow transition in a single statement
// guarded by the version the aggregate was loaded at. Returns sql.ErrNoRows
// when a concurrent writer bumped the version first; the caller retries with
// fresh state.
func (r *SubmissionRepository) UpdateWorkflowState(ctx context.Context, sub *models.Submission) error {
	const query = `UPDATE submissions
	SET mentor_id = $3, current_stage = $4, status = $5, details = $6, approvals = $7, timeline = $8, version = version + 1, updated_at = $9
	WHERE id = $1 AND version = $2`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.Version,
		sub.MentorID, sub.CurrentStage, sub.Status,
		sub.Details, sub.Approvals, sub.Timeline, now)
	if err != nil {
		return fmt.Errorf("update submission workflow state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission workflow state: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	sub.Version++
	sub.UpdatedAt = now
	return nil
}
