package dto

import (
	"github.com/noah-isme/odl-api/internal/models"
)

// CreateSubmissionRequest registers a new on-duty leave submission. Mentor and
// class advisor are chosen by the student; the remaining approvers are
// resolved from the directory and pinned at creation time.
type CreateSubmissionRequest struct {
	EventID    string            `json:"eventId" validate:"required"`
	EventLevel models.EventLevel `json:"eventLevel" validate:"omitempty,oneof=DEPARTMENT INSTITUTION"`
	MentorID   string            `json:"mentorId" validate:"required"`
	AdvisorID  string            `json:"advisorId" validate:"required"`
	Details    models.Details    `json:"details"`
}

// ResubmitRequest re-enters a revision-requested submission into the chain.
// NewMentorID is required only when the mentor stage rejected and cleared the
// pinned mentor.
type ResubmitRequest struct {
	RevisedFields models.Details `json:"revisedFields"`
	NewMentorID   string         `json:"newMentorId,omitempty"`
	Comments      string         `json:"comments,omitempty"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	Status  []models.SubmissionStatus
	Stage   models.Stage
	Pending bool
	Limit   int
	Offset  int
}
