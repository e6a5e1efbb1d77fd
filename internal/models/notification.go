package models

import "time"

// NotificationCategory classifies the reason a notification was produced.
type NotificationCategory string

const (
	NotificationCategoryApprovalRequest   NotificationCategory = "APPROVAL_REQUEST"
	NotificationCategoryStageApproved     NotificationCategory = "STAGE_APPROVED"
	NotificationCategoryFinalApproval     NotificationCategory = "FINAL_APPROVAL"
	NotificationCategoryRevisionRequested NotificationCategory = "REVISION_REQUESTED"
	NotificationCategoryMentorReassign    NotificationCategory = "MENTOR_REASSIGN"
	NotificationCategoryStageRejectedInfo NotificationCategory = "STAGE_REJECTED_INFO"
	NotificationCategoryResubmitted       NotificationCategory = "RESUBMITTED"
)

// NotificationIntent is an ephemeral instruction describing a notification to
// be dispatched. Produced by workflow transitions, handed to the dispatcher
// after the state commit, never persisted by the engine itself.
type NotificationIntent struct {
	RecipientID  string               `json:"recipientId"`
	Category     NotificationCategory `json:"category"`
	Title        string               `json:"title"`
	Body         string               `json:"body"`
	SubmissionID string               `json:"submissionId"`
}

// Notification is the persisted sink record delivered to a user's inbox.
type Notification struct {
	ID           string               `db:"id" json:"id"`
	UserID       string               `db:"user_id" json:"userId"`
	Category     NotificationCategory `db:"category" json:"category"`
	Title        string               `db:"title" json:"title"`
	Body         string               `db:"body" json:"body"`
	SubmissionID *string              `db:"submission_id" json:"submissionId,omitempty"`
	IsRead       bool                 `db:"is_read" json:"isRead"`
	CreatedAt    time.Time            `db:"created_at" json:"createdAt"`
	ReadAt       *time.Time           `db:"read_at" json:"readAt,omitempty"`
}

// NotificationFilter constrains inbox queries.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}
