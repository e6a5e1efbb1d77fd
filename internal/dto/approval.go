package dto

import (
	"github.com/noah-isme/odl-api/internal/models"
)

// DecisionRequest carries an approve/reject decision for one stage. Approved
// is a pointer so an omitted field is distinguishable from an explicit false.
type DecisionRequest struct {
	Approved *bool  `json:"approved"`
	Comments string `json:"comments,omitempty"`
}

// ApprovalStageView is one row of the read-only approvals projection.
type ApprovalStageView struct {
	Stage      models.Stage          `json:"stage"`
	ApproverID string                `json:"approverId,omitempty"`
	Record     models.ApprovalRecord `json:"record"`
	Current    bool                  `json:"current"`
}

// ApprovalProjection is the read-only view of a submission's approval state:
// per-stage records in chain order plus the audit timeline. CanAct is a
// speculative flag for the caller, computed without side effects.
type ApprovalProjection struct {
	SubmissionID string                  `json:"submissionId"`
	Status       models.SubmissionStatus `json:"status"`
	CurrentStage models.Stage            `json:"currentStage"`
	Stages       []ApprovalStageView     `json:"stages"`
	Timeline     models.Timeline         `json:"timeline"`
	CanAct       bool                    `json:"canAct"`
}
