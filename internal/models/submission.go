package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionStatus captures the workflow state of an on-duty leave request.
type SubmissionStatus string

const (
	SubmissionStatusDraft             SubmissionStatus = "DRAFT"
	SubmissionStatusSubmitted         SubmissionStatus = "SUBMITTED"
	SubmissionStatusInReview          SubmissionStatus = "IN_REVIEW"
	SubmissionStatusResubmitted       SubmissionStatus = "RESUBMITTED"
	SubmissionStatusRevisionRequested SubmissionStatus = "REVISION_REQUESTED"
	SubmissionStatusApproved          SubmissionStatus = "APPROVED"
	SubmissionStatusRejected          SubmissionStatus = "REJECTED"
)

// EventLevel determines which approval chain applies to a submission.
type EventLevel string

const (
	EventLevelDepartment  EventLevel = "DEPARTMENT"
	EventLevelInstitution EventLevel = "INSTITUTION"
)

// Decision is the tri-state outcome of a stage for the current round.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Decided reports whether a decision has been recorded this round.
func (d Decision) Decided() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// ApprovalRecord is the per-stage decision sub-entity embedded in a
// submission. A record moves from PENDING to a decided state at most once per
// round; a resubmission resets the rejecting stage's record to PENDING.
type ApprovalRecord struct {
	Decision  Decision   `json:"decision"`
	DecidedBy string     `json:"decidedBy,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	Comments  string     `json:"comments,omitempty"`
}

// ApprovalSet maps each stage of the chain to its record. Stored as JSONB.
type ApprovalSet map[Stage]ApprovalRecord

// Value implements driver.Valuer for JSONB storage.
func (a ApprovalSet) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB storage.
func (a *ApprovalSet) Scan(src interface{}) error {
	return scanJSON(src, a, "approval set")
}

// TimelineAction labels an audit timeline entry.
type TimelineAction string

const (
	TimelineActionSubmitted   TimelineAction = "SUBMITTED"
	TimelineActionApproved    TimelineAction = "APPROVED"
	TimelineActionRejected    TimelineAction = "REJECTED"
	TimelineActionResubmitted TimelineAction = "RESUBMITTED"
)

// TimelineEntry is one append-only audit record on a submission.
type TimelineEntry struct {
	Stage    Stage          `json:"stage"`
	Action   TimelineAction `json:"action"`
	ActorID  string         `json:"actorId"`
	Comments string         `json:"comments,omitempty"`
	At       time.Time      `json:"at"`
}

// Timeline is the ordered audit trail of a submission. Stored as JSONB.
type Timeline []TimelineEntry

// Value implements driver.Valuer for JSONB storage.
func (t Timeline) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB storage.
func (t *Timeline) Scan(src interface{}) error {
	return scanJSON(src, t, "timeline")
}

// Details carries the revisable payload of a submission (event proof
// documents, team composition, and similar). Opaque to the workflow engine.
type Details map[string]interface{}

// Value implements driver.Valuer for JSONB storage.
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB storage.
func (d *Details) Scan(src interface{}) error {
	return scanJSON(src, d, "details")
}

// Merge overlays the provided fields onto the details, replacing matching
// keys and keeping the rest.
func (d Details) Merge(revised Details) Details {
	if len(revised) == 0 {
		return d
	}
	merged := make(Details, len(d)+len(revised))
	for k, v := range d {
		merged[k] = v
	}
	for k, v := range revised {
		merged[k] = v
	}
	return merged
}

func scanJSON(src, dest interface{}, what string) error {
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported %s column type %T", what, src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// Submission is one student/event pair requesting on-duty leave approval.
// Approver references are pinned at creation time so later directory changes
// never alter who was authorized on a historical submission. The version
// column backs optimistic concurrency on every workflow write.
type Submission struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"studentId"`
	EventID       string           `db:"event_id" json:"eventId"`
	EventLevel    EventLevel       `db:"event_level" json:"eventLevel"`
	DepartmentID  string           `db:"department_id" json:"departmentId"`
	MentorID      *string          `db:"mentor_id" json:"mentorId,omitempty"`
	AdvisorID     string           `db:"advisor_id" json:"advisorId"`
	CoordinatorID string           `db:"coordinator_id" json:"coordinatorId"`
	HODID         string           `db:"hod_id" json:"hodId"`
	PrincipalID   *string          `db:"principal_id" json:"principalId,omitempty"`
	CurrentStage  Stage            `db:"current_stage" json:"currentStage"`
	Status        SubmissionStatus `db:"status" json:"status"`
	Details       Details          `db:"details" json:"details,omitempty"`
	Approvals     ApprovalSet      `db:"approvals" json:"approvals"`
	Timeline      Timeline         `db:"timeline" json:"timeline"`
	Version       int              `db:"version" json:"version"`
	CreatedAt     time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updatedAt"`
}

// StageSequence returns the approval chain applicable to this submission.
func (s *Submission) StageSequence() StageSequence {
	if s.EventLevel == EventLevelInstitution {
		return InstitutionStageSequence
	}
	return DepartmentStageSequence
}

// Record returns the approval record for a stage, defaulting to pending.
func (s *Submission) Record(stage Stage) ApprovalRecord {
	if rec, ok := s.Approvals[stage]; ok {
		return rec
	}
	return ApprovalRecord{Decision: DecisionPending}
}

// SetRecord stores the approval record for a stage.
func (s *Submission) SetRecord(stage Stage, rec ApprovalRecord) {
	if s.Approvals == nil {
		s.Approvals = make(ApprovalSet)
	}
	s.Approvals[stage] = rec
}

// AppendTimeline appends an audit entry.
func (s *Submission) AppendTimeline(entry TimelineEntry) {
	s.Timeline = append(s.Timeline, entry)
}

// ApproverFor returns the pinned approver for a stage, or empty when none is
// pinned (a mentor slot cleared by a recoverable rejection).
func (s *Submission) ApproverFor(stage Stage) string {
	switch stage {
	case StageMentor:
		if s.MentorID != nil {
			return *s.MentorID
		}
		return ""
	case StageClassAdvisor:
		return s.AdvisorID
	case StageInnovationCoordinator:
		return s.CoordinatorID
	case StageHOD:
		return s.HODID
	case StagePrincipal:
		if s.PrincipalID != nil {
			return *s.PrincipalID
		}
		return ""
	default:
		return ""
	}
}

// IsPinnedApprover reports whether the user holds any approver slot on this
// submission.
func (s *Submission) IsPinnedApprover(userID string) bool {
	for _, stage := range s.StageSequence().Stages() {
		if id := s.ApproverFor(stage); id != "" && id == userID {
			return true
		}
	}
	return false
}

// Terminal reports whether no further stage transitions may occur.
func (s *Submission) Terminal() bool {
	return s.Status == SubmissionStatusApproved || s.Status == SubmissionStatusRejected
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	StudentID    string
	DepartmentID string
	ApproverID   string
	CurrentStage Stage
	Status       []SubmissionStatus
	Limit        int
	Offset       int
}
