package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
)

// ApprovalEngine is the workflow state machine. It applies a decision or a
// resubmission to a submission in memory and returns the notification intents
// the transition requires. It touches no stores and no clock beyond the input,
// so every transition is unit-testable in isolation; the caller owns loading
// the submission, authorizing the actor, and committing the result.
type ApprovalEngine struct{}

// DecisionInput carries one approve/reject action against a stage.
type DecisionInput struct {
	Stage    models.Stage
	Approved bool
	ActorID  string
	Comments string
	Now      time.Time
}

// ResubmitInput re-enters a revision-requested submission at the stage that
// rejected it.
type ResubmitInput struct {
	ActorID       string
	RevisedFields models.Details
	NewMentorID   string
	Comments      string
	Now           time.Time
}

// ValidateStage checks that stage names a member of the submission's chain
// and that the submission is currently waiting at it. Callers run it before
// authorization so a malformed or stale stage is reported as such, never as a
// permission failure.
func (e ApprovalEngine) ValidateStage(sub *models.Submission, stage models.Stage) error {
	if !sub.StageSequence().Contains(stage) {
		return appErrors.Clone(appErrors.ErrUnknownStage, fmt.Sprintf("unknown approval stage: %s", stage))
	}
	if sub.Terminal() || sub.CurrentStage != stage {
		return appErrors.Clone(appErrors.ErrStaleStage,
			fmt.Sprintf("submission is at stage %s, not %s", sub.CurrentStage, stage))
	}
	return nil
}

// Apply advances the submission by one decision. The acting stage must equal
// the submission's current stage; the engine never trusts client input to
// reorder the chain. On success the submission is mutated in place and the
// intents to dispatch after commit are returned.
func (e ApprovalEngine) Apply(sub *models.Submission, in DecisionInput) ([]models.NotificationIntent, error) {
	seq := sub.StageSequence()
	if err := e.ValidateStage(sub, in.Stage); err != nil {
		return nil, err
	}
	if sub.Record(in.Stage).Decision.Decided() {
		return nil, appErrors.ErrAlreadyDecided
	}
	if err := e.checkPredecessors(sub, seq, in.Stage); err != nil {
		return nil, err
	}

	now := in.Now.UTC()
	decision := models.DecisionRejected
	action := models.TimelineActionRejected
	if in.Approved {
		decision = models.DecisionApproved
		action = models.TimelineActionApproved
	}
	sub.SetRecord(in.Stage, models.ApprovalRecord{
		Decision:  decision,
		DecidedBy: in.ActorID,
		DecidedAt: &now,
		Comments:  in.Comments,
	})
	sub.AppendTimeline(models.TimelineEntry{
		Stage:    in.Stage,
		Action:   action,
		ActorID:  in.ActorID,
		Comments: in.Comments,
		At:       now,
	})

	if in.Approved {
		return e.applyApproval(sub, seq, in)
	}
	return e.applyRejection(sub, in), nil
}

func (e ApprovalEngine) checkPredecessors(sub *models.Submission, seq models.StageSequence, stage models.Stage) error {
	before, err := seq.Before(stage)
	if err != nil {
		return err
	}
	for _, earlier := range before {
		if sub.Record(earlier).Decision != models.DecisionApproved {
			return appErrors.Clone(appErrors.ErrOutOfOrder,
				fmt.Sprintf("stage %s has not been approved yet", earlier))
		}
	}
	return nil
}

func (e ApprovalEngine) applyApproval(sub *models.Submission, seq models.StageSequence, in DecisionInput) ([]models.NotificationIntent, error) {
	last, err := seq.IsLast(in.Stage)
	if err != nil {
		return nil, err
	}
	if last {
		sub.Status = models.SubmissionStatusApproved
		sub.CurrentStage = models.StageTerminal
		return []models.NotificationIntent{{
			RecipientID:  sub.StudentID,
			Category:     models.NotificationCategoryFinalApproval,
			Title:        "On-duty leave approved",
			Body:         fmt.Sprintf("Your on-duty leave request for event %s has cleared every approval stage.", sub.EventID),
			SubmissionID: sub.ID,
		}}, nil
	}

	next, err := seq.Next(in.Stage)
	if err != nil {
		return nil, err
	}
	sub.CurrentStage = next
	sub.Status = models.SubmissionStatusInReview

	intents := []models.NotificationIntent{{
		RecipientID:  sub.StudentID,
		Category:     models.NotificationCategoryStageApproved,
		Title:        fmt.Sprintf("Stage %s approved", in.Stage),
		Body:         fmt.Sprintf("Your on-duty leave request moved on to the %s stage.", next),
		SubmissionID: sub.ID,
	}}
	if approver := sub.ApproverFor(next); approver != "" {
		intents = append(intents, models.NotificationIntent{
			RecipientID:  approver,
			Category:     models.NotificationCategoryApprovalRequest,
			Title:        "On-duty leave request awaiting your approval",
			Body:         fmt.Sprintf("A submission for event %s is waiting at the %s stage.", sub.EventID, next),
			SubmissionID: sub.ID,
		})
	}
	return intents, nil
}

func (e ApprovalEngine) applyRejection(sub *models.Submission, in DecisionInput) []models.NotificationIntent {
	sub.Status = models.SubmissionStatusRevisionRequested

	if in.Stage == models.StageMentor {
		// Recoverable rejection: the mentor relationship itself is disputed.
		// The stage does not move and the pinned mentor is cleared so a fresh
		// mentor can be chosen before resubmission.
		sub.MentorID = nil
		return []models.NotificationIntent{{
			RecipientID:  sub.StudentID,
			Category:     models.NotificationCategoryMentorReassign,
			Title:        "Mentor rejected your request",
			Body:         rejectionBody("Your mentor declined the request; select a new mentor and resubmit.", in.Comments),
			SubmissionID: sub.ID,
		}}
	}

	// Revisable rejection: the submission stays at the rejecting stage and
	// re-enters it on resubmission.
	intents := []models.NotificationIntent{{
		RecipientID:  sub.StudentID,
		Category:     models.NotificationCategoryRevisionRequested,
		Title:        fmt.Sprintf("Request rejected at stage %s", in.Stage),
		Body:         rejectionBody("Revise your submission and resubmit.", in.Comments),
		SubmissionID: sub.ID,
	}}

	// A rejection late in the chain is unusual enough to surface to the
	// adjacent approver. Informational only; the stage does not move.
	switch in.Stage {
	case models.StageInnovationCoordinator:
		intents = append(intents, crossNotify(sub, in.Stage, sub.HODID))
	case models.StageHOD:
		intents = append(intents, crossNotify(sub, in.Stage, sub.CoordinatorID))
	}
	return intents
}

func crossNotify(sub *models.Submission, stage models.Stage, recipient string) models.NotificationIntent {
	return models.NotificationIntent{
		RecipientID:  recipient,
		Category:     models.NotificationCategoryStageRejectedInfo,
		Title:        fmt.Sprintf("Submission rejected at stage %s", stage),
		Body:         fmt.Sprintf("The on-duty leave request for event %s was rejected at the %s stage.", sub.EventID, stage),
		SubmissionID: sub.ID,
	}
}

func rejectionBody(instruction, comments string) string {
	if comments == "" {
		return instruction
	}
	return fmt.Sprintf("%s Reviewer comments: %s", instruction, comments)
}

// Resubmit re-enters a revision-requested submission at the stage that
// rejected it, starting a new decision round there. Earlier approvals are
// never walked back.
func (e ApprovalEngine) Resubmit(sub *models.Submission, in ResubmitInput) ([]models.NotificationIntent, error) {
	if sub.Status != models.SubmissionStatusRevisionRequested {
		return nil, appErrors.ErrNotResubmittable
	}
	if in.ActorID != sub.StudentID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the submitting student may resubmit")
	}

	rec := sub.Record(sub.CurrentStage)
	if rec.Decision != models.DecisionRejected {
		// REVISION_REQUESTED with no rejected record at the current stage
		// means the aggregate was corrupted somewhere upstream; refuse rather
		// than coerce.
		return nil, appErrors.Wrap(
			fmt.Errorf("approval record at stage %s is %s, expected %s", sub.CurrentStage, rec.Decision, models.DecisionRejected),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "submission state is inconsistent")
	}
	originalRejector := rec.DecidedBy

	if sub.CurrentStage == models.StageMentor {
		if in.NewMentorID != "" {
			mentor := in.NewMentorID
			sub.MentorID = &mentor
		}
		if sub.MentorID == nil || *sub.MentorID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a new mentor must be assigned before resubmission")
		}
	}

	now := in.Now.UTC()
	sub.Details = sub.Details.Merge(in.RevisedFields)
	sub.SetRecord(sub.CurrentStage, models.ApprovalRecord{Decision: models.DecisionPending})
	sub.Status = models.SubmissionStatusResubmitted
	sub.AppendTimeline(models.TimelineEntry{
		Stage:    sub.CurrentStage,
		Action:   models.TimelineActionResubmitted,
		ActorID:  in.ActorID,
		Comments: in.Comments,
		At:       now,
	})

	var intents []models.NotificationIntent
	approver := sub.ApproverFor(sub.CurrentStage)
	if approver != "" {
		intents = append(intents, models.NotificationIntent{
			RecipientID:  approver,
			Category:     models.NotificationCategoryApprovalRequest,
			Title:        "Resubmitted request awaiting your review",
			Body:         fmt.Sprintf("The on-duty leave request for event %s was revised and resubmitted at the %s stage.", sub.EventID, sub.CurrentStage),
			SubmissionID: sub.ID,
		})
	}
	if originalRejector != "" && originalRejector != approver {
		intents = append(intents, models.NotificationIntent{
			RecipientID:  originalRejector,
			Category:     models.NotificationCategoryResubmitted,
			Title:        "Student addressed your feedback",
			Body:         fmt.Sprintf("The submission you rejected at the %s stage was revised and resubmitted.", sub.CurrentStage),
			SubmissionID: sub.ID,
		})
	}
	return intents, nil
}
