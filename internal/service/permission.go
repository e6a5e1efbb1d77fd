package service

import (
	"context"

	"github.com/noah-isme/odl-api/internal/models"
)

type capabilityStore interface {
	ListCapabilities(ctx context.Context, userID string) ([]models.Capability, error)
}

// PermissionVerifier decides whether a principal may act at a submission's
// stage. It has no side effects and is safe to call speculatively, e.g. to
// compute a "can I act" flag for the UI.
type PermissionVerifier struct {
	caps capabilityStore
}

// NewPermissionVerifier constructs the verifier.
func NewPermissionVerifier(caps capabilityStore) *PermissionVerifier {
	return &PermissionVerifier{caps: caps}
}

// CanActAt applies the per-stage authorization rules. Mentor and class
// advisor are matched against the refs pinned on the submission; the
// innovation coordinator needs a department-scoped capability; HOD and
// principal are role checks (HOD additionally requires the same department).
func (v *PermissionVerifier) CanActAt(ctx context.Context, principal *models.JWTClaims, sub *models.Submission, stage models.Stage) (bool, error) {
	if principal == nil || sub == nil {
		return false, nil
	}

	switch stage {
	case models.StageMentor:
		return sub.MentorID != nil && *sub.MentorID == principal.UserID, nil

	case models.StageClassAdvisor:
		return sub.AdvisorID == principal.UserID, nil

	case models.StageInnovationCoordinator:
		if v.caps == nil {
			return false, nil
		}
		caps, err := v.caps.ListCapabilities(ctx, principal.UserID)
		if err != nil {
			return false, err
		}
		for _, cap := range caps {
			if cap.Name == models.CapabilityInnovationCoordinator && cap.DepartmentID == sub.DepartmentID {
				return true, nil
			}
		}
		return false, nil

	case models.StageHOD:
		return principal.Role == models.RoleHOD && principal.DepartmentID == sub.DepartmentID, nil

	case models.StagePrincipal:
		return principal.Role == models.RolePrincipal, nil

	default:
		return false, nil
	}
}
