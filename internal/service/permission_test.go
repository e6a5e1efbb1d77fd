package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/odl-api/internal/models"
)

type capabilityStoreStub struct {
	caps map[string][]models.Capability
	err  error
}

func (s *capabilityStoreStub) ListCapabilities(ctx context.Context, userID string) ([]models.Capability, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.caps[userID], nil
}

func TestCanActAtMentorMatchesPinnedRef(t *testing.T) {
	verifier := NewPermissionVerifier(&capabilityStoreStub{})
	sub := newTestSubmission(models.EventLevelDepartment)

	ok, err := verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "mentor-1", Role: models.RoleFaculty}, sub, models.StageMentor)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "mentor-2", Role: models.RoleFaculty}, sub, models.StageMentor)
	require.NoError(t, err)
	assert.False(t, ok)

	// Cleared mentor slot authorizes nobody.
	sub.MentorID = nil
	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "mentor-1", Role: models.RoleFaculty}, sub, models.StageMentor)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanActAtAdvisorMatchesPinnedRef(t *testing.T) {
	verifier := NewPermissionVerifier(&capabilityStoreStub{})
	sub := newTestSubmission(models.EventLevelDepartment)

	ok, err := verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "adv-1", Role: models.RoleFaculty}, sub, models.StageClassAdvisor)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanActAtCoordinatorRequiresDepartmentScopedCapability(t *testing.T) {
	store := &capabilityStoreStub{caps: map[string][]models.Capability{
		"ic-1":    {{UserID: "ic-1", Name: models.CapabilityInnovationCoordinator, DepartmentID: "dept-1"}},
		"ic-else": {{UserID: "ic-else", Name: models.CapabilityInnovationCoordinator, DepartmentID: "dept-2"}},
	}}
	verifier := NewPermissionVerifier(store)
	sub := newTestSubmission(models.EventLevelDepartment)

	ok, err := verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "ic-1", Role: models.RoleFaculty}, sub, models.StageInnovationCoordinator)
	require.NoError(t, err)
	assert.True(t, ok)

	// Capability scoped to another department does not carry over.
	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "ic-else", Role: models.RoleFaculty}, sub, models.StageInnovationCoordinator)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "plain", Role: models.RoleFaculty}, sub, models.StageInnovationCoordinator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanActAtCoordinatorPropagatesStoreError(t *testing.T) {
	verifier := NewPermissionVerifier(&capabilityStoreStub{err: errors.New("db down")})
	sub := newTestSubmission(models.EventLevelDepartment)

	_, err := verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "ic-1", Role: models.RoleFaculty}, sub, models.StageInnovationCoordinator)
	assert.Error(t, err)
}

func TestCanActAtHODRequiresRoleAndDepartment(t *testing.T) {
	verifier := NewPermissionVerifier(&capabilityStoreStub{})
	sub := newTestSubmission(models.EventLevelDepartment)

	ok, err := verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, DepartmentID: "dept-1"}, sub, models.StageHOD)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "hod-2", Role: models.RoleHOD, DepartmentID: "dept-2"}, sub, models.StageHOD)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty, DepartmentID: "dept-1"}, sub, models.StageHOD)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanActAtPrincipalIsRoleCheck(t *testing.T) {
	verifier := NewPermissionVerifier(&capabilityStoreStub{})
	sub := newTestSubmission(models.EventLevelInstitution)

	ok, err := verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "pri-9", Role: models.RolePrincipal}, sub, models.StagePrincipal)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifier.CanActAt(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD}, sub, models.StagePrincipal)
	require.NoError(t, err)
	assert.False(t, ok)
}
