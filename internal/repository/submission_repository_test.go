package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/odl-api/internal/models"
)

func TestGetSubmissionByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	mentor := "mentor-1"
	rows := sqlmock.NewRows([]string{"id", "student_id", "event_id", "event_level", "department_id", "mentor_id", "advisor_id", "coordinator_id", "hod_id", "principal_id", "current_stage", "status", "details", "approvals", "timeline", "version", "created_at", "updated_at"}).
		AddRow("s1", "stu-1", "ev-1", string(models.EventLevelDepartment), "dept-1", mentor, "adv-1", "ic-1", "hod-1", nil,
			string(models.StageMentor), string(models.SubmissionStatusSubmitted),
			[]byte(`{"eventName":"hackathon"}`),
			[]byte(`{"MENTOR":{"decision":"PENDING"}}`),
			[]byte(`[{"stage":"MENTOR","action":"SUBMITTED","actorId":"stu-1","at":"2026-01-10T09:00:00Z"}]`),
			1, now, now)
	mock.ExpectQuery("SELECT .+ FROM submissions WHERE id = \\$1").
		WithArgs("s1").
		WillReturnRows(rows)

	sub, err := repo.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", sub.StudentID)
	require.NotNil(t, sub.MentorID)
	assert.Equal(t, "mentor-1", *sub.MentorID)
	assert.Equal(t, models.DecisionPending, sub.Record(models.StageMentor).Decision)
	assert.Equal(t, "hackathon", sub.Details["eventName"])
	require.Len(t, sub.Timeline, 1)
	assert.Equal(t, models.TimelineActionSubmitted, sub.Timeline[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubmissionsByApprover(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "event_id", "event_level", "department_id", "mentor_id", "advisor_id", "coordinator_id", "hod_id", "principal_id", "current_stage", "status", "details", "approvals", "timeline", "version", "created_at", "updated_at"}).
		AddRow("s1", "stu-1", "ev-1", string(models.EventLevelDepartment), "dept-1", "fac-1", "adv-1", "ic-1", "hod-1", nil,
			string(models.StageMentor), string(models.SubmissionStatusSubmitted),
			[]byte(`{}`), []byte(`{}`), []byte(`[]`), 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("(mentor_id = $1 OR advisor_id = $1 OR coordinator_id = $1 OR hod_id = $1 OR principal_id = $1)")).
		WithArgs("fac-1", models.SubmissionStatusSubmitted, models.SubmissionStatusInReview).
		WillReturnRows(rows)

	subs, err := repo.List(context.Background(), models.SubmissionFilter{
		ApproverID: "fac-1",
		Status:     []models.SubmissionStatus{models.SubmissionStatusSubmitted, models.SubmissionStatusInReview},
	})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s1", subs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWorkflowState(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mentor := "mentor-1"
	sub := &models.Submission{
		ID:           "s1",
		MentorID:     &mentor,
		CurrentStage: models.StageClassAdvisor,
		Status:       models.SubmissionStatusInReview,
		Version:      3,
	}
	mock.ExpectExec("UPDATE submissions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateWorkflowState(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, 4, sub.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWorkflowStateLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	sub := &models.Submission{ID: "s1", Status: models.SubmissionStatusInReview, Version: 3}
	mock.ExpectExec("UPDATE submissions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateWorkflowState(context.Background(), sub)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, 3, sub.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
