package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/odl-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "department_id", "active", "last_login", "created_at", "updated_at"})
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("1", "user@example.com", "hash", "User", string(models.RoleAdmin), "dept-1", true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, department_id, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, "dept-1", user.DepartmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDepartmentHead(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("hod-1", "hod@example.com", "hash", "Head", string(models.RoleHOD), "dept-1", true, now, now, now)
	mock.ExpectQuery("SELECT .+ FROM users WHERE role = \\$1 AND department_id = \\$2 AND active = TRUE").
		WithArgs(models.RoleHOD, "dept-1").
		WillReturnRows(rows)

	user, err := repo.FindDepartmentHead(context.Background(), "dept-1")
	require.NoError(t, err)
	assert.Equal(t, "hod-1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindInnovationCoordinator(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("ic-1", "ic@example.com", "hash", "Coordinator", string(models.RoleFaculty), "dept-1", true, now, now, now)
	mock.ExpectQuery("JOIN faculty_capabilities c ON c.user_id = u.id").
		WithArgs(models.CapabilityInnovationCoordinator, "dept-1").
		WillReturnRows(rows)

	user, err := repo.FindInnovationCoordinator(context.Background(), "dept-1")
	require.NoError(t, err)
	assert.Equal(t, "ic-1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindInnovationCoordinatorMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("JOIN faculty_capabilities c ON c.user_id = u.id").
		WithArgs(models.CapabilityInnovationCoordinator, "dept-2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindInnovationCoordinator(context.Background(), "dept-2")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCapabilities(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "department_id", "created_at"}).
		AddRow("c1", "u1", string(models.CapabilityInnovationCoordinator), "dept-1", now)
	mock.ExpectQuery("SELECT id, user_id, name, department_id, created_at FROM faculty_capabilities WHERE user_id = \\$1").
		WithArgs("u1").
		WillReturnRows(rows)

	caps, err := repo.ListCapabilities(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, models.CapabilityInnovationCoordinator, caps[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumePasswordResetToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE")).
		WithArgs("pr1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ConsumePasswordResetToken(context.Background(), "pr1", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumePasswordResetTokenAlreadyUsed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE")).
		WithArgs("pr1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConsumePasswordResetToken(context.Background(), "pr1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
