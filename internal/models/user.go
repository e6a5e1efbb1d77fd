package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleStudent   UserRole = "STUDENT"
	RoleFaculty   UserRole = "FACULTY"
	RoleHOD       UserRole = "HOD"
	RolePrincipal UserRole = "PRINCIPAL"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID string     `db:"department_id" json:"department_id"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// CapabilityName identifies an assignable faculty capability.
type CapabilityName string

// CapabilityInnovationCoordinator scopes a faculty member as the innovation
// cell coordinator for one department.
const CapabilityInnovationCoordinator CapabilityName = "INNOVATION_COORDINATOR"

// Capability grants a faculty member an additional responsibility scoped to a
// department.
type Capability struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Name         CapabilityName `db:"name" json:"name"`
	DepartmentID string         `db:"department_id" json:"department_id"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
