package models

import "time"

// UserRole represents the coarse account types recognised by the policy guard.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleStaff   UserRole = "staff"
)

// Designation is a staff sub-designation. Empty for students and regular staff.
type Designation string

const (
	DesignationHOD   Designation = "HOD"
	DesignationAdmin Designation = "Admin"
	DesignationNone  Designation = ""
)

// IsSenior reports whether the designation grants elevated staff privileges.
func (d Designation) IsSenior() bool {
	return d == DesignationHOD || d == DesignationAdmin
}

// User represents an account stored in the users table. Accounts are
// deactivated via the active flag and never hard-deleted.
type User struct {
	ID                string      `db:"id" json:"id"`
	Email             string      `db:"email" json:"email"`
	PasswordHash      string      `db:"password_hash" json:"-"`
	FullName          string      `db:"full_name" json:"full_name"`
	Role              UserRole    `db:"role" json:"role"`
	Designation       Designation `db:"designation" json:"designation,omitempty"`
	Department        string      `db:"department" json:"department"`
	Year              string      `db:"year" json:"year,omitempty"`
	Active            bool        `db:"active" json:"active"`
	PasswordChangedAt time.Time   `db:"password_changed_at" json:"-"`
	LastLogin         *time.Time  `db:"last_login" json:"last_login,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role       *UserRole
	Department string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Normalize clamps paging values to sane bounds.
func (f *UserFilter) Normalize() {
	f.Page, f.PageSize = NormalizePage(f.Page, f.PageSize)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination builds pagination metadata for a result page.
func NewPagination(page, pageSize, total int) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}

// NormalizePage clamps page and page size to sane bounds.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
