package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role constants for sales staff.
const (
	RoleAdmin        = "admin"
	RoleSalesManager = "sales_manager"
	RoleSalesRep     = "sales_rep"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleSalesManager, RoleSalesRep}

// IsValidRole checks if the given role is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a member of the sales organisation.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         string     `json:"role"`
	Department   string     `json:"department"`
	EmployeeID   *string    `json:"employee_id,omitempty"`
	Phone        string     `json:"phone"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP  *string    `json:"last_login_ip,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName joins first and last name, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) IsAdmin() bool        { return u.Role == RoleAdmin }
func (u *User) IsSalesManager() bool { return u.Role == RoleSalesManager }

// CanEditSettings reports whether the user may change system settings and prompt templates.
func (u *User) CanEditSettings() bool { return u.IsAdmin() }

// CanEditProducts reports whether the user may change the product catalogue.
func (u *User) CanEditProducts() bool { return u.IsAdmin() }

// CanViewAllProposals reports whether the user sees talk-scripts created by others.
func (u *User) CanViewAllProposals() bool { return u.IsAdmin() || u.IsSalesManager() }
