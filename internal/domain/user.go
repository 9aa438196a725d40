package domain

import "time"

// Role is the capability set a user acts under.
type Role string

const (
	RoleEndUser      Role = "end_user"
	RoleSupportAgent Role = "support_agent"
	RoleAdmin        Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleEndUser, RoleSupportAgent, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, candidate := range Roles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to the support side of the desk.
func (r Role) IsStaff() bool {
	return r == RoleSupportAgent || r == RoleAdmin
}

// User is the single identity model for requesters, agents and administrators.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
