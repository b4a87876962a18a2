package workflow

import "strings"

// UserType is the platform role of a user.
type UserType string

const (
	UserTypeUser       UserType = "USER"
	UserTypeAdmin      UserType = "ADMIN"
	UserTypeSuperAdmin UserType = "SUPER_ADMIN"
)

// TenantRole is the role of a user inside a tenant.
type TenantRole string

const (
	TenantRoleUser  TenantRole = "USER"
	TenantRoleAdmin TenantRole = "ADMIN"
)

// User is the local user record of the actor.
type User struct {
	ID        string   `json:"id"`
	Type      UserType `json:"type"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// AuthUser carries the claims of the auth service.
type AuthUser struct {
	ID            string   `json:"id"`
	Type          UserType `json:"type"`
	AdminOfGroups []string `json:"adminOfGroups,omitempty"`
}

// TenantProfile is set when the actor works on behalf of a tenant.
type TenantProfile struct {
	ID   string     `json:"id"`
	Role TenantRole `json:"role"`
}

// Actor is the identity a request is evaluated for. A nil *Actor is the system.
type Actor struct {
	User          User           `json:"user"`
	AuthUser      AuthUser       `json:"authUser"`
	TenantProfile *TenantProfile `json:"tenantProfile,omitempty"`
}

// IsSystem reports whether a is the system actor.
func (a *Actor) IsSystem() bool {
	return a == nil
}

// IsAdmin reports whether the actor is a platform admin.
func (a *Actor) IsAdmin() bool {
	if a == nil {
		return false
	}
	return a.User.Type == UserTypeAdmin || a.User.Type == UserTypeSuperAdmin
}

// IsSuperAdmin reports whether the actor is a super admin in either identity.
func (a *Actor) IsSuperAdmin() bool {
	if a == nil {
		return false
	}
	return a.User.Type == UserTypeSuperAdmin || a.AuthUser.Type == UserTypeSuperAdmin
}

// TenantID returns the tenant the actor works for, or "".
func (a *Actor) TenantID() string {
	if a == nil || a.TenantProfile == nil {
		return ""
	}
	return a.TenantProfile.ID
}

// UserID returns the local user id, or "" for the system.
func (a *Actor) UserID() string {
	if a == nil {
		return ""
	}
	return a.User.ID
}
