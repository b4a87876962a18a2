package model

import "github.com/waterreg/registry-server/internal/workflow"

// User is a local user record mirrored from the auth service.
type User struct {
	ID         string            `json:"id"`
	AuthUserID string            `json:"authUser"`
	Type       workflow.UserType `json:"type"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Email      string            `json:"email,omitempty"`
	Phone      string            `json:"phone,omitempty"`
	Groups     []string          `json:"-"`
}

// IsAdmin reports whether the user is a platform admin.
func (u *User) IsAdmin() bool {
	return u != nil && (u.Type == workflow.UserTypeAdmin || u.Type == workflow.UserTypeSuperAdmin)
}

// Identity is what the auth service asserts about the caller.
type Identity struct {
	AuthUserID    string
	Type          workflow.UserType
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Groups        []string
	AdminOfGroups []string
}
