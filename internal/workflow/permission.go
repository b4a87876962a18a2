package workflow

import "slices"

// EvaluatePermissions computes what actor a may do with entity e.
// It is pure and safe for concurrent use. Assign is only ever granted for forms.
func EvaluatePermissions(kind Kind, e *Entity, a *Actor) Permissions {
	if e != nil && e.Status.IsTerminal() {
		return Permissions{}
	}

	if a == nil {
		return Permissions{Edit: true, Validate: true, Assign: kind == KindForm}
	}

	if e.IsNew() {
		return Permissions{}
	}

	var p Permissions
	switch {
	case isOwner(e, a):
		p.Edit = e.Status == StatusReturned
	case a.IsAdmin():
		p.Validate = e.Status == StatusCreated || e.Status == StatusSubmitted
	}

	if kind == KindForm {
		p.Assign = canAssign(e, a)
	}
	return p
}

// IsOwner reports whether a owns e through its tenant profile or as the creator.
func IsOwner(e *Entity, a *Actor) bool {
	return a != nil && e != nil && isOwner(e, a)
}

func isOwner(e *Entity, a *Actor) bool {
	if tenantID := a.TenantID(); tenantID != "" && tenantID == e.Tenant {
		return true
	}
	return e.Tenant == "" && e.CreatedBy != "" && a.User.ID == e.CreatedBy
}

func canAssign(e *Entity, a *Actor) bool {
	if a.User.ID == e.CreatedBy || a.User.Type == UserTypeUser {
		return false
	}
	return len(a.AuthUser.AdminOfGroups) > 0 ||
		e.Assignee == "" ||
		a.IsSuperAdmin() ||
		e.Assignee == a.User.ID
}

// CreatableStatuses returns the statuses an entity may be created in.
func CreatableStatuses(kind Kind, a *Actor) []Status {
	if a == nil && kind == KindRequest {
		return []Status{StatusCreated, StatusApproved}
	}
	return []Status{StatusCreated}
}

func allowed(s Status, set ...Status) bool {
	return slices.Contains(set, s)
}
