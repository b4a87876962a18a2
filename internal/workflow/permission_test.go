package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func userActor(id string) *Actor {
	return &Actor{User: User{ID: id, Type: UserTypeUser}, AuthUser: AuthUser{ID: "auth-" + id, Type: UserTypeUser}}
}

func adminActor(id string) *Actor {
	return &Actor{User: User{ID: id, Type: UserTypeAdmin}, AuthUser: AuthUser{ID: "auth-" + id, Type: UserTypeAdmin}}
}

func tenantActor(id, tenant string) *Actor {
	a := userActor(id)
	a.TenantProfile = &TenantProfile{ID: tenant, Role: TenantRoleUser}
	return a
}

func TestEvaluatePermissions_TerminalStatusGrantsNothing(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusRejected} {
		e := &Entity{ID: "e1", Status: status, CreatedBy: "u1"}
		assert.Equal(t, Permissions{}, EvaluatePermissions(KindForm, e, nil), status)
		assert.Equal(t, Permissions{}, EvaluatePermissions(KindForm, e, adminActor("a1")), status)
		assert.Equal(t, Permissions{}, EvaluatePermissions(KindForm, e, userActor("u1")), status)
	}
}

func TestEvaluatePermissions_SystemActor(t *testing.T) {
	e := &Entity{ID: "e1", Status: StatusCreated}
	assert.Equal(t, Permissions{Edit: true, Validate: true, Assign: true}, EvaluatePermissions(KindForm, e, nil))
	assert.Equal(t, Permissions{Edit: true, Validate: true}, EvaluatePermissions(KindRequest, e, nil))
}

func TestEvaluatePermissions_NewEntity(t *testing.T) {
	assert.Equal(t, Permissions{}, EvaluatePermissions(KindForm, &Entity{}, adminActor("a1")))
	assert.Equal(t, Permissions{}, EvaluatePermissions(KindRequest, nil, userActor("u1")))
}

func TestEvaluatePermissions_OwnerEditsOnlyWhenReturned(t *testing.T) {
	owner := userActor("u1")
	for status, edit := range map[Status]bool{
		StatusCreated:   false,
		StatusSubmitted: false,
		StatusReturned:  true,
	} {
		e := &Entity{ID: "e1", Status: status, CreatedBy: "u1"}
		p := EvaluatePermissions(KindRequest, e, owner)
		assert.Equal(t, edit, p.Edit, status)
		assert.False(t, p.Validate, status)
	}
}

func TestEvaluatePermissions_TenantMemberIsOwner(t *testing.T) {
	e := &Entity{ID: "e1", Status: StatusReturned, CreatedBy: "someone-else", Tenant: "t1"}
	assert.True(t, EvaluatePermissions(KindForm, e, tenantActor("u2", "t1")).Edit)
	assert.False(t, EvaluatePermissions(KindForm, e, tenantActor("u2", "t2")).Edit)
	// Without a profile the creator of a tenant entity is not its owner.
	assert.False(t, EvaluatePermissions(KindForm, e, userActor("someone-else")).Edit)
}

func TestEvaluatePermissions_AdminValidates(t *testing.T) {
	admin := adminActor("a1")
	for status, validate := range map[Status]bool{
		StatusCreated:   true,
		StatusSubmitted: true,
		StatusReturned:  false,
	} {
		e := &Entity{ID: "e1", Status: status, CreatedBy: "u1"}
		assert.Equal(t, validate, EvaluatePermissions(KindForm, e, admin).Validate, status)
	}
}

func TestEvaluatePermissions_AdminCannotValidateOwnEntity(t *testing.T) {
	admin := adminActor("a1")
	e := &Entity{ID: "e1", Status: StatusCreated, CreatedBy: "a1"}
	p := EvaluatePermissions(KindForm, e, admin)
	assert.False(t, p.Validate)
	assert.False(t, p.Assign)
}

func TestEvaluatePermissions_Assign(t *testing.T) {
	e := &Entity{ID: "e1", Status: StatusCreated, CreatedBy: "u1"}
	assert.True(t, EvaluatePermissions(KindForm, e, adminActor("a1")).Assign)
	assert.False(t, EvaluatePermissions(KindRequest, e, adminActor("a1")).Assign)
	assert.False(t, EvaluatePermissions(KindForm, e, userActor("u2")).Assign)

	e.Assignee = "a2"
	assert.False(t, EvaluatePermissions(KindForm, e, adminActor("a1")).Assign)
	assert.True(t, EvaluatePermissions(KindForm, e, adminActor("a2")).Assign)

	groupAdmin := adminActor("a1")
	groupAdmin.AuthUser.AdminOfGroups = []string{"g1"}
	assert.True(t, EvaluatePermissions(KindForm, e, groupAdmin).Assign)

	super := adminActor("a3")
	super.AuthUser.Type = UserTypeSuperAdmin
	assert.True(t, EvaluatePermissions(KindForm, e, super).Assign)
}

func TestIsOwner_NilSafe(t *testing.T) {
	assert.False(t, IsOwner(&Entity{CreatedBy: "u1"}, nil))
	assert.False(t, IsOwner(nil, userActor("u1")))
	assert.True(t, IsOwner(&Entity{CreatedBy: "u1"}, userActor("u1")))
}
