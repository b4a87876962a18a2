package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/waterreg/registry-server/internal/form/model"
	"github.com/waterreg/registry-server/internal/history"
	historymodel "github.com/waterreg/registry-server/internal/history/model"
	"github.com/waterreg/registry-server/internal/spatial"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/stores"
	usermodel "github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

const testGeom = `{"type":"Point","coordinates":[25.28,54.69]}`

// noopDB hands out transactions that write nothing. The fake store holds the data.
type noopDB struct{}

func (noopDB) Query(context.Context, dbmodel.DBQuery, ...interface{}) ([]dbmodel.Row, error) {
	return nil, nil
}
func (noopDB) Execute(context.Context, dbmodel.DBQuery, ...interface{}) (int64, error) {
	return 0, nil
}
func (noopDB) BeginTx(context.Context) (dbmodel.TxInterface, error) {
	return noopTx{}, nil
}
func (noopDB) In(q dbmodel.DBQuery, args ...interface{}) (dbmodel.DBQuery, []interface{}, error) {
	return q, args, nil
}
func (noopDB) Ping(context.Context) error { return nil }

type noopTx struct{}

func (noopTx) Exec(dbmodel.DBQuery, ...interface{}) (sql.Result, error) { return nil, nil }
func (noopTx) Query(dbmodel.DBQuery, ...interface{}) ([]dbmodel.Row, error) {
	return nil, nil
}
func (noopTx) Commit() error {
	return nil
}
func (noopTx) Rollback() error {
	return nil
}

type memoryFormStore struct {
	mu       sync.Mutex
	forms    map[string]*model.Form
	conflict bool
}

func newMemoryFormStore() *memoryFormStore {
	return &memoryFormStore{forms: map[string]*model.Form{}}
}

func (m *memoryFormStore) Create(_ dbmodel.TxInterface, form *model.Form, geometry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	form.Version = 1
	stored := form.Clone()
	if geometry != "" {
		stored.Geom = json.RawMessage(geometry)
	}
	m.forms[form.ID] = stored
	return nil
}

func (m *memoryFormStore) GetByID(_ context.Context, id string) (*model.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok || f.DeletedAt != nil {
		return nil, nil
	}
	return f.Clone(), nil
}

func (m *memoryFormStore) List(context.Context, Filter) ([]model.Form, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Form, 0, len(m.forms))
	for _, f := range m.forms {
		out = append(out, *f.Clone())
	}
	return out, len(out), nil
}

func (m *memoryFormStore) write(form *model.Form) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.forms[form.ID]
	if m.conflict || !ok || current.Version != form.Version {
		return stores.ErrVersionConflict
	}
	form.Version++
	m.forms[form.ID] = form.Clone()
	return nil
}

func (m *memoryFormStore) Update(_ dbmodel.TxInterface, form *model.Form, _ string) error {
	return m.write(form)
}

func (m *memoryFormStore) UpdateAssignee(_ dbmodel.TxInterface, form *model.Form) error {
	return m.write(form)
}

func (m *memoryFormStore) Delete(_ dbmodel.TxInterface, form *model.Form) error {
	return m.write(form)
}

type stubUsers struct {
	users      map[string]usermodel.User
	assignable []usermodel.User
}

func (s *stubUsers) Resolve(_ context.Context, id string) (*usermodel.User, error) {
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *stubUsers) FindOrCreate(context.Context, usermodel.Identity) (*usermodel.User, error) {
	return nil, nil
}

func (s *stubUsers) ResolveActor(context.Context, usermodel.Identity, *workflow.TenantProfile) (*workflow.Actor, error) {
	return nil, nil
}

func (s *stubUsers) ListAssignable(context.Context, *workflow.Actor) ([]usermodel.User, error) {
	return s.assignable, nil
}

type stubHistory struct{}

func (stubHistory) Append(context.Context, history.Entry) error { return nil }
func (stubHistory) GetHistory(_ context.Context, _ workflow.Kind, parentID string, page, pageSize int) (*historymodel.Page, *serviceerror.ServiceError) {
	return &historymodel.Page{Rows: []historymodel.Record{{ParentID: parentID}}, Total: 1, Page: page, PageSize: pageSize, TotalPages: 1}, nil
}

type capturedAssignment struct {
	formID   string
	assignee string
}

type captureAssigned struct {
	calls []capturedAssignment
}

func (c *captureAssigned) NotifyAssigned(_ context.Context, formID string, assignee *usermodel.User) {
	c.calls = append(c.calls, capturedAssignment{formID: formID, assignee: assignee.ID})
}

type FormServiceTestSuite struct {
	suite.Suite
	store    *memoryFormStore
	users    *stubUsers
	assigned *captureAssigned
	events   []workflow.Event
	service  *formService

	owner     *workflow.Actor
	stranger  *workflow.Actor
	admin     *workflow.Actor
	admin2    *workflow.Actor
	superUser *workflow.Actor
}

func TestFormServiceTestSuite(t *testing.T) {
	suite.Run(t, new(FormServiceTestSuite))
}

func (s *FormServiceTestSuite) SetupTest() {
	s.store = newMemoryFormStore()
	s.users = &stubUsers{users: map[string]usermodel.User{
		"a1": {ID: "a1", Type: workflow.UserTypeAdmin, Email: "a1@example.com"},
		"a2": {ID: "a2", Type: workflow.UserTypeAdmin, Email: "a2@example.com"},
	}}
	s.assigned = &captureAssigned{}
	s.events = nil

	registry := stores.NewStoreRegistry(noopDB{}, s.store, nil, nil, nil)
	recorder := workflow.ListenerFunc(func(_ context.Context, ev workflow.Event) error {
		s.events = append(s.events, ev)
		return nil
	})
	controller := workflow.NewController[*model.Form](Policy, spatial.Normalizer{}, recorder)
	s.service = newFormService(registry, controller, s.users, stubHistory{}, s.assigned).(*formService)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.service.clock = func() time.Time { return now }

	s.owner = &workflow.Actor{User: workflow.User{ID: "u1", Type: workflow.UserTypeUser, FirstName: "Ona", LastName: "Onaite"}}
	s.stranger = &workflow.Actor{User: workflow.User{ID: "u2", Type: workflow.UserTypeUser}}
	s.admin = &workflow.Actor{User: workflow.User{ID: "a1", Type: workflow.UserTypeAdmin}}
	s.admin2 = &workflow.Actor{User: workflow.User{ID: "a2", Type: workflow.UserTypeAdmin}}
	s.superUser = &workflow.Actor{
		User:     workflow.User{ID: "s1", Type: workflow.UserTypeSuperAdmin},
		AuthUser: workflow.AuthUser{Type: workflow.UserTypeSuperAdmin},
	}
}

func (s *FormServiceTestSuite) createForm() *model.Response {
	resp, svcErr := s.service.CreateForm(context.Background(), s.owner, &model.CreateRequest{
		ObjectType: "RIVER",
		ObjectName: "Neris",
		Geom:       json.RawMessage(testGeom),
	})
	s.Require().Nil(svcErr)
	return resp
}

func (s *FormServiceTestSuite) setStatus(id string, status workflow.Status) {
	s.store.forms[id].Status = status
}

func (s *FormServiceTestSuite) TestCreateForm_Defaults() {
	resp := s.createForm()

	s.Equal(workflow.StatusCreated, resp.Status)
	s.Equal(model.FormTypeNew, resp.Type)
	s.Equal(model.ProviderTypeOwner, resp.ProviderType)
	s.Equal("Ona Onaite", resp.ProvidedBy)
	s.Equal("u1", resp.CreatedBy)
	s.False(resp.Permissions.Edit)
	s.JSONEq(testGeom, string(s.store.forms[resp.ID].Geom))
	s.Require().Len(s.events, 1)
	s.Equal(workflow.EventCreated, s.events[0].Type)
}

func (s *FormServiceTestSuite) TestCreateForm_NewFormNeedsGeometry() {
	_, svcErr := s.service.CreateForm(context.Background(), s.owner, &model.CreateRequest{
		ObjectType: "RIVER",
		ObjectName: "Neris",
	})
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ValidationError))
	s.Equal("Geometry must be provided", svcErr.ErrorDescription)
	s.Empty(s.events)
}

func (s *FormServiceTestSuite) TestCreateForm_RejectsUnknownObjectType() {
	_, svcErr := s.service.CreateForm(context.Background(), s.owner, &model.CreateRequest{
		ObjectType: "OCEAN",
		ObjectName: "Baltic",
		Geom:       json.RawMessage(testGeom),
	})
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ValidationError))
}

func (s *FormServiceTestSuite) TestCreateForm_UserCannotCreateApproved() {
	_, svcErr := s.service.CreateForm(context.Background(), s.owner, &model.CreateRequest{
		ObjectType: "RIVER",
		ObjectName: "Neris",
		Geom:       json.RawMessage(testGeom),
		Status:     workflow.StatusApproved,
	})
	s.Require().NotNil(svcErr)
	s.Equal("Cannot set status with value APPROVED", svcErr.ErrorDescription)
}

func (s *FormServiceTestSuite) TestCreateForm_ExplicitCreatedStatus() {
	for _, actor := range []*workflow.Actor{s.owner, s.admin} {
		resp, svcErr := s.service.CreateForm(context.Background(), actor, &model.CreateRequest{
			ObjectType: "RIVER",
			ObjectName: "Neris",
			Geom:       json.RawMessage(testGeom),
			Status:     workflow.StatusCreated,
		})
		s.Require().Nil(svcErr)
		s.Equal(workflow.StatusCreated, resp.Status)
		s.NotEmpty(resp.ID)
	}
}

func (s *FormServiceTestSuite) TestCreateForm_SystemCannotCreateApproved() {
	_, svcErr := s.service.CreateForm(context.Background(), nil, &model.CreateRequest{
		ObjectType: "RIVER",
		ObjectName: "Neris",
		Geom:       json.RawMessage(testGeom),
		Status:     workflow.StatusApproved,
	})
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ValidationError))
	s.Equal("Cannot set status with value APPROVED", svcErr.ErrorDescription)
	s.Empty(s.store.forms)
	s.Empty(s.events)
}

func (s *FormServiceTestSuite) TestGetForm_HiddenFromStrangers() {
	created := s.createForm()

	_, svcErr := s.service.GetForm(context.Background(), s.stranger, created.ID)
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ResourceNotFoundError))

	resp, svcErr := s.service.GetForm(context.Background(), s.admin, created.ID)
	s.Require().Nil(svcErr)
	s.True(resp.Permissions.Validate)
}

func (s *FormServiceTestSuite) TestListForms_ReportsPageUsed() {
	s.createForm()
	s.createForm()
	s.createForm()

	resp, svcErr := s.service.ListForms(context.Background(), s.admin, model.ListQuery{Page: 2, PageSize: 2})
	s.Require().Nil(svcErr)
	s.Equal(2, resp.Page)
	s.Equal(2, resp.PageSize)
	s.Equal(3, resp.Total)
	s.Equal(2, resp.TotalPages)
}

func (s *FormServiceTestSuite) TestUpdateForm_ReturnThenResubmit() {
	created := s.createForm()
	comment := "Trūksta brėžinio"

	resp, svcErr := s.service.UpdateForm(context.Background(), s.admin, created.ID, &model.UpdateRequest{
		Status:  workflow.StatusReturned,
		Comment: comment,
	})
	s.Require().Nil(svcErr)
	s.Equal(workflow.StatusReturned, resp.Status)
	s.NotNil(resp.RespondedAt)

	name := "Neris II"
	resp, svcErr = s.service.UpdateForm(context.Background(), s.owner, created.ID, &model.UpdateRequest{
		ObjectName: &name,
	})
	s.Require().Nil(svcErr)
	s.Equal(workflow.StatusSubmitted, resp.Status)
	s.Equal("Neris II", resp.ObjectName)

	s.Require().Len(s.events, 3)
	s.Equal(comment, s.events[1].Comment)
	s.Equal(workflow.StatusCreated, s.events[1].Old.Status)
	s.Equal(workflow.StatusReturned, s.events[1].New.Status)
}

func (s *FormServiceTestSuite) TestUpdateForm_OwnerCannotEditWhileUnderReview() {
	created := s.createForm()
	name := "Other"

	_, svcErr := s.service.UpdateForm(context.Background(), s.owner, created.ID, &model.UpdateRequest{ObjectName: &name})
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ForbiddenError))
}

func (s *FormServiceTestSuite) TestUpdateForm_VersionConflict() {
	created := s.createForm()
	s.store.conflict = true

	_, svcErr := s.service.UpdateForm(context.Background(), s.admin, created.ID, &model.UpdateRequest{
		Status: workflow.StatusApproved,
	})
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ConflictError))
	s.Len(s.events, 1)
}

func (s *FormServiceTestSuite) TestDeleteForm_Policy() {
	tests := []struct {
		name    string
		status  workflow.Status
		actor   func() *workflow.Actor
		allowed bool
	}{
		{"owner while created", workflow.StatusCreated, func() *workflow.Actor { return s.owner }, true},
		{"owner while returned", workflow.StatusReturned, func() *workflow.Actor { return s.owner }, true},
		{"owner while submitted", workflow.StatusSubmitted, func() *workflow.Actor { return s.owner }, false},
		{"admin while approved", workflow.StatusApproved, func() *workflow.Actor { return s.admin }, true},
		{"system", workflow.StatusSubmitted, func() *workflow.Actor { return nil }, true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			created := s.createForm()
			s.setStatus(created.ID, tt.status)

			svcErr := s.service.DeleteForm(context.Background(), tt.actor(), created.ID)
			if tt.allowed {
				s.Nil(svcErr)
				s.NotNil(s.store.forms[created.ID].DeletedAt)
			} else {
				s.Require().NotNil(svcErr)
				s.Equal("Form cannot be deleted", svcErr.ErrorDescription)
			}
		})
	}
}

func (s *FormServiceTestSuite) TestSetAssignee_Rules() {
	tests := []struct {
		name     string
		actor    func() *workflow.Actor
		status   workflow.Status
		current  string
		assignee string
		want     string
	}{
		{"regular user", func() *workflow.Actor { return s.owner }, workflow.StatusCreated, "", "a1", "Assignee cannot be set."},
		{"terminal form", func() *workflow.Actor { return s.admin }, workflow.StatusApproved, "", "a1", "Assignee cannot be set."},
		{"already assigned", func() *workflow.Actor { return s.admin }, workflow.StatusCreated, "a2", "a1", "Assignee already exists."},
		{"unassign others", func() *workflow.Actor { return s.admin }, workflow.StatusCreated, "a2", "", "Cannot unassign others."},
		{"already unassigned", func() *workflow.Actor { return s.admin }, workflow.StatusCreated, "", "", "Already unassigned."},
		{"assign creator", func() *workflow.Actor { return s.superUser }, workflow.StatusCreated, "", "u1", "Cannot assign to creator."},
		{"not assignable", func() *workflow.Actor { return s.admin }, workflow.StatusCreated, "", "a9", "Assignee cannot be set."},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.users.assignable = []usermodel.User{{ID: "a1"}, {ID: "a2"}}
			created := s.createForm()
			s.setStatus(created.ID, tt.status)
			s.store.forms[created.ID].Assignee = tt.current

			_, svcErr := s.service.SetAssignee(context.Background(), tt.actor(), created.ID, tt.assignee)
			s.Require().NotNil(svcErr)
			s.True(svcErr.Is(serviceerror.ValidationError))
			s.Equal(tt.want, svcErr.ErrorDescription)
		})
	}
	s.Empty(s.assigned.calls)
}

func (s *FormServiceTestSuite) TestSetAssignee_AssignAndUnassign() {
	s.users.assignable = []usermodel.User{{ID: "a1"}}
	created := s.createForm()

	resp, svcErr := s.service.SetAssignee(context.Background(), s.admin, created.ID, "a1")
	s.Require().Nil(svcErr)
	s.Equal("a1", resp.Assignee)
	s.Equal([]capturedAssignment{{formID: created.ID, assignee: "a1"}}, s.assigned.calls)

	resp, svcErr = s.service.SetAssignee(context.Background(), s.admin, created.ID, "")
	s.Require().Nil(svcErr)
	s.Empty(resp.Assignee)
	s.Len(s.assigned.calls, 1)
}

func (s *FormServiceTestSuite) TestSetAssignee_SuperAdminReassigns() {
	s.users.assignable = []usermodel.User{{ID: "a1"}, {ID: "a2"}}
	created := s.createForm()
	s.store.forms[created.ID].Assignee = "a1"

	resp, svcErr := s.service.SetAssignee(context.Background(), s.superUser, created.ID, "a2")
	s.Require().Nil(svcErr)
	s.Equal("a2", resp.Assignee)
}

func (s *FormServiceTestSuite) TestGetHistory_ChecksVisibility() {
	created := s.createForm()

	_, svcErr := s.service.GetHistory(context.Background(), s.stranger, created.ID, 1, 20)
	s.Require().NotNil(svcErr)
	s.True(svcErr.Is(serviceerror.ResourceNotFoundError))

	page, svcErr := s.service.GetHistory(context.Background(), s.owner, created.ID, 1, 20)
	s.Require().Nil(svcErr)
	s.Equal(1, page.Total)
}

func TestLoadVisible_InvalidIDIsNotFound(t *testing.T) {
	svc := &formService{}
	_, svcErr := svc.loadVisible(context.Background(), nil, "not-a-uuid")
	require.NotNil(t, svcErr)
	assert.True(t, svcErr.Is(serviceerror.ResourceNotFoundError))
}

func TestApplyPatch(t *testing.T) {
	form := &model.Form{ObjectType: "RIVER", ObjectName: "Neris"}
	empty := ""
	assert.NotNil(t, applyPatch(form.Clone(), &model.UpdateRequest{ObjectName: &empty}))

	bad := "OCEAN"
	assert.NotNil(t, applyPatch(form.Clone(), &model.UpdateRequest{ObjectType: &bad}))

	lake := "NATURAL_LAKE"
	next := form.Clone()
	require.Nil(t, applyPatch(next, &model.UpdateRequest{ObjectType: &lake, Data: json.RawMessage(`{"a":1}`)}))
	assert.Equal(t, "NATURAL_LAKE", next.ObjectType)
	assert.Equal(t, "RIVER", form.ObjectType)
	assert.JSONEq(t, `{"a":1}`, string(next.Data))
}
