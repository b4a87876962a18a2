package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterreg/registry-server/internal/document"
	"github.com/waterreg/registry-server/internal/request/model"
	"github.com/waterreg/registry-server/internal/spatial"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/workflow"
)

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

type memoryRequestStore struct {
	requests map[string]*model.Request
}

func (m *memoryRequestStore) Create(_ dbmodel.TxInterface, r *model.Request, _ string) error {
	r.Version = 1
	m.requests[r.ID] = r.Clone()
	return nil
}

func (m *memoryRequestStore) GetByID(_ context.Context, id string) (*model.Request, error) {
	r, ok := m.requests[id]
	if !ok || r.DeletedAt != nil {
		return nil, nil
	}
	return r.Clone(), nil
}

func (m *memoryRequestStore) List(context.Context, Filter) ([]model.Request, int, error) {
	out := make([]model.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, *r.Clone())
	}
	return out, len(out), nil
}

func (m *memoryRequestStore) write(r *model.Request) error {
	current, ok := m.requests[r.ID]
	if !ok || current.Version != r.Version {
		return stores.ErrVersionConflict
	}
	r.Version++
	m.requests[r.ID] = r.Clone()
	return nil
}

func (m *memoryRequestStore) Update(_ dbmodel.TxInterface, r *model.Request, _ string) error {
	return m.write(r)
}

func (m *memoryRequestStore) Delete(_ dbmodel.TxInterface, r *model.Request) error {
	return m.write(r)
}

type fixture struct {
	store   *memoryRequestStore
	service *requestService
	events  []workflow.Event
	now     time.Time
}

var (
	owner = &workflow.Actor{User: workflow.User{ID: "u1", Type: workflow.UserTypeUser, Email: "u1@example.com"}}
	other = &workflow.Actor{User: workflow.User{ID: "u2", Type: workflow.UserTypeUser}}
	admin = &workflow.Actor{User: workflow.User{ID: "a1", Type: workflow.UserTypeAdmin, Email: "a1@example.com"}}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &memoryRequestStore{requests: map[string]*model.Request{}},
		now:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	registry := stores.NewStoreRegistry(noopDB{}, nil, f.store, nil, nil)
	recorder := workflow.ListenerFunc(func(_ context.Context, ev workflow.Event) error {
		f.events = append(f.events, ev)
		return nil
	})
	controller := workflow.NewController[*model.Request](Policy, spatial.Normalizer{}, recorder)
	f.service = newRequestService(registry, controller, nil, nil)
	f.service.clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) create(t *testing.T, actor *workflow.Actor) *model.Response {
	t.Helper()
	resp, svcErr := f.service.CreateRequest(context.Background(), actor, &model.CreateRequest{
		Purpose: "Planning",
		Objects: []model.Object{{ID: "1234", Type: model.ObjectTypeCadastralID}},
	})
	require.Nil(t, svcErr)
	return resp
}

func TestCreateRequest_UserStartsCreated(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t, owner)

	assert.Equal(t, workflow.StatusCreated, resp.Status)
	assert.Equal(t, "u1@example.com", resp.NotifyEmail)
	assert.JSONEq(t, `{"extended":false}`, string(resp.Data))
	require.Len(t, f.events, 1)
	assert.False(t, f.events[0].AutoApproved())
}

func TestCreateRequest_AdminIsAutoApproved(t *testing.T) {
	f := newFixture(t)
	resp := f.create(t, admin)

	assert.Equal(t, workflow.StatusApproved, resp.Status)
	require.Len(t, f.events, 1)
	assert.True(t, f.events[0].AutoApproved())
}

func TestCreateRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request *model.CreateRequest
		want    string
	}{
		{
			name:    "no objects and no geometry",
			request: &model.CreateRequest{Purpose: "x"},
			want:    "No geometry was passed",
		},
		{
			name:    "object without id",
			request: &model.CreateRequest{Objects: []model.Object{{Type: model.ObjectTypeCadastralID}}},
			want:    "Object id is required",
		},
		{
			name:    "invalid email",
			request: &model.CreateRequest{Objects: []model.Object{{ID: "1", Type: model.ObjectTypeCadastralID}}, NotifyEmail: "nope"},
		},
		{
			name:    "bad geometry",
			request: &model.CreateRequest{Geom: json.RawMessage(`{"type":"Circle"}`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, svcErr := f.service.CreateRequest(context.Background(), owner, tt.request)
			require.NotNil(t, svcErr)
			assert.True(t, svcErr.Is(serviceerror.ValidationError))
			if tt.want != "" {
				assert.Equal(t, tt.want, svcErr.ErrorDescription)
			}
			assert.Empty(t, f.events)
		})
	}
}

func TestCreateRequest_ExplicitCreatedStatus(t *testing.T) {
	f := newFixture(t)
	resp, svcErr := f.service.CreateRequest(context.Background(), owner, &model.CreateRequest{
		Objects: []model.Object{{ID: "1234", Type: model.ObjectTypeCadastralID}},
		Status:  workflow.StatusCreated,
	})
	require.Nil(t, svcErr)
	assert.Equal(t, workflow.StatusCreated, resp.Status)
	assert.NotEmpty(t, resp.ID)
}

func TestCreateRequest_UserCannotCreateApproved(t *testing.T) {
	f := newFixture(t)
	_, svcErr := f.service.CreateRequest(context.Background(), owner, &model.CreateRequest{
		Objects: []model.Object{{ID: "1234", Type: model.ObjectTypeCadastralID}},
		Status:  workflow.StatusApproved,
	})
	require.NotNil(t, svcErr)
	assert.Equal(t, "Cannot set status with value APPROVED", svcErr.ErrorDescription)
	assert.Empty(t, f.store.requests)
}

func TestCreateRequest_GeometryAloneIsEnough(t *testing.T) {
	f := newFixture(t)
	resp, svcErr := f.service.CreateRequest(context.Background(), owner, &model.CreateRequest{
		Geom: json.RawMessage(`{"type":"Point","coordinates":[25.28,54.69]}`),
	})
	require.Nil(t, svcErr)
	assert.Equal(t, workflow.StatusCreated, resp.Status)
}

func TestGetRequest_GeneratedFileVisibility(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)
	f.store.requests[created.ID].GeneratedFile = "https://files.example.com/r.pdf"

	resp, svcErr := f.service.GetRequest(context.Background(), owner, created.ID)
	require.Nil(t, svcErr)
	assert.Empty(t, resp.GeneratedFile)

	resp, svcErr = f.service.GetRequest(context.Background(), admin, created.ID)
	require.Nil(t, svcErr)
	assert.Equal(t, "https://files.example.com/r.pdf", resp.GeneratedFile)
	assert.True(t, resp.CanValidate)

	f.store.requests[created.ID].Status = workflow.StatusApproved
	resp, svcErr = f.service.GetRequest(context.Background(), owner, created.ID)
	require.Nil(t, svcErr)
	assert.Equal(t, "https://files.example.com/r.pdf", resp.GeneratedFile)

	_, svcErr = f.service.GetRequest(context.Background(), other, created.ID)
	require.NotNil(t, svcErr)
	assert.True(t, svcErr.Is(serviceerror.ResourceNotFoundError))
}

func TestUpdateRequest_AdminApproves(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)

	resp, svcErr := f.service.UpdateRequest(context.Background(), admin, created.ID, &model.UpdateRequest{
		Status:  workflow.StatusApproved,
		Comment: "ok",
	})
	require.Nil(t, svcErr)
	assert.Equal(t, workflow.StatusApproved, resp.Status)
	require.NotNil(t, resp.RespondedAt)
	assert.Equal(t, f.now, *resp.RespondedAt)
	require.Len(t, f.events, 2)
	assert.Equal(t, "ok", f.events[1].Comment)
}

func TestUpdateRequest_RejectsUnknownObjectType(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)
	f.store.requests[created.ID].Status = workflow.StatusReturned

	_, svcErr := f.service.UpdateRequest(context.Background(), owner, created.ID, &model.UpdateRequest{
		Objects: []model.Object{{ID: "1", Type: "ADDRESS"}},
	})
	require.NotNil(t, svcErr)
	assert.True(t, svcErr.Is(serviceerror.ValidationError))
}

func TestDeleteRequest_Policy(t *testing.T) {
	tests := []struct {
		name    string
		status  workflow.Status
		actor   *workflow.Actor
		allowed bool
	}{
		{"owner before review", workflow.StatusCreated, owner, true},
		{"owner while submitted", workflow.StatusSubmitted, owner, true},
		{"owner after approval", workflow.StatusApproved, owner, false},
		{"admin after rejection", workflow.StatusRejected, admin, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			created := f.create(t, owner)
			f.store.requests[created.ID].Status = tt.status

			svcErr := f.service.DeleteRequest(context.Background(), tt.actor, created.ID)
			if tt.allowed {
				assert.Nil(t, svcErr)
				assert.NotNil(t, f.store.requests[created.ID].DeletedAt)
				return
			}
			require.NotNil(t, svcErr)
			assert.True(t, svcErr.Is(serviceerror.ForbiddenError))
		})
	}
}

func TestRegeneratePdf_Guards(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)

	_, svcErr := f.service.RegeneratePdf(context.Background(), owner, created.ID)
	require.NotNil(t, svcErr)
	assert.True(t, svcErr.Is(serviceerror.ForbiddenError))

	_, svcErr = f.service.RegeneratePdf(context.Background(), admin, created.ID)
	require.NotNil(t, svcErr)
	assert.Equal(t, "Only approved requests have a document", svcErr.ErrorDescription)
}

func TestRenderHTML_WrongSecretIsNotFound(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)

	_, svcErr := f.service.RenderHTML(context.Background(), created.ID, "deadbeef")
	require.NotNil(t, svcErr)
	assert.True(t, svcErr.Is(serviceerror.ResourceNotFoundError))

	_, svcErr = f.service.RenderHTML(context.Background(), "missing", document.Secret("missing", f.now))
	require.NotNil(t, svcErr)
	assert.True(t, svcErr.Is(serviceerror.ResourceNotFoundError))
}

func TestGeneratedFileUpdatesRunAsSystem(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)
	f.store.requests[created.ID].Status = workflow.StatusApproved

	require.NoError(t, f.service.SaveGeneratedFile(context.Background(), created.ID, "https://files.example.com/r.pdf"))
	assert.Equal(t, "https://files.example.com/r.pdf", f.store.requests[created.ID].GeneratedFile)
	assert.Equal(t, workflow.StatusApproved, f.store.requests[created.ID].Status)

	require.NoError(t, f.service.ClearGeneratedFile(context.Background(), created.ID))
	assert.Empty(t, f.store.requests[created.ID].GeneratedFile)

	assert.ErrorIs(t, f.service.SaveGeneratedFile(context.Background(), "missing", "x"), document.ErrSourceNotFound)
}

func TestLoadSource(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, owner)

	src, err := f.service.LoadSource(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, src.ID)
	assert.Equal(t, f.now, src.CreatedAt)
	assert.Equal(t, []document.SourceObject{{ID: "1234", Type: model.ObjectTypeCadastralID}}, src.Objects)
	assert.False(t, src.Extended)
}
