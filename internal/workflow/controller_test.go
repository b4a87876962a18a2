package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
)

type item struct {
	Entity
	needsGeometry bool
}

func (i *item) WorkflowEntity() *Entity {
	return &i.Entity
}
func (i *item) Summary() Summary {
	return Summary{ObjectName: "Lake"}
}

type upperNormalizer struct{}

func (upperNormalizer) Normalize(raw json.RawMessage) (string, error) {
	if string(raw) == `"bad"` {
		return "", errors.New("broken")
	}
	return "normalized", nil
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) HandleEvent(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testPolicy() Policy[*item] {
	return Policy[*item]{
		Kind: KindForm,
		RequiresGeometry: func(_ *TransitionContext, i *item) bool {
			return i.needsGeometry
		},
		MissingGeometry: "Geometry must be provided",
	}
}

func TestPrepareCreate_FillsWorkflowFields(t *testing.T) {
	c := NewController(testPolicy(), upperNormalizer{})
	actor := tenantActor("u1", "t1")
	i := &item{Entity: Entity{ID: "e1"}}

	geom, err := c.PrepareCreate(NewTransitionContext(KindForm, actor, "", "", now), i, "", json.RawMessage(`{"type":"Point"}`))
	require.NoError(t, err)
	assert.Equal(t, "normalized", geom)
	assert.Equal(t, StatusCreated, i.Status)
	assert.Equal(t, "u1", i.CreatedBy)
	assert.Equal(t, "t1", i.Tenant)
	assert.Equal(t, now, i.CreatedAt)
}

func TestPrepareCreate_RequiresGeometry(t *testing.T) {
	c := NewController(testPolicy(), upperNormalizer{})
	i := &item{Entity: Entity{ID: "e1"}, needsGeometry: true}

	_, err := c.PrepareCreate(NewTransitionContext(KindForm, userActor("u1"), "", "", now), i, "", nil)
	var geomErr *GeometryError
	require.ErrorAs(t, err, &geomErr)
	assert.Equal(t, "Geometry must be provided", geomErr.Message)
}

func TestPrepareCreate_InvalidGeometry(t *testing.T) {
	c := NewController(testPolicy(), upperNormalizer{})
	_, err := c.PrepareCreate(NewTransitionContext(KindForm, userActor("u1"), "", "", now),
		&item{Entity: Entity{ID: "e1"}}, "", json.RawMessage(`"bad"`))
	assert.EqualError(t, err, "Invalid geometry: broken")
}

func TestPrepareCreate_AdminRequestAutoApproved(t *testing.T) {
	policy := testPolicy()
	policy.Kind = KindRequest
	c := NewController(policy, nil)
	i := &item{Entity: Entity{ID: "e1"}}

	_, err := c.PrepareCreate(NewTransitionContext(KindRequest, adminActor("a1"), "", "", now), i, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, i.Status)
}

func TestPrepareUpdate_OwnerSaveResubmits(t *testing.T) {
	c := NewController(testPolicy(), nil)
	current := &item{Entity: Entity{ID: "e1", Status: StatusReturned, CreatedBy: "u1"}}
	next := &item{Entity: current.Entity.Clone()}

	_, err := c.PrepareUpdate(NewTransitionContext(KindForm, userActor("u1"), "e1", "", now), current, next, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, next.Status)
	assert.Nil(t, next.RespondedAt)
}

func TestPrepareUpdate_AdminDecisionSetsRespondedAtOnce(t *testing.T) {
	c := NewController(testPolicy(), nil)
	current := &item{Entity: Entity{ID: "e1", Status: StatusSubmitted, CreatedBy: "u1"}}
	next := &item{Entity: current.Entity.Clone()}

	_, err := c.PrepareUpdate(NewTransitionContext(KindForm, adminActor("a1"), "e1", "", now), current, next, StatusReturned, nil)
	require.NoError(t, err)
	require.NotNil(t, next.RespondedAt)
	assert.Equal(t, now, *next.RespondedAt)

	earlier := now.Add(-time.Hour)
	current.RespondedAt = &earlier
	next = &item{Entity: current.Entity.Clone()}
	_, err = c.PrepareUpdate(NewTransitionContext(KindForm, adminActor("a1"), "e1", "", now), current, next, StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, earlier, *next.RespondedAt)
}

func TestPrepareUpdate_NoRightsForbidden(t *testing.T) {
	c := NewController(testPolicy(), nil)
	current := &item{Entity: Entity{ID: "e1", Status: StatusCreated, CreatedBy: "u1"}}
	next := &item{Entity: current.Entity.Clone()}

	_, err := c.PrepareUpdate(NewTransitionContext(KindForm, userActor("u1"), "e1", "", now), current, next, "", nil)
	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.True(t, ToServiceError(err).Is(serviceerror.ForbiddenError))
}

func TestPrepareUpdate_SystemKeepsStatus(t *testing.T) {
	c := NewController(testPolicy(), nil)
	current := &item{Entity: Entity{ID: "e1", Status: StatusApproved}}
	next := &item{Entity: current.Entity.Clone()}
	next.GeneratedFile = "https://files/e1.pdf"

	_, err := c.PrepareUpdate(NewTransitionContext(KindForm, nil, "e1", "", now), current, next, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, next.Status)
}

func TestEmit_ListenerErrorsDoNotStopOthers(t *testing.T) {
	failing := &recorder{err: errors.New("boom")}
	panicking := ListenerFunc(func(context.Context, Event) error { panic("listener") })
	ok := &recorder{}
	c := NewController(testPolicy(), nil, failing, panicking, ok)

	i := &item{Entity: Entity{ID: "e1", Status: StatusCreated}}
	c.Created(context.Background(), NewTransitionContext(KindForm, nil, "", "note", now), i)

	require.Len(t, ok.events, 1)
	ev := ok.events[0]
	assert.Equal(t, EventCreated, ev.Type)
	assert.Equal(t, "note", ev.Comment)
	assert.Equal(t, "Lake", ev.Summary.ObjectName)
	assert.True(t, ev.StatusChanged())
}

func TestUpdated_EventCarriesSnapshots(t *testing.T) {
	rec := &recorder{}
	c := NewController(testPolicy(), nil, rec)
	previous := &item{Entity: Entity{ID: "e1", Status: StatusApproved}}
	current := &item{Entity: Entity{ID: "e1", Status: StatusApproved, GeneratedFile: "f.pdf"}}

	c.Updated(context.Background(), NewTransitionContext(KindRequest, nil, "e1", "", now), previous, current)
	current.GeneratedFile = "mutated"

	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].FileGenerated())
	assert.False(t, rec.events[0].StatusChanged())
	assert.Equal(t, "f.pdf", rec.events[0].New.GeneratedFile)
}

func TestPrepareCreate_CreationRulesIgnorePresetID(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		actor    *Actor
		proposed Status
		wantErr  string
		want     Status
	}{
		{"user proposes created", KindForm, userActor("u1"), StatusCreated, "", StatusCreated},
		{"admin proposes created", KindForm, adminActor("a1"), StatusCreated, "", StatusCreated},
		{"user proposes submitted", KindForm, userActor("u1"), StatusSubmitted, "Cannot set status with value SUBMITTED", ""},
		{"system form approved", KindForm, nil, StatusApproved, "Cannot set status with value APPROVED", ""},
		{"system request approved", KindRequest, nil, StatusApproved, "", StatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := testPolicy()
			policy.Kind = tt.kind
			c := NewController(policy, nil)
			i := &item{Entity: Entity{ID: "e1"}}

			_, err := c.PrepareCreate(NewTransitionContext(tt.kind, tt.actor, "", "", now), i, tt.proposed, nil)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, i.Status)
			assert.Equal(t, "e1", i.ID)
		})
	}
}

func TestEvent_FileGenerated(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"empty to empty", "", "", false},
		{"empty to file", "", "x.pdf", true},
		{"same file", "x.pdf", "x.pdf", false},
		{"file replaced", "x.pdf", "y.pdf", false},
		{"file cleared", "x.pdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{
				Type: EventUpdated,
				Kind: KindRequest,
				Old:  &Entity{ID: "r1", Status: StatusApproved, GeneratedFile: tt.from},
				New:  &Entity{ID: "r1", Status: StatusApproved, GeneratedFile: tt.to},
			}
			assert.Equal(t, tt.want, ev.FileGenerated())
		})
	}

	created := Event{Type: EventCreated, Kind: KindRequest, New: &Entity{ID: "r1", GeneratedFile: "x.pdf"}}
	assert.False(t, created.FileGenerated())
}
