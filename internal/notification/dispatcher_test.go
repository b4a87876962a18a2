package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterreg/registry-server/internal/system/executor"
	"github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

type stubUsers map[string]*model.User

func (s stubUsers) Resolve(_ context.Context, id string) (*model.User, error) {
	if id == "broken" {
		return nil, errors.New("db down")
	}
	return s[id], nil
}

type captureNotifier struct {
	sent []Message
	err  error
}

func (c *captureNotifier) Send(_ context.Context, msg Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func newTestDispatcher(n Notifier) *Dispatcher {
	users := stubUsers{
		"u1": {ID: "u1", Type: workflow.UserTypeUser, Email: "user@example.com"},
	}
	return NewDispatcher(testRules(), users, n, executor.Inline{})
}

func TestDispatcher_FormReturned(t *testing.T) {
	n := &captureNotifier{}
	err := newTestDispatcher(n).HandleEvent(context.Background(), workflow.Event{
		Type:    workflow.EventUpdated,
		Kind:    workflow.KindForm,
		Old:     &workflow.Entity{ID: "f1", Status: workflow.StatusSubmitted, CreatedBy: "u1"},
		New:     &workflow.Entity{ID: "f1", Status: workflow.StatusReturned, CreatedBy: "u1"},
		Summary: workflow.Summary{FormType: "EDIT", ObjectName: "River"},
	})

	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	assert.Equal(t, "user@example.com", n.sent[0].To)
	assert.Equal(t, "redagavimo", n.sent[0].Model["typeText"])
}

func TestDispatcher_ApprovedRequestWaitsForFile(t *testing.T) {
	n := &captureNotifier{}
	d := newTestDispatcher(n)

	approved := &workflow.Entity{ID: "r1", Status: workflow.StatusApproved, CreatedBy: "u1"}
	require.NoError(t, d.HandleEvent(context.Background(), workflow.Event{
		Type: workflow.EventUpdated,
		Kind: workflow.KindRequest,
		Old:  &workflow.Entity{ID: "r1", Status: workflow.StatusSubmitted, CreatedBy: "u1"},
		New:  approved,
	}))
	assert.Empty(t, n.sent)

	withFile := approved.Clone()
	withFile.GeneratedFile = "https://files/r1.pdf"
	require.NoError(t, d.HandleEvent(context.Background(), workflow.Event{
		Type: workflow.EventUpdated,
		Kind: workflow.KindRequest,
		Old:  approved,
		New:  &withFile,
	}))
	require.Len(t, n.sent, 1)
	assert.Equal(t, int64(3), n.sent[0].TemplateID)
}

func TestDispatcher_NoTriggerNoWork(t *testing.T) {
	n := &captureNotifier{}
	e := &workflow.Entity{ID: "f1", Status: workflow.StatusCreated, CreatedBy: "broken"}
	err := newTestDispatcher(n).HandleEvent(context.Background(), workflow.Event{
		Type: workflow.EventUpdated, Kind: workflow.KindForm, Old: e, New: e,
	})
	assert.NoError(t, err)
	assert.Empty(t, n.sent)
}

func TestDispatcher_SendFailureIsSwallowed(t *testing.T) {
	n := &captureNotifier{err: errors.New("broker down")}
	err := newTestDispatcher(n).HandleEvent(context.Background(), workflow.Event{
		Type:    workflow.EventCreated,
		Kind:    workflow.KindForm,
		New:     &workflow.Entity{ID: "f1", Status: workflow.StatusCreated, CreatedBy: "u1"},
		Summary: workflow.Summary{FormType: "NEW", ObjectName: "Pond"},
	})
	assert.NoError(t, err)
	assert.Len(t, n.sent, 1)
}

func TestDispatcher_NotifyAssigned(t *testing.T) {
	n := &captureNotifier{}
	d := newTestDispatcher(n)

	d.NotifyAssigned(context.Background(), "f1", &model.User{ID: "a1", Email: "Admin@Example.com"})
	d.NotifyAssigned(context.Background(), "f1", &model.User{ID: "a2"})
	d.NotifyAssigned(context.Background(), "f1", nil)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "admin@example.com", n.sent[0].To)
	assert.Equal(t, "https://admin/teikimo-anketos/f1", n.sent[0].Model["actionUrl"])
}
