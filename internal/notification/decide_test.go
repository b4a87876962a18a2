package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waterreg/registry-server/internal/system/config"
	"github.com/waterreg/registry-server/internal/workflow"
)

func testRules() Rules {
	return Rules{
		Sender:     "noreply@biip.lt",
		AdminEmail: "admin@biip.lt",
		Hosts:      config.HostsConfig{App: "https://app", Admin: "https://admin"},
		Templates: config.MailTemplates{
			FormUpdate:    1,
			RequestUpdate: 2,
			FileGenerated: 3,
			FormAssigned:  4,
		},
	}
}

func formNotice(status workflow.Status) Notice {
	return Notice{
		Kind:        workflow.KindForm,
		Trigger:     TriggerStatusChanged,
		Status:      status,
		EntityID:    "f1",
		FormType:    "NEW",
		ObjectName:  "Lake",
		CadastralID: "123",
		Recipient:   Recipient{Email: "Owner@Example.com"},
	}
}

func TestDecide_FormCreatedGoesToAdmin(t *testing.T) {
	msg, ok := testRules().Decide(formNotice(workflow.StatusCreated))
	require.True(t, ok)
	assert.Equal(t, "admin@biip.lt", msg.To)
	assert.Equal(t, int64(1), msg.TemplateID)
	assert.Equal(t, "Pateiktas", msg.Model["title"])
	assert.Equal(t, "https://admin/teikimo-anketos/f1", msg.Model["actionUrl"])
}

func TestDecide_FormReturnedGoesToCreator(t *testing.T) {
	msg, ok := testRules().Decide(formNotice(workflow.StatusReturned))
	require.True(t, ok)
	assert.Equal(t, "noreply@biip.lt", msg.From)
	assert.Equal(t, "owner@example.com", msg.To)
	assert.Equal(t, "Grąžintas taisymui", msg.Model["title"])
	assert.Equal(t, "grąžintas taisymui", msg.Model["titleText"])
	assert.Equal(t, "įregistravimo", msg.Model["typeText"])
	assert.Equal(t, "Lake, 123", msg.Model["objectName"])
	assert.Equal(t, "https://app/duomenu-teikimas/f1", msg.Model["actionUrl"])
}

func TestDecide_FormSkipped(t *testing.T) {
	rules := testRules()

	_, ok := rules.Decide(formNotice(workflow.StatusSubmitted))
	assert.False(t, ok)

	n := formNotice(workflow.StatusApproved)
	n.ObjectName = ""
	_, ok = rules.Decide(n)
	assert.False(t, ok)

	n = formNotice(workflow.StatusRejected)
	n.Recipient = Recipient{}
	_, ok = rules.Decide(n)
	assert.False(t, ok)

	rules.AdminEmail = ""
	_, ok = rules.Decide(formNotice(workflow.StatusCreated))
	assert.False(t, ok)
}

func TestDecide_RequestStatus(t *testing.T) {
	rules := testRules()
	n := Notice{
		Kind:        workflow.KindRequest,
		Trigger:     TriggerStatusChanged,
		Status:      workflow.StatusRejected,
		EntityID:    "r1",
		Recipient:   Recipient{Email: "creator@example.com"},
		NotifyEmail: "notify@example.com",
	}

	msg, ok := rules.Decide(n)
	require.True(t, ok)
	assert.Equal(t, "notify@example.com", msg.To)
	assert.Equal(t, int64(2), msg.TemplateID)
	assert.Equal(t, "https://app/prasymai/r1", msg.Model["actionUrl"])

	for _, status := range []workflow.Status{workflow.StatusApproved, workflow.StatusSubmitted, workflow.StatusCreated} {
		n.Status = status
		_, ok = rules.Decide(n)
		assert.False(t, ok, status)
	}
}

func TestDecide_FileGenerated(t *testing.T) {
	n := Notice{
		Kind:      workflow.KindRequest,
		Trigger:   TriggerFileGenerated,
		Status:    workflow.StatusApproved,
		EntityID:  "r1",
		Recipient: Recipient{Email: "admin@example.com", IsAdmin: true},
	}
	msg, ok := testRules().Decide(n)
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", msg.To)
	assert.Equal(t, int64(3), msg.TemplateID)
	assert.Equal(t, "https://admin/prasymai/r1", msg.Model["actionUrl"])

	n.Kind = workflow.KindForm
	_, ok = testRules().Decide(n)
	assert.False(t, ok)
}

func TestDecide_AssignedNeedsTemplate(t *testing.T) {
	n := Notice{Kind: workflow.KindForm, Trigger: TriggerAssigned, EntityID: "f1", Recipient: Recipient{Email: "a@b.lt", IsAdmin: true}}

	msg, ok := testRules().Decide(n)
	require.True(t, ok)
	assert.Equal(t, int64(4), msg.TemplateID)

	rules := testRules()
	rules.Templates.FormAssigned = 0
	_, ok = rules.Decide(n)
	assert.False(t, ok)
}
