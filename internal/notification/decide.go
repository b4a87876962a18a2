// Package notification decides which transitions produce mail and hands the
// resulting messages to a delivery backend.
package notification

import (
	"fmt"
	"strings"

	"github.com/waterreg/registry-server/internal/system/config"
	"github.com/waterreg/registry-server/internal/workflow"
)

// Trigger names what happened to the entity.
type Trigger string

const (
	TriggerStatusChanged Trigger = "STATUS_CHANGED"
	TriggerFileGenerated Trigger = "FILE_GENERATED"
	TriggerAssigned      Trigger = "ASSIGNED"
)

// Recipient is the resolved user a message may go to.
type Recipient struct {
	Email   string
	IsAdmin bool
}

// Notice is the input of Decide.
type Notice struct {
	Kind        workflow.Kind
	Trigger     Trigger
	Status      workflow.Status
	EntityID    string
	FormType    string
	ObjectName  string
	CadastralID string
	Recipient   Recipient
	NotifyEmail string
}

// Message is a templated mail ready for delivery.
type Message struct {
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	TemplateID int64                  `json:"templateId"`
	Model      map[string]interface{} `json:"templateModel"`
}

var statusTitles = map[workflow.Status]string{
	workflow.StatusCreated:   "Pateiktas",
	workflow.StatusApproved:  "Pavirtintas",
	workflow.StatusRejected:  "Atmestas",
	workflow.StatusSubmitted: "Pakartotinai pateiktas",
	workflow.StatusReturned:  "Grąžintas taisymui",
}

var formTypeTexts = map[string]string{
	"NEW":    "įregistravimo",
	"EDIT":   "redagavimo",
	"REMOVE": "išregistravimo",
}

// Rules holds the static inputs of Decide.
type Rules struct {
	Sender     string
	AdminEmail string
	Hosts      config.HostsConfig
	Templates  config.MailTemplates
}

// NewRules builds Rules from configuration.
func NewRules(cfg *config.Config) Rules {
	return Rules{
		Sender:     cfg.Notification.Sender,
		AdminEmail: cfg.Notification.AdminEmail,
		Hosts:      cfg.Hosts,
		Templates:  cfg.Notification.Templates,
	}
}

// Decide returns the message for n, or false when nothing is sent.
func (r Rules) Decide(n Notice) (Message, bool) {
	switch n.Trigger {
	case TriggerAssigned:
		if n.Kind != workflow.KindForm || n.Recipient.Email == "" || r.Templates.FormAssigned == 0 {
			return Message{}, false
		}
		return r.message(n.Recipient.Email, r.Templates.FormAssigned, map[string]interface{}{
			"actionUrl": r.formURL(n.EntityID, true),
		}), true

	case TriggerFileGenerated:
		if n.Kind != workflow.KindRequest {
			return Message{}, false
		}
		to := firstNonEmpty(n.NotifyEmail, n.Recipient.Email)
		if to == "" {
			return Message{}, false
		}
		return r.message(to, r.Templates.FileGenerated, map[string]interface{}{
			"actionUrl": r.requestURL(n.EntityID, n.Recipient.IsAdmin),
		}), true

	case TriggerStatusChanged:
		if n.Kind == workflow.KindForm {
			return r.decideForm(n)
		}
		return r.decideRequest(n)
	}
	return Message{}, false
}

func (r Rules) decideForm(n Notice) (Message, bool) {
	if n.ObjectName == "" || n.Status == workflow.StatusSubmitted {
		return Message{}, false
	}

	var to string
	isAdmin := n.Recipient.IsAdmin
	switch n.Status {
	case workflow.StatusCreated:
		to, isAdmin = r.AdminEmail, true
	case workflow.StatusReturned, workflow.StatusRejected, workflow.StatusApproved:
		to = n.Recipient.Email
	}
	if to == "" {
		return Message{}, false
	}

	title := statusTitles[n.Status]
	typeText, ok := formTypeTexts[n.FormType]
	if !ok {
		typeText = "teikimo"
	}
	objectName := n.ObjectName
	if n.CadastralID != "" {
		objectName = fmt.Sprintf("%s, %s", objectName, n.CadastralID)
	}

	return r.message(to, r.Templates.FormUpdate, map[string]interface{}{
		"title":      title,
		"titleText":  strings.ToLower(title),
		"typeText":   typeText,
		"objectName": objectName,
		"actionUrl":  r.formURL(n.EntityID, isAdmin),
	}), true
}

func (r Rules) decideRequest(n Notice) (Message, bool) {
	switch n.Status {
	case workflow.StatusReturned, workflow.StatusRejected:
	default:
		// APPROVED is announced once the document exists.
		return Message{}, false
	}
	to := firstNonEmpty(n.NotifyEmail, n.Recipient.Email)
	if to == "" {
		return Message{}, false
	}
	title := statusTitles[n.Status]
	return r.message(to, r.Templates.RequestUpdate, map[string]interface{}{
		"title":     title,
		"titleText": strings.ToLower(title),
		"actionUrl": r.requestURL(n.EntityID, n.Recipient.IsAdmin),
	}), true
}

func (r Rules) message(to string, templateID int64, model map[string]interface{}) Message {
	return Message{
		From:       r.Sender,
		To:         strings.ToLower(to),
		TemplateID: templateID,
		Model:      model,
	}
}

func (r Rules) formURL(id string, isAdmin bool) string {
	path := "duomenu-teikimas"
	if isAdmin {
		path = "teikimo-anketos"
	}
	return fmt.Sprintf("%s/%s/%s", r.Hosts.HostURL(isAdmin), path, id)
}

func (r Rules) requestURL(id string, isAdmin bool) string {
	return fmt.Sprintf("%s/prasymai/%s", r.Hosts.HostURL(isAdmin), id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
