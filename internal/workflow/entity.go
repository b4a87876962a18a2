package workflow

import (
	"encoding/json"
	"time"
)

// Kind distinguishes the two workflow entity types.
type Kind string

const (
	KindForm    Kind = "form"
	KindRequest Kind = "request"
)

// Entity is the part of a form or request the workflow reasons about.
type Entity struct {
	ID            string          `json:"id"`
	Status        Status          `json:"status"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	Tenant        string          `json:"tenant,omitempty"`
	Assignee      string          `json:"assignee,omitempty"`
	RespondedAt   *time.Time      `json:"respondedAt,omitempty"`
	GeneratedFile string          `json:"generatedFile,omitempty"`
	NotifyEmail   string          `json:"notifyEmail,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     *time.Time      `json:"-"`
	DeletedBy     string          `json:"-"`
	Version       int64           `json:"-"`
}

// IsNew reports whether the entity has not been stored yet.
func (e *Entity) IsNew() bool {
	return e == nil || e.ID == ""
}

// Clone returns a copy safe to mutate.
func (e Entity) Clone() Entity {
	c := e
	if e.RespondedAt != nil {
		t := *e.RespondedAt
		c.RespondedAt = &t
	}
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		c.DeletedAt = &t
	}
	if e.Data != nil {
		c.Data = append(json.RawMessage(nil), e.Data...)
	}
	return c
}

// Permissions are the rights an actor holds over an entity in its current state.
type Permissions struct {
	Edit     bool `json:"canEdit"`
	Validate bool `json:"canValidate"`
	Assign   bool `json:"canAssign"`
}

// Any reports whether at least one right is granted.
func (p Permissions) Any() bool {
	return p.Edit || p.Validate || p.Assign
}
