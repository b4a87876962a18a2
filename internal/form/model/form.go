package model

import (
	"encoding/json"

	"github.com/waterreg/registry-server/internal/workflow"
)

// FormType is what the provider asks to do with the registered object.
type FormType string

const (
	FormTypeNew    FormType = "NEW"
	FormTypeEdit   FormType = "EDIT"
	FormTypeRemove FormType = "REMOVE"
)

// ProviderType is the relation of the provider to the object.
type ProviderType string

const (
	ProviderTypeOwner   ProviderType = "OWNER"
	ProviderTypeManager ProviderType = "MANAGER"
	ProviderTypeOther   ProviderType = "OTHER"
)

// ObjectTypes lists the water objects a form may describe.
var ObjectTypes = []string{
	"RIVER",
	"CANAL",
	"INTERMEDIATE_WATER_BODY",
	"TERRITORIAL_WATER_BODY",
	"NATURAL_LAKE",
	"PONDED_LAKE",
	"POND",
	"ISOLATED_WATER_BODY",
	"EARTH_DAM",
	"WATER_EXCESS_CULVERT",
	"HYDRO_POWER_PLANT",
	"FISH_PASS",
}

// File is an attachment uploaded with the form.
type File struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// Form is a data-provision form for the water bodies registry.
type Form struct {
	workflow.Entity
	Type         FormType        `json:"type"`
	ObjectType   string          `json:"objectType"`
	ObjectName   string          `json:"objectName"`
	CadastralID  string          `json:"cadastralId,omitempty"`
	Geom         json.RawMessage `json:"geom,omitempty"`
	Description  string          `json:"description,omitempty"`
	ProviderType ProviderType    `json:"providerType"`
	ProvidedBy   string          `json:"providedBy,omitempty"`
	Files        []File          `json:"files"`
}

func (f *Form) WorkflowEntity() *workflow.Entity {
	return &f.Entity
}

func (f *Form) Summary() workflow.Summary {
	return workflow.Summary{
		FormType:    string(f.Type),
		ObjectName:  f.ObjectName,
		CadastralID: f.CadastralID,
	}
}

// Clone returns a deep copy of the form.
func (f *Form) Clone() *Form {
	c := *f
	c.Entity = f.Entity.Clone()
	if f.Geom != nil {
		c.Geom = append(json.RawMessage(nil), f.Geom...)
	}
	if f.Files != nil {
		c.Files = append([]File(nil), f.Files...)
	}
	return &c
}

// CreateRequest is the body of POST /forms.
type CreateRequest struct {
	Type         FormType        `json:"type"`
	ObjectType   string          `json:"objectType" binding:"required"`
	ObjectName   string          `json:"objectName" binding:"required"`
	CadastralID  string          `json:"cadastralId"`
	Geom         json.RawMessage `json:"geom"`
	Description  string          `json:"description"`
	ProviderType ProviderType    `json:"providerType"`
	ProvidedBy   string          `json:"providedBy"`
	Files        []File          `json:"files"`
	Status       workflow.Status `json:"status"`
	Data         json.RawMessage `json:"data"`
}

// UpdateRequest is the body of PATCH /forms/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	ObjectType   *string         `json:"objectType"`
	ObjectName   *string         `json:"objectName"`
	CadastralID  *string         `json:"cadastralId"`
	Geom         json.RawMessage `json:"geom"`
	Description  *string         `json:"description"`
	ProviderType *ProviderType   `json:"providerType"`
	ProvidedBy   *string         `json:"providedBy"`
	Files        []File          `json:"files"`
	Status       workflow.Status `json:"status"`
	Comment      string          `json:"comment"`
	Data         json.RawMessage `json:"data"`
}

// AssigneeRequest is the body of PATCH /forms/:id/assignee. An empty assignee unassigns.
type AssigneeRequest struct {
	Assignee string `json:"assignee"`
}

// Response is a form with the caller's rights over it.
type Response struct {
	*Form
	workflow.Permissions
}

// ListQuery filters GET /forms.
type ListQuery struct {
	Status   []workflow.Status
	Type     FormType
	Page     int
	PageSize int
}

// ListResponse is one page of forms.
type ListResponse struct {
	Rows       []Response `json:"rows"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}
