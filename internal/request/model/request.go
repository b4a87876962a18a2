package model

import (
	"encoding/json"

	"github.com/waterreg/registry-server/internal/workflow"
)

// ObjectTypeCadastralID identifies objects by their cadastral id.
const ObjectTypeCadastralID = "CADASTRAL_ID"

// Object is a registry object the extract is requested for.
type Object struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Data holds the optional request flags.
type Data struct {
	Extended bool `json:"extended"`
}

// Request asks for an extract from the registry.
type Request struct {
	workflow.Entity
	Purpose  string          `json:"purpose,omitempty"`
	Delivery string          `json:"delivery,omitempty"`
	Objects  []Object        `json:"objects"`
	Geom     json.RawMessage `json:"geom,omitempty"`
}

func (r *Request) WorkflowEntity() *workflow.Entity {
	return &r.Entity
}

func (r *Request) Summary() workflow.Summary {
	return workflow.Summary{}
}

// Flags decodes Data. Unknown or malformed data yields the zero value.
func (r *Request) Flags() Data {
	var d Data
	if len(r.Data) > 0 {
		_ = json.Unmarshal(r.Data, &d)
	}
	return d
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	c := *r
	c.Entity = r.Entity.Clone()
	if r.Geom != nil {
		c.Geom = append(json.RawMessage(nil), r.Geom...)
	}
	if r.Objects != nil {
		c.Objects = append([]Object(nil), r.Objects...)
	}
	return &c
}

// CreateRequest is the body of POST /requests.
type CreateRequest struct {
	Purpose     string          `json:"purpose"`
	Delivery    string          `json:"delivery"`
	Objects     []Object        `json:"objects"`
	Geom        json.RawMessage `json:"geom"`
	NotifyEmail string          `json:"notifyEmail"`
	Data        *Data           `json:"data"`
	Status      workflow.Status `json:"status"`
}

// UpdateRequest is the body of PATCH /requests/:id. Nil fields are left unchanged.
type UpdateRequest struct {
	Purpose     *string         `json:"purpose"`
	Delivery    *string         `json:"delivery"`
	Objects     []Object        `json:"objects"`
	Geom        json.RawMessage `json:"geom"`
	NotifyEmail *string         `json:"notifyEmail"`
	Data        *Data           `json:"data"`
	Status      workflow.Status `json:"status"`
	Comment     string          `json:"comment"`
}

// Response is a request with the caller's rights over it.
type Response struct {
	*Request
	CanEdit     bool `json:"canEdit"`
	CanValidate bool `json:"canValidate"`
}

// ListQuery filters GET /requests.
type ListQuery struct {
	Status   []workflow.Status
	Page     int
	PageSize int
}

// ListResponse is one page of requests.
type ListResponse struct {
	Rows       []Response `json:"rows"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}

// GenerateResponse is returned when PDF generation is scheduled.
type GenerateResponse struct {
	Generating bool `json:"generating"`
}
