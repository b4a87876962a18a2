package model

import (
	"time"

	"github.com/waterreg/registry-server/internal/workflow"
)

// Record is one immutable audit trail entry of a form or request.
type Record struct {
	ID        string               `json:"id"`
	Kind      workflow.Kind        `json:"-"`
	ParentID  string               `json:"parentId"`
	Type      workflow.HistoryType `json:"type"`
	Comment   *string              `json:"comment,omitempty"`
	CreatedBy *string              `json:"createdBy,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Page is one page of a history listing.
type Page struct {
	Rows       []Record `json:"rows"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}
