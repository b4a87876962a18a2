package history

import (
	"context"
	"time"

	"github.com/waterreg/registry-server/internal/history/model"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/workflow"
)

// HistoryService reads and appends audit trail records.
type HistoryService interface {
	Append(ctx context.Context, entry Entry) error
	GetHistory(ctx context.Context, kind workflow.Kind, parentID string, page, pageSize int) (*model.Page, *serviceerror.ServiceError)
}

// Entry is a record to append. Empty Comment and CreatedBy are stored as NULL.
type Entry struct {
	Kind      workflow.Kind
	ParentID  string
	Type      workflow.HistoryType
	Comment   string
	CreatedBy string
	At        time.Time
}

type historyService struct {
	store HistoryStore
}

func newHistoryService(registry *stores.StoreRegistry) HistoryService {
	return &historyService{store: registry.History.(HistoryStore)}
}

// Append writes a single record.
func (s *historyService) Append(ctx context.Context, entry Entry) error {
	record := &model.Record{
		ID:        utils.NewID(),
		Kind:      entry.Kind,
		ParentID:  entry.ParentID,
		Type:      entry.Type,
		Comment:   optional(entry.Comment),
		CreatedBy: optional(entry.CreatedBy),
		CreatedAt: entry.At,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return err
	}
	log.GetLogger().WithContext(ctx).Debug("History record appended",
		log.String("kind", string(entry.Kind)),
		log.String("parent_id", entry.ParentID),
		log.String("type", string(entry.Type)))
	return nil
}

// GetHistory returns one page of an entity's history. Visibility of the parent is checked by the caller.
func (s *historyService) GetHistory(ctx context.Context, kind workflow.Kind, parentID string, page, pageSize int) (*model.Page, *serviceerror.ServiceError) {
	p, err := utils.NewPage(page, pageSize)
	if err != nil {
		return nil, serviceerror.CustomServiceError(serviceerror.ValidationError, err.Error())
	}

	records, total, err := s.store.List(ctx, kind, parentID, p.Size, p.Offset())
	if err != nil {
		log.GetLogger().WithContext(ctx).Error("Failed to list history", log.String("parent_id", parentID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}

	return &model.Page{
		Rows:       records,
		Total:      total,
		Page:       p.Number,
		PageSize:   p.Size,
		TotalPages: p.TotalPages(total),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
