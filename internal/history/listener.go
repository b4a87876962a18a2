package history

import (
	"context"
	"errors"

	"github.com/waterreg/registry-server/internal/workflow"
)

// Listener appends the audit trail records for committed workflow events.
type Listener struct {
	service HistoryService
}

var _ workflow.Listener = (*Listener)(nil)

// NewListener creates the audit trail listener.
func NewListener(service HistoryService) *Listener {
	return &Listener{service: service}
}

// HandleEvent writes one record per accepted transition, plus the CREATED,
// auto-approval and FILE_GENERATED records.
func (l *Listener) HandleEvent(ctx context.Context, ev workflow.Event) error {
	var errs []error
	appendEntry := func(t workflow.HistoryType, comment, createdBy string) {
		err := l.service.Append(ctx, Entry{
			Kind:      ev.Kind,
			ParentID:  ev.New.ID,
			Type:      t,
			Comment:   comment,
			CreatedBy: createdBy,
			At:        ev.New.UpdatedAt,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	actorID := ev.Actor.UserID()

	switch ev.Type {
	case workflow.EventCreated:
		appendEntry(workflow.HistoryCreated, "", actorID)
		if ev.AutoApproved() {
			appendEntry(workflow.HistoryApproved, workflow.AutoApproveComment, actorID)
		}
	case workflow.EventUpdated:
		if ev.StatusChanged() {
			if t, ok := workflow.HistoryTypeFor(ev.New.Status); ok {
				appendEntry(t, ev.Comment, actorID)
			}
		}
		if ev.FileGenerated() {
			appendEntry(workflow.HistoryFileGenerated, "", "")
		}
	}
	return errors.Join(errs...)
}
