package notification

import (
	"context"

	"github.com/waterreg/registry-server/internal/system/executor"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

// UserResolver looks up the creator of an entity.
type UserResolver interface {
	Resolve(ctx context.Context, id string) (*model.User, error)
}

// Dispatcher turns committed workflow events into mail. Delivery runs on the
// executor so callers never wait for it.
type Dispatcher struct {
	rules    Rules
	users    UserResolver
	notifier Notifier
	exec     executor.Executor
	logger   *log.Logger
}

var _ workflow.Listener = (*Dispatcher)(nil)

func NewDispatcher(rules Rules, users UserResolver, notifier Notifier, exec executor.Executor) *Dispatcher {
	return &Dispatcher{
		rules:    rules,
		users:    users,
		notifier: notifier,
		exec:     exec,
		logger:   log.GetLogger().With(log.String(log.LoggerKeyComponentName, "NotificationDispatcher")),
	}
}

// HandleEvent schedules the notices of ev.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev workflow.Event) error {
	var triggers []Trigger
	if ev.StatusChanged() {
		triggers = append(triggers, TriggerStatusChanged)
	}
	if ev.FileGenerated() {
		triggers = append(triggers, TriggerFileGenerated)
	}
	if len(triggers) == 0 {
		return nil
	}

	entity := ev.New.Clone()
	summary := ev.Summary
	d.exec.Submit(ctx, "notify:"+ev.String(), func(ctx context.Context) error {
		recipient, err := d.creator(ctx, entity.CreatedBy)
		if err != nil {
			return err
		}
		for _, t := range triggers {
			d.deliver(ctx, Notice{
				Kind:        ev.Kind,
				Trigger:     t,
				Status:      entity.Status,
				EntityID:    entity.ID,
				FormType:    summary.FormType,
				ObjectName:  summary.ObjectName,
				CadastralID: summary.CadastralID,
				Recipient:   recipient,
				NotifyEmail: entity.NotifyEmail,
			})
		}
		return nil
	})
	return nil
}

// NotifyAssigned tells a newly assigned admin about the form.
func (d *Dispatcher) NotifyAssigned(ctx context.Context, formID string, assignee *model.User) {
	if assignee == nil || assignee.Email == "" {
		return
	}
	recipient := Recipient{Email: assignee.Email, IsAdmin: true}
	d.exec.Submit(ctx, "notify:form.assigned("+formID+")", func(ctx context.Context) error {
		d.deliver(ctx, Notice{
			Kind:      workflow.KindForm,
			Trigger:   TriggerAssigned,
			EntityID:  formID,
			Recipient: recipient,
		})
		return nil
	})
}

func (d *Dispatcher) creator(ctx context.Context, userID string) (Recipient, error) {
	u, err := d.users.Resolve(ctx, userID)
	if err != nil || u == nil {
		return Recipient{}, err
	}
	return Recipient{Email: u.Email, IsAdmin: u.IsAdmin()}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n Notice) {
	msg, ok := d.rules.Decide(n)
	if !ok {
		return
	}
	if err := d.notifier.Send(ctx, msg); err != nil {
		d.logger.WithContext(ctx).Warn("Failed to send notification",
			log.String("entity_id", n.EntityID),
			log.String("trigger", string(n.Trigger)),
			log.Error(err))
	}
}
