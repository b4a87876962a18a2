package workflow

import (
	"context"
	"fmt"
)

// EventType distinguishes creation from update events.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
)

// Summary carries the descriptive fields listeners need besides the workflow state.
type Summary struct {
	FormType    string
	ObjectName  string
	CadastralID string
}

// Event describes a committed change.
type Event struct {
	Type    EventType
	Kind    Kind
	Old     *Entity
	New     *Entity
	Summary Summary
	Comment string
	Actor   *Actor
}

// StatusChanged reports whether the commit moved the entity to another status.
func (e Event) StatusChanged() bool {
	if e.Type == EventCreated {
		return true
	}
	return e.Old != nil && e.New != nil && e.Old.Status != e.New.Status
}

// FileGenerated reports whether generatedFile went from empty to non-empty.
func (e Event) FileGenerated() bool {
	return e.Type == EventUpdated && e.Old != nil && e.New != nil &&
		e.Old.GeneratedFile == "" && e.New.GeneratedFile != ""
}

// AutoApproved reports whether the entity was created directly in APPROVED.
func (e Event) AutoApproved() bool {
	return e.Type == EventCreated && e.New != nil && e.New.Status == StatusApproved
}

func (e Event) String() string {
	id := ""
	if e.New != nil {
		id = e.New.ID
	}
	return fmt.Sprintf("%s.%s(%s)", e.Kind, e.Type, id)
}

// Listener reacts to committed changes. Errors are logged by the controller, never propagated.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event) error

func (f ListenerFunc) HandleEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
