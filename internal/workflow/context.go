package workflow

import "time"

// TransitionContext carries per-call state through the controller phases.
type TransitionContext struct {
	Kind  Kind
	Actor *Actor
	// IsUpdate is set when the call targets an existing entity, i.e. a human
	// or internal transition is in flight rather than a creation.
	IsUpdate bool
	// AutoApprove makes a new request land directly in APPROVED.
	AutoApprove bool
	Comment     string
	Now         time.Time
}

// NewTransitionContext builds the context for a create (entityID empty) or update call.
func NewTransitionContext(kind Kind, actor *Actor, entityID, comment string, now time.Time) *TransitionContext {
	return &TransitionContext{
		Kind:        kind,
		Actor:       actor,
		IsUpdate:    entityID != "",
		AutoApprove: kind == KindRequest && entityID == "" && actor.IsAdmin(),
		Comment:     comment,
		Now:         now,
	}
}
