package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/waterreg/registry-server/internal/system/log"
)

// Subject is a form or request handled by the controller.
type Subject interface {
	WorkflowEntity() *Entity
	Summary() Summary
}

// GeometryNormalizer is the spatial collaborator used before a commit.
type GeometryNormalizer interface {
	Normalize(raw json.RawMessage) (string, error)
}

// Policy holds the kind-specific hooks the controller calls at fixed points.
type Policy[T Subject] struct {
	Kind Kind
	// RequiresGeometry reports whether the call must carry a geometry.
	RequiresGeometry func(tc *TransitionContext, item T) bool
	// MissingGeometry is the message returned when a required geometry is absent.
	MissingGeometry string
	// ApplyCreateDefaults fills creation-only fields from the actor.
	ApplyCreateDefaults func(tc *TransitionContext, item T)
}

// Controller runs the pre-transition checks and fans committed changes out to listeners.
type Controller[T Subject] struct {
	policy    Policy[T]
	spatial   GeometryNormalizer
	listeners []Listener
	logger    *log.Logger
}

// NewController creates a controller. Listeners run in the order given.
func NewController[T Subject](policy Policy[T], spatial GeometryNormalizer, listeners ...Listener) *Controller[T] {
	return &Controller[T]{
		policy:    policy,
		spatial:   spatial,
		listeners: listeners,
		logger: log.GetLogger().With(
			log.String(log.LoggerKeyComponentName, "WorkflowController"),
			log.String("kind", string(policy.Kind)),
		),
	}
}

// AddListener appends a listener. It must be called before the controller serves traffic.
func (c *Controller[T]) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// PrepareCreate validates a new item and fills its workflow fields.
// It returns the normalized geometry, or "" when none was sent.
func (c *Controller[T]) PrepareCreate(tc *TransitionContext, item T, proposed Status, rawGeometry json.RawMessage) (string, error) {
	e := item.WorkflowEntity()

	geometry, err := c.normalizeGeometry(rawGeometry)
	if err != nil {
		return "", err
	}
	if geometry == "" && c.policy.RequiresGeometry != nil && c.policy.RequiresGeometry(tc, item) {
		return "", &GeometryError{Message: c.policy.MissingGeometry}
	}

	// Creation rules apply even when the caller has already picked an id.
	snapshot := e.Clone()
	snapshot.ID = ""
	if err := ValidateStatus(c.policy.Kind, &snapshot, proposed, tc.Actor); err != nil {
		return "", err
	}

	switch {
	case tc.AutoApprove:
		e.Status = StatusApproved
	case proposed != "":
		e.Status = proposed
	default:
		e.Status = StatusCreated
	}

	e.CreatedBy = tc.Actor.UserID()
	e.Tenant = tc.Actor.TenantID()
	e.CreatedAt = tc.Now
	e.UpdatedAt = tc.Now
	if c.policy.ApplyCreateDefaults != nil {
		c.policy.ApplyCreateDefaults(tc, item)
	}
	return geometry, nil
}

// PrepareUpdate validates the change from current to next and settles next's status.
// next must start as a copy of current with the patch applied, status excluded.
func (c *Controller[T]) PrepareUpdate(tc *TransitionContext, current, next T, proposed Status, rawGeometry json.RawMessage) (string, error) {
	cur := current.WorkflowEntity()
	nxt := next.WorkflowEntity()

	geometry, err := c.normalizeGeometry(rawGeometry)
	if err != nil {
		return "", err
	}

	perms := EvaluatePermissions(c.policy.Kind, cur, tc.Actor)
	if tc.Actor != nil && proposed == "" && perms.Edit {
		// Saving a returned item resubmits it.
		proposed = StatusSubmitted
	}

	if proposed != "" {
		if err := ValidateStatus(c.policy.Kind, cur, proposed, tc.Actor); err != nil {
			return "", err
		}
	} else if tc.Actor != nil && !perms.Edit && !perms.Validate {
		return "", ErrNotPermitted
	}

	nxt.Status = cur.Status
	if proposed != "" {
		nxt.Status = proposed
	}
	if tc.Actor.IsAdmin() && nxt.Status != cur.Status && cur.RespondedAt == nil {
		t := tc.Now
		nxt.RespondedAt = &t
	}
	nxt.UpdatedAt = tc.Now
	return geometry, nil
}

func (c *Controller[T]) normalizeGeometry(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" || c.spatial == nil {
		return "", nil
	}
	g, err := c.spatial.Normalize(raw)
	if err != nil {
		return "", &GeometryError{Message: "Invalid geometry: " + err.Error()}
	}
	return g, nil
}

// Created runs the post-commit phase of a creation.
func (c *Controller[T]) Created(ctx context.Context, tc *TransitionContext, item T) {
	created := item.WorkflowEntity().Clone()
	c.emit(ctx, Event{
		Type:    EventCreated,
		Kind:    c.policy.Kind,
		New:     &created,
		Summary: item.Summary(),
		Comment: tc.Comment,
		Actor:   tc.Actor,
	})
}

// Updated runs the post-commit phase of an update.
func (c *Controller[T]) Updated(ctx context.Context, tc *TransitionContext, previous, current T) {
	old := previous.WorkflowEntity().Clone()
	updated := current.WorkflowEntity().Clone()
	c.emit(ctx, Event{
		Type:    EventUpdated,
		Kind:    c.policy.Kind,
		Old:     &old,
		New:     &updated,
		Summary: current.Summary(),
		Comment: tc.Comment,
		Actor:   tc.Actor,
	})
}

func (c *Controller[T]) emit(ctx context.Context, ev Event) {
	logger := c.logger.WithContext(ctx)
	for _, l := range c.listeners {
		if err := c.safeHandle(ctx, l, ev); err != nil {
			logger.Error("Post-commit listener failed",
				log.String("event", ev.String()),
				log.Error(err))
		}
	}
}

func (c *Controller[T]) safeHandle(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("listener panicked")
			c.logger.Error("Listener panic recovered", log.Any("panic", r), log.String("event", ev.String()))
		}
	}()
	return l.HandleEvent(ctx, ev)
}
