package workflow

import "fmt"

// StatusError rejects a proposed status.
type StatusError struct {
	Value Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Cannot set status with value %s", e.Value)
}

// ValidateStatus decides whether actor a may move entity e to proposed.
// An empty proposal is always accepted. e is nil or has no id when the entity
// is being created.
func ValidateStatus(kind Kind, e *Entity, proposed Status, a *Actor) error {
	if proposed == "" {
		return nil
	}
	if !proposed.IsValid() {
		return &StatusError{Value: proposed}
	}

	if e.IsNew() {
		if allowed(proposed, CreatableStatuses(kind, a)...) {
			return nil
		}
		return &StatusError{Value: proposed}
	}

	p := EvaluatePermissions(kind, e, a)
	if a == nil {
		// Internal callers may move any live entity; terminal ones stay closed.
		if p.Any() {
			return nil
		}
		return &StatusError{Value: proposed}
	}

	switch {
	case p.Edit:
		if proposed == StatusSubmitted {
			return nil
		}
	case p.Validate:
		if allowed(proposed, StatusRejected, StatusReturned, StatusApproved) {
			return nil
		}
	}
	return &StatusError{Value: proposed}
}
