package workflow

import (
	"errors"

	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
)

// ErrNotPermitted is returned when the actor holds no right over the entity.
var ErrNotPermitted = errors.New("operation is not permitted")

// GeometryError rejects a missing or malformed geometry payload.
type GeometryError struct {
	Message string
}

func (e *GeometryError) Error() string {
	return e.Message
}

// ToServiceError maps controller errors onto the service error taxonomy.
func ToServiceError(err error) *serviceerror.ServiceError {
	var statusErr *StatusError
	var geomErr *GeometryError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &statusErr):
		return serviceerror.CustomServiceError(serviceerror.ValidationError, statusErr.Error())
	case errors.As(err, &geomErr):
		return serviceerror.CustomServiceError(serviceerror.ValidationError, geomErr.Error())
	case errors.Is(err, ErrNotPermitted):
		return serviceerror.CustomServiceError(serviceerror.ForbiddenError, err.Error())
	default:
		return &serviceerror.InternalServerError
	}
}
