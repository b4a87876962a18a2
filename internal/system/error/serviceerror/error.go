package serviceerror

import "github.com/waterreg/registry-server/internal/system/error/codes"

type ServiceErrorType string

const (
	ClientErrorType ServiceErrorType = "client_error"
	ServerErrorType ServiceErrorType = "server_error"
)

type ServiceError struct {
	Code             string           `json:"code"`
	Type             ServiceErrorType `json:"type"`
	Error            string           `json:"error"`
	ErrorDescription string           `json:"error_description,omitempty"`
}

var (
	InternalServerError = ServiceError{
		Type:             ServerErrorType,
		Code:             codes.InternalServerError,
		Error:            "internal_server_error",
		ErrorDescription: "An unexpected error occurred",
	}

	DatabaseError = ServiceError{
		Type:             ServerErrorType,
		Code:             codes.DatabaseError,
		Error:            "database_error",
		ErrorDescription: "A database error occurred",
	}

	InvalidRequestError = ServiceError{
		Type:             ClientErrorType,
		Code:             codes.InvalidRequest,
		Error:            "invalid_request",
		ErrorDescription: "The request is invalid",
	}

	UnauthorizedError = ServiceError{
		Type:             ClientErrorType,
		Code:             codes.Unauthorized,
		Error:            "unauthorized",
		ErrorDescription: "Authentication is required",
	}

	// ForbiddenError is returned when the actor has no rights for the requested mutation.
	ForbiddenError = ServiceError{
		Type:             ClientErrorType,
		Code:             codes.Forbidden,
		Error:            "forbidden",
		ErrorDescription: "Operation is not permitted",
	}

	ResourceNotFoundError = ServiceError{
		Type:             ClientErrorType,
		Code:             codes.ResourceNotFound,
		Error:            "resource_not_found",
		ErrorDescription: "Resource not found",
	}

	ConflictError = ServiceError{
		Type:             ClientErrorType,
		Code:             codes.ConflictError,
		Error:            "conflict",
		ErrorDescription: "Request conflicts with current state",
	}

	ValidationError = ServiceError{
		Type:             ClientErrorType,
		Code:             codes.ValidationError,
		Error:            "validation_error",
		ErrorDescription: "Validation failed",
	}
)

func CustomServiceError(baseError ServiceError, description string) *ServiceError {
	return &ServiceError{
		Type:             baseError.Type,
		Code:             baseError.Code,
		Error:            baseError.Error,
		ErrorDescription: description,
	}
}

// Is reports whether err was built from baseError.
func (e *ServiceError) Is(baseError ServiceError) bool {
	return e != nil && e.Code == baseError.Code
}
