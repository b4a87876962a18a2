package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/waterreg/registry-server/internal/system/constants"
	"github.com/waterreg/registry-server/internal/system/error/apierror"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
)

// StatusCode maps a ServiceError to the HTTP status code written for it.
func StatusCode(err *serviceerror.ServiceError) int {
	if err.Type != serviceerror.ClientErrorType {
		return http.StatusInternalServerError
	}
	switch err.Code {
	case serviceerror.ResourceNotFoundError.Code:
		return http.StatusNotFound
	case serviceerror.ConflictError.Code:
		return http.StatusConflict
	case serviceerror.ForbiddenError.Code:
		return http.StatusForbidden
	case serviceerror.UnauthorizedError.Code:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// SendError writes a ServiceError as an HTTP response with appropriate status code
func SendError(c *gin.Context, err *serviceerror.ServiceError) {
	resp := apierror.ErrorResponse{
		Code:          err.Error,
		Description:   err.ErrorDescription,
		CorrelationID: c.GetString(constants.ContextKeyCorrelationID),
	}
	c.AbortWithStatusJSON(StatusCode(err), resp)
}

// BindJSON decodes the request body and writes an invalid_request error on failure.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		SendError(c, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, "Invalid request body"))
		return false
	}
	return true
}

// ParsePagination reads page and pageSize query parameters, starting pages at 1.
func ParsePagination(c *gin.Context) (page, pageSize int, err error) {
	page, pageSize = 1, constants.DefaultPageSize
	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	if v := c.Query("pageSize"); v != "" {
		if pageSize, err = strconv.Atoi(v); err != nil {
			return 0, 0, err
		}
	}
	return page, pageSize, ValidatePagination(page, pageSize)
}
