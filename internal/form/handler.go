package form

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/waterreg/registry-server/internal/form/model"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/middleware"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/workflow"
)

// formHandler handles HTTP requests for forms
type formHandler struct {
	service FormService
}

func newFormHandler(service FormService) *formHandler {
	return &formHandler{service: service}
}

// handleCreate handles POST /forms
func (h *formHandler) handleCreate(c *gin.Context) {
	var request model.CreateRequest
	if !utils.BindJSON(c, &request) {
		return
	}

	response, serviceErr := h.service.CreateForm(c.Request.Context(), middleware.ActorFrom(c), &request)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// handleList handles GET /forms
func (h *formHandler) handleList(c *gin.Context) {
	page, pageSize, err := utils.ParsePagination(c)
	if err != nil {
		utils.SendError(c, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, err.Error()))
		return
	}

	query := model.ListQuery{
		Status:   parseStatuses(c.QueryArray("status")),
		Type:     model.FormType(c.Query("type")),
		Page:     page,
		PageSize: pageSize,
	}
	response, serviceErr := h.service.ListForms(c.Request.Context(), middleware.ActorFrom(c), query)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

// handleGet handles GET /forms/:id
func (h *formHandler) handleGet(c *gin.Context) {
	response, serviceErr := h.service.GetForm(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

// handleUpdate handles PATCH /forms/:id
func (h *formHandler) handleUpdate(c *gin.Context) {
	var request model.UpdateRequest
	if !utils.BindJSON(c, &request) {
		return
	}

	response, serviceErr := h.service.UpdateForm(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), &request)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

// handleDelete handles DELETE /forms/:id
func (h *formHandler) handleDelete(c *gin.Context) {
	if serviceErr := h.service.DeleteForm(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleHistory handles GET /forms/:id/history
func (h *formHandler) handleHistory(c *gin.Context) {
	page, pageSize, err := utils.ParsePagination(c)
	if err != nil {
		utils.SendError(c, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, err.Error()))
		return
	}

	response, serviceErr := h.service.GetHistory(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), page, pageSize)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

// handleSetAssignee handles PATCH /forms/:id/assignee
func (h *formHandler) handleSetAssignee(c *gin.Context) {
	var request model.AssigneeRequest
	if !utils.BindJSON(c, &request) {
		return
	}

	response, serviceErr := h.service.SetAssignee(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), request.Assignee)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

// handleAssignees handles GET /forms/assignees
func (h *formHandler) handleAssignees(c *gin.Context) {
	users, serviceErr := h.service.GetAssignees(c.Request.Context(), middleware.ActorFrom(c))
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": users, "total": len(users)})
}

// parseStatuses accepts repeated and comma separated status parameters.
func parseStatuses(values []string) []workflow.Status {
	var out []workflow.Status
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, workflow.Status(strings.ToUpper(part)))
			}
		}
	}
	return out
}
