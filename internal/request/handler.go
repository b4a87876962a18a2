package request

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/waterreg/registry-server/internal/request/model"
	"github.com/waterreg/registry-server/internal/system/constants"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/middleware"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/workflow"
)

type requestHandler struct {
	service RequestService
}

func newRequestHandler(service RequestService) *requestHandler {
	return &requestHandler{service: service}
}

// handleCreate handles POST /requests
func (h *requestHandler) handleCreate(c *gin.Context) {
	var request model.CreateRequest
	if !utils.BindJSON(c, &request) {
		return
	}

	response, serviceErr := h.service.CreateRequest(c.Request.Context(), middleware.ActorFrom(c), &request)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// handleList handles GET /requests
func (h *requestHandler) handleList(c *gin.Context) {
	page, pageSize, err := utils.ParsePagination(c)
	if err != nil {
		utils.SendError(c, serviceerror.CustomServiceError(serviceerror.InvalidRequestError, err.Error()))
		return
	}

	var statuses []workflow.Status
	for _, v := range c.QueryArray("status") {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, workflow.Status(strings.ToUpper(part)))
			}
		}
	}

	response, serviceErr := h.service.ListRequests(c.Request.Context(), middleware.ActorFrom(c), model.ListQuery{
		Status:   statuses,
		Page:     page,
		PageSize: pageSize,
	})
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *requestHandler) handleGet(c *gin.Context) {
	response, serviceErr := h.service.GetRequest(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *requestHandler) handleUpdate(c *gin.Context) {
	var request model.UpdateRequest
	if !utils.BindJSON(c, &request) {
		return
	}

	response, serviceErr := h.service.UpdateRequest(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), &request)
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *requestHandler) handleDelete(c *gin.Context) {
	if serviceErr := h.service.DeleteRequest(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *requestHandler) handleHistory(c *gin.Context) {
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

// handleGeneratePdf handles POST /requests/:id/generate-pdf
func (h *requestHandler) handleGeneratePdf(c *gin.Context) {
	response, serviceErr := h.service.RegeneratePdf(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusAccepted, response)
}

// handleJobStatus handles GET /requests/:id/pdf-job
func (h *requestHandler) handleJobStatus(c *gin.Context) {
	job, serviceErr := h.service.JobStatus(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.JSON(http.StatusOK, job)
}

// handlePublicHTML handles GET /public/requests/:id/html?secret=
func (h *requestHandler) handlePublicHTML(c *gin.Context) {
	html, serviceErr := h.service.RenderHTML(c.Request.Context(), c.Param("id"), c.Query("secret"))
	if serviceErr != nil {
		utils.SendError(c, serviceErr)
		return
	}
	c.Data(http.StatusOK, constants.ContentTypeHTML, []byte(html))
}
