package form

import (
	"github.com/gin-gonic/gin"
	"github.com/waterreg/registry-server/internal/form/model"
	"github.com/waterreg/registry-server/internal/history"
	"github.com/waterreg/registry-server/internal/spatial"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/user"
	"github.com/waterreg/registry-server/internal/workflow"
)

// Initialize sets up the form module and registers its routes on api,
// which must already authenticate the actor.
func Initialize(
	api *gin.RouterGroup,
	registry *stores.StoreRegistry,
	users user.UserService,
	historyService history.HistoryService,
	assigned AssignmentNotifier,
	listeners ...workflow.Listener,
) FormService {
	controller := workflow.NewController[*model.Form](Policy, spatial.Normalizer{}, listeners...)
	service := newFormService(registry, controller, users, historyService, assigned)
	handler := newFormHandler(service)

	if api != nil {
		registerRoutes(api, handler)
	}

	return service
}

// registerRoutes registers all form HTTP routes
func registerRoutes(api *gin.RouterGroup, handler *formHandler) {
	forms := api.Group("/forms")
	forms.POST("", handler.handleCreate)
	forms.GET("", handler.handleList)
	forms.GET("/assignees", handler.handleAssignees)
	forms.GET("/:id", handler.handleGet)
	forms.PATCH("/:id", handler.handleUpdate)
	forms.DELETE("/:id", handler.handleDelete)
	forms.GET("/:id/history", handler.handleHistory)
	forms.PATCH("/:id/assignee", handler.handleSetAssignee)
}
