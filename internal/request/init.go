package request

import (
	"github.com/gin-gonic/gin"
	"github.com/waterreg/registry-server/internal/document"
	"github.com/waterreg/registry-server/internal/history"
	"github.com/waterreg/registry-server/internal/request/model"
	"github.com/waterreg/registry-server/internal/spatial"
	"github.com/waterreg/registry-server/internal/system/middleware"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/workflow"
)

// Initialize sets up the request module. api must authenticate the actor;
// public serves the secret-protected document page.
func Initialize(
	api *gin.RouterGroup,
	public *gin.RouterGroup,
	registry *stores.StoreRegistry,
	historyService history.HistoryService,
	pipeline *document.Pipeline,
	listeners ...workflow.Listener,
) RequestService {
	controller := workflow.NewController[*model.Request](Policy, spatial.Normalizer{}, listeners...)
	service := newRequestService(registry, controller, historyService, pipeline)
	pipeline.Bind(service, service)

	handler := newRequestHandler(service)
	if api != nil {
		registerRoutes(api, handler)
	}
	if public != nil {
		public.GET("/requests/:id/html", handler.handlePublicHTML)
	}

	return service
}

func registerRoutes(api *gin.RouterGroup, handler *requestHandler) {
	requests := api.Group("/requests")
	requests.POST("", handler.handleCreate)
	requests.GET("", handler.handleList)
	requests.GET("/:id", handler.handleGet)
	requests.PATCH("/:id", handler.handleUpdate)
	requests.DELETE("/:id", handler.handleDelete)
	requests.GET("/:id/history", handler.handleHistory)
	requests.POST("/:id/generate-pdf", middleware.RequireAdmin(), handler.handleGeneratePdf)
	requests.GET("/:id/pdf-job", middleware.RequireAdmin(), handler.handleJobStatus)
}
