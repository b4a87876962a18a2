package request

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/waterreg/registry-server/internal/document"
	"github.com/waterreg/registry-server/internal/history"
	historymodel "github.com/waterreg/registry-server/internal/history/model"
	"github.com/waterreg/registry-server/internal/request/model"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/workflow"
)

// RequestService defines the contract for request business operations
type RequestService interface {
	CreateRequest(ctx context.Context, actor *workflow.Actor, request *model.CreateRequest) (*model.Response, *serviceerror.ServiceError)
	GetRequest(ctx context.Context, actor *workflow.Actor, id string) (*model.Response, *serviceerror.ServiceError)
	ListRequests(ctx context.Context, actor *workflow.Actor, query model.ListQuery) (*model.ListResponse, *serviceerror.ServiceError)
	UpdateRequest(ctx context.Context, actor *workflow.Actor, id string, request *model.UpdateRequest) (*model.Response, *serviceerror.ServiceError)
	DeleteRequest(ctx context.Context, actor *workflow.Actor, id string) *serviceerror.ServiceError
	GetHistory(ctx context.Context, actor *workflow.Actor, id string, page, pageSize int) (*historymodel.Page, *serviceerror.ServiceError)
	RegeneratePdf(ctx context.Context, actor *workflow.Actor, id string) (*model.GenerateResponse, *serviceerror.ServiceError)
	JobStatus(ctx context.Context, actor *workflow.Actor, id string) (*document.Job, *serviceerror.ServiceError)
	RenderHTML(ctx context.Context, id, secret string) (string, *serviceerror.ServiceError)

	document.SourceLoader
	document.FileRecorder
}

// Policy is the workflow policy of requests.
var Policy = workflow.Policy[*model.Request]{
	Kind: workflow.KindRequest,
	RequiresGeometry: func(_ *workflow.TransitionContext, r *model.Request) bool {
		return len(r.Objects) == 0
	},
	MissingGeometry: "No geometry was passed",
	ApplyCreateDefaults: func(tc *workflow.TransitionContext, r *model.Request) {
		if r.NotifyEmail == "" && tc.Actor != nil {
			r.NotifyEmail = tc.Actor.User.Email
		}
	},
}

type requestService struct {
	stores     *stores.StoreRegistry
	controller *workflow.Controller[*model.Request]
	history    history.HistoryService
	pipeline   *document.Pipeline
	clock      utils.Clock
	logger     *log.Logger
}

func newRequestService(registry *stores.StoreRegistry, controller *workflow.Controller[*model.Request],
	historyService history.HistoryService, pipeline *document.Pipeline) *requestService {
	return &requestService{
		stores:     registry,
		controller: controller,
		history:    historyService,
		pipeline:   pipeline,
		clock:      utils.SystemClock,
		logger:     log.GetLogger().With(log.String(log.LoggerKeyComponentName, "RequestService")),
	}
}

func (s *requestService) store() RequestStore {
	return s.stores.Request.(RequestStore)
}

// CreateRequest validates and stores a new request. Requests filed by admins are approved at once.
func (s *requestService) CreateRequest(ctx context.Context, actor *workflow.Actor, request *model.CreateRequest) (*model.Response, *serviceerror.ServiceError) {
	if svcErr := validateObjects(request.Objects); svcErr != nil {
		return nil, svcErr
	}
	if request.NotifyEmail != "" {
		if err := utils.ValidateEmail(request.NotifyEmail); err != nil {
			return nil, serviceerror.CustomServiceError(serviceerror.ValidationError, err.Error())
		}
	}

	data := model.Data{}
	if request.Data != nil {
		data = *request.Data
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, &serviceerror.InternalServerError
	}

	entity := &model.Request{
		Entity: workflow.Entity{
			NotifyEmail: request.NotifyEmail,
			Data:        dataJSON,
		},
		Purpose:  request.Purpose,
		Delivery: request.Delivery,
		Objects:  request.Objects,
	}

	tc := workflow.NewTransitionContext(workflow.KindRequest, actor, "", "", s.clock())
	geometry, err := s.controller.PrepareCreate(tc, entity, request.Status, request.Geom)
	if err != nil {
		return nil, workflow.ToServiceError(err)
	}
	entity.ID = utils.NewID()

	err = s.stores.ExecuteTransaction(ctx, []func(tx dbmodel.TxInterface) error{
		func(tx dbmodel.TxInterface) error {
			return s.store().Create(tx, entity, geometry)
		},
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to create request", log.Error(err))
		return nil, serviceerror.CustomServiceError(serviceerror.DatabaseError,
			fmt.Sprintf("failed to create request: %v", err))
	}

	s.controller.Created(ctx, tc, entity)
	return s.reload(ctx, actor, entity.ID)
}

// GetRequest returns a visible request with the caller's permissions
func (s *requestService) GetRequest(ctx context.Context, actor *workflow.Actor, id string) (*model.Response, *serviceerror.ServiceError) {
	entity, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return nil, svcErr
	}
	return buildResponse(entity, actor), nil
}

// ListRequests returns one page of the requests visible to the caller
func (s *requestService) ListRequests(ctx context.Context, actor *workflow.Actor, query model.ListQuery) (*model.ListResponse, *serviceerror.ServiceError) {
	page, err := utils.NewPage(query.Page, query.PageSize)
	if err != nil {
		return nil, serviceerror.CustomServiceError(serviceerror.ValidationError, err.Error())
	}
	for _, st := range query.Status {
		if !st.IsValid() {
			return nil, serviceerror.CustomServiceError(serviceerror.ValidationError,
				fmt.Sprintf("invalid status filter: %s", st))
		}
	}

	requests, total, err := s.store().List(ctx, Filter{
		Visibility: workflow.VisibilityFor(actor),
		Status:     query.Status,
		Limit:      page.Size,
		Offset:     page.Offset(),
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to list requests", log.Error(err))
		return nil, &serviceerror.DatabaseError
	}

	rows := make([]model.Response, 0, len(requests))
	for i := range requests {
		rows = append(rows, *buildResponse(&requests[i], actor))
	}
	return &model.ListResponse{
		Rows:       rows,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: page.TotalPages(total),
	}, nil
}

// UpdateRequest applies a patch and, if requested, a status transition
func (s *requestService) UpdateRequest(ctx context.Context, actor *workflow.Actor, id string, request *model.UpdateRequest) (*model.Response, *serviceerror.ServiceError) {
	current, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return nil, svcErr
	}

	next := current.Clone()
	if svcErr := applyPatch(next, request); svcErr != nil {
		return nil, svcErr
	}

	tc := workflow.NewTransitionContext(workflow.KindRequest, actor, id, utils.SanitizeComment(request.Comment), s.clock())
	updated, svcErr := s.commitUpdate(ctx, tc, current, next, request.Status, request.Geom)
	if svcErr != nil {
		return nil, svcErr
	}
	return buildResponse(updated, actor), nil
}

// DeleteRequest soft-deletes a request. Owners may delete it before it is approved or rejected.
func (s *requestService) DeleteRequest(ctx context.Context, actor *workflow.Actor, id string) *serviceerror.ServiceError {
	entity, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return svcErr
	}

	ownerMayDelete := workflow.IsOwner(&entity.Entity, actor) && !entity.Status.IsTerminal()
	if !actor.IsSystem() && !actor.IsAdmin() && !ownerMayDelete {
		return serviceerror.CustomServiceError(serviceerror.ForbiddenError, "Request cannot be deleted")
	}

	now := s.clock()
	entity.DeletedAt = &now
	entity.DeletedBy = actor.UserID()
	return s.persist(ctx, func(tx dbmodel.TxInterface) error {
		return s.store().Delete(tx, entity)
	})
}

// GetHistory returns the audit trail of a visible request
func (s *requestService) GetHistory(ctx context.Context, actor *workflow.Actor, id string, page, pageSize int) (*historymodel.Page, *serviceerror.ServiceError) {
	if _, svcErr := s.loadVisible(ctx, actor, id); svcErr != nil {
		return nil, svcErr
	}
	return s.history.GetHistory(ctx, workflow.KindRequest, id, page, pageSize)
}

// RegeneratePdf drops the current document and schedules a new one
func (s *requestService) RegeneratePdf(ctx context.Context, actor *workflow.Actor, id string) (*model.GenerateResponse, *serviceerror.ServiceError) {
	if !actor.IsAdmin() {
		return nil, serviceerror.CustomServiceError(serviceerror.ForbiddenError, "Admin access is required")
	}
	entity, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return nil, svcErr
	}
	if entity.Status != workflow.StatusApproved {
		return nil, serviceerror.CustomServiceError(serviceerror.ValidationError, "Only approved requests have a document")
	}

	if err := s.pipeline.Regenerate(ctx, id); err != nil {
		s.logger.WithContext(ctx).Error("Failed to regenerate document", log.String("request_id", id), log.Error(err))
		return nil, &serviceerror.InternalServerError
	}
	return &model.GenerateResponse{Generating: true}, nil
}

// JobStatus returns the tracked generation job of a request
func (s *requestService) JobStatus(ctx context.Context, actor *workflow.Actor, id string) (*document.Job, *serviceerror.ServiceError) {
	if !actor.IsAdmin() {
		return nil, serviceerror.CustomServiceError(serviceerror.ForbiddenError, "Admin access is required")
	}
	if _, svcErr := s.loadVisible(ctx, actor, id); svcErr != nil {
		return nil, svcErr
	}

	job, err := s.pipeline.JobStatus(ctx, id)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to read job state", log.String("request_id", id), log.Error(err))
		return nil, &serviceerror.InternalServerError
	}
	if job == nil {
		return nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, "No document job for request")
	}
	return job, nil
}

// RenderHTML renders the public document page. A wrong secret looks like a missing request.
func (s *requestService) RenderHTML(ctx context.Context, id, secret string) (string, *serviceerror.ServiceError) {
	notFound := serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, fmt.Sprintf("request not found: %s", id))

	src, err := s.LoadSource(ctx, id)
	if err != nil {
		if errors.Is(err, document.ErrSourceNotFound) {
			return "", notFound
		}
		s.logger.WithContext(ctx).Error("Failed to load request", log.String("request_id", id), log.Error(err))
		return "", &serviceerror.DatabaseError
	}
	if !document.VerifySecret(src.ID, src.CreatedAt, secret) {
		return "", notFound
	}

	html, err := s.pipeline.RenderHTML(ctx, src)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to render request", log.String("request_id", id), log.Error(err))
		return "", &serviceerror.InternalServerError
	}
	return html, nil
}

// LoadSource returns the document data of a request.
func (s *requestService) LoadSource(ctx context.Context, id string) (*document.Source, error) {
	entity, err := s.store().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, document.ErrSourceNotFound
	}

	objects := make([]document.SourceObject, 0, len(entity.Objects))
	for _, o := range entity.Objects {
		objects = append(objects, document.SourceObject{ID: o.ID, Type: o.Type})
	}
	return &document.Source{
		ID:            entity.ID,
		CreatedAt:     entity.CreatedAt,
		CreatedBy:     entity.CreatedBy,
		Tenant:        entity.Tenant,
		Purpose:       entity.Purpose,
		Extended:      entity.Flags().Extended,
		Objects:       objects,
		GeneratedFile: entity.GeneratedFile,
	}, nil
}

// SaveGeneratedFile records the document URL as a system update.
func (s *requestService) SaveGeneratedFile(ctx context.Context, id, url string) error {
	return s.systemUpdate(ctx, id, func(r *model.Request) { r.GeneratedFile = url })
}

// ClearGeneratedFile forgets the document URL as a system update.
func (s *requestService) ClearGeneratedFile(ctx context.Context, id string) error {
	return s.systemUpdate(ctx, id, func(r *model.Request) { r.GeneratedFile = "" })
}

func (s *requestService) systemUpdate(ctx context.Context, id string, mutate func(r *model.Request)) error {
	current, err := s.store().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return document.ErrSourceNotFound
	}

	next := current.Clone()
	mutate(next)
	tc := workflow.NewTransitionContext(workflow.KindRequest, nil, id, "", s.clock())
	if _, svcErr := s.commitUpdate(ctx, tc, current, next, "", nil); svcErr != nil {
		return fmt.Errorf("system update of request %s failed: %s", id, svcErr.ErrorDescription)
	}
	return nil
}

func (s *requestService) commitUpdate(ctx context.Context, tc *workflow.TransitionContext, current, next *model.Request,
	proposed workflow.Status, rawGeometry json.RawMessage) (*model.Request, *serviceerror.ServiceError) {
	geometry, err := s.controller.PrepareUpdate(tc, current, next, proposed, rawGeometry)
	if err != nil {
		return nil, workflow.ToServiceError(err)
	}

	if svcErr := s.persist(ctx, func(tx dbmodel.TxInterface) error {
		return s.store().Update(tx, next, geometry)
	}); svcErr != nil {
		return nil, svcErr
	}

	s.controller.Updated(ctx, tc, current, next)

	updated, err := s.store().GetByID(ctx, next.ID)
	if err != nil || updated == nil {
		s.logger.WithContext(ctx).Error("Failed to reload request", log.String("request_id", next.ID), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	return updated, nil
}

func (s *requestService) loadVisible(ctx context.Context, actor *workflow.Actor, id string) (*model.Request, *serviceerror.ServiceError) {
	notFound := serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, fmt.Sprintf("request not found: %s", id))
	if err := utils.ValidateUUID(id); err != nil {
		return nil, notFound
	}
	entity, err := s.store().GetByID(ctx, id)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to load request", log.String("request_id", id), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	if entity == nil || !workflow.VisibilityFor(actor).Allows(&entity.Entity) {
		return nil, notFound
	}
	return entity, nil
}

func (s *requestService) reload(ctx context.Context, actor *workflow.Actor, id string) (*model.Response, *serviceerror.ServiceError) {
	entity, err := s.store().GetByID(ctx, id)
	if err != nil || entity == nil {
		s.logger.WithContext(ctx).Error("Failed to reload request", log.String("request_id", id), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	return buildResponse(entity, actor), nil
}

func (s *requestService) persist(ctx context.Context, write func(tx dbmodel.TxInterface) error) *serviceerror.ServiceError {
	err := s.stores.ExecuteTransaction(ctx, []func(tx dbmodel.TxInterface) error{write})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrVersionConflict):
		return serviceerror.CustomServiceError(serviceerror.ConflictError, "Request was modified by another request")
	default:
		s.logger.WithContext(ctx).Error("Failed to write request", log.Error(err))
		return &serviceerror.DatabaseError
	}
}

// buildResponse hides the generated file from non-admins until the request is approved.
func buildResponse(entity *model.Request, actor *workflow.Actor) *model.Response {
	view := entity.Clone()
	if !actor.IsAdmin() && !actor.IsSystem() && view.Status != workflow.StatusApproved {
		view.GeneratedFile = ""
	}
	p := workflow.EvaluatePermissions(workflow.KindRequest, &entity.Entity, actor)
	return &model.Response{
		Request:     view,
		CanEdit:     p.Edit,
		CanValidate: p.Validate,
	}
}

func validateObjects(objects []model.Object) *serviceerror.ServiceError {
	for _, o := range objects {
		if o.ID == "" {
			return serviceerror.CustomServiceError(serviceerror.ValidationError, "Object id is required")
		}
		if o.Type != model.ObjectTypeCadastralID {
			return serviceerror.CustomServiceError(serviceerror.ValidationError,
				fmt.Sprintf("Invalid object type: %s", o.Type))
		}
	}
	return nil
}

func applyPatch(r *model.Request, request *model.UpdateRequest) *serviceerror.ServiceError {
	if request.Purpose != nil {
		r.Purpose = *request.Purpose
	}
	if request.Delivery != nil {
		r.Delivery = *request.Delivery
	}
	if request.Objects != nil {
		if svcErr := validateObjects(request.Objects); svcErr != nil {
			return svcErr
		}
		r.Objects = request.Objects
	}
	if request.NotifyEmail != nil {
		if *request.NotifyEmail != "" {
			if err := utils.ValidateEmail(*request.NotifyEmail); err != nil {
				return serviceerror.CustomServiceError(serviceerror.ValidationError, err.Error())
			}
		}
		r.NotifyEmail = *request.NotifyEmail
	}
	if request.Data != nil {
		data, err := json.Marshal(request.Data)
		if err != nil {
			return &serviceerror.InternalServerError
		}
		r.Data = data
	}
	return nil
}
