package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/waterreg/registry-server/internal/form/model"
	"github.com/waterreg/registry-server/internal/history"
	historymodel "github.com/waterreg/registry-server/internal/history/model"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/user"
	usermodel "github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

// FormService defines the contract for form business operations
type FormService interface {
	CreateForm(ctx context.Context, actor *workflow.Actor, request *model.CreateRequest) (*model.Response, *serviceerror.ServiceError)
	GetForm(ctx context.Context, actor *workflow.Actor, id string) (*model.Response, *serviceerror.ServiceError)
	ListForms(ctx context.Context, actor *workflow.Actor, query model.ListQuery) (*model.ListResponse, *serviceerror.ServiceError)
	UpdateForm(ctx context.Context, actor *workflow.Actor, id string, request *model.UpdateRequest) (*model.Response, *serviceerror.ServiceError)
	DeleteForm(ctx context.Context, actor *workflow.Actor, id string) *serviceerror.ServiceError
	GetHistory(ctx context.Context, actor *workflow.Actor, id string, page, pageSize int) (*historymodel.Page, *serviceerror.ServiceError)
	SetAssignee(ctx context.Context, actor *workflow.Actor, id, assigneeID string) (*model.Response, *serviceerror.ServiceError)
	GetAssignees(ctx context.Context, actor *workflow.Actor) ([]usermodel.User, *serviceerror.ServiceError)
}

// AssignmentNotifier tells an admin a form was assigned to them.
type AssignmentNotifier interface {
	NotifyAssigned(ctx context.Context, formID string, assignee *usermodel.User)
}

// Policy is the workflow policy of forms.
var Policy = workflow.Policy[*model.Form]{
	Kind: workflow.KindForm,
	RequiresGeometry: func(_ *workflow.TransitionContext, f *model.Form) bool {
		return f.Type == model.FormTypeNew
	},
	MissingGeometry: "Geometry must be provided",
	ApplyCreateDefaults: func(tc *workflow.TransitionContext, f *model.Form) {
		if f.ProvidedBy == "" && tc.Actor != nil {
			f.ProvidedBy = tc.Actor.User.FullName()
		}
	},
}

type formService struct {
	stores     *stores.StoreRegistry
	controller *workflow.Controller[*model.Form]
	users      user.UserService
	history    history.HistoryService
	assigned   AssignmentNotifier
	clock      utils.Clock
	logger     *log.Logger
}

func newFormService(registry *stores.StoreRegistry, controller *workflow.Controller[*model.Form],
	users user.UserService, historyService history.HistoryService, assigned AssignmentNotifier) FormService {
	return &formService{
		stores:     registry,
		controller: controller,
		users:      users,
		history:    historyService,
		assigned:   assigned,
		clock:      utils.SystemClock,
		logger:     log.GetLogger().With(log.String(log.LoggerKeyComponentName, "FormService")),
	}
}

func (s *formService) store() FormStore {
	return s.stores.Form.(FormStore)
}

// CreateForm validates and stores a new form
func (s *formService) CreateForm(ctx context.Context, actor *workflow.Actor, request *model.CreateRequest) (*model.Response, *serviceerror.ServiceError) {
	if request.Type == "" {
		request.Type = model.FormTypeNew
	}
	if request.ProviderType == "" {
		request.ProviderType = model.ProviderTypeOwner
	}
	if err := validateFields(&request.Type, &request.ObjectType, &request.ProviderType); err != nil {
		return nil, err
	}
	if request.ObjectName == "" {
		return nil, serviceerror.CustomServiceError(serviceerror.ValidationError, "objectName is required")
	}

	form := &model.Form{
		Entity:       workflow.Entity{Data: request.Data},
		Type:         request.Type,
		ObjectType:   request.ObjectType,
		ObjectName:   request.ObjectName,
		CadastralID:  request.CadastralID,
		Description:  request.Description,
		ProviderType: request.ProviderType,
		ProvidedBy:   request.ProvidedBy,
		Files:        request.Files,
	}

	tc := workflow.NewTransitionContext(workflow.KindForm, actor, "", "", s.clock())
	geometry, err := s.controller.PrepareCreate(tc, form, request.Status, request.Geom)
	if err != nil {
		return nil, workflow.ToServiceError(err)
	}
	form.ID = utils.NewID()

	err = s.stores.ExecuteTransaction(ctx, []func(tx dbmodel.TxInterface) error{
		func(tx dbmodel.TxInterface) error {
			return s.store().Create(tx, form, geometry)
		},
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to create form", log.Error(err))
		return nil, serviceerror.CustomServiceError(serviceerror.DatabaseError,
			fmt.Sprintf("failed to create form: %v", err))
	}

	s.controller.Created(ctx, tc, form)
	return s.reload(ctx, actor, form.ID)
}

// GetForm returns a visible form with the caller's permissions
func (s *formService) GetForm(ctx context.Context, actor *workflow.Actor, id string) (*model.Response, *serviceerror.ServiceError) {
	form, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return nil, svcErr
	}
	return buildResponse(form, actor), nil
}

// ListForms returns one page of the forms visible to the caller
func (s *formService) ListForms(ctx context.Context, actor *workflow.Actor, query model.ListQuery) (*model.ListResponse, *serviceerror.ServiceError) {
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

	forms, total, err := s.store().List(ctx, Filter{
		Visibility: workflow.VisibilityFor(actor),
		Status:     query.Status,
		Type:       query.Type,
		Limit:      page.Size,
		Offset:     page.Offset(),
	})
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to list forms", log.Error(err))
		return nil, &serviceerror.DatabaseError
	}

	rows := make([]model.Response, 0, len(forms))
	for i := range forms {
		rows = append(rows, *buildResponse(&forms[i], actor))
	}
	return &model.ListResponse{
		Rows:       rows,
		Total:      total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: page.TotalPages(total),
	}, nil
}

// UpdateForm applies a patch and, if requested, a status transition
func (s *formService) UpdateForm(ctx context.Context, actor *workflow.Actor, id string, request *model.UpdateRequest) (*model.Response, *serviceerror.ServiceError) {
	current, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return nil, svcErr
	}

	next := current.Clone()
	if svcErr := applyPatch(next, request); svcErr != nil {
		return nil, svcErr
	}

	tc := workflow.NewTransitionContext(workflow.KindForm, actor, id, utils.SanitizeComment(request.Comment), s.clock())
	geometry, err := s.controller.PrepareUpdate(tc, current, next, request.Status, request.Geom)
	if err != nil {
		return nil, workflow.ToServiceError(err)
	}

	if svcErr := s.persist(ctx, func(tx dbmodel.TxInterface) error {
		return s.store().Update(tx, next, geometry)
	}); svcErr != nil {
		return nil, svcErr
	}

	s.controller.Updated(ctx, tc, current, next)
	return s.reload(ctx, actor, id)
}

// DeleteForm soft-deletes a form. Admins may delete any live form, owners
// only while it awaits review or correction.
func (s *formService) DeleteForm(ctx context.Context, actor *workflow.Actor, id string) *serviceerror.ServiceError {
	form, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return svcErr
	}

	ownerMayDelete := workflow.IsOwner(&form.Entity, actor) &&
		(form.Status == workflow.StatusCreated || form.Status == workflow.StatusReturned)
	if !actor.IsSystem() && !actor.IsAdmin() && !ownerMayDelete {
		return serviceerror.CustomServiceError(serviceerror.ForbiddenError, "Form cannot be deleted")
	}

	now := s.clock()
	form.DeletedAt = &now
	form.DeletedBy = actor.UserID()
	return s.persist(ctx, func(tx dbmodel.TxInterface) error {
		return s.store().Delete(tx, form)
	})
}

// GetHistory returns the audit trail of a visible form
func (s *formService) GetHistory(ctx context.Context, actor *workflow.Actor, id string, page, pageSize int) (*historymodel.Page, *serviceerror.ServiceError) {
	if _, svcErr := s.loadVisible(ctx, actor, id); svcErr != nil {
		return nil, svcErr
	}
	return s.history.GetHistory(ctx, workflow.KindForm, id, page, pageSize)
}

// SetAssignee assigns a form to an admin, or unassigns it when assigneeID is empty
func (s *formService) SetAssignee(ctx context.Context, actor *workflow.Actor, id, assigneeID string) (*model.Response, *serviceerror.ServiceError) {
	form, svcErr := s.loadVisible(ctx, actor, id)
	if svcErr != nil {
		return nil, svcErr
	}

	if svcErr := s.checkAssignee(ctx, actor, form, assigneeID); svcErr != nil {
		return nil, svcErr
	}

	var assignee *usermodel.User
	if assigneeID != "" {
		u, err := s.users.Resolve(ctx, assigneeID)
		if err != nil {
			s.logger.WithContext(ctx).Error("Failed to resolve assignee", log.String("assignee", assigneeID), log.Error(err))
			return nil, &serviceerror.DatabaseError
		}
		assignee = u
	}

	next := form.Clone()
	next.Assignee = assigneeID
	next.UpdatedAt = s.clock()
	if svcErr := s.persist(ctx, func(tx dbmodel.TxInterface) error {
		return s.store().UpdateAssignee(tx, next)
	}); svcErr != nil {
		return nil, svcErr
	}

	s.logger.WithContext(ctx).Info("Form assignee changed",
		log.String("form_id", id), log.String("assignee", assigneeID), log.String("actor", actor.UserID()))
	if assignee != nil && s.assigned != nil {
		s.assigned.NotifyAssigned(ctx, id, assignee)
	}
	return buildResponse(next, actor), nil
}

func (s *formService) checkAssignee(ctx context.Context, actor *workflow.Actor, form *model.Form, assigneeID string) *serviceerror.ServiceError {
	invalid := func(msg string) *serviceerror.ServiceError {
		return serviceerror.CustomServiceError(serviceerror.ValidationError, msg)
	}

	if form.Status.IsTerminal() || actor == nil || actor.User.Type == workflow.UserTypeUser {
		return invalid("Assignee cannot be set.")
	}

	if !actor.IsSuperAdmin() && len(actor.AuthUser.AdminOfGroups) == 0 {
		if assigneeID != "" && form.Assignee != "" {
			return invalid("Assignee already exists.")
		}
		if assigneeID == "" && form.Assignee != "" && form.Assignee != actor.User.ID {
			return invalid("Cannot unassign others.")
		}
	}

	if assigneeID == "" && form.Assignee == "" {
		return invalid("Already unassigned.")
	}

	if assigneeID != "" {
		if assigneeID == form.CreatedBy {
			return invalid("Cannot assign to creator.")
		}
		candidates, err := s.users.ListAssignable(ctx, actor)
		if err != nil {
			s.logger.WithContext(ctx).Error("Failed to list assignable users", log.Error(err))
			return &serviceerror.DatabaseError
		}
		if !slices.ContainsFunc(candidates, func(u usermodel.User) bool { return u.ID == assigneeID }) {
			return invalid("Assignee cannot be set.")
		}
	}

	if !workflow.EvaluatePermissions(workflow.KindForm, &form.Entity, actor).Assign {
		return serviceerror.CustomServiceError(serviceerror.ForbiddenError, "Assignee cannot be changed")
	}
	return nil
}

// GetAssignees lists the admins the caller may assign forms to
func (s *formService) GetAssignees(ctx context.Context, actor *workflow.Actor) ([]usermodel.User, *serviceerror.ServiceError) {
	users, err := s.users.ListAssignable(ctx, actor)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to list assignable users", log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	return users, nil
}

func (s *formService) loadVisible(ctx context.Context, actor *workflow.Actor, id string) (*model.Form, *serviceerror.ServiceError) {
	if err := utils.ValidateUUID(id); err != nil {
		return nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, fmt.Sprintf("form not found: %s", id))
	}
	form, err := s.store().GetByID(ctx, id)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to load form", log.String("form_id", id), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	if form == nil || !workflow.VisibilityFor(actor).Allows(&form.Entity) {
		return nil, serviceerror.CustomServiceError(serviceerror.ResourceNotFoundError, fmt.Sprintf("form not found: %s", id))
	}
	return form, nil
}

func (s *formService) reload(ctx context.Context, actor *workflow.Actor, id string) (*model.Response, *serviceerror.ServiceError) {
	form, err := s.store().GetByID(ctx, id)
	if err != nil || form == nil {
		s.logger.WithContext(ctx).Error("Failed to reload form", log.String("form_id", id), log.Error(err))
		return nil, &serviceerror.DatabaseError
	}
	return buildResponse(form, actor), nil
}

func (s *formService) persist(ctx context.Context, write func(tx dbmodel.TxInterface) error) *serviceerror.ServiceError {
	err := s.stores.ExecuteTransaction(ctx, []func(tx dbmodel.TxInterface) error{write})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrVersionConflict):
		return serviceerror.CustomServiceError(serviceerror.ConflictError, "Form was modified by another request")
	default:
		s.logger.WithContext(ctx).Error("Failed to write form", log.Error(err))
		return &serviceerror.DatabaseError
	}
}

func buildResponse(form *model.Form, actor *workflow.Actor) *model.Response {
	return &model.Response{
		Form:        form,
		Permissions: workflow.EvaluatePermissions(workflow.KindForm, &form.Entity, actor),
	}
}

func validateFields(formType *model.FormType, objectType *string, providerType *model.ProviderType) *serviceerror.ServiceError {
	if formType != nil {
		switch *formType {
		case model.FormTypeNew, model.FormTypeEdit, model.FormTypeRemove:
		default:
			return serviceerror.CustomServiceError(serviceerror.ValidationError, fmt.Sprintf("invalid form type: %s", *formType))
		}
	}
	if objectType != nil && !slices.Contains(model.ObjectTypes, *objectType) {
		return serviceerror.CustomServiceError(serviceerror.ValidationError, fmt.Sprintf("invalid object type: %s", *objectType))
	}
	if providerType != nil {
		switch *providerType {
		case model.ProviderTypeOwner, model.ProviderTypeManager, model.ProviderTypeOther:
		default:
			return serviceerror.CustomServiceError(serviceerror.ValidationError, fmt.Sprintf("invalid provider type: %s", *providerType))
		}
	}
	return nil
}

func applyPatch(form *model.Form, request *model.UpdateRequest) *serviceerror.ServiceError {
	if err := validateFields(nil, request.ObjectType, request.ProviderType); err != nil {
		return err
	}
	if request.ObjectType != nil {
		form.ObjectType = *request.ObjectType
	}
	if request.ObjectName != nil {
		if *request.ObjectName == "" {
			return serviceerror.CustomServiceError(serviceerror.ValidationError, "objectName cannot be empty")
		}
		form.ObjectName = *request.ObjectName
	}
	if request.CadastralID != nil {
		form.CadastralID = *request.CadastralID
	}
	if request.Description != nil {
		form.Description = *request.Description
	}
	if request.ProviderType != nil {
		form.ProviderType = *request.ProviderType
	}
	if request.ProvidedBy != nil {
		form.ProvidedBy = *request.ProvidedBy
	}
	if request.Files != nil {
		form.Files = request.Files
	}
	if len(request.Data) > 0 {
		form.Data = append(json.RawMessage(nil), request.Data...)
	}
	return nil
}
