package user

import (
	"context"
	"fmt"

	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

// UserService resolves local users and the admins an actor may assign.
type UserService interface {
	Resolve(ctx context.Context, id string) (*model.User, error)
	FindOrCreate(ctx context.Context, identity model.Identity) (*model.User, error)
	ResolveActor(ctx context.Context, identity model.Identity, tenant *workflow.TenantProfile) (*workflow.Actor, error)
	ListAssignable(ctx context.Context, actor *workflow.Actor) ([]model.User, error)
}

type userService struct {
	stores *stores.StoreRegistry
	store  UserStore
}

func newUserService(registry *stores.StoreRegistry) UserService {
	return &userService{
		stores: registry,
		store:  registry.User.(UserStore),
	}
}

// Resolve returns the user or nil when it does not exist.
func (s *userService) Resolve(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, nil
	}
	return s.store.GetByID(ctx, id)
}

// FindOrCreate mirrors the auth service identity into the local users table.
func (s *userService) FindOrCreate(ctx context.Context, identity model.Identity) (*model.User, error) {
	if identity.AuthUserID == "" {
		return nil, fmt.Errorf("identity has no auth user id")
	}

	existing, err := s.store.GetByAuthUserID(ctx, identity.AuthUserID)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		AuthUserID: identity.AuthUserID,
		Type:       identity.Type,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		Email:      identity.Email,
		Phone:      identity.Phone,
		Groups:     identity.Groups,
	}

	var queries []func(tx dbmodel.TxInterface) error
	if existing == nil {
		user.ID = utils.NewID()
		queries = append(queries, func(tx dbmodel.TxInterface) error {
			return s.store.Create(tx, user)
		})
	} else {
		user.ID = existing.ID
		if profileUnchanged(existing, user) && identity.Groups == nil {
			return existing, nil
		}
		queries = append(queries, func(tx dbmodel.TxInterface) error {
			return s.store.UpdateProfile(tx, user)
		})
	}
	if identity.Groups != nil {
		queries = append(queries, func(tx dbmodel.TxInterface) error {
			return s.store.ReplaceGroups(tx, user.ID, identity.Groups)
		})
	}

	if err := s.stores.ExecuteTransaction(ctx, queries); err != nil {
		return nil, err
	}
	log.GetLogger().WithContext(ctx).Debug("Local user synchronized",
		log.String("user_id", user.ID), log.Bool("created", existing == nil))
	return user, nil
}

func profileUnchanged(a, b *model.User) bool {
	return a.Type == b.Type && a.FirstName == b.FirstName && a.LastName == b.LastName &&
		a.Email == b.Email && a.Phone == b.Phone
}

// ResolveActor builds the actor of an authenticated call.
func (s *userService) ResolveActor(ctx context.Context, identity model.Identity, tenant *workflow.TenantProfile) (*workflow.Actor, error) {
	user, err := s.FindOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	return &workflow.Actor{
		User: workflow.User{
			ID:        user.ID,
			Type:      user.Type,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
		AuthUser: workflow.AuthUser{
			ID:            identity.AuthUserID,
			Type:          identity.Type,
			AdminOfGroups: identity.AdminOfGroups,
		},
		TenantProfile: tenant,
	}, nil
}

// ListAssignable returns the admins actor may assign forms to.
func (s *userService) ListAssignable(ctx context.Context, actor *workflow.Actor) ([]model.User, error) {
	switch {
	case actor == nil || actor.User.Type == workflow.UserTypeUser:
		return []model.User{}, nil
	case actor.IsSuperAdmin() && len(actor.AuthUser.AdminOfGroups) == 0:
		return s.store.ListAdmins(ctx)
	case len(actor.AuthUser.AdminOfGroups) == 0:
		self, err := s.store.GetByID(ctx, actor.User.ID)
		if err != nil {
			return nil, err
		}
		if self == nil {
			return []model.User{}, nil
		}
		return []model.User{*self}, nil
	default:
		return s.store.ListAdminsInGroups(ctx, actor.AuthUser.AdminOfGroups)
	}
}
