package user

import (
	"context"

	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/database/provider"
	"github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

const userColumns = "U.ID, U.AUTH_USER_ID, U.TYPE, U.FIRST_NAME, U.LAST_NAME, U.EMAIL, U.PHONE"

// DBQuery objects for user operations
var (
	QueryGetUserByID = dbmodel.DBQuery{
		ID:    "GET_USER_BY_ID",
		Query: "SELECT " + userColumns + " FROM USERS U WHERE U.ID = ? AND U.DELETED_AT IS NULL",
	}

	QueryGetUserByAuthUserID = dbmodel.DBQuery{
		ID:    "GET_USER_BY_AUTH_USER_ID",
		Query: "SELECT " + userColumns + " FROM USERS U WHERE U.AUTH_USER_ID = ? AND U.DELETED_AT IS NULL",
	}

	QueryCreateUser = dbmodel.DBQuery{
		ID:    "CREATE_USER",
		Query: "INSERT INTO USERS (ID, AUTH_USER_ID, TYPE, FIRST_NAME, LAST_NAME, EMAIL, PHONE, CREATED_AT, UPDATED_AT) VALUES (?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(), UTC_TIMESTAMP())",
	}

	QueryUpdateUserProfile = dbmodel.DBQuery{
		ID:    "UPDATE_USER_PROFILE",
		Query: "UPDATE USERS SET TYPE = ?, FIRST_NAME = ?, LAST_NAME = ?, EMAIL = ?, PHONE = ?, UPDATED_AT = UTC_TIMESTAMP() WHERE ID = ?",
	}

	QueryDeleteUserGroups = dbmodel.DBQuery{
		ID:    "DELETE_USER_GROUPS",
		Query: "DELETE FROM USER_GROUP WHERE USER_ID = ?",
	}

	QueryCreateUserGroup = dbmodel.DBQuery{
		ID:    "CREATE_USER_GROUP",
		Query: "INSERT INTO USER_GROUP (USER_ID, GROUP_ID) VALUES (?, ?)",
	}

	QueryListAdmins = dbmodel.DBQuery{
		ID:    "LIST_ADMINS",
		Query: "SELECT " + userColumns + " FROM USERS U WHERE U.TYPE IN ('ADMIN', 'SUPER_ADMIN') AND U.DELETED_AT IS NULL ORDER BY U.FIRST_NAME, U.LAST_NAME",
	}

	QueryListAdminsInGroups = dbmodel.DBQuery{
		ID:    "LIST_ADMINS_IN_GROUPS",
		Query: "SELECT DISTINCT " + userColumns + " FROM USERS U JOIN USER_GROUP G ON G.USER_ID = U.ID WHERE G.GROUP_ID IN (?) AND U.TYPE IN ('ADMIN', 'SUPER_ADMIN') AND U.DELETED_AT IS NULL ORDER BY U.FIRST_NAME, U.LAST_NAME",
	}
)

// UserStore defines the interface for user data operations
type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByAuthUserID(ctx context.Context, authUserID string) (*model.User, error)
	ListAdmins(ctx context.Context) ([]model.User, error)
	ListAdminsInGroups(ctx context.Context, groups []string) ([]model.User, error)
	Create(tx dbmodel.TxInterface, user *model.User) error
	UpdateProfile(tx dbmodel.TxInterface, user *model.User) error
	ReplaceGroups(tx dbmodel.TxInterface, userID string, groups []string) error
}

type store struct {
	dbClient provider.DBClientInterface
}

// NewStore creates and returns a new user store (exported for registry)
func NewStore(dbClient provider.DBClientInterface) interface{} {
	return newUserStore(dbClient)
}

func newUserStore(dbClient provider.DBClientInterface) UserStore {
	return &store{dbClient: dbClient}
}

func (s *store) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getOne(ctx, QueryGetUserByID, id)
}

func (s *store) GetByAuthUserID(ctx context.Context, authUserID string) (*model.User, error) {
	return s.getOne(ctx, QueryGetUserByAuthUserID, authUserID)
}

func (s *store) getOne(ctx context.Context, query dbmodel.DBQuery, arg string) (*model.User, error) {
	rows, err := s.dbClient.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	u := mapToUser(rows[0])
	return &u, nil
}

func (s *store) ListAdmins(ctx context.Context) ([]model.User, error) {
	rows, err := s.dbClient.Query(ctx, QueryListAdmins)
	if err != nil {
		return nil, err
	}
	return mapToUsers(rows), nil
}

// ListAdminsInGroups returns admins belonging to any of the groups
func (s *store) ListAdminsInGroups(ctx context.Context, groups []string) ([]model.User, error) {
	if len(groups) == 0 {
		return []model.User{}, nil
	}
	query, args, err := s.dbClient.In(QueryListAdminsInGroups, groups)
	if err != nil {
		return nil, err
	}
	rows, err := s.dbClient.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return mapToUsers(rows), nil
}

func (s *store) Create(tx dbmodel.TxInterface, user *model.User) error {
	_, err := tx.Exec(QueryCreateUser,
		user.ID, user.AuthUserID, string(user.Type), user.FirstName, user.LastName, user.Email, user.Phone)
	return err
}

func (s *store) UpdateProfile(tx dbmodel.TxInterface, user *model.User) error {
	_, err := tx.Exec(QueryUpdateUserProfile,
		string(user.Type), user.FirstName, user.LastName, user.Email, user.Phone, user.ID)
	return err
}

func (s *store) ReplaceGroups(tx dbmodel.TxInterface, userID string, groups []string) error {
	if _, err := tx.Exec(QueryDeleteUserGroups, userID); err != nil {
		return err
	}
	for _, g := range groups {
		if _, err := tx.Exec(QueryCreateUserGroup, userID, g); err != nil {
			return err
		}
	}
	return nil
}

func mapToUsers(rows []dbmodel.Row) []model.User {
	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, mapToUser(row))
	}
	return users
}

func mapToUser(row dbmodel.Row) model.User {
	return model.User{
		ID:         provider.RowString(row, "ID"),
		AuthUserID: provider.RowString(row, "AUTH_USER_ID"),
		Type:       workflow.UserType(provider.RowString(row, "TYPE")),
		FirstName:  provider.RowString(row, "FIRST_NAME"),
		LastName:   provider.RowString(row, "LAST_NAME"),
		Email:      provider.RowString(row, "EMAIL"),
		Phone:      provider.RowString(row, "PHONE"),
	}
}
