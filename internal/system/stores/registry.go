package stores

import (
	"context"

	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/database/provider"
	"github.com/waterreg/registry-server/internal/system/log"
)

// StoreRegistry holds references to all stores in the application.
// Stores are held as interface{} to avoid import cycles between feature
// packages; services type-assert them to their own store interfaces.
type StoreRegistry struct {
	dbClient provider.DBClientInterface

	Form    interface{} // form.FormStore
	Request interface{} // request.RequestStore
	History interface{} // history.HistoryStore
	User    interface{} // user.UserStore
}

// NewStoreRegistry creates a new store registry with all initialized stores
func NewStoreRegistry(
	dbClient provider.DBClientInterface,
	formStore interface{},
	requestStore interface{},
	historyStore interface{},
	userStore interface{},
) *StoreRegistry {
	return &StoreRegistry{
		dbClient: dbClient,
		Form:     formStore,
		Request:  requestStore,
		History:  historyStore,
		User:     userStore,
	}
}

// DBClient returns the shared client, e.g. for health checks.
func (r *StoreRegistry) DBClient() provider.DBClientInterface {
	return r.dbClient
}

// ExecuteTransaction executes multiple store operations in a single transaction
func (r *StoreRegistry) ExecuteTransaction(ctx context.Context, queries []func(tx dbmodel.TxInterface) error) error {
	logger := log.GetLogger().WithContext(ctx)
	logger.Debug("Starting transaction", log.Int("query_count", len(queries)))

	if err := dbmodel.ExecuteTransaction(ctx, r.dbClient, queries); err != nil {
		logger.Warn("Transaction rolled back", log.Error(err))
		return err
	}

	logger.Debug("Transaction committed successfully", log.Int("query_count", len(queries)))
	return nil
}
