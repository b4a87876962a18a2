package request

import (
	"context"
	"encoding/json"

	"github.com/waterreg/registry-server/internal/request/model"
	"github.com/waterreg/registry-server/internal/spatial"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/database/provider"
	dbutils "github.com/waterreg/registry-server/internal/system/database/utils"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/workflow"
)

const requestColumns = "R.ID, R.STATUS, R.PURPOSE, R.DELIVERY, R.OBJECTS, ST_AsGeoJSON(R.GEOM) AS GEOM, R.GENERATED_FILE, " +
	"R.NOTIFY_EMAIL, R.DATA, R.RESPONDED_AT, R.CREATED_BY, R.TENANT, R.CREATED_AT, R.UPDATED_AT, R.VERSION"

// DBQuery objects for request operations
var (
	QueryCreateRequest = dbmodel.DBQuery{
		ID: "CREATE_REQUEST",
		Query: "INSERT INTO REQUESTS (ID, STATUS, PURPOSE, DELIVERY, OBJECTS, GEOM, GENERATED_FILE, NOTIFY_EMAIL, DATA, " +
			"RESPONDED_AT, CREATED_BY, TENANT, CREATED_AT, UPDATED_AT, VERSION) " +
			"VALUES (?, ?, ?, ?, ?, ST_GeomFromGeoJSON(?), ?, ?, ?, ?, ?, ?, ?, ?, 1)",
	}

	QueryGetRequestByID = dbmodel.DBQuery{
		ID:    "GET_REQUEST_BY_ID",
		Query: "SELECT " + requestColumns + " FROM REQUESTS R WHERE R.ID = ? AND R.DELETED_AT IS NULL",
	}

	QueryUpdateRequest = dbmodel.DBQuery{
		ID: "UPDATE_REQUEST",
		Query: "UPDATE REQUESTS SET STATUS = ?, PURPOSE = ?, DELIVERY = ?, OBJECTS = ?, " +
			"GEOM = COALESCE(ST_GeomFromGeoJSON(?), GEOM), GENERATED_FILE = ?, NOTIFY_EMAIL = ?, DATA = ?, " +
			"RESPONDED_AT = ?, UPDATED_AT = ?, VERSION = VERSION + 1 " +
			"WHERE ID = ? AND VERSION = ? AND DELETED_AT IS NULL",
	}

	QueryDeleteRequest = dbmodel.DBQuery{
		ID:    "DELETE_REQUEST",
		Query: "UPDATE REQUESTS SET DELETED_AT = ?, DELETED_BY = ?, VERSION = VERSION + 1 WHERE ID = ? AND VERSION = ? AND DELETED_AT IS NULL",
	}
)

// Filter selects requests for listing.
type Filter struct {
	Visibility workflow.Visibility
	Status     []workflow.Status
	Limit      int
	Offset     int
}

// RequestStore defines the interface for request data operations
type RequestStore interface {
	Create(tx dbmodel.TxInterface, request *model.Request, geometry string) error
	GetByID(ctx context.Context, id string) (*model.Request, error)
	List(ctx context.Context, filter Filter) ([]model.Request, int, error)
	Update(tx dbmodel.TxInterface, request *model.Request, geometry string) error
	Delete(tx dbmodel.TxInterface, request *model.Request) error
}

type store struct {
	dbClient provider.DBClientInterface
}

// NewStore creates and returns a new request store (exported for registry)
func NewStore(dbClient provider.DBClientInterface) interface{} {
	return newRequestStore(dbClient)
}

func newRequestStore(dbClient provider.DBClientInterface) RequestStore {
	return &store{dbClient: dbClient}
}

func (s *store) Create(tx dbmodel.TxInterface, request *model.Request, geometry string) error {
	objects, err := json.Marshal(objectsOrEmpty(request.Objects))
	if err != nil {
		return err
	}
	_, err = tx.Exec(QueryCreateRequest,
		request.ID, string(request.Status), request.Purpose, request.Delivery, string(objects),
		provider.NullString(geometry), provider.NullString(request.GeneratedFile),
		provider.NullString(request.NotifyEmail), dataColumn(request.Data), request.RespondedAt,
		provider.NullString(request.CreatedBy), provider.NullString(request.Tenant),
		request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return err
	}
	request.Version = 1
	return nil
}

func (s *store) GetByID(ctx context.Context, id string) (*model.Request, error) {
	rows, err := s.dbClient.Query(ctx, QueryGetRequestByID, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return mapToRequest(rows[0])
}

func (s *store) List(ctx context.Context, filter Filter) ([]model.Request, int, error) {
	conditions, args := filter.Visibility.Conditions("R.")
	sel := dbutils.NewSelect("REQUESTS", requestColumns, "REQUESTS R").
		Where("R.DELETED_AT IS NULL").
		WhereAll(conditions, args)
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, st := range filter.Status {
			statuses = append(statuses, string(st))
		}
		inQuery, inArgs, err := s.dbClient.In(dbmodel.DBQuery{ID: "REQUEST_STATUS_IN", Query: "R.STATUS IN (?)"}, statuses)
		if err != nil {
			return nil, 0, err
		}
		sel.Where(inQuery.Query, inArgs...)
	}

	countRows, err := s.dbClient.Query(ctx, sel.Count(), sel.Args()...)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(countRows) > 0 {
		total = int(provider.RowInt64(countRows[0], "count"))
	}

	rows, err := s.dbClient.Query(ctx, sel.Page("R.CREATED_AT", filter.Limit, filter.Offset), sel.Args()...)
	if err != nil {
		return nil, 0, err
	}

	requests := make([]model.Request, 0, len(rows))
	for _, row := range rows {
		r, err := mapToRequest(row)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, *r)
	}
	return requests, total, nil
}

// Update writes the mutable fields if the version still matches.
// An empty geometry leaves the stored one unchanged.
func (s *store) Update(tx dbmodel.TxInterface, request *model.Request, geometry string) error {
	objects, err := json.Marshal(objectsOrEmpty(request.Objects))
	if err != nil {
		return err
	}
	result, err := tx.Exec(QueryUpdateRequest,
		string(request.Status), request.Purpose, request.Delivery, string(objects),
		provider.NullString(geometry), provider.NullString(request.GeneratedFile),
		provider.NullString(request.NotifyEmail), dataColumn(request.Data), request.RespondedAt,
		request.UpdatedAt, request.ID, request.Version)
	if err != nil {
		return err
	}
	return bumpVersion(result, &request.Entity)
}

func (s *store) Delete(tx dbmodel.TxInterface, request *model.Request) error {
	result, err := tx.Exec(QueryDeleteRequest,
		request.DeletedAt, provider.NullString(request.DeletedBy), request.ID, request.Version)
	if err != nil {
		return err
	}
	return bumpVersion(result, &request.Entity)
}

func bumpVersion(result interface{ RowsAffected() (int64, error) }, e *workflow.Entity) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stores.ErrVersionConflict
	}
	e.Version++
	return nil
}

func objectsOrEmpty(objects []model.Object) []model.Object {
	if objects == nil {
		return []model.Object{}
	}
	return objects
}

func dataColumn(data json.RawMessage) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

func mapToRequest(row dbmodel.Row) (*model.Request, error) {
	r := &model.Request{
		Entity: workflow.Entity{
			ID:            provider.RowString(row, "ID"),
			Status:        workflow.Status(provider.RowString(row, "STATUS")),
			CreatedBy:     provider.RowString(row, "CREATED_BY"),
			Tenant:        provider.RowString(row, "TENANT"),
			RespondedAt:   provider.RowTimePtr(row, "RESPONDED_AT"),
			GeneratedFile: provider.RowString(row, "GENERATED_FILE"),
			NotifyEmail:   provider.RowString(row, "NOTIFY_EMAIL"),
			CreatedAt:     provider.RowTime(row, "CREATED_AT"),
			UpdatedAt:     provider.RowTime(row, "UPDATED_AT"),
			Version:       provider.RowInt64(row, "VERSION"),
		},
		Purpose:  provider.RowString(row, "PURPOSE"),
		Delivery: provider.RowString(row, "DELIVERY"),
		Objects:  []model.Object{},
	}
	if data := provider.RowString(row, "DATA"); data != "" {
		r.Data = json.RawMessage(data)
	}
	if objects := provider.RowString(row, "OBJECTS"); objects != "" {
		if err := json.Unmarshal([]byte(objects), &r.Objects); err != nil {
			return nil, err
		}
	}
	if geom := provider.RowString(row, "GEOM"); geom != "" {
		fc, err := json.Marshal(spatial.ToFeatureCollection([]spatial.Row{{ID: r.ID, Geometry: geom}}))
		if err != nil {
			return nil, err
		}
		r.Geom = fc
	}
	return r, nil
}
