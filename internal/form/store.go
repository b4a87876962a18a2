package form

import (
	"context"
	"encoding/json"

	"github.com/waterreg/registry-server/internal/form/model"
	"github.com/waterreg/registry-server/internal/spatial"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/database/provider"
	dbutils "github.com/waterreg/registry-server/internal/system/database/utils"
	"github.com/waterreg/registry-server/internal/system/stores"
	"github.com/waterreg/registry-server/internal/workflow"
)

const formColumns = "F.ID, F.STATUS, F.TYPE, F.OBJECT_TYPE, F.OBJECT_NAME, F.CADASTRAL_ID, ST_AsGeoJSON(F.GEOM) AS GEOM, " +
	"F.DESCRIPTION, F.PROVIDER_TYPE, F.PROVIDED_BY, F.FILES, F.DATA, F.ASSIGNEE, F.RESPONDED_AT, " +
	"F.CREATED_BY, F.TENANT, F.CREATED_AT, F.UPDATED_AT, F.VERSION"

// DBQuery objects for form operations
var (
	QueryCreateForm = dbmodel.DBQuery{
		ID: "CREATE_FORM",
		Query: "INSERT INTO FORMS (ID, STATUS, TYPE, OBJECT_TYPE, OBJECT_NAME, CADASTRAL_ID, GEOM, DESCRIPTION, PROVIDER_TYPE, " +
			"PROVIDED_BY, FILES, DATA, ASSIGNEE, RESPONDED_AT, CREATED_BY, TENANT, CREATED_AT, UPDATED_AT, VERSION) " +
			"VALUES (?, ?, ?, ?, ?, ?, ST_GeomFromGeoJSON(?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)",
	}

	QueryGetFormByID = dbmodel.DBQuery{
		ID:    "GET_FORM_BY_ID",
		Query: "SELECT " + formColumns + " FROM FORMS F WHERE F.ID = ? AND F.DELETED_AT IS NULL",
	}

	QueryUpdateForm = dbmodel.DBQuery{
		ID: "UPDATE_FORM",
		Query: "UPDATE FORMS SET STATUS = ?, OBJECT_TYPE = ?, OBJECT_NAME = ?, CADASTRAL_ID = ?, " +
			"GEOM = COALESCE(ST_GeomFromGeoJSON(?), GEOM), DESCRIPTION = ?, PROVIDER_TYPE = ?, PROVIDED_BY = ?, " +
			"FILES = ?, DATA = ?, RESPONDED_AT = ?, UPDATED_AT = ?, VERSION = VERSION + 1 " +
			"WHERE ID = ? AND VERSION = ? AND DELETED_AT IS NULL",
	}

	QueryUpdateFormAssignee = dbmodel.DBQuery{
		ID:    "UPDATE_FORM_ASSIGNEE",
		Query: "UPDATE FORMS SET ASSIGNEE = ?, UPDATED_AT = ?, VERSION = VERSION + 1 WHERE ID = ? AND VERSION = ? AND DELETED_AT IS NULL",
	}

	QueryDeleteForm = dbmodel.DBQuery{
		ID:    "DELETE_FORM",
		Query: "UPDATE FORMS SET DELETED_AT = ?, DELETED_BY = ?, VERSION = VERSION + 1 WHERE ID = ? AND VERSION = ? AND DELETED_AT IS NULL",
	}
)

// Filter selects forms for listing.
type Filter struct {
	Visibility workflow.Visibility
	Status     []workflow.Status
	Type       model.FormType
	Limit      int
	Offset     int
}

// FormStore defines the interface for form data operations
type FormStore interface {
	Create(tx dbmodel.TxInterface, form *model.Form, geometry string) error
	GetByID(ctx context.Context, id string) (*model.Form, error)
	List(ctx context.Context, filter Filter) ([]model.Form, int, error)
	Update(tx dbmodel.TxInterface, form *model.Form, geometry string) error
	UpdateAssignee(tx dbmodel.TxInterface, form *model.Form) error
	Delete(tx dbmodel.TxInterface, form *model.Form) error
}

type store struct {
	dbClient provider.DBClientInterface
}

// NewStore creates and returns a new form store (exported for registry)
func NewStore(dbClient provider.DBClientInterface) interface{} {
	return newFormStore(dbClient)
}

func newFormStore(dbClient provider.DBClientInterface) FormStore {
	return &store{dbClient: dbClient}
}

// Create inserts a form. geometry is a GeoJSON geometry or "".
func (s *store) Create(tx dbmodel.TxInterface, form *model.Form, geometry string) error {
	files, data, err := encodeJSONColumns(form)
	if err != nil {
		return err
	}
	_, err = tx.Exec(QueryCreateForm,
		form.ID, string(form.Status), string(form.Type), form.ObjectType, form.ObjectName,
		provider.NullString(form.CadastralID), provider.NullString(geometry), form.Description,
		string(form.ProviderType), form.ProvidedBy, files, data, provider.NullString(form.Assignee),
		form.RespondedAt, provider.NullString(form.CreatedBy), provider.NullString(form.Tenant),
		form.CreatedAt, form.UpdatedAt)
	if err != nil {
		return err
	}
	form.Version = 1
	return nil
}

// GetByID returns a live form or nil
func (s *store) GetByID(ctx context.Context, id string) (*model.Form, error) {
	rows, err := s.dbClient.Query(ctx, QueryGetFormByID, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	form, err := mapToForm(rows[0])
	if err != nil {
		return nil, err
	}
	return form, nil
}

// List returns one page of forms, newest first, and the total count
func (s *store) List(ctx context.Context, filter Filter) ([]model.Form, int, error) {
	conditions, args := filter.Visibility.Conditions("F.")
	sel := dbutils.NewSelect("FORMS", formColumns, "FORMS F").
		Where("F.DELETED_AT IS NULL").
		WhereAll(conditions, args)
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, st := range filter.Status {
			statuses = append(statuses, string(st))
		}
		inQuery, inArgs, err := s.dbClient.In(dbmodel.DBQuery{ID: "FORM_STATUS_IN", Query: "F.STATUS IN (?)"}, statuses)
		if err != nil {
			return nil, 0, err
		}
		sel.Where(inQuery.Query, inArgs...)
	}
	if filter.Type != "" {
		sel.Where("F.TYPE = ?", string(filter.Type))
	}

	countRows, err := s.dbClient.Query(ctx, sel.Count(), sel.Args()...)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(countRows) > 0 {
		total = int(provider.RowInt64(countRows[0], "count"))
	}

	rows, err := s.dbClient.Query(ctx, sel.Page("F.CREATED_AT", filter.Limit, filter.Offset), sel.Args()...)
	if err != nil {
		return nil, 0, err
	}

	forms := make([]model.Form, 0, len(rows))
	for _, row := range rows {
		form, err := mapToForm(row)
		if err != nil {
			return nil, 0, err
		}
		forms = append(forms, *form)
	}
	return forms, total, nil
}

// Update writes the mutable fields of form if its version still matches.
// An empty geometry leaves the stored one unchanged.
func (s *store) Update(tx dbmodel.TxInterface, form *model.Form, geometry string) error {
	files, data, err := encodeJSONColumns(form)
	if err != nil {
		return err
	}
	result, err := tx.Exec(QueryUpdateForm,
		string(form.Status), form.ObjectType, form.ObjectName, provider.NullString(form.CadastralID),
		provider.NullString(geometry), form.Description, string(form.ProviderType), form.ProvidedBy,
		files, data, form.RespondedAt, form.UpdatedAt, form.ID, form.Version)
	if err != nil {
		return err
	}
	return bumpVersion(result, &form.Entity)
}

// UpdateAssignee writes the assignee if the version still matches
func (s *store) UpdateAssignee(tx dbmodel.TxInterface, form *model.Form) error {
	result, err := tx.Exec(QueryUpdateFormAssignee,
		provider.NullString(form.Assignee), form.UpdatedAt, form.ID, form.Version)
	if err != nil {
		return err
	}
	return bumpVersion(result, &form.Entity)
}

// Delete soft-deletes the form
func (s *store) Delete(tx dbmodel.TxInterface, form *model.Form) error {
	result, err := tx.Exec(QueryDeleteForm,
		form.DeletedAt, provider.NullString(form.DeletedBy), form.ID, form.Version)
	if err != nil {
		return err
	}
	return bumpVersion(result, &form.Entity)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func bumpVersion(result rowsAffecter, e *workflow.Entity) error {
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

func encodeJSONColumns(form *model.Form) (string, interface{}, error) {
	files := form.Files
	if files == nil {
		files = []model.File{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return "", nil, err
	}
	var data interface{}
	if len(form.Data) > 0 {
		data = string(form.Data)
	}
	return string(filesJSON), data, nil
}

func mapToForm(row dbmodel.Row) (*model.Form, error) {
	form := &model.Form{
		Entity: workflow.Entity{
			ID:          provider.RowString(row, "ID"),
			Status:      workflow.Status(provider.RowString(row, "STATUS")),
			CreatedBy:   provider.RowString(row, "CREATED_BY"),
			Tenant:      provider.RowString(row, "TENANT"),
			Assignee:    provider.RowString(row, "ASSIGNEE"),
			RespondedAt: provider.RowTimePtr(row, "RESPONDED_AT"),
			CreatedAt:   provider.RowTime(row, "CREATED_AT"),
			UpdatedAt:   provider.RowTime(row, "UPDATED_AT"),
			Version:     provider.RowInt64(row, "VERSION"),
		},
		Type:         model.FormType(provider.RowString(row, "TYPE")),
		ObjectType:   provider.RowString(row, "OBJECT_TYPE"),
		ObjectName:   provider.RowString(row, "OBJECT_NAME"),
		CadastralID:  provider.RowString(row, "CADASTRAL_ID"),
		Description:  provider.RowString(row, "DESCRIPTION"),
		ProviderType: model.ProviderType(provider.RowString(row, "PROVIDER_TYPE")),
		ProvidedBy:   provider.RowString(row, "PROVIDED_BY"),
		Files:        []model.File{},
	}

	if data := provider.RowString(row, "DATA"); data != "" {
		form.Data = json.RawMessage(data)
	}
	if files := provider.RowString(row, "FILES"); files != "" {
		if err := json.Unmarshal([]byte(files), &form.Files); err != nil {
			return nil, err
		}
	}
	if geom := provider.RowString(row, "GEOM"); geom != "" {
		fc, err := json.Marshal(spatial.ToFeatureCollection([]spatial.Row{{ID: form.ID, Geometry: geom}}))
		if err != nil {
			return nil, err
		}
		form.Geom = fc
	}
	return form, nil
}
