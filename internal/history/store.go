package history

import (
	"context"
	"fmt"

	"github.com/waterreg/registry-server/internal/history/model"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/database/provider"
	"github.com/waterreg/registry-server/internal/workflow"
)

type queries struct {
	create dbmodel.DBQuery
	list   dbmodel.DBQuery
	count  dbmodel.DBQuery
}

func historyQueries(table, prefix string) queries {
	return queries{
		create: dbmodel.DBQuery{
			ID:    "CREATE_" + prefix + "_HISTORY",
			Query: "INSERT INTO " + table + " (ID, PARENT_ID, TYPE, COMMENT, CREATED_BY, CREATED_AT) VALUES (?, ?, ?, ?, ?, ?)",
		},
		list: dbmodel.DBQuery{
			ID:    "LIST_" + prefix + "_HISTORY",
			Query: "SELECT ID, PARENT_ID, TYPE, COMMENT, CREATED_BY, CREATED_AT FROM " + table + " WHERE PARENT_ID = ? ORDER BY CREATED_AT DESC, SEQ DESC LIMIT ? OFFSET ?",
		},
		count: dbmodel.DBQuery{
			ID:    "COUNT_" + prefix + "_HISTORY",
			Query: "SELECT COUNT(*) AS count FROM " + table + " WHERE PARENT_ID = ?",
		},
	}
}

// DBQuery objects for both history tables
var (
	formHistoryQueries    = historyQueries("FORM_HISTORY", "FORM")
	requestHistoryQueries = historyQueries("REQUEST_HISTORY", "REQUEST")
)

// HistoryStore persists audit trail records. Records are never updated or deleted.
type HistoryStore interface {
	Create(ctx context.Context, record *model.Record) error
	List(ctx context.Context, kind workflow.Kind, parentID string, limit, offset int) ([]model.Record, int, error)
}

type store struct {
	dbClient provider.DBClientInterface
}

// NewStore creates and returns a new history store (exported for registry)
func NewStore(dbClient provider.DBClientInterface) interface{} {
	return newHistoryStore(dbClient)
}

func newHistoryStore(dbClient provider.DBClientInterface) HistoryStore {
	return &store{dbClient: dbClient}
}

func queriesFor(kind workflow.Kind) (queries, error) {
	switch kind {
	case workflow.KindForm:
		return formHistoryQueries, nil
	case workflow.KindRequest:
		return requestHistoryQueries, nil
	}
	return queries{}, fmt.Errorf("unknown history kind %q", kind)
}

// Create appends a record
func (s *store) Create(ctx context.Context, record *model.Record) error {
	q, err := queriesFor(record.Kind)
	if err != nil {
		return err
	}
	_, err = s.dbClient.Execute(ctx, q.create,
		record.ID, record.ParentID, string(record.Type), record.Comment, record.CreatedBy, record.CreatedAt)
	return err
}

// List returns one page of records, newest first, and the total count
func (s *store) List(ctx context.Context, kind workflow.Kind, parentID string, limit, offset int) ([]model.Record, int, error) {
	q, err := queriesFor(kind)
	if err != nil {
		return nil, 0, err
	}

	countRows, err := s.dbClient.Query(ctx, q.count, parentID)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(countRows) > 0 {
		total = int(provider.RowInt64(countRows[0], "count"))
	}

	rows, err := s.dbClient.Query(ctx, q.list, parentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapToRecord(row, kind))
	}
	return records, total, nil
}

func mapToRecord(row dbmodel.Row, kind workflow.Kind) model.Record {
	return model.Record{
		ID:        provider.RowString(row, "ID"),
		Kind:      kind,
		ParentID:  provider.RowString(row, "PARENT_ID"),
		Type:      workflow.HistoryType(provider.RowString(row, "TYPE")),
		Comment:   provider.RowStringPtr(row, "COMMENT"),
		CreatedBy: provider.RowStringPtr(row, "CREATED_BY"),
		CreatedAt: provider.RowTime(row, "CREATED_AT"),
	}
}
