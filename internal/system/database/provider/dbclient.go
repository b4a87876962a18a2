/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
	"github.com/waterreg/registry-server/internal/system/log"
)

// DBClientInterface runs named queries against one datasource.
type DBClientInterface interface {
	Query(ctx context.Context, query dbmodel.DBQuery, args ...interface{}) ([]dbmodel.Row, error)
	Execute(ctx context.Context, query dbmodel.DBQuery, args ...interface{}) (int64, error)
	BeginTx(ctx context.Context) (dbmodel.TxInterface, error)
	// In expands slice arguments of an IN (?) query.
	In(query dbmodel.DBQuery, args ...interface{}) (dbmodel.DBQuery, []interface{}, error)
	Ping(ctx context.Context) error
}

type dbClient struct {
	db     *sqlx.DB
	dbType string
}

var _ DBClientInterface = (*dbClient)(nil)

// NewDBClient creates a client over an open connection.
func NewDBClient(db *sqlx.DB, dbType string) DBClientInterface {
	return &dbClient{db: db, dbType: dbType}
}

func (c *dbClient) Query(ctx context.Context, query dbmodel.DBQuery, args ...interface{}) ([]dbmodel.Row, error) {
	rows, err := c.db.QueryxContext(ctx, query.GetQuery(c.dbType), args...)
	if err != nil {
		logQueryError(query, err)
		return nil, fmt.Errorf("query %s failed: %w", query.GetID(), err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (c *dbClient) Execute(ctx context.Context, query dbmodel.DBQuery, args ...interface{}) (int64, error) {
	res, err := c.db.ExecContext(ctx, query.GetQuery(c.dbType), args...)
	if err != nil {
		logQueryError(query, err)
		return 0, fmt.Errorf("query %s failed: %w", query.GetID(), err)
	}
	return res.RowsAffected()
}

func (c *dbClient) BeginTx(ctx context.Context) (dbmodel.TxInterface, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txClient{tx: tx, dbType: c.dbType}, nil
}

func (c *dbClient) In(query dbmodel.DBQuery, args ...interface{}) (dbmodel.DBQuery, []interface{}, error) {
	expanded, expandedArgs, err := sqlx.In(query.GetQuery(c.dbType), args...)
	if err != nil {
		return query, nil, fmt.Errorf("failed to expand query %s: %w", query.GetID(), err)
	}
	return query.WithSQL(c.db.Rebind(expanded)), expandedArgs, nil
}

func (c *dbClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// txClient runs queries inside a transaction.
type txClient struct {
	tx     *sqlx.Tx
	dbType string
}

func (t *txClient) Exec(query dbmodel.DBQuery, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.Exec(query.GetQuery(t.dbType), args...)
	if err != nil {
		logQueryError(query, err)
		return nil, fmt.Errorf("query %s failed: %w", query.GetID(), err)
	}
	return res, nil
}

func (t *txClient) Query(query dbmodel.DBQuery, args ...interface{}) ([]dbmodel.Row, error) {
	rows, err := t.tx.Queryx(query.GetQuery(t.dbType), args...)
	if err != nil {
		logQueryError(query, err)
		return nil, fmt.Errorf("query %s failed: %w", query.GetID(), err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (t *txClient) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *txClient) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// scanRows reads every row into a column map. Text columns come back from
// the MySQL driver as []byte and are converted to string.
func scanRows(rows *sqlx.Rows) ([]dbmodel.Row, error) {
	result := make([]dbmodel.Row, 0)
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func logQueryError(query dbmodel.DBQuery, err error) {
	log.GetLogger().With(log.String(log.LoggerKeyComponentName, "DBClient")).
		Error("Query execution failed", log.String("query_id", query.GetID()), log.Error(err))
}

// RowString reads a string column, tolerating NULL.
func RowString(row dbmodel.Row, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// RowStringPtr reads a nullable string column.
func RowStringPtr(row dbmodel.Row, key string) *string {
	if row[key] == nil {
		return nil
	}
	s := RowString(row, key)
	return &s
}

// RowInt64 reads an integer column.
func RowInt64(row dbmodel.Row, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case string:
		var n int64
		fmt.Sscan(v, &n)
		return n
	default:
		return 0
	}
}

// RowBool reads a TINYINT(1) column.
func RowBool(row dbmodel.Row, key string) bool {
	if b, ok := row[key].(bool); ok {
		return b
	}
	return RowInt64(row, key) != 0
}

// RowTime reads a DATETIME column.
func RowTime(row dbmodel.Row, key string) time.Time {
	if t, ok := row[key].(time.Time); ok {
		return t
	}
	return time.Time{}
}

// RowTimePtr reads a nullable DATETIME column.
func RowTimePtr(row dbmodel.Row, key string) *time.Time {
	if t, ok := row[key].(time.Time); ok {
		return &t
	}
	return nil
}

// NullString maps "" to NULL for nullable columns.
func NullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
