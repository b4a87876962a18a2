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

package model

// DBQueryInterface defines the interface for database queries.
type DBQueryInterface interface {
	GetID() string
	GetQuery(dbType string) string
}

var _ DBQueryInterface = (*DBQuery)(nil)

// DBQuery represents a named SQL statement.
// Query is written for MySQL; MariaDBQuery overrides it where the dialects differ.
type DBQuery struct {
	// ID is the unique identifier for the query, used in logs.
	ID string `json:"id"`
	// Query is the default query (MySQL syntax).
	Query string `json:"query"`
	// MariaDBQuery is the MariaDB-specific variant.
	MariaDBQuery string `json:"mariadb_query,omitempty"`
}

// GetID returns the unique identifier for the query.
func (d *DBQuery) GetID() string {
	return d.ID
}

// GetQuery returns the appropriate query for the specified database type.
func (d *DBQuery) GetQuery(dbType string) string {
	if dbType == "mariadb" && d.MariaDBQuery != "" {
		return d.MariaDBQuery
	}
	return d.Query
}

// WithSQL returns a copy of the query with its statement replaced.
// Stores use it for statements assembled at runtime, such as filtered list queries.
func (d DBQuery) WithSQL(sql string) DBQuery {
	return DBQuery{ID: d.ID, Query: sql}
}
