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

package utils

import (
	"fmt"
	"strings"

	dbmodel "github.com/waterreg/registry-server/internal/system/database/model"
)

// Select assembles the count and page queries of a filtered listing.
type Select struct {
	name       string
	columns    string
	from       string
	conditions []string
	args       []interface{}
}

// NewSelect starts a listing of columns over from, e.g. "FORMS F".
// name is used in the query ids.
func NewSelect(name, columns, from string) *Select {
	return &Select{name: name, columns: columns, from: from}
}

// Where adds a predicate joined with AND.
func (s *Select) Where(condition string, args ...interface{}) *Select {
	s.conditions = append(s.conditions, condition)
	s.args = append(s.args, args...)
	return s
}

// WhereAll adds several predicates sharing one argument list.
func (s *Select) WhereAll(conditions []string, args []interface{}) *Select {
	s.conditions = append(s.conditions, conditions...)
	s.args = append(s.args, args...)
	return s
}

// Args returns the arguments of all predicates in order.
func (s *Select) Args() []interface{} {
	return s.args
}

// Count returns the query counting all matching rows into a "count" column.
func (s *Select) Count() dbmodel.DBQuery {
	return dbmodel.DBQuery{
		ID:    "COUNT_" + s.name,
		Query: s.where("SELECT COUNT(*) AS count FROM " + s.from),
	}
}

// Page returns one page of matching rows, newest first by orderBy.
func (s *Select) Page(orderBy string, limit, offset int) dbmodel.DBQuery {
	return dbmodel.DBQuery{
		ID: "LIST_" + s.name,
		Query: fmt.Sprintf("%s ORDER BY %s DESC LIMIT %d OFFSET %d",
			s.where("SELECT "+s.columns+" FROM "+s.from), orderBy, limit, offset),
	}
}

func (s *Select) where(base string) string {
	if len(s.conditions) == 0 {
		return base
	}
	return base + " WHERE " + strings.Join(s.conditions, " AND ")
}
