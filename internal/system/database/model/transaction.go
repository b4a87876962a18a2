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

import (
	"context"
	"errors"
	"fmt"
)

// ExecuteTransaction runs queries in order inside one transaction. The first
// failing query rolls everything back and its error is returned wrapped, so
// callers can still match sentinel errors with errors.Is. A panicking query
// rolls back before the panic continues.
func ExecuteTransaction(ctx context.Context, db TxBeginner, queries []func(tx TxInterface) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	for i, query := range queries {
		if qErr := query(tx); qErr != nil {
			qErr = fmt.Errorf("query %d failed: %w", i, qErr)
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				return errors.Join(qErr, fmt.Errorf("rollback failed: %w", rollbackErr))
			}
			return qErr
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
