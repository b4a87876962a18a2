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

package codes

// Error codes for the registry server
const (
	// General errors
	InternalServerError = "RSE-5000"
	DatabaseError       = "RSE-5001"
	InvalidRequest      = "RSE-4000"
	ValidationError     = "RSE-4001"
	Unauthorized        = "RSE-4010"
	Forbidden           = "RSE-4030"
	ResourceNotFound    = "RSE-4004"
	ConflictError       = "RSE-4009"
)
