// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyID indicates a missing entity identifier.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrEmptyFileName indicates the document FileName field is empty.
	ErrEmptyFileName = errors.New("file name cannot be empty")

	// ErrEmptyQueryText indicates the query Text field is empty.
	ErrEmptyQueryText = errors.New("query text cannot be empty")

	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNonContiguousPages indicates page numbers are not contiguous from 0.
	ErrNonContiguousPages = errors.New("page numbers must be contiguous from 0")

	// ErrTimestampOrder indicates lifecycle timestamps are out of order.
	ErrTimestampOrder = errors.New("lifecycle timestamps out of order")
)
