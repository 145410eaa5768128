// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package geolistic

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed country codes, class
	// filters and index names.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when the source file of a country does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrSchemaMissing is matched by *SchemaMissingError.
	ErrSchemaMissing = errors.New("schema missing")

	// ErrStore is matched by *StoreError.
	ErrStore = errors.New("store error")

	// ErrConfig is returned by New for an unusable configuration.
	ErrConfig = errors.New("invalid config")
)

// Missing values reported by SchemaMissingError.
const (
	MissingIndex = "index"
	MissingType  = "type"
)

// SchemaMissingError is returned when Elasticsearch rejects a bulk
// request because the target index, or the target mapping type, does not
// exist.
type SchemaMissingError struct {
	Index string
	Type  string

	// Missing is either MissingIndex or MissingType.
	Missing string

	// Reason holds the reason reported by Elasticsearch.
	Reason string
}

func (e *SchemaMissingError) Error() string {
	if e.Missing == MissingType {
		return fmt.Sprintf("type %q does not exist in index %q: %s", e.Type, e.Index, e.Reason)
	}
	return fmt.Sprintf("index %q does not exist: %s", e.Index, e.Reason)
}

func (e *SchemaMissingError) Is(target error) bool { return target == ErrSchemaMissing }

// StoreError is returned for any failed bulk request which is not a
// SchemaMissingError.
type StoreError struct {
	// StatusCode holds the HTTP status of the bulk response, or zero if
	// no response was received.
	StatusCode int

	// Type and Reason hold the first error reported by Elasticsearch.
	Type   string
	Reason string

	// Failed holds the number of documents rejected in an otherwise
	// successful bulk response.
	Failed int

	Err error
}

func (e *StoreError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("bulk request failed: %v", e.Err)
	case e.Failed > 0:
		return fmt.Sprintf("bulk request failed: %d documents rejected (%s): %s", e.Failed, e.Type, e.Reason)
	}
	return fmt.Sprintf("bulk request failed (%d): %s: %s", e.StatusCode, e.Type, e.Reason)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }
