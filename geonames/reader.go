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

// Package geonames parses the tab-delimited dump files published by
// GeoNames and maps their positional fields onto named records.
package geonames

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Reader reads tab-separated records from an io.Reader.
//
// Fields are split on every tab; there is no quoting and no escape
// character, so a double quote is an ordinary byte. The number of fields
// per line is not checked, and lines may be of any length. Blank lines
// are skipped.
type Reader struct {
	// Comment, if not zero, is a marker character. Lines beginning with
	// it are skipped.
	Comment rune

	r    *bufio.Reader
	line int
	eof  bool
}

// NewReader returns a new Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Read returns the fields of the next record. At the end of the input
// Read returns nil, io.EOF.
func (r *Reader) Read() ([]string, error) {
	for !r.eof {
		text, err := r.r.ReadString('\n')
		if err == io.EOF {
			r.eof = true
			if text == "" {
				break
			}
		} else if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", r.line+1, err)
		}
		r.line++
		text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
		if text == "" {
			continue
		}
		if r.Comment != 0 && strings.HasPrefix(text, string(r.Comment)) {
			continue
		}
		return strings.Split(text, "\t"), nil
	}
	return nil, io.EOF
}

// Line returns the number of the line most recently read.
func (r *Reader) Line() int {
	return r.line
}
