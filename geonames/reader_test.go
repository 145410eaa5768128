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

package geonames_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunske/geolistic/geonames"
)

func readAll(t testing.TB, r *geonames.Reader) [][]string {
	var records [][]string
	for {
		fields, err := r.Read()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, fields)
	}
}

func TestReader(t *testing.T) {
	input := "1\tone\t\"quoted\n" +
		"\n" +
		"2\ttwo\r\n" +
		"3\tthree\t\t\textra\n"
	records := readAll(t, geonames.NewReader(strings.NewReader(input)))
	assert.Equal(t, [][]string{
		{"1", "one", `"quoted`},
		{"2", "two"},
		{"3", "three", "", "", "extra"},
	}, records)
}

func TestReaderComment(t *testing.T) {
	input := "# ISO\tISO3\n#\nAD\tAND\nAE\tARE\n"
	r := geonames.NewReader(strings.NewReader(input))
	r.Comment = '#'
	records := readAll(t, r)
	assert.Equal(t, [][]string{{"AD", "AND"}, {"AE", "ARE"}}, records)
	assert.Equal(t, 4, r.Line())
}

func TestReaderLongLine(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	r := geonames.NewReader(strings.NewReader("1\t" + long + "\n"))
	records := readAll(t, r)
	require.Len(t, records, 1)
	assert.Len(t, records[0][1], len(long))
}

func TestReaderVeryLongLine(t *testing.T) {
	long := strings.Repeat("x", 3*1024*1024)
	r := geonames.NewReader(strings.NewReader("1\t" + long + "\n2\tshort"))
	records := readAll(t, r)
	require.Len(t, records, 2)
	assert.Len(t, records[0][1], len(long))
	assert.Equal(t, []string{"2", "short"}, records[1])
	assert.Equal(t, 2, r.Line())
}

func TestReaderError(t *testing.T) {
	errRead := errors.New("connection reset")
	r := geonames.NewReader(io.MultiReader(strings.NewReader("1\tone\n"), iotest.ErrReader(errRead)))
	fields, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "one"}, fields)
	_, err = r.Read()
	assert.ErrorIs(t, err, errRead)
	assert.ErrorContains(t, err, "reading line 2")
}

func TestReaderEmpty(t *testing.T) {
	r := geonames.NewReader(strings.NewReader(""))
	fields, err := r.Read()
	assert.Nil(t, fields)
	assert.Equal(t, io.EOF, err)
}
