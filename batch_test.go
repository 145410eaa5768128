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

package geolistic_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunske/geolistic"
	"github.com/gunske/geolistic/geolistictest"
	"github.com/gunske/geolistic/geonames"
)

func TestBulkBatch(t *testing.T) {
	for _, tc := range []struct {
		Name             string
		CompressionLevel int
	}{
		{Name: "no_compression", CompressionLevel: gzip.NoCompression},
		{Name: "default_compression", CompressionLevel: gzip.DefaultCompression},
		{Name: "most_compression", CompressionLevel: gzip.BestCompression},
		{Name: "speed_compression", CompressionLevel: gzip.BestSpeed},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			var actions []geolistictest.BulkAction
			client := geolistictest.NewMockElasticsearchClient(t, func(w http.ResponseWriter, r *http.Request) {
				var result esutil.BulkIndexerResponse
				actions, result = geolistictest.DecodeBulkRequest(r)
				json.NewEncoder(w).Encode(result)
			})
			batch, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
				Client:           client,
				Index:            "geonames",
				MaxDocuments:     10,
				CompressionLevel: tc.CompressionLevel,
			})
			require.NoError(t, err)

			const N = 7
			for i := 0; i < N; i++ {
				require.NoError(t, batch.Add(locationItem(i)))
			}
			assert.Equal(t, N, batch.Items())
			assert.Equal(t, 2*N, batch.Len())
			assert.False(t, batch.Full())
			assert.Positive(t, batch.Size())

			stat, err := batch.Flush(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(N), stat.Indexed)
			assert.Empty(t, stat.FailedDocs)
			assert.Positive(t, batch.BytesFlushed())

			// The buffer is cleared after a successful commit.
			assert.Equal(t, 0, batch.Len())
			assert.Equal(t, 0, batch.Items())

			require.Len(t, actions, N)
			for i, action := range actions {
				assert.Equal(t, "index", action.Action)
				assert.Equal(t, "geonames", action.Index)
				assert.Empty(t, action.Type)
				assert.Equal(t, fmt.Sprint(1000+i), action.ID)

				var doc map[string]string
				require.NoError(t, json.Unmarshal(action.Source, &doc))
				assert.Equal(t, fmt.Sprintf("place %d", i), doc["name"])
				assert.Equal(t, "42.5,1.5", doc["location"])
			}
		})
	}
}

func TestBulkBatchFull(t *testing.T) {
	batch, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
		Client:       &geolistictest.NopTransport{},
		Index:        "geonames",
		MaxDocuments: 3,
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, batch.Add(locationItem(i)))
		assert.False(t, batch.Full())
	}
	require.NoError(t, batch.Add(locationItem(2)))
	assert.Equal(t, 6, batch.Len())
	assert.True(t, batch.Full())
}

func TestBulkBatchType(t *testing.T) {
	var actions []geolistictest.BulkAction
	client := geolistictest.NewMockElasticsearchClient(t, func(w http.ResponseWriter, r *http.Request) {
		var result esutil.BulkIndexerResponse
		actions, result = geolistictest.DecodeBulkRequest(r)
		json.NewEncoder(w).Encode(result)
	})
	batch, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
		Client: client,
		Index:  "geonames",
		Type:   "geoname",
	})
	require.NoError(t, err)
	require.NoError(t, batch.Add(locationItem(0)))
	_, err = batch.Flush(context.Background())
	require.NoError(t, err)

	require.Len(t, actions, 1)
	assert.Equal(t, "geoname", actions[0].Type)
}

func TestBulkBatchFlushEmpty(t *testing.T) {
	transport := &geolistictest.NopTransport{}
	batch, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
		Client: transport,
		Index:  "geonames",
	})
	require.NoError(t, err)
	stat, err := batch.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, geolistic.BulkResponseStat{}, stat)
	assert.Zero(t, transport.Requests())
}

func TestBulkBatchMissingBody(t *testing.T) {
	batch, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
		Client: &geolistictest.NopTransport{},
		Index:  "geonames",
	})
	require.NoError(t, err)
	assert.Error(t, batch.Add(geolistic.BulkBatchItem{DocumentID: "1"}))
	assert.Equal(t, 0, batch.Len())
}

func TestBulkBatchFlushErrors(t *testing.T) {
	type testcase struct {
		status  int
		body    string
		items   func(result *esutil.BulkIndexerResponse)
		check   func(t *testing.T, err error)
		indexed int64
	}
	test := func(t *testing.T, tc testcase) {
		client := geolistictest.NewMockElasticsearchClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, result := geolistictest.DecodeBulkRequest(r)
			if tc.body != "" {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
				return
			}
			tc.items(&result)
			result.HasErrors = true
			json.NewEncoder(w).Encode(result)
		})
		batch, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
			Client: client,
			Index:  "geonames",
			Type:   "geoname",
		})
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, batch.Add(locationItem(i)))
		}
		stat, err := batch.Flush(context.Background())
		require.Error(t, err)
		assert.Equal(t, tc.indexed, stat.Indexed)
		tc.check(t, err)

		// The buffer is cleared even when the commit failed.
		assert.Equal(t, 0, batch.Len())
	}
	failItem := func(i int, errType, reason string) func(*esutil.BulkIndexerResponse) {
		return func(result *esutil.BulkIndexerResponse) {
			item := result.Items[i]["index"]
			item.Status = http.StatusNotFound
			item.Error.Type = errType
			item.Error.Reason = reason
			result.Items[i]["index"] = item
		}
	}
	schemaMissing := func(missing string) func(t *testing.T, err error) {
		return func(t *testing.T, err error) {
			assert.ErrorIs(t, err, geolistic.ErrSchemaMissing)
			assert.False(t, errors.Is(err, geolistic.ErrStore))
			var serr *geolistic.SchemaMissingError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, missing, serr.Missing)
			assert.Equal(t, "geonames", serr.Index)
			assert.Equal(t, "geoname", serr.Type)
		}
	}

	t.Run("index_not_found_request", func(t *testing.T) {
		test(t, testcase{
			status: http.StatusNotFound,
			body:   `{"error":{"type":"index_not_found_exception","reason":"no such index [geonames]"},"status":404}`,
			check:  schemaMissing(geolistic.MissingIndex),
		})
	})
	t.Run("index_missing_legacy_request", func(t *testing.T) {
		test(t, testcase{
			status: http.StatusNotFound,
			body:   `{"error":"IndexMissingException[[geonames] missing]","status":404}`,
			check:  schemaMissing(geolistic.MissingIndex),
		})
	})
	t.Run("index_not_found_item", func(t *testing.T) {
		test(t, testcase{
			items:   failItem(1, "index_not_found_exception", "no such index [geonames]"),
			check:   schemaMissing(geolistic.MissingIndex),
			indexed: 2,
		})
	})
	t.Run("type_missing_item", func(t *testing.T) {
		test(t, testcase{
			items:   failItem(0, "type_missing_exception", "type[geoname] missing"),
			check:   schemaMissing(geolistic.MissingType),
			indexed: 2,
		})
	})
	t.Run("type_missing_legacy_item", func(t *testing.T) {
		test(t, testcase{
			items:   failItem(2, "", "TypeMissingException[[geonames] type[geoname] missing]"),
			check:   schemaMissing(geolistic.MissingType),
			indexed: 2,
		})
	})
	t.Run("item_failure", func(t *testing.T) {
		test(t, testcase{
			items:   failItem(1, "mapper_parsing_exception", "failed to parse field [location]"),
			indexed: 2,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, geolistic.ErrStore)
				var serr *geolistic.StoreError
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, 1, serr.Failed)
				assert.Equal(t, "mapper_parsing_exception", serr.Type)
			},
		})
	})
	t.Run("server_error", func(t *testing.T) {
		test(t, testcase{
			status: http.StatusInternalServerError,
			body:   `{"error":{"type":"illegal_state_exception","reason":"boom"},"status":500}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, geolistic.ErrStore)
				var serr *geolistic.StoreError
				require.ErrorAs(t, err, &serr)
				assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
				assert.Equal(t, "illegal_state_exception", serr.Type)
				assert.Equal(t, "boom", serr.Reason)
			},
		})
	})
}

func TestNewBulkBatchInvalidConfig(t *testing.T) {
	_, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{Index: "geonames"})
	assert.ErrorIs(t, err, geolistic.ErrConfig)

	for _, index := range []string{"", "GeoNames", "_geonames", "geo names", "geo/names"} {
		_, err := geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
			Client: &geolistictest.NopTransport{},
			Index:  index,
		})
		assert.ErrorIs(t, err, geolistic.ErrInvalidArgument, index)
	}

	_, err = geolistic.NewBulkBatch(geolistic.BulkBatchConfig{
		Client:           &geolistictest.NopTransport{},
		Index:            "geonames",
		CompressionLevel: 10,
	})
	assert.ErrorIs(t, err, geolistic.ErrConfig)
}

func locationItem(i int) geolistic.BulkBatchItem {
	id := fmt.Sprint(1000 + i)
	loc := geonames.Location{
		GeonameID:    id,
		Name:         fmt.Sprintf("place %d", i),
		Latitude:     "42.5",
		Longitude:    "1.5",
		FeatureClass: "P",
		CountryCode:  "ZZ",
	}
	return geolistic.BulkBatchItem{DocumentID: id, Body: &loc}
}
