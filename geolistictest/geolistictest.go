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

// Package geolistictest provides test doubles for the Elasticsearch
// store and a small GeoNames fixture.
package geolistictest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"go.elastic.co/apm/module/apmelasticsearch/v2"
)

const (
	// TestCountry is the country code of the fixture in DataPath.
	TestCountry = "ZZ"

	// TestCountryRecords is the number of records in the fixture.
	TestCountryRecords = 109

	// TestCountryPopulatedPlaces is the number of fixture records with
	// feature class "P".
	TestCountryPopulatedPlaces = 45
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DataPath returns the directory holding the TestCountry source file.
func DataPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// BulkAction is one action of a /_bulk request body.
type BulkAction struct {
	Action string
	Index  string
	Type   string
	ID     string
	Source []byte
}

// DecodeBulkRequest decodes a /_bulk request's body, returning the decoded actions and a response body.
func DecodeBulkRequest(r *http.Request) ([]BulkAction, esutil.BulkIndexerResponse) {
	actions, err := decodeBulkBody(r.Body, r.Header.Get("Content-Encoding"))
	if err != nil {
		panic(err)
	}
	var result esutil.BulkIndexerResponse
	for _, action := range actions {
		item := esutil.BulkIndexerResponseItem{
			Index:      action.Index,
			DocumentID: action.ID,
			Status:     http.StatusCreated,
		}
		result.Items = append(result.Items, map[string]esutil.BulkIndexerResponseItem{action.Action: item})
	}
	return actions, result
}

func decodeBulkBody(body io.Reader, contentEncoding string) ([]BulkAction, error) {
	if contentEncoding == "gzip" {
		r, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		body = r
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(nil, 1<<20)
	var actions []BulkAction
	for scanner.Scan() {
		directive := make(map[string]struct {
			Index string `json:"_index"`
			Type  string `json:"_type"`
			ID    string `json:"_id"`
		})
		if err := json.Unmarshal(scanner.Bytes(), &directive); err != nil {
			return nil, err
		}
		var action BulkAction
		for name, meta := range directive {
			action.Action = name
			action.Index = meta.Index
			action.Type = meta.Type
			action.ID = meta.ID
		}
		if !scanner.Scan() {
			return nil, fmt.Errorf("expected source for action %q", action.Action)
		}
		action.Source = append([]byte{}, scanner.Bytes()...)
		if !json.Valid(action.Source) {
			return nil, fmt.Errorf("invalid JSON: %s", action.Source)
		}
		actions = append(actions, action)
	}
	return actions, scanner.Err()
}

// NewMockElasticsearchClient returns an elasticsearch.Client which sends /_bulk requests to bulkHandler.
func NewMockElasticsearchClient(t testing.TB, bulkHandler http.HandlerFunc) *elasticsearch.Client {
	config := NewMockElasticsearchClientConfig(t, bulkHandler)
	client, err := elasticsearch.NewClient(config)
	require.NoError(t, err)
	return client
}

// NewMockElasticsearchClientConfig starts an httptest.Server, and returns an elasticsearch.Config which
// sends /_bulk requests to bulkHandler. The httptest.Server will be closed via t.Cleanup.
func NewMockElasticsearchClientConfig(t testing.TB, bulkHandler http.HandlerFunc) elasticsearch.Config {
	mux := http.NewServeMux()
	HandleBulk(mux, bulkHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	config := elasticsearch.Config{}
	config.Addresses = []string{srv.URL}
	config.DisableRetry = true
	config.Transport = apmelasticsearch.WrapRoundTripper(http.DefaultTransport)

	return config
}

// HandleBulk registers bulkHandler with mux for handling /_bulk requests,
// wrapping bulkHandler to conform with go-elasticsearch version checking.
func HandleBulk(mux *http.ServeMux, bulkHandler http.HandlerFunc) {
	mux.HandleFunc("/_bulk", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		bulkHandler.ServeHTTP(w, r)
	})
}

// NopTransport acknowledges every bulk request without storing anything.
// It stands in for a cluster when records only need to be counted.
type NopTransport struct {
	requests  atomic.Int64
	documents atomic.Int64
}

// Perform implements elastictransport.Interface.
func (t *NopTransport) Perform(req *http.Request) (*http.Response, error) {
	t.requests.Add(1)
	var result esutil.BulkIndexerResponse
	if req.Body != nil {
		defer req.Body.Close()
		actions, err := decodeBulkBody(req.Body, req.Header.Get("Content-Encoding"))
		if err != nil {
			return nil, err
		}
		for _, action := range actions {
			result.Items = append(result.Items, map[string]esutil.BulkIndexerResponseItem{
				action.Action: {Index: action.Index, DocumentID: action.ID, Status: http.StatusCreated},
			})
		}
		t.documents.Add(int64(len(actions)))
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// Requests returns the number of requests performed.
func (t *NopTransport) Requests() int64 {
	return t.requests.Load()
}

// Documents returns the number of documents acknowledged.
func (t *NopTransport) Documents() int64 {
	return t.documents.Load()
}
