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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unsafe"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"go.elastic.co/fastjson"
)

// BulkBatchConfig holds configuration for BulkBatch.
var errMissingBody = errors.New("missing document body")

type BulkBatchConfig struct {
	// Client holds the Elasticsearch client.
	Client esapi.Transport

	// Index holds the name of the index documents are written to.
	Index string

	// Type holds the optional mapping type written in each directive.
	// Mapping types were removed in Elasticsearch 8; leave Type empty
	// unless the cluster still uses them.
	Type string

	// MaxDocuments holds the number of documents at which the batch
	// reports itself full. Each document occupies two slots: the index
	// directive and the document body.
	//
	// If MaxDocuments is less than or equal to zero, the default of 1000
	// will be used.
	MaxDocuments int

	// CompressionLevel holds the gzip compression level, from 0 (gzip.NoCompression)
	// to 9 (gzip.BestCompression). Higher values provide greater compression, at a
	// greater cost of CPU. The special value -1 (gzip.DefaultCompression) selects the
	// default compression level.
	CompressionLevel int
}

// BulkBatch accumulates pairs of index directives and documents, and
// commits them to Elasticsearch in a single _bulk request.
//
// BulkBatch is not safe for concurrent use.
type BulkBatch struct {
	config       BulkBatchConfig
	itemsAdded   int
	bytesFlushed int
	jsonw        fastjson.Writer
	writer       io.Writer
	gzipw        *gzip.Writer
	buf          bytes.Buffer
}

// BulkBatchItem is a single document of a batch.
type BulkBatchItem struct {
	DocumentID string
	Body       fastjson.Marshaler
}

// BulkResponseStat summarises a _bulk response.
type BulkResponseStat struct {
	Indexed    int64
	FailedDocs []BulkResponseItem
}

// BulkResponseItem represents a failed item of a _bulk response.
type BulkResponseItem struct {
	Index      string `json:"_index"`
	DocumentID string `json:"_id"`
	Status     int    `json:"status"`

	Position int

	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// errorResponse is the body of a non-2xx _bulk response. Clusters older
// than 5.0 report the error as a plain string, which is kept as Reason.
type errorResponse struct {
	Error  errorCause `json:"error"`
	Status int        `json:"status"`
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e *errorCause) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return jsoniter.Unmarshal(data, &e.Reason)
	}
	type cause errorCause
	return jsoniter.Unmarshal(data, (*cause)(e))
}

func init() {
	jsoniter.RegisterTypeDecoderFunc("geolistic.BulkResponseStat", func(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
		stat := (*BulkResponseStat)(ptr)
		iter.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
			if s != "items" {
				i.Skip()
				return true
			}
			var idx int
			i.ReadArrayCB(func(i *jsoniter.Iterator) bool {
				return i.ReadMapCB(func(i *jsoniter.Iterator, action string) bool {
					var item BulkResponseItem
					i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
						switch s {
						case "_index":
							item.Index = i.ReadString()
						case "_id":
							item.DocumentID = i.ReadString()
						case "status":
							item.Status = i.ReadInt()
						case "error":
							if i.WhatIsNext() == jsoniter.StringValue {
								item.Error.Reason = i.ReadString()
								break
							}
							i.ReadObjectCB(func(i *jsoniter.Iterator, s string) bool {
								switch s {
								case "type":
									item.Error.Type = i.ReadString()
								case "reason":
									item.Error.Reason = i.ReadString()
								default:
									i.Skip()
								}
								return true
							})
						default:
							i.Skip()
						}
						return true
					})
					item.Position = idx
					idx++
					if item.Error.Type != "" || item.Status > 201 {
						stat.FailedDocs = append(stat.FailedDocs, item)
					} else {
						stat.Indexed++
					}
					return true
				})
			})
			// items is the last field of interest.
			return false
		})
	})
}

// NewBulkBatch returns an empty batch which commits to cfg.Client.
func NewBulkBatch(cfg BulkBatchConfig) (*BulkBatch, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrConfig)
	}
	if err := validateIndexName(cfg.Index); err != nil {
		return nil, err
	}
	if cfg.CompressionLevel < -1 || cfg.CompressionLevel > 9 {
		return nil, fmt.Errorf(
			"%w: expected CompressionLevel in range [-1,9], got %d",
			ErrConfig, cfg.CompressionLevel,
		)
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = DefaultBufferRecords
	}

	b := &BulkBatch{config: cfg}
	if cfg.CompressionLevel != gzip.NoCompression {
		b.gzipw, _ = gzip.NewWriterLevel(&b.buf, cfg.CompressionLevel)
		b.writer = b.gzipw
	} else {
		b.writer = &b.buf
	}
	return b, nil
}

func (b *BulkBatch) reset() {
	b.itemsAdded = 0
	b.buf.Reset()
	if b.gzipw != nil {
		b.gzipw.Reset(&b.buf)
	}
}

// Items returns the number of buffered documents.
func (b *BulkBatch) Items() int {
	return b.itemsAdded
}

// Len returns the number of buffered slots, two per document.
func (b *BulkBatch) Len() int {
	return 2 * b.itemsAdded
}

// Full reports whether the batch holds MaxDocuments documents or more.
func (b *BulkBatch) Full() bool {
	return b.Len() >= 2*b.config.MaxDocuments
}

// Size returns the number of buffered bytes.
func (b *BulkBatch) Size() int {
	return b.buf.Len()
}

// BytesFlushed returns the number of bytes sent by the last Flush.
func (b *BulkBatch) BytesFlushed() int {
	return b.bytesFlushed
}

// Add encodes the directive and document body of item in the buffer.
func (b *BulkBatch) Add(item BulkBatchItem) error {
	if item.Body == nil {
		return errMissingBody
	}
	b.writeMeta(item.DocumentID)
	if err := item.Body.MarshalFastJSON(&b.jsonw); err != nil {
		b.jsonw.Reset()
		return fmt.Errorf("failed to encode document %q: %w", item.DocumentID, err)
	}
	b.jsonw.RawByte('\n')
	if _, err := b.writer.Write(b.jsonw.Bytes()); err != nil {
		b.jsonw.Reset()
		return fmt.Errorf("failed to write bulk batch item: %w", err)
	}
	b.jsonw.Reset()
	b.itemsAdded++
	return nil
}

// writeMeta writes the index directive into jsonw. The directive and the
// body are written to the buffer together by Add.
func (b *BulkBatch) writeMeta(documentID string) {
	b.jsonw.RawString(`{"index":{"_index":`)
	b.jsonw.String(b.config.Index)
	if b.config.Type != "" {
		b.jsonw.RawString(`,"_type":`)
		b.jsonw.String(b.config.Type)
	}
	if documentID != "" {
		b.jsonw.RawString(`,"_id":`)
		b.jsonw.String(documentID)
	}
	b.jsonw.RawString("}}\n")
}

// Flush executes a bulk request if there are any documents buffered, and
// clears out the buffer. The buffer is cleared whether or not the request
// succeeds.
//
// Flush returns a *SchemaMissingError if the index or type does not
// exist, and a *StoreError for every other failure, including responses
// in which any document was rejected.
func (b *BulkBatch) Flush(ctx context.Context) (BulkResponseStat, error) {
	if b.itemsAdded == 0 {
		return BulkResponseStat{}, nil
	}
	defer b.reset()

	if b.gzipw != nil {
		if err := b.gzipw.Close(); err != nil {
			return BulkResponseStat{}, fmt.Errorf("failed closing the gzip writer: %w", err)
		}
	}

	req := esapi.BulkRequest{
		Body:   &b.buf,
		Header: make(http.Header),
		FilterPath: []string{
			"items.*._index", "items.*._id", "items.*.status",
			"items.*.error.type", "items.*.error.reason",
			"error.type", "error.reason", "status",
		},
	}
	if b.gzipw != nil {
		req.Header.Set("Content-Encoding", "gzip")
	}

	bytesFlushed := b.buf.Len()
	res, err := req.Do(ctx, b.config.Client)
	if err != nil {
		return BulkResponseStat{}, &StoreError{Err: fmt.Errorf("failed to execute the request: %w", err)}
	}
	defer res.Body.Close()

	// Record the number of flushed bytes only when err == nil. The body may
	// not have been sent otherwise.
	b.bytesFlushed = bytesFlushed

	var resp BulkResponseStat
	if res.IsError() {
		var body errorResponse
		if err := jsoniter.NewDecoder(res.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return resp, &StoreError{
				StatusCode: res.StatusCode,
				Err:        fmt.Errorf("flush failed (%d): error decoding response: %w", res.StatusCode, err),
			}
		}
		if err := b.schemaMissing(body.Error.Type, body.Error.Reason); err != nil {
			return resp, err
		}
		return resp, &StoreError{
			StatusCode: res.StatusCode,
			Type:       body.Error.Type,
			Reason:     body.Error.Reason,
		}
	}

	if err := jsoniter.NewDecoder(res.Body).Decode(&resp); err != nil {
		return resp, &StoreError{
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("error decoding bulk response: %w", err),
		}
	}
	if len(resp.FailedDocs) == 0 {
		return resp, nil
	}
	for _, item := range resp.FailedDocs {
		if err := b.schemaMissing(item.Error.Type, item.Error.Reason); err != nil {
			return resp, err
		}
	}
	first := resp.FailedDocs[0]
	return resp, &StoreError{
		StatusCode: res.StatusCode,
		Type:       first.Error.Type,
		Reason:     first.Error.Reason,
		Failed:     len(resp.FailedDocs),
	}
}

// schemaMissing returns a *SchemaMissingError if the error reported by
// Elasticsearch means the index or mapping type does not exist. Both the
// current exception names and the pre-5.0 class names are recognised.
func (b *BulkBatch) schemaMissing(errType, reason string) error {
	var missing string
	switch {
	case errType == "index_not_found_exception",
		strings.Contains(errType, "IndexMissingException"),
		strings.Contains(reason, "IndexMissingException"):
		missing = MissingIndex
	case errType == "type_missing_exception",
		strings.Contains(errType, "TypeMissingException"),
		strings.Contains(reason, "TypeMissingException"):
		missing = MissingType
	default:
		return nil
	}
	return &SchemaMissingError{
		Index:   b.config.Index,
		Type:    b.config.Type,
		Missing: missing,
		Reason:  reason,
	}
}

// validateIndexName applies the Elasticsearch index naming rules.
func validateIndexName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: index name is empty", ErrInvalidArgument)
	case name == "." || name == "..":
		return fmt.Errorf("%w: index name %q is reserved", ErrInvalidArgument, name)
	case strings.ToLower(name) != name:
		return fmt.Errorf("%w: index name %q must be lowercase", ErrInvalidArgument, name)
	case strings.ContainsAny(name, `\/*?"<>| ,#:`):
		return fmt.Errorf("%w: index name %q contains an invalid character", ErrInvalidArgument, name)
	case strings.IndexAny(name[:1], "-_+") == 0:
		return fmt.Errorf("%w: index name %q must not start with '-', '_' or '+'", ErrInvalidArgument, name)
	}
	return nil
}
