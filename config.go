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
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultIndex is the index documents are written to when
	// Config.Index is empty.
	DefaultIndex = "geonames"

	// DefaultBufferRecords is the number of documents committed per bulk
	// request when IndexOptions.BufferRecords is not set.
	DefaultBufferRecords = 1000
)

// Config holds configuration for Indexer.
//
// A Config is read once by New; changing it afterwards has no effect.
type Config struct {
	// DataPath holds the directory containing the extracted <ISO2>.txt
	// files. It must not be empty.
	DataPath string

	// Index holds the name of the target index.
	//
	// If Index is empty, the default of "geonames" will be used.
	Index string

	// Type holds the optional mapping type of the target index. Clusters
	// running Elasticsearch 7 or later should leave it empty.
	Type string

	// Logger holds an optional Logger to use for logging indexing requests.
	//
	// If Logger is nil, logging will be disabled.
	Logger *zap.Logger

	// Tracer holds an optional apm.Tracer to use for tracing indexing
	// runs. Each country is traced as a transaction, and each bulk
	// request as a span.
	//
	// If Tracer is nil, runs will not be traced with Elastic APM.
	Tracer *apm.Tracer

	// TracerProvider holds an optional OTel TracerProvider. Each bulk
	// request is traced as a span.
	//
	// If TracerProvider is nil, requests will not be traced with OTel.
	TracerProvider trace.TracerProvider

	// CompressionLevel holds the gzip compression level, from 0 (gzip.NoCompression)
	// to 9 (gzip.BestCompression). Higher values provide greater compression, at a
	// greater cost of CPU. The special value -1 (gzip.DefaultCompression) selects the
	// default compression level.
	CompressionLevel int

	// MeterProvider holds the OTel MeterProvider to be used to create and
	// record indexer metrics.
	//
	// If unset, the global OTel MeterProvider will be used, if that is unset,
	// no metrics will be recorded.
	MeterProvider metric.MeterProvider

	// MetricAttributes holds any extra attributes to set in the recorded
	// metrics.
	MetricAttributes attribute.Set
}

// IndexOptions holds the options of a single Index call.
type IndexOptions struct {
	// BufferRecords holds the number of documents buffered before they
	// are committed in one bulk request.
	//
	// If BufferRecords is less than or equal to zero, the default of 1000
	// will be used.
	BufferRecords int

	// ClassFilters restricts indexing to records whose feature class is
	// one of the listed single-character classes, e.g. "P" for populated
	// places. If empty, every record is indexed.
	ClassFilters []string

	// BufferAdded, if non-nil, is called after every successful bulk
	// request with the number of records processed so far.
	BufferAdded func(processed int64)
}

// RunOptions holds the options of an IndexCountries call.
type RunOptions struct {
	IndexOptions

	// CountryDone, if non-nil, is called after each country has been
	// indexed successfully.
	CountryDone func(countryCode string, counters Counters)
}

// Counters holds the number of records read from a source file, and the
// number of those which passed the class filter.
//
// Counters reflect records seen by the pipeline, not records durably
// stored: if a bulk request fails, the records of the failed batch have
// already been counted.
type Counters struct {
	Processed int64
	Added     int64
}

func (c *Counters) add(o Counters) {
	c.Processed += o.Processed
	c.Added += o.Added
}
