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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"go.elastic.co/apm/module/apmzap/v2"
	"go.elastic.co/apm/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gunske/geolistic/geonames"
)

// Indexer streams the per-country GeoNames dump files into an
// Elasticsearch index.
//
// Records are read, mapped and buffered one at a time. When the buffer
// holds IndexOptions.BufferRecords documents it is committed with a
// single _bulk request, and reading resumes only once Elasticsearch has
// acknowledged the request. Memory use is thus bounded by the buffer
// size, and bulk requests issued by one Indexer never overlap.
//
// An Indexer may be shared, but calls to Index are independent: each one
// owns its own buffer.
type Indexer struct {
	config  Config
	client  elastictransport.Interface
	metrics metrics

	// tracer is an OTel tracer, and should not be confused with `i.config.Tracer`
	// which is an Elastic APM Tracer.
	tracer trace.Tracer
}

// New returns a new Indexer that writes documents to Elasticsearch via
// client.
func New(client elastictransport.Interface, cfg Config) (*Indexer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is nil", ErrConfig)
	}
	if cfg.DataPath == "" {
		return nil, fmt.Errorf("%w: data path is empty", ErrConfig)
	}
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
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
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ms, err := newMetrics(cfg)
	if err != nil {
		return nil, err
	}
	indexer := &Indexer{
		config:  cfg,
		client:  client,
		metrics: ms,
	}
	if cfg.TracerProvider != nil {
		indexer.tracer = cfg.TracerProvider.Tracer("github.com/gunske/geolistic.indexer")
	}
	return indexer, nil
}

// SourcePath returns the path of the source file read for countryCode.
func (i *Indexer) SourcePath(countryCode string) string {
	return filepath.Join(i.config.DataPath, strings.ToUpper(countryCode)+".txt")
}

// Index reads the source file of countryCode and indexes its records.
//
// countryCode must be two characters long; it is validated before any
// file is opened. If the source file does not exist Index returns an
// error matching ErrNotFound. A failed bulk request stops the run
// immediately with a *SchemaMissingError or *StoreError; the counters
// returned alongside the error cover every record read until then.
func (i *Indexer) Index(ctx context.Context, countryCode string, opts IndexOptions) (Counters, error) {
	code, err := geonames.ValidateCountryCode(countryCode)
	if err != nil {
		return Counters{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	filter, err := newClassFilter(opts.ClassFilters)
	if err != nil {
		return Counters{}, err
	}
	if opts.BufferRecords <= 0 {
		opts.BufferRecords = DefaultBufferRecords
	}

	path := i.SourcePath(code)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Counters{}, fmt.Errorf("%w: no source file for country %s at %s", ErrNotFound, code, path)
		}
		return Counters{}, fmt.Errorf("opening source file for country %s: %w", code, err)
	}
	defer f.Close()

	batch, err := NewBulkBatch(BulkBatchConfig{
		Client:           i.client,
		Index:            i.config.Index,
		Type:             i.config.Type,
		MaxDocuments:     opts.BufferRecords,
		CompressionLevel: i.config.CompressionLevel,
	})
	if err != nil {
		return Counters{}, err
	}

	logger := i.config.Logger.With(zap.String("country", code))
	if i.config.Tracer != nil {
		tx := i.config.Tracer.StartTransaction("index "+code, "geolistic")
		tx.Context.SetLabel("country", code)
		ctx = apm.ContextWithTransaction(ctx, tx)
		defer tx.End()

		// Add trace IDs to logger, to associate any errors
		// below with the trace.
		logger = logger.With(apmzap.TraceContext(ctx)...)
	}

	var counters Counters
	took := timeFunc(func() {
		counters, err = i.index(ctx, f, batch, filter, opts, logger)
	})
	if err != nil {
		if tx := apm.TransactionFromContext(ctx); tx != nil {
			tx.Outcome = "failure"
			apm.CaptureError(ctx, err).Send()
		}
		return counters, err
	}
	if tx := apm.TransactionFromContext(ctx); tx != nil {
		tx.Outcome = "success"
	}
	logger.Info("country indexed",
		zap.Int64("records_processed", counters.Processed),
		zap.Int64("records_added", counters.Added),
		zap.Duration("took", took),
	)
	return counters, nil
}

func (i *Indexer) index(
	ctx context.Context,
	r io.Reader,
	batch *BulkBatch,
	filter classFilter,
	opts IndexOptions,
	logger *zap.Logger,
) (Counters, error) {
	var counters, reported Counters
	// report records the counters accumulated since the last call.
	report := func() {
		attrs := metric.WithAttributeSet(i.config.MetricAttributes)
		if d := counters.Processed - reported.Processed; d > 0 {
			i.metrics.recordsProcessed.Add(context.Background(), d, attrs)
		}
		if d := counters.Added - reported.Added; d > 0 {
			i.metrics.recordsAdded.Add(context.Background(), d, attrs)
		}
		reported = counters
	}
	defer report()

	commit := func() error {
		report()
		if err := i.flush(ctx, batch, logger); err != nil {
			return err
		}
		if opts.BufferAdded != nil {
			opts.BufferAdded(counters.Processed)
		}
		return nil
	}

	reader := geonames.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return counters, err
		}
		counters.Processed++

		loc := geonames.MapLocation(fields)
		if !filter.match(loc.FeatureClass) {
			continue
		}
		counters.Added++
		if err := batch.Add(BulkBatchItem{DocumentID: loc.GeonameID, Body: &loc}); err != nil {
			return counters, fmt.Errorf("line %d: %w", reader.Line(), err)
		}
		if !batch.Full() {
			continue
		}
		if err := commit(); err != nil {
			return counters, err
		}
	}
	if batch.Items() > 0 {
		if err := commit(); err != nil {
			return counters, err
		}
	}
	return counters, nil
}

func (i *Indexer) flush(ctx context.Context, batch *BulkBatch, logger *zap.Logger) error {
	n := batch.Items()
	if n == 0 {
		return nil
	}

	var span trace.Span
	if i.otelTracingEnabled() {
		ctx, span = i.tracer.Start(ctx, "geolistic.flush", trace.WithAttributes(
			attribute.Int("documents", n),
		))
		defer span.End()

		// Add trace IDs to logger, to associate any errors
		// below with the trace.
		logger = logger.With(
			zap.String("traceId", span.SpanContext().TraceID().String()),
			zap.String("spanId", span.SpanContext().SpanID().String()),
		)
	}
	if apm.TransactionFromContext(ctx) != nil {
		var apmSpan *apm.Span
		apmSpan, ctx = apm.StartSpan(ctx, "geolistic.flush", "app.flush")
		defer apmSpan.End()
	}

	var resp BulkResponseStat
	var err error
	took := timeFunc(func() {
		resp, err = batch.Flush(ctx)
	})

	attrs := metric.WithAttributeSet(i.config.MetricAttributes)
	i.metrics.flushDuration.Record(context.Background(), took.Seconds(), attrs)
	if flushed := batch.BytesFlushed(); flushed > 0 {
		i.metrics.bytesTotal.Add(context.Background(), int64(flushed), attrs)
	}
	if resp.Indexed > 0 {
		i.metrics.docsIndexed.Add(context.Background(), resp.Indexed, attrs)
	}
	if err != nil {
		status := "Failed"
		if errors.Is(err, ErrSchemaMissing) {
			status = "SchemaMissing"
		}
		i.metrics.bulkRequests.Add(context.Background(), 1, attrs,
			metric.WithAttributes(attribute.String("status", status)),
		)
		logger.Error("bulk indexing request failed", zap.Error(err), zap.Int("documents", n))
		if i.otelTracingEnabled() && span.IsRecording() {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk indexing request failed")
		}
		return err
	}
	i.metrics.bulkRequests.Add(context.Background(), 1, attrs,
		metric.WithAttributes(attribute.String("status", "Success")),
	)
	logger.Debug(
		"bulk request completed",
		zap.Int("documents", n),
		zap.Int64("docs_indexed", resp.Indexed),
		zap.Duration("took", took),
	)
	if i.otelTracingEnabled() && span.IsRecording() {
		span.SetStatus(codes.Ok, "")
	}
	return nil
}

// otelTracingEnabled checks whether we should be doing tracing
// using otel tracer.
func (i *Indexer) otelTracingEnabled() bool {
	return i.tracer != nil
}

// classFilter holds the allowed feature classes. An empty filter allows
// every record.
type classFilter map[string]struct{}

func newClassFilter(classes []string) (classFilter, error) {
	if len(classes) == 0 {
		return nil, nil
	}
	f := make(classFilter, len(classes))
	for _, c := range classes {
		if len([]rune(c)) != 1 {
			return nil, fmt.Errorf("%w: class filter %q must be a single character", ErrInvalidArgument, c)
		}
		f[strings.ToUpper(c)] = struct{}{}
	}
	return f, nil
}

func (f classFilter) match(class string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[class]
	return ok
}

func timeFunc(f func()) time.Duration {
	t0 := time.Now()
	if f != nil {
		f()
	}
	return time.Since(t0)
}
