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
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IndexCountries indexes each of countryCodes in order and returns the
// summed counters.
//
// Countries are indexed one after the other, never concurrently. The run
// stops at the first failing country; in that case the returned counters
// are zero and the error names the country that failed. Countries
// indexed before the failure stay indexed.
func (i *Indexer) IndexCountries(ctx context.Context, countryCodes []string, opts RunOptions) (Counters, error) {
	runID := uuid.NewString()
	logger := i.config.Logger.With(zap.String("run_id", runID))
	logger.Info("indexing run started", zap.Int("countries", len(countryCodes)))

	run := *i
	run.config.Logger = logger

	var total Counters
	for _, code := range countryCodes {
		counters, err := run.Index(ctx, code, opts.IndexOptions)
		if err != nil {
			logger.Error("indexing run failed", zap.String("country", code), zap.Error(err))
			return Counters{}, fmt.Errorf("indexing country %s: %w", code, err)
		}
		total.add(counters)
		if opts.CountryDone != nil {
			opts.CountryDone(code, counters)
		}
	}
	logger.Info("indexing run completed",
		zap.Int("countries", len(countryCodes)),
		zap.Int64("records_processed", total.Processed),
		zap.Int64("records_added", total.Added),
	)
	return total, nil
}
