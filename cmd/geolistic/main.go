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

// Command geolistic downloads GeoNames country dumps and indexes them into
// Elasticsearch.
//
//	geolistic [-config file] [-countries AD,FR] [-download] [-index] [-filter P,A] [-buffer N]
//
// Without -download or -index both steps run. Without -countries every
// country listed in the GeoNames country catalog is processed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/elastic/go-elasticsearch/v8"
	"go.elastic.co/apm/module/apmelasticsearch/v2"
	"go.elastic.co/apm/module/apmzap/v2"
	"go.elastic.co/apm/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gunske/geolistic"
	"github.com/gunske/geolistic/download"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	countries := flag.String("countries", "", "comma separated country codes, defaults to every catalog country")
	doDownload := flag.Bool("download", false, "download and extract the country dumps")
	doIndex := flag.Bool("index", false, "index the extracted country dumps")
	filter := flag.String("filter", "", "comma separated feature classes to index, e.g. P,A")
	buffer := flag.Int("buffer", 0, "number of records per bulk request")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *filter != "" {
		cfg.Index.ClassFilters = splitList(*filter)
	}
	if *buffer > 0 {
		cfg.Index.BufferRecords = *buffer
	}
	if !*doDownload && !*doIndex {
		*doDownload, *doIndex = true, true
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, splitList(*countries), *doDownload, *doIndex); err != nil {
		logger.Error("geolistic failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config, logger *zap.Logger, codes []string, doDownload, doIndex bool) error {
	httpClient := &http.Client{}
	if len(codes) == 0 {
		catalog := geolistic.NewCatalog(geolistic.CatalogConfig{
			URL:    cfg.Catalog.URL,
			Opener: download.NewHTTPFetcher(httpClient),
			Logger: logger,
		})
		var err error
		if codes, err = catalog.CountryCodes(ctx); err != nil {
			return err
		}
	}

	if doDownload {
		d, err := download.New(download.Config{
			Parallelism: cfg.Download.Parallelism,
			Extract:     true,
			URLTemplate: cfg.Download.URLTemplate,
			Fetcher:     download.NewHTTPFetcher(httpClient),
			Logger:      logger,
			OnWaveStart: func(urls []string) {
				fmt.Printf("downloading %s\n", strings.Join(urls, " "))
			},
		})
		if err != nil {
			return err
		}
		n, err := d.DownloadCountries(ctx, codes, cfg.Download.Dir)
		if err != nil {
			return err
		}
		fmt.Printf("downloaded %d files to %s\n", n, cfg.Download.Dir)
	}

	if !doIndex {
		return nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		APIKey:    cfg.Elasticsearch.APIKey,
		CloudID:   cfg.Elasticsearch.CloudID,
		Transport: apmelasticsearch.WrapRoundTripper(http.DefaultTransport),
	})
	if err != nil {
		return fmt.Errorf("creating Elasticsearch client: %w", err)
	}
	// The default tracer reports to localhost:8200 unless
	// ELASTIC_APM_SERVER_URL is set.
	var tracer *apm.Tracer
	if cfg.APM.Enabled {
		tracer = apm.DefaultTracer()
	}
	indexer, err := geolistic.New(client, geolistic.Config{
		DataPath:         cfg.Download.Dir,
		Index:            cfg.Index.Name,
		Type:             cfg.Index.Type,
		Logger:           logger,
		Tracer:           tracer,
		CompressionLevel: cfg.Index.CompressionLevel,
	})
	if err != nil {
		return err
	}

	// Countries are indexed in order, so done indexes the current one.
	var done int
	total, err := indexer.IndexCountries(ctx, codes, geolistic.RunOptions{
		IndexOptions: geolistic.IndexOptions{
			BufferRecords: cfg.Index.BufferRecords,
			ClassFilters:  cfg.Index.ClassFilters,
			BufferAdded: func(processed int64) {
				fmt.Printf("\r%s: %d records processed", codes[done], processed)
			},
		},
		CountryDone: func(code string, c geolistic.Counters) {
			fmt.Printf("\r%s: %d records processed, %d added\n", code, c.Processed, c.Added)
			done++
		},
	})
	if err != nil {
		var serr *geolistic.SchemaMissingError
		if errors.As(err, &serr) {
			fmt.Fprintf(os.Stderr, "\nthe %s %q must be created before indexing\n", serr.Missing, missingName(serr))
		}
		return err
	}
	fmt.Printf("indexed %d countries: %d records processed, %d added\n", len(codes), total.Processed, total.Added)
	return nil
}

func missingName(err *geolistic.SchemaMissingError) string {
	if err.Missing == geolistic.MissingType {
		return err.Type
	}
	return err.Index
}

func newLogger(cfg loggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build(zap.WrapCore((&apmzap.Core{}).WrapCore))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
