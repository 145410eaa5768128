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

// Package download fetches GeoNames archives in bounded parallel waves.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gunske/geolistic/geonames"
)

const (
	// DefaultParallelism is the wave size used when Config.Parallelism is
	// not set.
	DefaultParallelism = 5

	// DefaultURLTemplate is the location of the per-country archives.
	DefaultURLTemplate = "https://download.geonames.org/export/dump/%s.zip"
)

// ErrDownload is matched by every error returned for a failed wave.
var ErrDownload = errors.New("download failed")

// Error reports a failed wave. Files already written by other downloads
// of the same wave are left in place.
type Error struct {
	// URLs holds every URL of the failed wave.
	URLs []string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download failed for [%s]: %v", strings.Join(e.URLs, ", "), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrDownload }

// Config holds configuration for Downloader.
type Config struct {
	// Parallelism holds the number of downloads issued concurrently in
	// one wave.
	//
	// If Parallelism is less than or equal to zero, the default of 5 will
	// be used.
	Parallelism int

	// Extract unpacks each archive into the target directory after it
	// has been downloaded.
	Extract bool

	// URLTemplate is a fmt template with a single %s verb, replaced by the
	// upper-cased country code in DownloadCountries.
	//
	// If URLTemplate is empty, DefaultURLTemplate is used.
	URLTemplate string

	// OnWaveStart and OnWaveEnd, if non-nil, are called with the URLs of
	// each wave before it starts and after all of its downloads succeeded.
	OnWaveStart func(urls []string)
	OnWaveEnd   func(urls []string)

	// Fetcher holds the Fetcher used for each download.
	//
	// If Fetcher is nil, an HTTPFetcher using http.DefaultClient is used.
	Fetcher Fetcher

	// Logger holds an optional Logger. If nil, logging is disabled.
	Logger *zap.Logger
}

// Downloader downloads sets of URLs, at most Config.Parallelism at a time.
type Downloader struct {
	config Config
}

// New returns a new Downloader.
func New(cfg Config) (*Downloader, error) {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if strings.Count(cfg.URLTemplate, "%s") != 1 {
		return nil, fmt.Errorf("expected exactly one %%s in URLTemplate, got %q", cfg.URLTemplate)
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = NewHTTPFetcher(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Downloader{config: cfg}, nil
}

// CountryURLs validates codes and returns the archive URL of each one.
// No URL is returned if any code is invalid.
func (d *Downloader) CountryURLs(codes []string) ([]string, error) {
	valid, err := geonames.ValidateCountryCodes(codes)
	if err != nil {
		return nil, err
	}
	urls := make([]string, len(valid))
	for i, code := range valid {
		urls[i] = fmt.Sprintf(d.config.URLTemplate, code)
	}
	return urls, nil
}

// DownloadCountries downloads the archive of every country in codes into
// dir. All codes are validated before the first request is made.
func (d *Downloader) DownloadCountries(ctx context.Context, codes []string, dir string) (int, error) {
	urls, err := d.CountryURLs(codes)
	if err != nil {
		return 0, err
	}
	return d.DownloadAll(ctx, urls, dir)
}

// DownloadAll downloads urls into dir and returns the number of files
// downloaded.
//
// The URLs are split into waves of Config.Parallelism. The downloads of a
// wave run concurrently, and the next wave starts only once every
// download of the previous wave has returned. If any download fails the
// remaining downloads of its wave are cancelled, no further wave is
// started, and an *Error naming the wave's URLs is returned.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string, dir string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", dir, err)
	}

	var downloaded int
	for i, wave := range waves(urls, d.config.Parallelism) {
		logger := d.config.Logger.With(zap.Int("wave", i), zap.Int("downloads", len(wave)))
		if d.config.OnWaveStart != nil {
			d.config.OnWaveStart(wave)
		}
		logger.Debug("starting download wave", zap.Strings("urls", wave))
		n, err := d.runWave(ctx, wave, dir)
		downloaded += n
		if err != nil {
			logger.Error("download wave failed", zap.Error(err))
			return downloaded, &Error{URLs: wave, Err: err}
		}
		logger.Debug("download wave completed")
		if d.config.OnWaveEnd != nil {
			d.config.OnWaveEnd(wave)
		}
	}
	return downloaded, nil
}

func (d *Downloader) runWave(ctx context.Context, wave []string, dir string) (int, error) {
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Parallelism)
	for _, u := range wave {
		g.Go(func() error {
			if err := d.config.Fetcher.Fetch(gctx, u, dir, d.config.Extract); err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			done.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(done.Load()), err
}

// waves partitions urls into consecutive slices of at most size elements.
func waves(urls []string, size int) [][]string {
	out := make([][]string, 0, (len(urls)+size-1)/size)
	for len(urls) > size {
		out = append(out, urls[:size:size])
		urls = urls[size:]
	}
	return append(out, urls)
}
