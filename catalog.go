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
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/gunske/geolistic/download"
	"github.com/gunske/geolistic/geonames"
)

// DefaultCatalogURL is the location of the GeoNames country catalog.
const DefaultCatalogURL = "https://download.geonames.org/export/dump/countryInfo.txt"

// Opener opens a remote file for streaming.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// CatalogConfig holds configuration for Catalog.
type CatalogConfig struct {
	// URL holds the location of countryInfo.txt.
	//
	// If URL is empty, DefaultCatalogURL will be used.
	URL string

	// Opener is used to fetch the catalog.
	//
	// If Opener is nil, a download.HTTPFetcher using http.DefaultClient
	// will be used.
	Opener Opener

	// Logger holds an optional Logger.
	//
	// If Logger is nil, logging will be disabled.
	Logger *zap.Logger
}

// Catalog loads the GeoNames country catalog, used to discover which
// countries exist when the caller does not name any.
type Catalog struct {
	config CatalogConfig
}

// ListOptions controls what ListCountries returns.
type ListOptions struct {
	// AllColumns selects full records instead of bare country codes.
	AllColumns bool
}

// NewCatalog returns a Catalog reading from cfg.URL. The catalog is
// fetched again on every call; nothing is cached.
func NewCatalog(cfg CatalogConfig) *Catalog {
	if cfg.URL == "" {
		cfg.URL = DefaultCatalogURL
	}
	if cfg.Opener == nil {
		cfg.Opener = download.NewHTTPFetcher(http.DefaultClient)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Catalog{config: cfg}
}

// ListCountries reads the catalog. When opts.AllColumns is false only
// the ISO codes are returned, in catalog order; otherwise only the full
// records are. Comment lines are never returned.
func (c *Catalog) ListCountries(ctx context.Context, opts ListOptions) ([]string, []geonames.CountryRecord, error) {
	var codes []string
	var records []geonames.CountryRecord
	err := c.each(ctx, func(fields []string) {
		if opts.AllColumns {
			records = append(records, geonames.MapCountry(fields))
			return
		}
		if len(fields) > 0 {
			codes = append(codes, fields[0])
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return codes, records, nil
}

// GetCountries returns the normalized catalog records.
func (c *Catalog) GetCountries(ctx context.Context) ([]geonames.Country, error) {
	_, records, err := c.ListCountries(ctx, ListOptions{AllColumns: true})
	if err != nil {
		return nil, err
	}
	countries := make([]geonames.Country, len(records))
	for i, r := range records {
		countries[i] = r.Normalize()
	}
	return countries, nil
}

// CountryCodes returns the ISO codes of every catalog entry.
func (c *Catalog) CountryCodes(ctx context.Context) ([]string, error) {
	codes, _, err := c.ListCountries(ctx, ListOptions{})
	return codes, err
}

func (c *Catalog) each(ctx context.Context, f func(fields []string)) error {
	rc, err := c.config.Opener.Open(ctx, c.config.URL)
	if err != nil {
		return fmt.Errorf("fetching country catalog: %w", err)
	}
	defer rc.Close()

	r := geonames.NewReader(rc)
	r.Comment = '#'
	var n int
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading country catalog: %w", err)
		}
		f(fields)
		n++
	}
	c.config.Logger.Debug("country catalog loaded", zap.String("url", c.config.URL), zap.Int("countries", n))
	return nil
}
