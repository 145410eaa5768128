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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gunske/geolistic"
	"github.com/gunske/geolistic/download"
)

const countryInfo = "# GeoNames.org Country Information\n" +
	"# ================================\n" +
	"#ISO\tISO3\tISO-Numeric\tfips\tCountry\tCapital\tArea(in sq km)\tPopulation\tContinent\ttld\tCurrencyCode\tCurrencyName\tPhone\tPostal Code Format\tPostal Code Regex\tLanguages\tgeonameid\tneighbours\tEquivalentFipsCode\n" +
	"AD\tAND\t020\tAN\tAndorra\tAndorra la Vella\t468\t77006\tEU\t.ad\tEUR\tEuro\t376\tAD###\t^(?:AD)*(\\d{3})$\tca\t3041565\tES,FR\t\n" +
	"AQ\tATA\t010\tAY\tAntarctica\t\t1.4E7\t0\tAN\t.aq\t\t\t\t\t\t\t6697173\t\t\n" +
	"FR\tFRA\t250\tFR\tFrance\tParis\t547030\t66987244\tEU\t.fr\tEUR\tEuro\t33\t#####\t^(\\d{5})$\tfr-FR,frp,br,co,ca,eu,oc\t3017382\tCH,DE,BE,LU,IT,AD,MC,ES\t\n"

type openerFunc func(ctx context.Context, rawURL string) (io.ReadCloser, error)

func (f openerFunc) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return f(ctx, rawURL)
}

func staticOpener(t testing.TB, body string) geolistic.Opener {
	return openerFunc(func(_ context.Context, rawURL string) (io.ReadCloser, error) {
		assert.Equal(t, geolistic.DefaultCatalogURL, rawURL)
		return io.NopCloser(strings.NewReader(body)), nil
	})
}

func TestCatalogListCountries(t *testing.T) {
	catalog := geolistic.NewCatalog(geolistic.CatalogConfig{Opener: staticOpener(t, countryInfo)})

	codes, records, err := catalog.ListCountries(context.Background(), geolistic.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"AD", "AQ", "FR"}, codes)
	assert.Nil(t, records)

	codes, records, err = catalog.ListCountries(context.Background(), geolistic.ListOptions{AllColumns: true})
	require.NoError(t, err)
	assert.Nil(t, codes)
	require.Len(t, records, 3)
	assert.Equal(t, "AD", records[0].ISO)
	assert.Equal(t, "AND", records[0].ISO3)
	assert.Equal(t, "Andorra la Vella", records[0].Capital)
	assert.Equal(t, "ES,FR", records[0].Neighbours)
	assert.Equal(t, "3041565", records[0].GeonameID)
	assert.Equal(t, "", records[0].EquivalentFIPSCode)
}

func TestCatalogGetCountries(t *testing.T) {
	catalog := geolistic.NewCatalog(geolistic.CatalogConfig{Opener: staticOpener(t, countryInfo)})

	countries, err := catalog.GetCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 3)

	andorra := countries[0]
	assert.Equal(t, []string{"ca"}, andorra.Languages)
	assert.Equal(t, []string{"ES", "FR"}, andorra.Neighbours)
	assert.Equal(t, int64(77006), andorra.Population)
	assert.Equal(t, float64(468), andorra.Area)

	antarctica := countries[1]
	assert.Empty(t, antarctica.Languages)
	assert.Empty(t, antarctica.Neighbours)
	assert.Equal(t, int64(0), antarctica.Population)
	assert.Equal(t, 1.4e7, antarctica.Area)

	france := countries[2]
	assert.Equal(t, []string{"fr-FR", "frp", "br", "co", "ca", "eu", "oc"}, france.Languages)
	assert.Len(t, france.Neighbours, 8)
}

func TestCatalogCountryCodesHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/countryInfo.txt", r.URL.Path)
		io.WriteString(w, countryInfo)
	}))
	defer srv.Close()

	catalog := geolistic.NewCatalog(geolistic.CatalogConfig{
		URL:    srv.URL + "/countryInfo.txt",
		Opener: download.NewHTTPFetcher(srv.Client()),
	})
	codes, err := catalog.CountryCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AD", "AQ", "FR"}, codes)
}

func TestCatalogOpenError(t *testing.T) {
	errOpen := errors.New("connection refused")
	catalog := geolistic.NewCatalog(geolistic.CatalogConfig{
		Opener: openerFunc(func(context.Context, string) (io.ReadCloser, error) {
			return nil, errOpen
		}),
	})
	codes, err := catalog.CountryCodes(context.Background())
	assert.ErrorIs(t, err, errOpen)
	assert.Nil(t, codes)
}
