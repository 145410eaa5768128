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

package geonames_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gunske/geolistic/geonames"
)

const andorra = "AD\tAND\t020\tAN\tAndorra\tAndorra la Vella\t468\t77006\tEU\t.ad\tEUR\tEuro\t376\tAD###\t^(?:AD)*(\\d{3})$\tca\t3041565\tES,FR\t"

func TestMapCountry(t *testing.T) {
	rec := geonames.MapCountry(strings.Split(andorra, "\t"))
	assert.Equal(t, "AD", rec.ISO)
	assert.Equal(t, "AND", rec.ISO3)
	assert.Equal(t, "Andorra la Vella", rec.Capital)
	assert.Equal(t, "ES,FR", rec.Neighbours)
	assert.Equal(t, "", rec.EquivalentFIPSCode)
}

func TestCountryNormalize(t *testing.T) {
	c := geonames.MapCountry(strings.Split(andorra, "\t")).Normalize()
	assert.Equal(t, []string{"ca"}, c.Languages)
	assert.Equal(t, []string{"ES", "FR"}, c.Neighbours)
	assert.Equal(t, float64(468), c.Area)
	assert.Equal(t, int64(77006), c.Population)
	assert.Equal(t, "Andorra", c.Country)

	empty := geonames.CountryRecord{ISO: "AQ", Area: "1.4E7", Population: "n/a"}.Normalize()
	assert.Equal(t, []string{}, empty.Languages)
	assert.Equal(t, []string{}, empty.Neighbours)
	assert.Equal(t, 1.4e7, empty.Area)
	assert.Zero(t, empty.Population)
}

func TestCountryNormalizeLanguages(t *testing.T) {
	c := geonames.CountryRecord{Languages: "fr-BE,nl-BE,de-BE, "}.Normalize()
	assert.Equal(t, []string{"fr-BE", "nl-BE", "de-BE"}, c.Languages)
}
