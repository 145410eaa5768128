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

package geonames

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCountryCode is returned for country codes that are not
// exactly two characters long.
var ErrInvalidCountryCode = errors.New("invalid country code")

// Schema names the positional fields of a record, in source order.
type Schema []string

// LocationSchema is the column layout of the per-country dump files
// (<ISO2>.txt, allCountries.txt, cities*.txt).
var LocationSchema = Schema{
	"geonameid",
	"name",
	"asciiname",
	"alternatenames",
	"latitude",
	"longitude",
	"feature_class",
	"feature_code",
	"country_code",
	"cc2",
	"admin1_code",
	"admin2_code",
	"admin3_code",
	"admin4_code",
	"population",
	"elevation",
	"dem",
	"timezone",
	"modification_date",
}

// CountrySchema is the column layout of countryInfo.txt.
var CountrySchema = Schema{
	"iso",
	"iso3",
	"iso_numeric",
	"fips",
	"country",
	"capital",
	"area",
	"population",
	"continent",
	"tld",
	"currency_code",
	"currency_name",
	"phone",
	"postal_code_format",
	"postal_code_regex",
	"languages",
	"geonameid",
	"neighbours",
	"equivalent_fips_code",
}

// Map pairs fields with the schema's names. Missing trailing fields map
// to the empty string and surplus fields are dropped.
func (s Schema) Map(fields []string) map[string]string {
	m := make(map[string]string, len(s))
	for i, name := range s {
		m[name] = field(fields, i)
	}
	return m
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// ValidateCountryCode checks that code is a two character country code
// and returns it upper-cased.
func ValidateCountryCode(code string) (string, error) {
	if len([]rune(code)) != 2 {
		return "", fmt.Errorf("%w: %q must be exactly two characters", ErrInvalidCountryCode, code)
	}
	return strings.ToUpper(code), nil
}

// ValidateCountryCodes validates every code, returning the upper-cased
// codes in order. The first invalid code fails the whole call.
func ValidateCountryCodes(codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		c, err := ValidateCountryCode(code)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
