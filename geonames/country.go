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
	"strconv"
	"strings"
)

// CountryRecord is a row of countryInfo.txt with every column kept as
// text.
type CountryRecord struct {
	ISO                string `json:"iso"`
	ISO3               string `json:"iso3"`
	ISONumeric         string `json:"iso_numeric"`
	FIPS               string `json:"fips"`
	Country            string `json:"country"`
	Capital            string `json:"capital"`
	Area               string `json:"area"`
	Population         string `json:"population"`
	Continent          string `json:"continent"`
	TLD                string `json:"tld"`
	CurrencyCode       string `json:"currency_code"`
	CurrencyName       string `json:"currency_name"`
	Phone              string `json:"phone"`
	PostalCodeFormat   string `json:"postal_code_format"`
	PostalCodeRegex    string `json:"postal_code_regex"`
	Languages          string `json:"languages"`
	GeonameID          string `json:"geonameid"`
	Neighbours         string `json:"neighbours"`
	EquivalentFIPSCode string `json:"equivalent_fips_code"`
}

// MapCountry maps the fields of one countryInfo.txt line onto a
// CountryRecord, following CountrySchema.
func MapCountry(fields []string) CountryRecord {
	return CountryRecord{
		ISO:                field(fields, 0),
		ISO3:               field(fields, 1),
		ISONumeric:         field(fields, 2),
		FIPS:               field(fields, 3),
		Country:            field(fields, 4),
		Capital:            field(fields, 5),
		Area:               field(fields, 6),
		Population:         field(fields, 7),
		Continent:          field(fields, 8),
		TLD:                field(fields, 9),
		CurrencyCode:       field(fields, 10),
		CurrencyName:       field(fields, 11),
		Phone:              field(fields, 12),
		PostalCodeFormat:   field(fields, 13),
		PostalCodeRegex:    field(fields, 14),
		Languages:          field(fields, 15),
		GeonameID:          field(fields, 16),
		Neighbours:         field(fields, 17),
		EquivalentFIPSCode: field(fields, 18),
	}
}

// Country is a CountryRecord with its list and numeric columns decoded.
type Country struct {
	CountryRecord
	Languages  []string `json:"languages"`
	Neighbours []string `json:"neighbours"`
	Area       float64  `json:"area"`
	Population int64    `json:"population"`
}

// Normalize splits the comma-joined languages and neighbours columns and
// parses area and population. Values that do not parse are left as zero.
func (c CountryRecord) Normalize() Country {
	area, _ := strconv.ParseFloat(strings.TrimSpace(c.Area), 64)
	pop, _ := strconv.ParseInt(strings.TrimSpace(c.Population), 10, 64)
	return Country{
		CountryRecord: c,
		Languages:     splitList(c.Languages),
		Neighbours:    splitList(c.Neighbours),
		Area:          area,
		Population:    pop,
	}
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
