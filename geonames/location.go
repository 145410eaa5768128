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
	"go.elastic.co/fastjson"
)

// Location is a single entry of a per-country dump file.
type Location struct {
	GeonameID        string
	Name             string
	ASCIIName        string
	AlternateNames   string
	Latitude         string
	Longitude        string
	FeatureClass     string
	FeatureCode      string
	CountryCode      string
	CC2              string
	Admin1Code       string
	Admin2Code       string
	Admin3Code       string
	Admin4Code       string
	Population       string
	Elevation        string
	DEM              string
	Timezone         string
	ModificationDate string
}

// MapLocation maps the fields of one line onto a Location, following
// LocationSchema.
func MapLocation(fields []string) Location {
	return Location{
		GeonameID:        field(fields, 0),
		Name:             field(fields, 1),
		ASCIIName:        field(fields, 2),
		AlternateNames:   field(fields, 3),
		Latitude:         field(fields, 4),
		Longitude:        field(fields, 5),
		FeatureClass:     field(fields, 6),
		FeatureCode:      field(fields, 7),
		CountryCode:      field(fields, 8),
		CC2:              field(fields, 9),
		Admin1Code:       field(fields, 10),
		Admin2Code:       field(fields, 11),
		Admin3Code:       field(fields, 12),
		Admin4Code:       field(fields, 13),
		Population:       field(fields, 14),
		Elevation:        field(fields, 15),
		DEM:              field(fields, 16),
		Timezone:         field(fields, 17),
		ModificationDate: field(fields, 18),
	}
}

// GeoPoint returns the "lat,lon" string stored in the document's
// location field.
func (l *Location) GeoPoint() string {
	return l.Latitude + "," + l.Longitude
}

func (l *Location) values() [19]string {
	return [19]string{
		l.GeonameID, l.Name, l.ASCIIName, l.AlternateNames,
		l.Latitude, l.Longitude, l.FeatureClass, l.FeatureCode,
		l.CountryCode, l.CC2, l.Admin1Code, l.Admin2Code,
		l.Admin3Code, l.Admin4Code, l.Population, l.Elevation,
		l.DEM, l.Timezone, l.ModificationDate,
	}
}

// MarshalFastJSON writes the document body indexed for l: every
// LocationSchema field as a string, plus "location".
func (l *Location) MarshalFastJSON(w *fastjson.Writer) error {
	w.RawByte('{')
	for i, v := range l.values() {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(LocationSchema[i])
		w.RawByte(':')
		w.String(v)
	}
	w.RawString(`,"location":`)
	w.String(l.GeoPoint())
	w.RawByte('}')
	return nil
}
