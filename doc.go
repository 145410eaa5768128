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

// Package geolistic loads the GeoNames gazetteer into Elasticsearch.
//
// Per-country dump files, fetched with the download package, are parsed
// record by record and written with the _bulk API. Bulk requests are
// issued synchronously from a bounded buffer, so a slow cluster slows the
// reader down instead of letting records pile up in memory.
//
// The package does not create or validate the target index; a missing
// index or mapping type is reported as a *SchemaMissingError.
package geolistic
