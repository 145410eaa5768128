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

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gunske/geolistic"
	"github.com/gunske/geolistic/download"
)

// config is the command configuration, read from an optional YAML file
// and GEOLISTIC_* environment variables. Flags are applied last.
type config struct {
	Elasticsearch elasticsearchConfig `yaml:"elasticsearch"`
	Index         indexConfig         `yaml:"index"`
	Download      downloadConfig      `yaml:"download"`
	Catalog       catalogConfig       `yaml:"catalog"`
	Logging       loggingConfig       `yaml:"logging"`
	APM           apmConfig           `yaml:"apm"`
}

type elasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	APIKey    string   `yaml:"apiKey"`
	CloudID   string   `yaml:"cloudId"`
}

type indexConfig struct {
	Name             string   `yaml:"name"`
	Type             string   `yaml:"type"`
	BufferRecords    int      `yaml:"bufferRecords"`
	CompressionLevel int      `yaml:"compressionLevel"`
	ClassFilters     []string `yaml:"classFilters"`
}

type downloadConfig struct {
	Dir         string `yaml:"dir"`
	Parallelism int    `yaml:"parallelism"`
	URLTemplate string `yaml:"urlTemplate"`
}

type catalogConfig struct {
	URL string `yaml:"url"`
}

// apmConfig controls Elastic APM tracing. The agent itself is configured
// with the ELASTIC_APM_* environment variables.
type apmConfig struct {
	Enabled bool `yaml:"enabled"`
}

type loggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *config {
	return &config{
		Elasticsearch: elasticsearchConfig{
			Addresses: []string{"http://localhost:9200"},
		},
		Index: indexConfig{
			Name:          geolistic.DefaultIndex,
			BufferRecords: geolistic.DefaultBufferRecords,
		},
		Download: downloadConfig{
			Dir:         "data",
			Parallelism: download.DefaultParallelism,
			URLTemplate: download.DefaultURLTemplate,
		},
		Catalog: catalogConfig{
			URL: geolistic.DefaultCatalogURL,
		},
		Logging: loggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// applyEnvOverrides reads GEOLISTIC_* environment variables and overrides
// the corresponding config fields.
func applyEnvOverrides(cfg *config) error {
	if v := os.Getenv("GEOLISTIC_ELASTICSEARCH_ADDRESSES"); v != "" {
		cfg.Elasticsearch.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("GEOLISTIC_ELASTICSEARCH_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}
	if v := os.Getenv("GEOLISTIC_ELASTICSEARCH_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}
	if v := os.Getenv("GEOLISTIC_ELASTICSEARCH_API_KEY"); v != "" {
		cfg.Elasticsearch.APIKey = v
	}
	if v := os.Getenv("GEOLISTIC_ELASTICSEARCH_CLOUD_ID"); v != "" {
		cfg.Elasticsearch.CloudID = v
	}
	if v := os.Getenv("GEOLISTIC_INDEX_NAME"); v != "" {
		cfg.Index.Name = v
	}
	if v := os.Getenv("GEOLISTIC_INDEX_TYPE"); v != "" {
		cfg.Index.Type = v
	}
	if v := os.Getenv("GEOLISTIC_INDEX_BUFFER_RECORDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEOLISTIC_INDEX_BUFFER_RECORDS: %w", err)
		}
		cfg.Index.BufferRecords = n
	}
	if v := os.Getenv("GEOLISTIC_INDEX_CLASS_FILTERS"); v != "" {
		cfg.Index.ClassFilters = strings.Split(v, ",")
	}
	if v := os.Getenv("GEOLISTIC_DOWNLOAD_DIR"); v != "" {
		cfg.Download.Dir = v
	}
	if v := os.Getenv("GEOLISTIC_DOWNLOAD_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GEOLISTIC_DOWNLOAD_PARALLELISM: %w", err)
		}
		cfg.Download.Parallelism = n
	}
	if v := os.Getenv("GEOLISTIC_DOWNLOAD_URL_TEMPLATE"); v != "" {
		cfg.Download.URLTemplate = v
	}
	if v := os.Getenv("GEOLISTIC_CATALOG_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("GEOLISTIC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GEOLISTIC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if os.Getenv("ELASTIC_APM_SERVER_URL") != "" {
		cfg.APM.Enabled = true
	}
	if v := os.Getenv("GEOLISTIC_APM_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GEOLISTIC_APM_ENABLED: %w", err)
		}
		cfg.APM.Enabled = enabled
	}
	return nil
}
