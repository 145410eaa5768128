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

package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.elastic.co/apm/module/apmhttp/v2"
)

// Fetcher retrieves a single remote file into a local directory.
type Fetcher interface {
	// Fetch downloads rawURL into dir. When extract is true the
	// downloaded archive is unpacked into dir.
	Fetch(ctx context.Context, rawURL, dir string, extract bool) error
}

// HTTPFetcher is a Fetcher which downloads files over HTTP and unpacks
// zip archives.
type HTTPFetcher struct {
	// Client holds the HTTP client used for requests.
	//
	// If Client is nil, an APM-instrumented http.DefaultClient is used.
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher using client, wrapped so that
// outgoing requests are traced when a transaction is in the context.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: apmhttp.WrapClient(client)}
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client == nil {
		return apmhttp.WrapClient(http.DefaultClient)
	}
	return f.Client
}

// Open issues a GET request for rawURL and returns the response body.
// The caller must close it.
func (f *HTTPFetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, dir string, extract bool) error {
	name, err := fileName(rawURL)
	if err != nil {
		return err
	}
	body, err := f.Open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	dst := filepath.Join(dir, name)
	if err := writeFile(dst, body); err != nil {
		return err
	}
	if !extract {
		return nil
	}
	if err := unzip(dst, dir); err != nil {
		return fmt.Errorf("extracting %s: %w", dst, err)
	}
	return os.Remove(dst)
}

func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return name, nil
}

// writeFile writes r to a temporary file next to dst and renames it into
// place, so dst never holds a partial download.
func writeFile(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("creating file for %s: %w", dst, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming %s: %w", dst, err)
	}
	return nil
}

func unzip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, zf := range zr.File {
		dst := filepath.Join(dir, zf.Name)
		rel, err := filepath.Rel(dir, dst)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes %s", zf.Name, dir)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := extractFile(zf, dst); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(zf *zip.File, dst string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", zf.Name, err)
	}
	defer rc.Close()
	return writeFile(dst, rc)
}
