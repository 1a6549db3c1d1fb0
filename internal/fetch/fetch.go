// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch downloads vendor release archives and unpacks them into the
// output root.
package fetch

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/minio/sha256-simd"

	"github.com/goplus/cmsisdsp/internal/config"
)

// Fetcher downloads archives over HTTP(S).
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// WithLogger sets the logger progress is reported to.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher. Downloads have no timeout; cancel through ctx.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll fetches archives in order and stops at the first failure.
func (f *Fetcher) FetchAll(ctx context.Context, archives []config.Archive, root string) error {
	for _, a := range archives {
		if err := f.Fetch(ctx, a, root); err != nil {
			return err
		}
	}
	return nil
}

// Fetch downloads a into memory, verifies its pinned digest if any and
// extracts it into root/a.Dir.
func (f *Fetcher) Fetch(ctx context.Context, a config.Archive, root string) error {
	f.logger.Info("downloading archive", "name", a.Name, "version", a.Version, "url", a.URL)
	data, err := f.download(ctx, a.URL)
	if err != nil {
		return err
	}
	if err := verify(a, data); err != nil {
		return err
	}

	dest := filepath.Join(root, a.Dir)
	format, err := formatOf(a.URL)
	if err != nil {
		return err
	}
	f.logger.Debug("extracting archive", "name", a.Name, "dest", dest, "bytes", len(data))
	if err := extract(format, data, dest); err != nil {
		return fmt.Errorf("extract %s: %w", a.URL, err)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return buf.Bytes(), nil
}

// ChecksumError reports an archive whose content does not match its pin.
type ChecksumError struct {
	URL       string
	Want, Got string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want sha256 %s, got %s", e.URL, e.Want, e.Got)
}

func verify(a config.Archive, data []byte) error {
	if a.SHA256 == "" {
		return nil
	}
	got := Digest(data)
	if !strings.EqualFold(got, a.SHA256) {
		return &ChecksumError{URL: a.URL, Want: a.SHA256, Got: got}
	}
	return nil
}

// Digest returns the hex SHA-256 of data, the form Archive.SHA256 pins.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
