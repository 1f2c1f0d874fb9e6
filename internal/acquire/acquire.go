// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire fetches the full text of search hits into a per-batch
// directory. Each batch owns its directory, so concurrent batches never
// share files.
package acquire

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pdiddy/survey-engine/internal/httputil"
)

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes = 100 << 20

var (
	// ErrNoSource is returned when a hit has no resolvable full-text link.
	ErrNoSource = errors.New("no full-text source")

	// ErrNotPDF is returned when the server answers with something other than a PDF.
	ErrNotPDF = errors.New("response is not a PDF")

	// ErrTooLarge is returned when a download exceeds the size cap.
	ErrTooLarge = errors.New("download exceeds size limit")
)

var pdfMagic = []byte("%PDF-")

// HTTPFetcher downloads PDFs over HTTP. It is safe for concurrent use;
// distinct papers with the same title get distinct filenames.
type HTTPFetcher struct {
	client   *httputil.Client
	maxBytes int64

	mu    sync.Mutex
	taken map[string]bool
}

// NewHTTPFetcher returns a fetcher using client. maxBytes <= 0 selects
// DefaultMaxBytes.
func NewHTTPFetcher(client *httputil.Client, maxBytes int64) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{client: client, maxBytes: maxBytes, taken: make(map[string]bool)}
}

// Fetch downloads pdfURL into dir under a filename derived from title and
// returns the local path. The file appears atomically: it is written to a
// temporary name and renamed once complete.
func (f *HTTPFetcher) Fetch(ctx context.Context, pdfURL, dir, title string) (string, error) {
	if pdfURL == "" {
		return "", ErrNoSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, pdfURL)
	}
	if resp.ContentLength > f.maxBytes {
		return "", ErrTooLarge
	}

	body := bufio.NewReader(io.LimitReader(resp.Body, f.maxBytes+1))
	head, _ := body.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		return "", fmt.Errorf("%w: %s", ErrNotPDF, resp.Header.Get("Content-Type"))
	}

	destPath := f.reserve(dir, FileName(title))
	if err := writeAtomic(body, destPath, f.maxBytes); err != nil {
		f.release(destPath)
		return "", err
	}
	return destPath, nil
}

// reserve returns a path in dir that no other fetch in this process has
// claimed, suffixing "_2", "_3", ... on collision.
func (f *HTTPFetcher) reserve(dir, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	stem := strings.TrimSuffix(name, ".pdf")
	path := filepath.Join(dir, name)
	for n := 2; f.taken[path]; n++ {
		path = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+".pdf")
	}
	f.taken[path] = true
	return path
}

func (f *HTTPFetcher) release(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.taken, path)
}

func writeAtomic(r io.Reader, destPath string, maxBytes int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	case n > maxBytes:
		os.Remove(tmpPath)
		return ErrTooLarge
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
