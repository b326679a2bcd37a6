package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxDocumentBytes bounds a single fetched document.
const maxDocumentBytes = 64 << 20

// Fetcher retrieves a raw source document by reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FileFetcher reads documents from a directory. References are bare file
// names; anything that could escape the directory is rejected.
type FileFetcher struct {
	Dir string
}

// Fetch reads ref from the directory.
func (f FileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(ref); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(f.Dir, ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("source file %q: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("read source %q: %w", ref, err)
	}
	return data, nil
}

// HTTPFetcher downloads documents over http or https.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch issues a GET for ref and returns the body of a 2xx response.
func (f HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", ref, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %q: %w", ref, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %q: unexpected status %s", ref, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", ref, err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("fetch %q: document larger than %d bytes", ref, maxDocumentBytes)
	}
	return data, nil
}

// MultiFetcher sends http(s) references to HTTP and everything else to Files.
type MultiFetcher struct {
	Files Fetcher
	HTTP  Fetcher
}

// Fetch dispatches on the reference scheme.
func (m MultiFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if IsURL(ref) {
		if m.HTTP == nil {
			return nil, fmt.Errorf("fetch %q: http sources are disabled", ref)
		}
		return m.HTTP.Fetch(ctx, ref)
	}
	return m.Files.Fetch(ctx, ref)
}

// IsURL reports whether ref is an http or https URL.
func IsURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// validateName rejects empty names and names with path components.
func validateName(name string) error {
	if name == "" || name == "." || strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}
