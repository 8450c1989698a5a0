package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOptions configure HTTPSource.
type HTTPOptions struct {
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
}

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 32 << 20
)

// HTTPSource downloads a published CSV export.
type HTTPSource struct {
	URL  string
	opts HTTPOptions
}

// NewHTTPSource fills unset options with defaults.
func NewHTTPSource(url string, opts HTTPOptions) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &HTTPSource{URL: url, opts: opts}
}

func (s *HTTPSource) Name() string { return s.URL }

func (s *HTTPSource) Load(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid export URL %q: %w", s.URL, err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %q: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch %q: unexpected status %s", s.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", s.URL, err)
	}
	if int64(len(body)) > s.opts.MaxBytes {
		return "", fmt.Errorf("export at %q exceeds %d bytes", s.URL, s.opts.MaxBytes)
	}
	return string(body), nil
}
