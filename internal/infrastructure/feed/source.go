package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"threatcache/internal/bootstrap/config"
	"threatcache/internal/errs"
	"threatcache/internal/ports"
)

const defaultUserAgent = "threatcache/1"

// NewSource picks the transport for cfg.URL: http(s) or file://.
func NewSource(cfg config.FeedConfig) (ports.FeedSource, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, errors.New("feed.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(err, "parse feed.url")
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxBytes
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPSource(raw, cfg.Timeout, maxBytes, cfg.UserAgent), nil
	case "file":
		return NewFileSource(FilePath(u), maxBytes), nil
	default:
		return nil, fmt.Errorf("unsupported feed.url scheme %q", u.Scheme)
	}
}

// FilePath returns the local path of a file:// URL.
func FilePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	if u.Host != "" && u.Host != "localhost" {
		return "//" + u.Host + u.Path
	}
	return u.Path
}

// HTTPSource fetches the document with a single GET. It does not retry.
type HTTPSource struct {
	url       string
	client    *http.Client
	maxBytes  int64
	userAgent string
}

var _ ports.FeedSource = (*HTTPSource)(nil)

func NewHTTPSource(rawURL string, timeout time.Duration, maxBytes int64, userAgent string) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPSource{
		url:       rawURL,
		client:    &http.Client{Timeout: timeout},
		maxBytes:  maxBytes,
		userAgent: userAgent,
	}
}

func (s *HTTPSource) Location() string {
	return sanitizeURL(s.url)
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	const op = "fetch feed"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errs.E(errs.KindFetch, op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.E(errs.KindFetch, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errs.Ef(errs.KindFetch, op, "HTTP %d", resp.StatusCode)
	}

	body, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		if k, ok := errs.KindOf(err); ok && k == errs.KindDataFormat {
			return nil, err
		}
		return nil, errs.E(errs.KindFetch, op, err)
	}
	return body, nil
}

// FileSource reads the document from the local filesystem.
type FileSource struct {
	path     string
	maxBytes int64
}

var _ ports.FeedSource = (*FileSource)(nil)

func NewFileSource(path string, maxBytes int64) *FileSource {
	return &FileSource{path: path, maxBytes: maxBytes}
}

func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) Location() string {
	return "file://" + s.path
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	const op = "read feed file"
	if err := ctx.Err(); err != nil {
		return nil, errs.E(errs.KindFetch, op, err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, errs.E(errs.KindFetch, op, err)
	}
	defer f.Close()

	body, err := readLimited(f, s.maxBytes)
	if err != nil {
		if k, ok := errs.KindOf(err); ok && k == errs.KindDataFormat {
			return nil, err
		}
		return nil, errs.E(errs.KindFetch, op, err)
	}
	return body, nil
}

// readLimited reads at most maxBytes. A longer body is rejected rather than
// truncated; partial data must never reach ingestion.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxBytes
	}
	lr := &io.LimitedReader{R: r, N: maxBytes + 1}
	body, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, errs.Ef(errs.KindDataFormat, "read feed", "document exceeds %d bytes", maxBytes)
	}
	return body, nil
}

// sanitizeURL keeps scheme and host only.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid-url>"
	}
	return u.Scheme + "://" + u.Host
}
