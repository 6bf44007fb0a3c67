package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

var (
	// ErrDisallowed is returned when robots.txt forbids fetching a source
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrTooLarge is returned when source content exceeds the size limit
	ErrTooLarge = errors.New("content exceeds size limit")
	// ErrUnsupportedScheme is returned for URIs that are neither HTTP(S) nor files
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	// ErrFileSourceRefused is returned for local file sources that are not allowed
	ErrFileSourceRefused = errors.New("local file source refused")
)

// fetchSleepFunc waits between retries (injectable for tests)
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusError is a non-2xx HTTP response
type StatusError struct {
	Code       int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return "unexpected status: " + e.Status
}

// HTTPFetcher fetches source content over HTTP(S). It owns the retry policy,
// robots.txt compliance and per-host rate limiting.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    *worker.Limiter
	logger     *zap.Logger
}

// NewHTTPFetcher creates an HTTP fetcher from the http config section
func NewHTTPFetcher(cfg model.HTTPConfig, logger *zap.Logger) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in via insecure_tls
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &HTTPFetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		maxRetries: cfg.MaxRetries,
		limiter:    worker.NewLimiter(cfg.RatePerHost, cfg.BurstPerHost),
		logger:     logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, cfg.Timeout, client)
	}
	return f
}

// Fetch returns the body of rawURL, retrying transient failures with
// exponential backoff
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
		if delay > 0 {
			if u, err := url.Parse(rawURL); err == nil {
				f.limiter.SetCrawlDelay(u.Host, delay)
			}
		}
	}

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}

		body, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || attempt == f.maxRetries-1 {
			break
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > backoff {
			backoff = se.RetryAfter
		}
		f.logger.Debug("retrying fetch",
			zap.String("uri", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := fetchSleepFunc(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			Code:       resp.StatusCode,
			Status:     resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return readLimited(resp.Body, f.maxBytes)
}

// isRetryableFetchError reports transient failures: 5xx, 429 and network
// timeouts, refusals and resets
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}

// parseRetryAfter reads a delay-seconds Retry-After header
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// readLimited reads r fully, failing with ErrTooLarge past maxBytes
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return body, nil
}

// FileFetcher reads sources given as file:// URIs or bare paths. With a
// root, only files inside that directory tree are read.
type FileFetcher struct {
	maxBytes int64
	root     string
}

// NewFileFetcher creates a file fetcher with the given size limit. An empty
// root allows any path.
func NewFileFetcher(maxBytes int64, root string) *FileFetcher {
	return &FileFetcher{maxBytes: maxBytes, root: root}
}

// Fetch reads the file named by uri
func (f *FileFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := filePath(uri)
	if err != nil {
		return nil, err
	}
	if f.root != "" {
		if path, err = confine(f.root, path); err != nil {
			return nil, err
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = file.Close() }()

	return readLimited(file, f.maxBytes)
}

func filePath(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file:") {
		return filepath.Clean(uri), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse file URI: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("%w: remote file host %q", ErrUnsupportedScheme, u.Host)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	return filepath.FromSlash(path), nil
}

// confine resolves path against root, following symlinks, and fails when
// the result lies outside root
func confine(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve file root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrFileSourceRefused, path, root)
	}
	return resolved, nil
}

// SourceFetcher routes a canonical URI to the HTTP or file fetcher by scheme.
// File sources are refused unless the config allows them.
type SourceFetcher struct {
	http *HTTPFetcher
	file *FileFetcher
}

// NewSourceFetcher builds the fetch capability for the given http config
func NewSourceFetcher(cfg model.HTTPConfig, logger *zap.Logger) *SourceFetcher {
	s := &SourceFetcher{http: NewHTTPFetcher(cfg, logger)}
	if cfg.AllowFileSources {
		s.file = NewFileFetcher(cfg.MaxBodyBytes, cfg.FileRoot)
	}
	return s
}

// Fetch implements cache.Fetcher
func (s *SourceFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	switch scheme := uriScheme(uri); scheme {
	case "http", "https":
		return s.http.Fetch(ctx, uri)
	case "file", "":
		if s.file == nil {
			return nil, fmt.Errorf("%w: %s (set http.allow_file_sources)", ErrFileSourceRefused, uri)
		}
		return s.file.Fetch(ctx, uri)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// remoteOnly refuses every source that is not HTTP(S). Sources declared by a
// registry embedded in the audited document are fetched through it.
type remoteOnly struct {
	next cache.Fetcher
}

func (r remoteOnly) Fetch(ctx context.Context, uri string) ([]byte, error) {
	switch uriScheme(uri) {
	case "http", "https":
		return r.next.Fetch(ctx, uri)
	case "file", "":
		return nil, fmt.Errorf("%w: %s named by an embedded registry", ErrFileSourceRefused, uri)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uriScheme(uri))
	}
}

// uriScheme returns the lowercased scheme, or "" for bare paths (including
// Windows drive letters)
func uriScheme(uri string) string {
	i := strings.Index(uri, ":")
	if i <= 1 {
		return ""
	}
	scheme := strings.ToLower(uri[:i])
	for _, c := range scheme {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return ""
		}
	}
	return scheme
}
