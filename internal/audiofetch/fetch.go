// Package audiofetch downloads resolved voice line audio so a chat transport
// can upload it as an attachment.
//
// Every download lands in its own temporary directory. The caller owns the
// returned [Download] and must Close it once the file has been sent.
package audiofetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/silibot/internal/observe"
	"github.com/MrWong99/silibot/internal/resilience"
)

// Defaults used when the corresponding option is not set.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 25 << 20
)

// Download is an audio file on local disk.
type Download struct {
	// Path is the absolute path of the downloaded file.
	Path string

	// Name is the file name taken from the source URL.
	Name string

	// Size is the number of bytes written.
	Size int64

	dir string
}

// Open opens the downloaded file for reading.
func (d *Download) Open() (*os.File, error) {
	return os.Open(d.Path)
}

// Close removes the download and its temporary directory.
func (d *Download) Close() error {
	if d == nil || d.dir == "" {
		return nil
	}
	return os.RemoveAll(d.dir)
}

// reasonRequestFailed marks a [FetchError] where no HTTP response arrived.
const reasonRequestFailed = "request failed"

// FetchError reports a download that did not produce a usable file.
type FetchError struct {
	URL    string
	Status int // HTTP status, zero when no response was received
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	msg := "audiofetch: fetch " + e.URL + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// UserMessage is the chat-facing text for a failed download.
func (e *FetchError) UserMessage() string {
	return fmt.Sprintf("Could not download the voice line from %s. Try again later.", e.URL)
}

// Option configures a [Fetcher].
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client. Default: a fresh [http.Client].
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout bounds a single download. Default: [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxBytes caps the size of a download. Default: [DefaultMaxBytes].
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithUserAgent sets the User-Agent header. Wiki CDNs reject anonymous
// clients, so production callers should always set one.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithDownloadDir sets the parent of the per-download temporary
// directories. Default: [os.TempDir].
func WithDownloadDir(dir string) Option {
	return func(f *Fetcher) {
		f.dir = dir
	}
}

// WithMetrics records download counts and latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithCircuitBreaker guards each audio host with its own breaker built from
// cfg. Name and IsFailure are set per host. Without this option every
// download goes out regardless of earlier failures.
func WithCircuitBreaker(cfg resilience.Config) Option {
	return func(f *Fetcher) {
		f.breakerCfg = &cfg
	}
}

// Fetcher downloads audio files over HTTP. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	dir       string
	metrics   *observe.Metrics

	breakerCfg *resilience.Config
	mu         sync.Mutex
	breakers   map[string]*resilience.Breaker
}

// New returns a Fetcher configured by opts.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{},
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads rawURL into a fresh temporary directory. Failures are
// returned as [*FetchError]; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (d *Download, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "audiofetch.Fetch")
	span.SetAttributes(observe.Attr("url", rawURL))
	defer func() {
		status := "ok"
		switch {
		case errors.Is(err, resilience.ErrOpen):
			status = "circuit_open"
		case err != nil:
			status = "error"
		}
		observe.EndSpan(span, status, err)
		if f.metrics != nil {
			f.metrics.RecordFetch(ctx, status, time.Since(start))
		}
	}()

	name, err := FileName(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: "no audio file name in URL", Err: err}
	}

	b := f.breaker(rawURL)
	if b == nil {
		return f.fetch(ctx, rawURL, name)
	}
	berr := b.Do(func() error {
		d, err = f.fetch(ctx, rawURL, name)
		return err
	})
	if errors.Is(berr, resilience.ErrOpen) {
		return nil, &FetchError{URL: rawURL, Reason: "audio host is failing, not trying", Err: berr}
	}
	return d, err
}

// breaker returns the breaker for the host of rawURL, or nil when breakers
// are disabled.
func (f *Fetcher) breaker(rawURL string) *resilience.Breaker {
	if f.breakerCfg == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := u.Host

	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.breakers[host]; ok {
		return b
	}
	if f.breakers == nil {
		f.breakers = make(map[string]*resilience.Breaker)
	}
	cfg := *f.breakerCfg
	cfg.Name = host
	cfg.IsFailure = hostFailure
	b := resilience.New(cfg)
	f.breakers[host] = b
	return b
}

// hostFailure reports whether err says the host itself is unwell. Missing
// files and oversized downloads are problems of a single URL.
func hostFailure(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return err != nil
	}
	if errors.Is(fe.Err, context.Canceled) {
		return false
	}
	switch {
	case fe.Status == 0:
		return fe.Reason == reasonRequestFailed
	case fe.Status == http.StatusTooManyRequests, fe.Status >= 500:
		return true
	default:
		return false
	}
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, name string) (*Download, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: "build request", Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: reasonRequestFailed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode, Reason: "unexpected status " + resp.Status}
	}

	dir, err := os.MkdirTemp(f.dir, "voiceline-*")
	if err != nil {
		return nil, &FetchError{URL: rawURL, Reason: "create download dir", Err: err}
	}
	d := &Download{Path: filepath.Join(dir, name), Name: name, dir: dir}

	n, err := f.save(d.Path, resp.Body)
	if err != nil {
		_ = d.Close()
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode, Reason: "save file", Err: err}
	}
	d.Size = n

	slog.Debug("audiofetch: downloaded", "url", rawURL, "bytes", n, "duration", time.Since(start))
	return d, nil
}

var errTooLarge = errors.New("file exceeds size limit")

func (f *Fetcher) save(path string, body io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(body, f.maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if n > f.maxBytes {
		return n, fmt.Errorf("%w of %d bytes", errTooLarge, f.maxBytes)
	}
	return n, nil
}

// FileName returns the last path segment of rawURL that ends in ".mp3".
// Wiki CDNs serve files at paths like ".../Vo_axe_attack_01.mp3/revision/latest",
// so the final segment is not necessarily the file.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("audiofetch: parse url: %w", err)
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			seg = segments[i]
		}
		if len(seg) > len(".mp3") && strings.EqualFold(filepath.Ext(seg), ".mp3") && !strings.ContainsAny(seg, `/\`) {
			return seg, nil
		}
	}
	return "", fmt.Errorf("audiofetch: no .mp3 segment in %q", u.Path)
}
