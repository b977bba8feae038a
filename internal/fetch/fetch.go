// Package fetch implements the fetch-first, render-fallback acquisition
// path: a plain HTTP GET when that's enough, a Shopify product-JSON
// endpoint when the host looks like a Shopify storefront, and a headless
// browser escalation when neither produces usable markup.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/lattani/trackwright/horosafe"
	"github.com/lattani/trackwright/idgen"
	"github.com/lattani/trackwright/internal/fetch/browser"
)

// Mode records which acquisition path produced a Result.
type Mode string

const (
	ModeHTTP     Mode = "http"
	ModeRendered Mode = "rendered"
	ModeFailed   Mode = "failed"
)

// MaxBodyBytes is the hard cap on any fetched document, HTTP or rendered.
const MaxBodyBytes = 10 * 1024 * 1024

// MaxRedirects bounds the redirect chain followed for the HTTP path.
const MaxRedirects = 10

// Result is the outcome of a fetch, regardless of which path produced it.
// Every failure mode reduces to Success=false with a diagnostic Error
// string: Fetch itself always returns a nil error.
type Result struct {
	ID            string
	Success       bool
	Mode          Mode
	OriginalURL   string
	FinalURL      string
	StatusCode    int
	RawHTML       []byte
	RenderedHTML  []byte
	FetchedAt     time.Time
	RedirectChain []string
	ResponseETag  string
	ResponseLastMod string
	ConsoleErrors []string
	Error         string
}

// Config configures a Fetcher.
type Config struct {
	// HTTPTimeout bounds a single HTTP GET. Default 10s.
	HTTPTimeout time.Duration
	// RenderTimeout bounds a browser navigation. Default 15s.
	RenderTimeout time.Duration
	// OverallTimeout bounds the entire Fetch call. Default 20s.
	OverallTimeout time.Duration
	// UserAgent sent on every request and browser navigation.
	UserAgent string
	// DisableRender skips the headless-browser escalation entirely (used
	// in environments with no Chrome available, or for tests).
	DisableRender bool
	// URLValidator validates every dialed URL, including redirect hops.
	// Defaults to horosafe.ValidateURL.
	URLValidator func(string) error
	// BrowserConfig configures the headless-browser escalation path.
	BrowserConfig browser.Config
}

func (c *Config) defaults() {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 15 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 20 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if c.URLValidator == nil {
		c.URLValidator = horosafe.ValidateURL
	}
}

// Fetcher performs the full fetch-first, render-fallback strategy.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New creates a Fetcher with SSRF-validated redirects capped at
// MaxRedirects, matching the teacher's veille/internal/fetch wiring.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.HTTPTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= MaxRedirects {
					return fmt.Errorf("fetch: too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("fetch: redirect blocked: %w", err)
				}
				return nil
			},
		},
		cfg: cfg,
	}
}

// Fetch acquires url via the fetch-first, render-fallback strategy under
// an overall deadline. It never returns a non-nil error for scrape-level
// failure — that is always encoded as Result{Success: false, Error: "..."}.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.OverallTimeout)
	defer cancel()

	res := &Result{
		ID:          idgen.New(),
		OriginalURL: url,
		FetchedAt:   time.Now().UTC(),
	}

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	if err := f.cfg.URLValidator(url); err != nil {
		res.Mode = ModeFailed
		res.Error = fmt.Sprintf("blocked: %v", err)
		return res, nil
	}

	httpBody, finalURL, status, etag, lastMod, err := f.httpGet(ctx, url)
	if err == nil {
		res.FinalURL = finalURL
		res.StatusCode = status
		res.ResponseETag = etag
		res.ResponseLastMod = lastMod

		if looksShopify(url, httpBody) {
			if shopifyBody, serr := f.fetchShopifyProductJSON(ctx, finalURL); serr == nil {
				res.Mode = ModeHTTP
				res.Success = true
				res.RawHTML = shopifyBody
				f.logHeap(before)
				return res, nil
			}
		}

		if isStructurallyComplete(httpBody) {
			res.Mode = ModeHTTP
			res.Success = true
			res.RawHTML = httpBody
			f.logHeap(before)
			return res, nil
		}
	}

	if f.cfg.DisableRender {
		res.Mode = ModeFailed
		if err != nil {
			res.Error = fmt.Sprintf("http: %v; rendering disabled", err)
		} else {
			res.Error = "http response insufficient; rendering disabled"
		}
		return res, nil
	}

	rendered, consoleErrs, rerr := f.render(ctx, url)
	if rerr == nil {
		res.Mode = ModeRendered
		res.Success = true
		res.RenderedHTML = rendered
		res.ConsoleErrors = consoleErrs
		f.logHeap(before)
		return res, nil
	}

	res.Mode = ModeFailed
	switch {
	case err != nil && rerr != nil:
		res.Error = fmt.Sprintf("http: %v; rendered: %v", err, rerr)
	case rerr != nil:
		res.Error = fmt.Sprintf("rendered: %v", rerr)
	default:
		res.Error = "both acquisition paths failed"
	}
	return res, nil
}

func (f *Fetcher) httpGet(ctx context.Context, url string) (body []byte, finalURL string, status int, etag, lastMod string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", 0, "", "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.doWithRetry(req)
	if err != nil {
		return nil, "", 0, "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, "", resp.StatusCode, "", "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return nil, "", resp.StatusCode, "", "", fmt.Errorf("response exceeds %d bytes", MaxBodyBytes)
	}

	return data, resp.Request.URL.String(), resp.StatusCode, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// doWithRetry issues req once, retrying exactly once on a network timeout
// (never on an HTTP error status).
func (f *Fetcher) doWithRetry(req *http.Request) (*http.Response, error) {
	resp, err := f.client.Do(req)
	if err == nil {
		return resp, nil
	}
	if !isTimeout(err) {
		return nil, fmt.Errorf("do: %w", err)
	}
	retryReq := req.Clone(req.Context())
	resp, err = f.client.Do(retryReq)
	if err != nil {
		return nil, fmt.Errorf("do (after retry): %w", err)
	}
	return resp, nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	for e := err; e != nil; {
		if te, ok := e.(timeouter); ok {
			t = te
			break
		}
		unwrapper, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = unwrapper.Unwrap()
	}
	return t != nil && t.Timeout()
}

// Head sends a plain HEAD request (no If-None-Match/If-Modified-Since
// headers) and returns the current ETag/Last-Modified validators without
// downloading the body. The scheduler does not call it; every check runs a
// full Fetch, and re-check timing follows the throttle's "last finished_at".
func (f *Fetcher) Head(ctx context.Context, url string) (etag, lastMod string, err error) {
	if err := f.cfg.URLValidator(url); err != nil {
		return "", "", fmt.Errorf("fetch: blocked: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("fetch: head request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch: head do: %w", err)
	}
	resp.Body.Close()

	return resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

func (f *Fetcher) render(ctx context.Context, url string) ([]byte, []string, error) {
	renderCtx, cancel := context.WithTimeout(ctx, f.cfg.RenderTimeout)
	defer cancel()

	cfg := f.cfg.BrowserConfig
	cfg.UserAgent = f.cfg.UserAgent
	return browser.RenderOnce(renderCtx, url, cfg)
}

func (f *Fetcher) logHeap(before runtime.MemStats) {
	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	slog.Debug("fetch: heap usage", "before_bytes", before.HeapAlloc, "after_bytes", after.HeapAlloc)
	if after.HeapAlloc > 500<<20 {
		runtime.GC()
	}
}

// isStructurallyComplete implements the "HTML is structurally incomplete"
// contract check: must contain <html> and <body>, must pass IsSufficient,
// and the text remaining after stripping scripts/styles must be at least
// 100 chars.
func isStructurallyComplete(body []byte) bool {
	lower := bytes.ToLower(body)
	if !bytes.Contains(lower, []byte("<html")) || !bytes.Contains(lower, []byte("<body")) {
		return false
	}
	if !IsSufficient(body) {
		return false
	}
	return len(strippedText(body)) >= 100
}

func strippedText(body []byte) string {
	var sb strings.Builder
	inScript, inStyle := false, false
	s := string(body)
	i := 0
	for i < len(s) {
		lowerRest := strings.ToLower(s[i:])
		switch {
		case strings.HasPrefix(lowerRest, "<script"):
			inScript = true
		case strings.HasPrefix(lowerRest, "</script"):
			inScript = false
		case strings.HasPrefix(lowerRest, "<style"):
			inStyle = true
		case strings.HasPrefix(lowerRest, "</style"):
			inStyle = false
		}
		if s[i] == '<' {
			j := strings.IndexByte(s[i:], '>')
			if j < 0 {
				break
			}
			i += j + 1
			continue
		}
		if !inScript && !inStyle {
			sb.WriteByte(s[i])
		}
		i++
	}
	return strings.TrimSpace(sb.String())
}
