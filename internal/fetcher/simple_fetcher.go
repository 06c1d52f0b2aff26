package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/byteowlz/glean/internal/errs"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
	maxBodyBytes        = 10 * 1024 * 1024

	htmlAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
)

var errTooManyRedirects = errors.New("too many redirects")

type FetchOptions struct {
	// UserAgent is sent verbatim when set; otherwise BrowserAgent selects one.
	UserAgent    string
	BrowserAgent string
	Accept       string
	Cookies      []*http.Cookie
}

type FetchResult struct {
	Body        []byte
	HTML        string
	URL         string // final URL after redirects
	ContentType string
}

type SimpleFetcher struct {
	client          *http.Client
	userAgentSelect *UserAgentSelector
	followRedirects bool
	maxRedirects    int
}

func NewSimpleFetcher(timeout time.Duration) *SimpleFetcher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	sf := &SimpleFetcher{
		userAgentSelect: NewUserAgentSelector(),
		followRedirects: true,
		maxRedirects:    defaultMaxRedirects,
	}
	sf.client = &http.Client{
		Timeout:       timeout,
		CheckRedirect: sf.checkRedirect,
	}
	return sf
}

// SetFollowRedirects toggles redirect following.
func (sf *SimpleFetcher) SetFollowRedirects(follow bool) {
	sf.followRedirects = follow
}

// SetMaxRedirects caps the redirect chain; values <= 0 keep the default.
func (sf *SimpleFetcher) SetMaxRedirects(n int) {
	if n > 0 {
		sf.maxRedirects = n
	}
}

func (sf *SimpleFetcher) checkRedirect(_ *http.Request, via []*http.Request) error {
	if !sf.followRedirects {
		return http.ErrUseLastResponse
	}
	if len(via) >= sf.maxRedirects {
		return errTooManyRedirects
	}
	return nil
}

// Fetch retrieves an HTML page with browser-like headers.
func (sf *SimpleFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	if opts.Accept == "" {
		opts.Accept = htmlAccept
	}
	return sf.Get(ctx, url, opts)
}

// Get performs a GET and returns the body. Non-2xx responses and transport
// failures are reported as *errs.FetchError.
func (sf *SimpleFetcher) Get(ctx context.Context, url string, opts FetchOptions) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.FetchError{URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	// Set user agent (custom takes precedence, then browser agent, then random)
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = sf.userAgentSelect.GetUserAgent(opts.BrowserAgent)
	}
	req.Header.Set("User-Agent", userAgent)

	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	}
	if opts.Accept == htmlAccept {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Upgrade-Insecure-Requests", "1")
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
	}

	for _, cookie := range opts.Cookies {
		req.AddCookie(cookie)
	}

	resp, err := sf.client.Do(req)
	if err != nil {
		return nil, &errs.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.NewStatusError(url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &errs.FetchError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &FetchResult{
		Body:        body,
		HTML:        string(body),
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// IsHTML reports whether a Content-Type header denotes an HTML document.
// An empty header is accepted since many servers omit it.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
