// Package browser drives a real browser for pages that block plain HTTP
// clients. Every backend yields the same capture: an accessibility-tree dump,
// a screenshot, and the page's outbound links.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/byteowlz/glean/internal/config"
	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/logger"
)

// MinScreenshotBytes drops blank or failed screenshots.
const MinScreenshotBytes = 1000

const (
	defaultRenderWait  = 3 * time.Second
	defaultPageTimeout = 30 * time.Second
)

// PageCapture is one rendered page.
type PageCapture struct {
	URL        string
	Snapshot   string
	Screenshot []byte
	Links      []string
}

// Automation is a browser capability handed to the extraction pipeline.
type Automation interface {
	Name() string
	// Available reports whether the backend can be used. Backends probe at
	// most once and remember the answer.
	Available(ctx context.Context) bool
	// Capture opens one tab on url and closes it before returning.
	Capture(ctx context.Context, url string) (*PageCapture, error)
}

// New builds the backend selected in cfg. Backend "none" yields a
// capability that is never available.
func New(cfg config.BrowserConfig, log logger.Logger) (Automation, error) {
	if log == nil {
		log = logger.NewNop()
	}
	cookies, err := NewCookieSource(cfg.Cookies, cfg.Paths)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Backend) {
	case "camofox":
		return NewCamofoxClient(CamofoxOptions{
			URL:         cfg.Camofox.URL,
			UserID:      cfg.Camofox.UserID,
			APIKey:      cfg.Camofox.APIKey,
			RenderWait:  config.Seconds(cfg.RenderWait),
			PageTimeout: config.Seconds(cfg.PageTimeout),
			Cookies:     cookies,
			Logger:      log,
		}), nil
	case "chrome":
		return NewChromeSession(ChromeOptions{
			RemoteURL:   cfg.Chrome.RemoteURL,
			RenderWait:  config.Seconds(cfg.RenderWait),
			PageTimeout: config.Seconds(cfg.PageTimeout),
			Cookies:     cookies,
			Logger:      log,
		}), nil
	case "", "none":
		return &Static{}, nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Backend)
	}
}

// Static is a fixed capability: either never available, or always returning
// the same capture.
type Static struct {
	Up    bool
	Page  *PageCapture
	Err   error
	calls atomic.Int32
}

func (s *Static) Name() string { return "static" }

func (s *Static) Available(context.Context) bool { return s.Up }

func (s *Static) Capture(_ context.Context, url string) (*PageCapture, error) {
	s.calls.Add(1)
	if !s.Up {
		return nil, errs.ErrUnavailable
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Page == nil {
		return &PageCapture{URL: url}, nil
	}
	page := *s.Page
	page.URL = url
	return &page, nil
}

// Calls returns how many captures were requested.
func (s *Static) Calls() int { return int(s.calls.Load()) }

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
