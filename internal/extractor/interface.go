// Package extractor holds the reader-API clients: hosted services that render
// a page server-side and hand back its plain text.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/byteowlz/glean/internal/config"
	"github.com/byteowlz/glean/internal/errs"
)

// ExtractResult holds the output of a reader-API call
type ExtractResult struct {
	URL     string
	Title   string
	Content string // plain text
}

// Backend is the interface for reader-API services
type Backend interface {
	// Name returns the unique identifier for this backend
	Name() string

	// Extract fetches the rendered text of a URL
	Extract(ctx context.Context, url string) (*ExtractResult, error)

	// IsAvailable checks if the backend is properly configured
	IsAvailable() bool
}

// New builds the backend selected in cfg. Backend "none" returns a nil
// Backend, which disables the reader strategy.
func New(cfg config.ReaderConfig) (Backend, error) {
	timeout := config.Seconds(cfg.Timeout)
	switch strings.ToLower(cfg.Backend) {
	case "none":
		return nil, nil
	case "", "jina":
		b := NewJinaBackend(cfg.APIKey, timeout)
		if cfg.BaseURL != "" {
			b.BaseURL = cfg.BaseURL
		}
		b.MinChars = cfg.MinChars
		return b, nil
	case "tavily":
		b := NewTavilyBackend(cfg.Tavily.APIKey, cfg.Tavily.ExtractDepth, timeout)
		b.MinChars = cfg.MinChars
		return b, nil
	default:
		return nil, fmt.Errorf("unknown reader backend %q", cfg.Backend)
	}
}

// checkLength rejects texts of minChars characters or fewer; such replies are
// error pages or login stubs rather than content.
func checkLength(backend, url, text string, minChars int) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= minChars {
		return fmt.Errorf("%s: %s: %w", backend, url, errs.ErrNoContent)
	}
	return nil
}
