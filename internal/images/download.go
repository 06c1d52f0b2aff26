package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/fetcher"
	"github.com/byteowlz/glean/internal/logger"
	"github.com/byteowlz/glean/internal/metrics"
)

const (
	defaultMinBytes    = 5000
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4

	imageAccept = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// Asset is a downloaded image.
type Asset struct {
	URL      string `json:"url" yaml:"url"`
	Base64   string `json:"base64" yaml:"base64"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
}

// ScreenshotAsset wraps a browser screenshot.
func ScreenshotAsset(png []byte) Asset {
	return Asset{
		URL:      "browser_screenshot",
		Base64:   base64.StdEncoding.EncodeToString(png),
		MimeType: "image/png",
	}
}

type DownloaderOptions struct {
	MinBytes    int
	Timeout     time.Duration
	Concurrency int
	UserAgent   string
	Logger      logger.Logger
	Metrics     *metrics.Metrics
}

// Downloader fetches images in parallel. A failed download never affects the
// others.
type Downloader struct {
	fetcher     *fetcher.SimpleFetcher
	minBytes    int
	timeout     time.Duration
	concurrency int
	userAgent   string
	log         logger.Logger
	metrics     *metrics.Metrics
}

func NewDownloader(f *fetcher.SimpleFetcher, opts DownloaderOptions) *Downloader {
	if opts.MinBytes <= 0 {
		opts.MinBytes = defaultMinBytes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if f == nil {
		f = fetcher.NewSimpleFetcher(opts.Timeout)
	}
	return &Downloader{
		fetcher:     f,
		minBytes:    opts.MinBytes,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		userAgent:   opts.UserAgent,
		log:         opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Download returns the accepted images in the order of urls.
func (d *Downloader) Download(ctx context.Context, urls []string) []Asset {
	if len(urls) == 0 {
		return nil
	}

	slots := make([]*Asset, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			asset, err := d.fetch(gctx, u)
			d.metrics.RecordImageDownload(errs.Outcome(err))
			if err != nil {
				d.log.Debug("Image skipped", logger.String("url", u), logger.Error(err))
				return nil
			}
			slots[i] = asset
			return nil
		})
	}
	_ = g.Wait()

	var assets []Asset
	for _, a := range slots {
		if a != nil {
			assets = append(assets, *a)
		}
	}
	d.log.Info("Downloaded images", logger.Int("ok", len(assets)), logger.Int("requested", len(urls)))
	return assets
}

func (d *Downloader) fetch(ctx context.Context, imageURL string) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.fetcher.Get(ctx, imageURL, fetcher.FetchOptions{
		UserAgent: d.userAgent,
		Accept:    imageAccept,
	})
	if err != nil {
		return nil, err
	}

	mimeType := mediaType(res.ContentType)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("not an image (%q): %w", res.ContentType, errs.ErrNoContent)
	}
	if len(res.Body) < d.minBytes {
		return nil, fmt.Errorf("image too small (%d bytes): %w", len(res.Body), errs.ErrNoContent)
	}

	return &Asset{
		URL:      imageURL,
		Base64:   base64.StdEncoding.EncodeToString(res.Body),
		MimeType: mimeType,
	}, nil
}

// mediaType strips parameters such as charset from a Content-Type header.
func mediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
