package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/byteowlz/glean/internal/browser"
	"github.com/byteowlz/glean/internal/classify"
	"github.com/byteowlz/glean/internal/errs"
	reader "github.com/byteowlz/glean/internal/extractor"
	"github.com/byteowlz/glean/internal/fetcher"
	"github.com/byteowlz/glean/internal/images"
	"github.com/byteowlz/glean/internal/logger"
	"github.com/byteowlz/glean/internal/processor"
	"github.com/byteowlz/glean/internal/snapshot"
	"github.com/byteowlz/glean/internal/youtube"
)

// minSnapshotChars is the raw snapshot size below which a browser capture is
// treated as a failed render.
const minSnapshotChars = 50

// primaryStrategy fetches the page and runs readability over it.
type primaryStrategy struct {
	fetcher   *fetcher.SimpleFetcher
	processor *processor.ContentProcessor
	fetchOpts fetcher.FetchOptions
}

func (s *primaryStrategy) Name() Source { return SourcePrimary }

func (s *primaryStrategy) Attempt(ctx context.Context, url string) (*Candidate, error) {
	res, err := s.fetcher.Fetch(ctx, url, s.fetchOpts)
	if err != nil {
		return nil, err
	}
	if !fetcher.IsHTML(res.ContentType) {
		return nil, fmt.Errorf("%s is %q: %w", url, res.ContentType, errs.ErrNoContent)
	}

	processed, err := s.processor.Process(res.HTML, res.URL)
	if err != nil {
		// keep the markup for image harvesting
		return &Candidate{HTML: res.HTML, PageURL: res.URL}, nil
	}
	return &Candidate{
		Text:    processed.TextContent,
		Title:   processed.Title,
		Byline:  processed.Byline,
		HTML:    res.HTML,
		PageURL: res.URL,
	}, nil
}

// readerStrategy asks a reader API for the rendered text.
type readerStrategy struct {
	backend reader.Backend
}

func (s *readerStrategy) Name() Source { return SourceReader }

func (s *readerStrategy) Attempt(ctx context.Context, url string) (*Candidate, error) {
	if !s.backend.IsAvailable() {
		return nil, fmt.Errorf("%s: %w", s.backend.Name(), errs.ErrUnavailable)
	}
	res, err := s.backend.Extract(ctx, url)
	if err != nil {
		return nil, err
	}
	return &Candidate{Text: res.Content, Title: res.Title}, nil
}

// browserStrategy renders the page in a real browser and cleans the
// accessibility snapshot.
type browserStrategy struct {
	automation browser.Automation
}

func (s *browserStrategy) Name() Source { return SourceBrowser }

func (s *browserStrategy) Attempt(ctx context.Context, url string) (*Candidate, error) {
	if !s.automation.Available(ctx) {
		return nil, fmt.Errorf("%s: %w", s.automation.Name(), errs.ErrUnavailable)
	}
	page, err := s.automation.Capture(ctx, url)
	if err != nil {
		return nil, err
	}

	c := &Candidate{
		Raw:     page.Snapshot,
		Text:    snapshot.Clean(page.Snapshot),
		PageURL: url,
		Links:   page.Links,
	}
	if len(page.Screenshot) > browser.MinScreenshotBytes {
		c.Images = []images.Asset{images.ScreenshotAsset(page.Screenshot)}
	}
	return c, nil
}

// ogMetaStrategy reads link-preview tags, which walled gardens still serve
// to crawlers.
type ogMetaStrategy struct {
	fetcher      *fetcher.SimpleFetcher
	processor    *processor.ContentProcessor
	crawlerAgent string
}

func (s *ogMetaStrategy) Name() Source { return SourceOGMeta }

func (s *ogMetaStrategy) Attempt(ctx context.Context, url string) (*Candidate, error) {
	res, err := s.fetcher.Fetch(ctx, url, fetcher.FetchOptions{
		UserAgent:    s.crawlerAgent,
		BrowserAgent: string(fetcher.UserAgentCrawler),
	})
	if err != nil {
		return nil, err
	}
	meta, err := s.processor.MetaTags(res.HTML)
	if err != nil {
		return nil, &errs.ParseError{What: "meta tags", Err: err}
	}
	return &Candidate{
		Text:      meta.Description,
		Title:     meta.Title,
		ImageURLs: meta.Images,
	}, nil
}

// walledGardenAccept takes any text, but only from a browser capture that
// actually rendered.
func walledGardenAccept(src Source, c *Candidate) bool {
	if strings.TrimSpace(c.Text) == "" {
		return false
	}
	return src != SourceBrowser || len(c.Raw) > minSnapshotChars
}

// VideoInfoSource looks up a video's title and channel.
type VideoInfoSource interface {
	Info(ctx context.Context, videoID string) (youtube.VideoInfo, error)
}

// youtubeStrategy joins a transcript under a title header. Without a
// transcript it returns the title and author only.
type youtubeStrategy struct {
	transcripts youtube.TranscriptSource
	info        VideoInfoSource
	languages   []string
	log         logger.Logger
}

func (s *youtubeStrategy) Name() Source { return SourceYouTube }

func (s *youtubeStrategy) Attempt(ctx context.Context, url string) (*Candidate, error) {
	_, videoID := classify.Classify(url)
	if videoID == "" {
		return nil, fmt.Errorf("no video id in %s: %w", url, errs.ErrNoContent)
	}

	c := &Candidate{PageURL: url}
	if s.info != nil {
		if info, err := s.info.Info(ctx, videoID); err != nil {
			s.log.Debug("Video info lookup failed", logger.String("video_id", videoID), logger.Error(err))
		} else {
			c.Title, c.Byline = info.Title, info.Author
		}
	}

	tracks, err := s.transcripts.List(ctx, videoID)
	if err != nil {
		s.log.Warn("Transcript listing failed", logger.String("video_id", videoID), logger.Error(err))
		return c, nil
	}
	track, ok := youtube.Pick(tracks, s.languages)
	if !ok {
		return c, nil
	}
	segments, err := s.transcripts.Fetch(ctx, track)
	if err != nil {
		s.log.Warn("Transcript fetch failed",
			logger.String("video_id", videoID),
			logger.String("language", track.LanguageCode),
			logger.Error(err))
		return c, nil
	}

	transcript := youtube.Join(segments)
	s.log.Info("Fetched transcript",
		logger.String("video_id", videoID),
		logger.String("language", track.LanguageCode),
		logger.Bool("generated", track.Generated),
		logger.Int("words", CountWords(transcript)))

	switch {
	case strings.TrimSpace(transcript) == "":
	case c.Title != "":
		c.Text = videoHeader(c.Title, c.Byline) + "\n\n" + transcript
	default:
		c.Text = transcript
	}
	return c, nil
}

func videoHeader(title, author string) string {
	return fmt.Sprintf("[YouTube Video] %s\nBy: %s", title, author)
}
