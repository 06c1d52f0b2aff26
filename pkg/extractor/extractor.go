// Package extractor turns a URL and an optional excerpt into normalized text
// and images, trying one strategy after another until one is good enough.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/byteowlz/glean/internal/browser"
	"github.com/byteowlz/glean/internal/classify"
	"github.com/byteowlz/glean/internal/config"
	"github.com/byteowlz/glean/internal/enrich"
	"github.com/byteowlz/glean/internal/errs"
	reader "github.com/byteowlz/glean/internal/extractor"
	"github.com/byteowlz/glean/internal/fetcher"
	"github.com/byteowlz/glean/internal/images"
	"github.com/byteowlz/glean/internal/logger"
	"github.com/byteowlz/glean/internal/metrics"
	"github.com/byteowlz/glean/internal/processor"
	"github.com/byteowlz/glean/internal/youtube"
)

type Options struct {
	ShortContentThreshold int
	EnrichWordThreshold   int
	MaxEnrichRepos        int
	MaxImages             int
	MinImageDimension     int
	WalledGardens         []string
	FollowSkip            []string
	Follow                FollowPicker
	UserAgent             string
	BrowserAgent          string
	CrawlerAgent          string
	Languages             []string
}

// OptionsFromConfig maps configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	follow, err := PickerFor(cfg.Extraction.FollowStrategy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ShortContentThreshold: cfg.Extraction.ShortContentThreshold,
		EnrichWordThreshold:   cfg.Extraction.EnrichWordThreshold,
		MaxEnrichRepos:        cfg.Extraction.MaxEnrichRepos,
		MaxImages:             cfg.Images.MaxImages,
		MinImageDimension:     cfg.Images.MinDimension,
		WalledGardens:         cfg.Extraction.WalledGardens,
		FollowSkip:            cfg.Extraction.FollowSkip,
		Follow:                follow,
		UserAgent:             cfg.Network.UserAgent,
		BrowserAgent:          cfg.Network.BrowserAgent,
		CrawlerAgent:          cfg.Network.CrawlerAgent,
		Languages:             cfg.YouTube.Languages,
	}, nil
}

// Deps are the collaborators the pipeline talks to. Nil entries are built
// with defaults; a nil Browser or Reader disables that strategy.
type Deps struct {
	Fetcher     *fetcher.SimpleFetcher
	Processor   *processor.ContentProcessor
	Reader      reader.Backend
	Browser     browser.Automation
	Transcripts youtube.TranscriptSource
	VideoInfo   VideoInfoSource
	Images      *images.Downloader
	Readmes     *enrich.ReadmeFetcher
	Logger      logger.Logger
	Metrics     *metrics.Metrics
}

type Extractor struct {
	opts      Options
	fetcher   *fetcher.SimpleFetcher
	processor *processor.ContentProcessor
	primary   Strategy
	walled    *Waterfall
	openWeb   *Waterfall
	video     *Waterfall
	images    *images.Downloader
	readmes   *enrich.ReadmeFetcher
	log       logger.Logger
	metrics   *metrics.Metrics
}

// New builds an Extractor and all of its collaborators from cfg.
func New(cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*Extractor, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	rd, err := reader.New(cfg.Reader)
	if err != nil {
		return nil, err
	}
	automation, err := browser.New(cfg.Browser, log)
	if err != nil {
		return nil, err
	}

	timeout := config.Seconds(cfg.Network.Timeout)
	f := fetcher.NewSimpleFetcher(timeout)
	f.SetFollowRedirects(cfg.Network.FollowRedirects)
	f.SetMaxRedirects(cfg.Network.MaxRedirects)

	return NewWithDeps(opts, Deps{
		Fetcher:     f,
		Reader:      rd,
		Browser:     automation,
		Transcripts: youtube.Chain{
			youtube.NewInnertubeSource(timeout),
			youtube.NewWatchPageSource(cfg.YouTube.WatchURL, timeout),
		},
		VideoInfo:   youtube.NewOEmbedClient(cfg.YouTube.OEmbedURL, timeout),
		Images: images.NewDownloader(f, images.DownloaderOptions{
			MinBytes:    cfg.Images.MinBytes,
			Timeout:     config.Seconds(cfg.Images.DownloadTimeout),
			Concurrency: cfg.Images.MaxImages,
			UserAgent:   cfg.Network.UserAgent,
			Logger:      log,
			Metrics:     m,
		}),
		Readmes: enrich.NewReadmeFetcher(f, enrich.ReadmeOptions{
			RawBase:  cfg.GitHub.RawBase,
			Branches: cfg.GitHub.Branches,
			File:     cfg.GitHub.File,
			MaxChars: cfg.Extraction.MaxReadmeChars,
			Logger:   log,
			Metrics:  m,
		}),
		Logger:  log,
		Metrics: m,
	}), nil
}

// NewWithDeps wires the strategy lists around the given collaborators.
func NewWithDeps(opts Options, deps Deps) *Extractor {
	def := config.Default()
	if opts.ShortContentThreshold <= 0 {
		opts.ShortContentThreshold = def.Extraction.ShortContentThreshold
	}
	if opts.EnrichWordThreshold <= 0 {
		opts.EnrichWordThreshold = def.Extraction.EnrichWordThreshold
	}
	if opts.MaxEnrichRepos <= 0 {
		opts.MaxEnrichRepos = def.Extraction.MaxEnrichRepos
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = def.Images.MaxImages
	}
	if opts.MinImageDimension <= 0 {
		opts.MinImageDimension = def.Images.MinDimension
	}
	if opts.Follow == nil {
		opts.Follow = PickLongest
	}
	if opts.CrawlerAgent == "" {
		opts.CrawlerAgent = fetcher.GooglebotAgent
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Fetcher == nil {
		deps.Fetcher = fetcher.NewSimpleFetcher(0)
	}
	if deps.Processor == nil {
		deps.Processor = processor.NewContentProcessor()
	}
	if deps.Browser == nil {
		deps.Browser = &browser.Static{}
	}
	if deps.Transcripts == nil {
		deps.Transcripts = youtube.Chain{youtube.NewInnertubeSource(0), youtube.NewWatchPageSource("", 0)}
	}
	if deps.Images == nil {
		deps.Images = images.NewDownloader(deps.Fetcher, images.DownloaderOptions{Logger: deps.Logger, Metrics: deps.Metrics})
	}
	if deps.Readmes == nil {
		deps.Readmes = enrich.NewReadmeFetcher(deps.Fetcher, enrich.ReadmeOptions{Logger: deps.Logger, Metrics: deps.Metrics})
	}

	primary := &primaryStrategy{
		fetcher:   deps.Fetcher,
		processor: deps.Processor,
		fetchOpts: fetcher.FetchOptions{UserAgent: opts.UserAgent, BrowserAgent: opts.BrowserAgent},
	}
	walled := []Strategy{
		&browserStrategy{automation: deps.Browser},
		&ogMetaStrategy{fetcher: deps.Fetcher, processor: deps.Processor, crawlerAgent: opts.CrawlerAgent},
	}
	openWeb := []Strategy{primary}
	if deps.Reader != nil {
		rs := &readerStrategy{backend: deps.Reader}
		walled = append(walled, rs)
		openWeb = append(openWeb, rs)
	}

	return &Extractor{
		opts:      opts,
		fetcher:   deps.Fetcher,
		processor: deps.Processor,
		primary:   primary,
		walled: &Waterfall{
			Strategies: walled,
			Accept:     walledGardenAccept,
			Logger:     deps.Logger,
			Metrics:    deps.Metrics,
		},
		openWeb: &Waterfall{
			Strategies: openWeb,
			Accept:     MinWords(opts.ShortContentThreshold),
			Logger:     deps.Logger,
			Metrics:    deps.Metrics,
		},
		video: &Waterfall{
			Strategies: []Strategy{&youtubeStrategy{
				transcripts: deps.Transcripts,
				info:        deps.VideoInfo,
				languages:   opts.Languages,
				log:         deps.Logger,
			}},
			Accept:  MinWords(1),
			Logger:  deps.Logger,
			Metrics: deps.Metrics,
		},
		images:  deps.Images,
		readmes: deps.Readmes,
		log:     deps.Logger,
		metrics: deps.Metrics,
	}
}

// Extract never fails for lack of content: it always returns a populated
// Result, falling back to excerpt, with warnings describing any degradation.
// The only error is errs.ErrNoURL.
func (e *Extractor) Extract(ctx context.Context, url, excerpt string) (Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, errs.ErrNoURL
	}
	start := time.Now()

	contentType, videoID := classify.Classify(url)
	res := Result{URL: url, ContentType: contentType, VideoID: videoID, Source: SourceNone}
	log := e.log.With(logger.String("url", url), logger.String("content_type", string(contentType)))

	switch contentType {
	case classify.ShortVideo:
		e.extractShortVideo(&res, excerpt)
	case classify.YouTube:
		e.extractYouTube(ctx, &res)
	default:
		e.extractArticle(ctx, &res, excerpt, log)
	}

	res.Finalize()
	res.ProcessingTime = time.Since(start)
	e.metrics.RecordExtraction(string(res.ContentType), string(res.Source), res.ProcessingTime.Seconds())
	log.Info("Extraction finished",
		logger.String("source", string(res.Source)),
		logger.Int("words", res.WordCount),
		logger.Int("images", len(res.Images)),
		logger.Int("warnings", len(res.Warnings)),
		logger.Duration("elapsed", res.ProcessingTime))
	return res, nil
}

func (e *Extractor) extractShortVideo(res *Result, excerpt string) {
	res.warn("short video: watch directly: " + res.URL)
	res.Content = excerpt
	res.Source = SourceExcerpt
}

func (e *Extractor) extractYouTube(ctx context.Context, res *Result) {
	sel := e.video.Run(ctx, res.URL)
	if sel.Accepted {
		res.Content, res.Source, res.Title = sel.Candidate.Text, SourceYouTube, sel.Candidate.Title
		return
	}

	res.warn("video has no transcript: watch directly: " + res.URL)
	res.Source = SourceExcerpt
	for _, a := range sel.Attempts {
		if a.Candidate != nil && a.Candidate.Title != "" {
			res.Title = a.Candidate.Title
			res.Content = videoHeader(a.Candidate.Title, a.Candidate.Byline)
			break
		}
	}
}

func (e *Extractor) extractArticle(ctx context.Context, res *Result, excerpt string, log logger.Logger) {
	walled := classify.IsWalledGarden(res.URL, e.opts.WalledGardens)
	var sel Selection
	if walled {
		log.Debug("Walled garden, skipping readability")
		sel = e.walled.Run(ctx, res.URL)
	} else {
		sel = e.openWeb.Run(ctx, res.URL)
	}

	var (
		assets []images.Asset
		links  []string
	)
	if c := sel.Candidate; c != nil {
		res.Content, res.Source, res.Title = c.Text, sel.Source, c.Title
		assets, links = c.Images, c.Links
	}
	if len(links) > 0 {
		res.warn(fmt.Sprintf("browser found %d links on page", len(links)))
	}
	html, pageURL := sel.HTML()
	if pageURL == "" {
		pageURL = res.URL
	}
	if sel.Source == SourceReader && html == "" {
		html = e.fetchHTML(ctx, res.URL, log)
	}

	if words := CountWords(res.Content); res.Content != "" && words < e.opts.ShortContentThreshold {
		if c, followed := e.followShortContent(ctx, res, excerpt, walled, words, log); c != nil {
			res.Content, res.Source = c.Text, SourceFollowed
			if c.Title != "" {
				res.Title = c.Title
			}
			html, pageURL = c.HTML, followed
			if c.PageURL != "" {
				pageURL = c.PageURL
			}
		}
	}

	if strings.TrimSpace(res.Content) == "" {
		if strings.TrimSpace(excerpt) != "" {
			res.Content, res.Source = excerpt, SourceExcerpt
			res.warn("could not extract content, using excerpt")
		} else {
			log.Warn("No strategy produced content", logger.Error(errs.ErrExhausted))
			res.warn("could not extract any content: view directly: " + res.URL)
		}
	}

	res.Images = e.collectImages(ctx, res, assets, sel.ImageURLs(), html, pageURL, log)
	e.enrichWithReadmes(ctx, res, log)
}

// followShortContent follows the most promising link out of a short preview. It returns
// the followed candidate only when it has more words than the preview. Links
// back onto a walled garden's own domain are never followed.
func (e *Extractor) followShortContent(ctx context.Context, res *Result, excerpt string, walled bool, words int, log logger.Logger) (*Candidate, string) {
	var own []string
	if walled {
		own = []string{classify.Host(res.URL)}
	}
	candidates := followCandidates(FindURLs(res.Content+" "+excerpt), res.URL, e.opts.FollowSkip, own)
	if len(candidates) == 0 {
		res.warn(fmt.Sprintf("short content (%d words): view directly: %s", words, res.URL))
		return nil, ""
	}

	target := e.opts.Follow(candidates)
	log.Info("Short content, following link", logger.String("target", target), logger.Int("words", words))
	res.warn("short content: following link " + target)

	c, err := e.primary.Attempt(ctx, target)
	switch {
	case err != nil:
		e.metrics.RecordAttempt(string(SourceFollowed), metrics.OutcomeError)
		log.Warn("Followed link failed", logger.String("target", target), logger.Error(err))
	case c.Words() > words:
		e.metrics.RecordAttempt(string(SourceFollowed), metrics.OutcomeAccepted)
		return c, target
	default:
		e.metrics.RecordAttempt(string(SourceFollowed), metrics.OutcomeShort)
	}
	res.warn("short content, possibly a social media preview: view directly: " + res.URL)
	return nil, ""
}

func (e *Extractor) fetchHTML(ctx context.Context, url string, log logger.Logger) string {
	res, err := e.fetcher.Fetch(ctx, url, fetcher.FetchOptions{
		UserAgent:    e.opts.UserAgent,
		BrowserAgent: e.opts.BrowserAgent,
	})
	if err != nil {
		log.Debug("Page fetch for images failed", logger.Error(err))
		return ""
	}
	return res.HTML
}

// collectImages keeps ready assets first, then downloads preview images or,
// failing those, curated markup images.
func (e *Extractor) collectImages(ctx context.Context, res *Result, assets []images.Asset, metaURLs []string, html, pageURL string, log logger.Logger) []images.Asset {
	limit := e.opts.MaxImages
	var (
		urls  []string
		total int
	)
	switch {
	case len(metaURLs) > 0:
		urls, total = images.FromMeta(metaURLs, limit)
	case html != "":
		candidates, err := e.processor.ImageCandidates(html)
		if err != nil {
			log.Debug("Image scan failed", logger.Error(err))
			break
		}
		urls, total = images.Curate(candidates, pageURL, images.CurateOptions{
			MaxImages:    limit,
			MinDimension: e.opts.MinImageDimension,
		})
	}
	if total > limit {
		res.warn(fmt.Sprintf("page has %d images: analyzing top %d", total, limit))
	}

	out := append([]images.Asset{}, assets...)
	if room := limit - len(out); room > 0 && len(urls) > 0 {
		if len(urls) > room {
			urls = urls[:room]
		}
		out = append(out, e.images.Download(ctx, urls)...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// enrichWithReadmes records repository links and appends READMEs to thin content.
func (e *Extractor) enrichWithReadmes(ctx context.Context, res *Result, log logger.Logger) {
	res.GitHubLinks = enrich.FindRepoLinks(res.Content)
	if len(res.GitHubLinks) == 0 {
		return
	}
	log.Info("Found repository links", logger.Strings("links", res.GitHubLinks))
	if CountWords(res.Content) >= e.opts.EnrichWordThreshold {
		return
	}

	links := res.GitHubLinks
	if len(links) > e.opts.MaxEnrichRepos {
		links = links[:e.opts.MaxEnrichRepos]
	}
	for _, link := range links {
		readme, err := e.readmes.Fetch(ctx, link)
		if err != nil {
			continue
		}
		res.Content += enrich.Section(link, readme)
		log.Info("Enriched with README", logger.String("repo", link), logger.Int("words", CountWords(res.Content)))
	}
}
