// Package enrich finds repository links in extracted text and fetches their
// READMEs to extend thin results.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/fetcher"
	"github.com/byteowlz/glean/internal/logger"
	"github.com/byteowlz/glean/internal/metrics"
)

const (
	defaultRawBase  = "https://raw.githubusercontent.com"
	defaultMaxChars = 3000
	minReadmeChars  = 50

	truncatedMarker = "\n\n[... truncated ...]"
	sectionRule     = "========================================"
)

var (
	repoLink = regexp.MustCompile(`(?:https?://)?github\.com/[\w.-]+/[\w.-]+`)
	repoPath = regexp.MustCompile(`github\.com/([\w.-]+)/([\w.-]+)`)
)

// FindRepoLinks returns the distinct github.com/owner/repo links in text,
// normalized to https:// and in first-seen order.
func FindRepoLinks(text string) []string {
	var links []string
	seen := make(map[string]bool)
	for _, raw := range repoLink.FindAllString(text, -1) {
		link := strings.TrimRight(raw, `.,;:)]'"`)
		if !strings.HasPrefix(link, "http") {
			link = "https://" + link
		}
		link = strings.Replace(link, "http://", "https://", 1)
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	}
	return links
}

// Section formats a README as a delimited block for appending to content.
func Section(link, readme string) string {
	return "\n\n" + sectionRule + "\n📖 README — " + link + "\n" + sectionRule + "\n" + readme
}

type ReadmeOptions struct {
	RawBase  string
	Branches []string
	File     string
	MaxChars int
	Timeout  time.Duration
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

// ReadmeFetcher reads a repository's top-level README over raw file URLs.
type ReadmeFetcher struct {
	fetcher  *fetcher.SimpleFetcher
	rawBase  string
	branches []string
	file     string
	maxChars int
	log      logger.Logger
	metrics  *metrics.Metrics
}

func NewReadmeFetcher(f *fetcher.SimpleFetcher, opts ReadmeOptions) *ReadmeFetcher {
	if opts.RawBase == "" {
		opts.RawBase = defaultRawBase
	}
	if len(opts.Branches) == 0 {
		opts.Branches = []string{"main", "master"}
	}
	if opts.File == "" {
		opts.File = "README.md"
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = defaultMaxChars
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if f == nil {
		f = fetcher.NewSimpleFetcher(opts.Timeout)
	}
	return &ReadmeFetcher{
		fetcher:  f,
		rawBase:  strings.TrimSuffix(opts.RawBase, "/"),
		branches: opts.Branches,
		file:     opts.File,
		maxChars: opts.MaxChars,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Fetch tries each branch in order and returns the first README longer than
// 50 characters, truncated to MaxChars. A missing README is ErrNoContent.
func (rf *ReadmeFetcher) Fetch(ctx context.Context, link string) (string, error) {
	m := repoPath.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("not a repository link %q: %w", link, errs.ErrNoContent)
	}
	owner, repo := m[1], strings.TrimSuffix(m[2], ".git")

	for _, branch := range rf.branches {
		rawURL := fmt.Sprintf("%s/%s/%s/%s/%s", rf.rawBase, owner, repo, branch, rf.file)
		res, err := rf.fetcher.Get(ctx, rawURL, fetcher.FetchOptions{Accept: "text/plain"})
		if err != nil {
			rf.log.Debug("README fetch failed", logger.String("url", rawURL), logger.Error(err))
			if errors.Is(err, context.Canceled) {
				rf.metrics.RecordEnrichment(errs.Outcome(err))
				return "", err
			}
			continue
		}
		readme := string(res.Body)
		if len([]rune(readme)) <= minReadmeChars {
			continue
		}

		readme = truncate(readme, rf.maxChars)
		rf.log.Info("Fetched README",
			logger.String("repo", owner+"/"+repo),
			logger.String("branch", branch),
			logger.Int("chars", len(readme)))
		rf.metrics.RecordEnrichment("ok")
		return readme, nil
	}

	rf.log.Info("No README found", logger.String("repo", owner+"/"+repo))
	rf.metrics.RecordEnrichment("missing")
	return "", fmt.Errorf("no README for %s/%s: %w", owner, repo, errs.ErrNoContent)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + truncatedMarker
}
