package extractor

import (
	"context"
	"errors"
	"strings"

	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/images"
	"github.com/byteowlz/glean/internal/logger"
	"github.com/byteowlz/glean/internal/metrics"
)

// Candidate is what one strategy produced for a URL.
type Candidate struct {
	Text   string
	Title  string
	Byline string
	// Raw is the unprocessed payload, e.g. a browser snapshot before cleaning.
	Raw string
	// HTML is the fetched page markup, kept for image harvesting.
	HTML    string
	PageURL string
	// Images are ready assets such as a browser screenshot.
	Images []images.Asset
	// ImageURLs are preview images that take priority over markup images.
	ImageURLs []string
	Links     []string
}

func (c *Candidate) Words() int {
	if c == nil {
		return 0
	}
	return CountWords(c.Text)
}

// Strategy is one way of getting text for a URL. Errors mean "nothing" and
// never stop a waterfall.
type Strategy interface {
	Name() Source
	Attempt(ctx context.Context, url string) (*Candidate, error)
}

// AcceptFunc decides whether a candidate ends the waterfall.
type AcceptFunc func(src Source, c *Candidate) bool

// MinWords accepts candidates of at least n words.
func MinWords(n int) AcceptFunc {
	return func(_ Source, c *Candidate) bool {
		return c.Words() >= n
	}
}

// Attempt records one strategy run.
type Attempt struct {
	Source    Source
	Candidate *Candidate
	Err       error
}

// Selection is the outcome of a waterfall run. Candidate is nil when no
// strategy produced any text.
type Selection struct {
	Source    Source
	Candidate *Candidate
	Accepted  bool
	Attempts  []Attempt
}

// HTML returns the first page markup any attempt fetched.
func (s Selection) HTML() (html, pageURL string) {
	for _, a := range s.Attempts {
		if a.Candidate != nil && a.Candidate.HTML != "" {
			return a.Candidate.HTML, a.Candidate.PageURL
		}
	}
	return "", ""
}

// ImageURLs returns the first preview image list any attempt found.
func (s Selection) ImageURLs() []string {
	for _, a := range s.Attempts {
		if a.Candidate != nil && len(a.Candidate.ImageURLs) > 0 {
			return a.Candidate.ImageURLs
		}
	}
	return nil
}

// Waterfall runs strategies in order. The first accepted candidate wins and
// later strategies are not invoked; if none is accepted the candidate with
// the most words is kept, the earliest on ties.
type Waterfall struct {
	Strategies []Strategy
	Accept     AcceptFunc
	Logger     logger.Logger
	Metrics    *metrics.Metrics
}

func (w *Waterfall) Run(ctx context.Context, url string) Selection {
	log := w.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var sel Selection
	for _, s := range w.Strategies {
		if ctx.Err() != nil {
			break
		}
		name := s.Name()
		c, err := s.Attempt(ctx, url)
		if err != nil {
			c = nil
		}
		sel.Attempts = append(sel.Attempts, Attempt{Source: name, Candidate: c, Err: err})

		switch {
		case err != nil:
			w.Metrics.RecordAttempt(string(name), metrics.OutcomeError)
			if errors.Is(err, errs.ErrUnavailable) || errors.Is(err, errs.ErrNoContent) {
				log.Debug("Strategy produced nothing", logger.String("strategy", string(name)), logger.Error(err))
			} else {
				log.Warn("Strategy failed", logger.String("strategy", string(name)), logger.Error(err))
			}

		case c == nil || strings.TrimSpace(c.Text) == "":
			w.Metrics.RecordAttempt(string(name), metrics.OutcomeEmpty)
			log.Debug("Strategy returned no text", logger.String("strategy", string(name)))

		case w.Accept != nil && w.Accept(name, c):
			w.Metrics.RecordAttempt(string(name), metrics.OutcomeAccepted)
			log.Info("Strategy accepted", logger.String("strategy", string(name)), logger.Int("words", c.Words()))
			sel.Source, sel.Candidate, sel.Accepted = name, c, true
			return sel

		default:
			w.Metrics.RecordAttempt(string(name), metrics.OutcomeShort)
			log.Debug("Strategy result below threshold", logger.String("strategy", string(name)), logger.Int("words", c.Words()))
			if sel.Candidate == nil || c.Words() > sel.Candidate.Words() {
				sel.Source, sel.Candidate = name, c
			}
		}
	}
	return sel
}
