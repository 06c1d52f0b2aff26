package extractor

import (
	"strings"
	"time"

	"github.com/byteowlz/glean/internal/classify"
	"github.com/byteowlz/glean/internal/images"
)

// Source identifies the strategy that supplied a result's content.
type Source string

const (
	SourcePrimary  Source = "primary_extractor"
	SourceReader   Source = "reader_api"
	SourceBrowser  Source = "browser_automation"
	SourceOGMeta   Source = "og_meta"
	SourceYouTube  Source = "youtube_transcript"
	SourceFollowed Source = "followed_url"
	SourceExcerpt  Source = "excerpt"
	SourceNone     Source = "none"
)

// Result is the outcome of one extraction. It is always populated, even
// when nothing could be extracted.
type Result struct {
	URL         string               `json:"url" yaml:"url"`
	Title       string               `json:"title,omitempty" yaml:"title,omitempty"`
	Content     string               `json:"content" yaml:"content"`
	Images      []images.Asset       `json:"images" yaml:"images"`
	ContentType classify.ContentType `json:"content_type" yaml:"content_type"`
	Source      Source               `json:"source" yaml:"source"`
	WordCount   int                  `json:"word_count" yaml:"word_count"`
	Warnings    []string             `json:"warnings" yaml:"warnings"`
	VideoID     string               `json:"video_id,omitempty" yaml:"video_id,omitempty"`
	GitHubLinks []string             `json:"github_links" yaml:"github_links"`

	ProcessingTime time.Duration `json:"-" yaml:"-"`
}

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finalize recomputes WordCount and ties Source to Content: blank content
// always reports SourceNone.
func (r *Result) Finalize() {
	if strings.TrimSpace(r.Content) == "" {
		r.Content = ""
		r.Source = SourceNone
	}
	r.WordCount = CountWords(r.Content)

	if r.Images == nil {
		r.Images = []images.Asset{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	if r.GitHubLinks == nil {
		r.GitHubLinks = []string{}
	}
}
