package processor

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

type ProcessedContent struct {
	Title       string
	TextContent string
	Excerpt     string
	Byline      string
	Length      int
}

// PageMeta holds the link-preview metadata of a page.
type PageMeta struct {
	Title       string
	Description string
	Images      []string
}

// ImageCandidate is an <img> found in page markup, with its raw size hints.
type ImageCandidate struct {
	Src    string
	Width  string
	Height string
}

// metaImageSkip filters preview images that are site chrome rather than content.
var metaImageSkip = []string{"favicon", "logo", "icon"}

type ContentProcessor struct {
	strip *bluemonday.Policy
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{strip: bluemonday.StrictPolicy()}
}

// Process runs readability over html and returns the main-content text.
func (cp *ContentProcessor) Process(rawHTML, pageURL string) (*ProcessedContent, error) {
	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		base = u
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return nil, fmt.Errorf("failed to process with readability: %w", err)
	}

	return &ProcessedContent{
		Title:       strings.TrimSpace(article.Title),
		TextContent: cp.CleanNewlines(article.TextContent),
		Excerpt:     article.Excerpt,
		Byline:      article.Byline,
		Length:      article.Length,
	}, nil
}

// MetaTags extracts og:description (falling back to the generic meta
// description) and og:image / twitter:image URLs.
func (cp *ContentProcessor) MetaTags(rawHTML string) (*PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	meta := &PageMeta{
		Title: cp.findMetaContent(doc, []string{"og:title", "twitter:title"}),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	desc := cp.findMetaContent(doc, []string{"og:description"})
	if desc == "" {
		desc = cp.findMetaContent(doc, []string{"description"})
	}
	meta.Description = cp.PlainText(desc)

	seen := make(map[string]bool)
	doc.Find("meta[property='og:image'], meta[name='twitter:image']").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(html.UnescapeString(s.AttrOr("content", "")))
		if src == "" || seen[src] || containsAny(strings.ToLower(src), metaImageSkip) {
			return
		}
		seen[src] = true
		meta.Images = append(meta.Images, src)
	})

	return meta, nil
}

// ImageCandidates lists every <img> in document order, preferring src over data-src.
func (cp *ContentProcessor) ImageCandidates(rawHTML string) ([]ImageCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var images []ImageCandidate
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" {
			return
		}
		images = append(images, ImageCandidate{
			Src:    src,
			Width:  s.AttrOr("width", ""),
			Height: s.AttrOr("height", ""),
		})
	})
	return images, nil
}

func (cp *ContentProcessor) findMetaContent(doc *goquery.Document, properties []string) string {
	for _, prop := range properties {
		// Check name attribute
		if content := doc.Find(fmt.Sprintf("meta[name='%s']", prop)).AttrOr("content", ""); content != "" {
			return strings.TrimSpace(content)
		}
		// Check property attribute (for Open Graph tags)
		if content := doc.Find(fmt.Sprintf("meta[property='%s']", prop)).AttrOr("content", ""); content != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

// PlainText strips any markup from s and decodes HTML entities, including
// double-encoded ones that some platforms emit in preview tags.
func (cp *ContentProcessor) PlainText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(cp.strip.Sanitize(s))
	if strings.Contains(text, "&") {
		text = html.UnescapeString(text)
	}
	return strings.TrimSpace(text)
}

// CleanNewlines removes unwanted newlines that break up sentences
func (cp *ContentProcessor) CleanNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	paragraphs := strings.Split(text, "\n\n")

	var cleanedParagraphs []string
	for _, paragraph := range paragraphs {
		lines := strings.Split(paragraph, "\n")
		var cleanedLines []string

		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			// Join a line onto the previous one when it continues a sentence.
			if len(cleanedLines) > 0 {
				prevLine := cleanedLines[len(cleanedLines)-1]

				endsWithPunctuation := strings.HasSuffix(prevLine, ".") ||
					strings.HasSuffix(prevLine, "!") ||
					strings.HasSuffix(prevLine, "?") ||
					strings.HasSuffix(prevLine, ":") ||
					strings.HasSuffix(prevLine, ";")

				startsNewSentence := line[0] >= 'A' && line[0] <= 'Z' ||
					line[0] >= '0' && line[0] <= '9' ||
					strings.HasPrefix(line, "- ") ||
					strings.HasPrefix(line, "* ") ||
					strings.HasPrefix(line, "• ")

				if !endsWithPunctuation && !startsNewSentence {
					cleanedLines[len(cleanedLines)-1] = prevLine + " " + line
					continue
				}
			}

			cleanedLines = append(cleanedLines, line)
		}

		if len(cleanedLines) > 0 {
			cleanedParagraphs = append(cleanedParagraphs, strings.Join(cleanedLines, "\n"))
		}
	}

	result := strings.Join(cleanedParagraphs, "\n\n")

	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}

	return strings.TrimSpace(result)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
