// Package images picks the content images of a page and downloads them as
// base64 assets.
package images

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/byteowlz/glean/internal/processor"
)

// Denylist marks tracking pixels, ads and site chrome by URL substring.
var Denylist = []string{
	"pixel",
	"tracking",
	"analytics",
	"ad-",
	"advertisement",
	"favicon",
	"logo",
	"icon",
	"avatar",
	"emoji",
	"badge",
	"spacer",
	"1x1",
	"blank.gif",
}

type CurateOptions struct {
	MaxImages    int
	MinDimension int
}

// Curate normalizes and filters markup image candidates. It returns at most
// MaxImages URLs together with the number of candidates that survived
// filtering, so callers can report a cap.
func Curate(candidates []processor.ImageCandidate, baseURL string, opts CurateOptions) ([]string, int) {
	base, _ := url.Parse(baseURL)

	seen := make(map[string]bool)
	var unique []string
	for _, c := range candidates {
		src := normalize(strings.TrimSpace(c.Src), base)
		if src == "" {
			continue
		}
		if tooSmall(c.Width, opts.MinDimension) || tooSmall(c.Height, opts.MinDimension) {
			continue
		}
		if denied(src) || seen[src] {
			continue
		}
		seen[src] = true
		unique = append(unique, src)
	}
	return capURLs(unique, opts.MaxImages), len(unique)
}

// FromMeta caps preview-tag image URLs, which are already filtered and
// deduplicated by the processor.
func FromMeta(urls []string, max int) ([]string, int) {
	return capURLs(urls, max), len(urls)
}

func capURLs(urls []string, max int) []string {
	if max > 0 && len(urls) > max {
		return urls[:max]
	}
	return urls
}

func normalize(src string, base *url.URL) string {
	switch {
	case src == "", strings.HasPrefix(src, "data:"):
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		if base == nil || base.Host == "" {
			return ""
		}
		return base.Scheme + "://" + base.Host + src
	}

	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ""
		}
		return src
	}
	if base == nil || base.Host == "" {
		return ""
	}
	return base.ResolveReference(u).String()
}

// tooSmall reports a numeric size hint below min. Missing or non-numeric
// hints ("auto", "100%") never reject.
func tooSmall(hint string, min int) bool {
	hint = strings.TrimSuffix(strings.TrimSpace(hint), "px")
	if hint == "" {
		return false
	}
	n, err := strconv.Atoi(hint)
	if err != nil {
		return false
	}
	return n < min
}

func denied(src string) bool {
	lower := strings.ToLower(src)
	for _, pattern := range Denylist {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
