// Package classify maps a URL to the content type that decides which
// extraction strategies run.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

type ContentType string

const (
	Article    ContentType = "article"
	YouTube    ContentType = "youtube"
	ShortVideo ContentType = "short_video"
)

var youtubeID = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/)([a-zA-Z0-9_-]{11})`)

// shortVideoPatterns are platforms serving reels and stories with no static text.
var shortVideoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`instagram\.com/(?:reel|reels|stories)/`),
	regexp.MustCompile(`tiktok\.com/`),
	regexp.MustCompile(`facebook\.com/(?:reel|stories)/`),
	regexp.MustCompile(`fb\.watch/`),
}

// Classify applies the rules in order; anything unmatched is an article.
// videoID is set only for YouTube.
func Classify(rawURL string) (ContentType, string) {
	if m := youtubeID.FindStringSubmatch(rawURL); m != nil {
		return YouTube, m[1]
	}
	for _, re := range shortVideoPatterns {
		if re.MatchString(rawURL) {
			return ShortVideo, ""
		}
	}
	return Article, ""
}

// IsWalledGarden reports whether rawURL belongs to one of domains, comparing
// registrable domains so m.facebook.com matches facebook.com.
func IsWalledGarden(rawURL string, domains []string) bool {
	host := Host(rawURL)
	if host == "" {
		return false
	}
	site := registrable(host)
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) || site == registrable(d) {
			return true
		}
	}
	return false
}

// Host returns the lower-cased host of rawURL, tolerating a missing scheme.
func Host(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func registrable(host string) string {
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
