package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser support

	"github.com/byteowlz/glean/internal/config"
)

// CookieSource supplies the login cookies loaded into a browser session.
type CookieSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

type BrowserType string

const (
	BrowserAuto    BrowserType = "auto"
	BrowserChrome  BrowserType = "chrome"
	BrowserFirefox BrowserType = "firefox"
	BrowserSafari  BrowserType = "safari"
	BrowserZen     BrowserType = "zen"
)

// NewCookieSource builds the source selected in cfg, or nil for "none".
func NewCookieSource(cfg config.BrowserCookiesConfig, customPaths map[string]string) (CookieSource, error) {
	switch strings.ToLower(cfg.Source) {
	case "", "none":
		return nil, nil
	case "file":
		return &NetscapeFile{Path: config.ExpandPath(cfg.File), Domains: cfg.Domains}, nil
	case "browser":
		return NewCookieExtractor(BrowserType(strings.ToLower(cfg.Browser)), customPaths, cfg.Domains), nil
	default:
		return nil, fmt.Errorf("unknown cookie source %q", cfg.Source)
	}
}

// NetscapeFile reads a cookies.txt export.
type NetscapeFile struct {
	Path string
	// Domains restricts the cookies returned; empty keeps all of them.
	Domains []string
}

func (nf *NetscapeFile) Cookies(_ context.Context) ([]*http.Cookie, error) {
	f, err := os.Open(nf.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer f.Close()

	cookies, err := ParseNetscape(f)
	if err != nil {
		return nil, err
	}
	return filterDomains(cookies, nf.Domains), nil
}

// ParseNetscape parses the tab-separated cookies.txt format. Lines prefixed
// with #HttpOnly_ are HttpOnly cookies; other # lines are comments.
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line = rest
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		cookie := &http.Cookie{
			Domain:   parts[0],
			Path:     parts[2],
			Secure:   strings.EqualFold(parts[3], "TRUE"),
			Name:     parts[5],
			Value:    parts[6],
			HttpOnly: httpOnly,
		}
		if parts[4] != "0" && parts[4] != "" {
			secs, err := strconv.ParseFloat(parts[4], 64)
			if err != nil {
				return nil, fmt.Errorf("cookie file line %d: bad expiry %q", lineNo, parts[4])
			}
			cookie.Expires = time.Unix(int64(secs), 0)
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return cookies, nil
}

// CookieExtractor reads cookies out of locally installed browsers.
type CookieExtractor struct {
	browserType BrowserType
	customPaths map[string]string
	domains     []string
}

func NewCookieExtractor(browserType BrowserType, customPaths map[string]string, domains []string) *CookieExtractor {
	if browserType == "" {
		browserType = BrowserAuto
	}
	return &CookieExtractor{
		browserType: browserType,
		customPaths: customPaths,
		domains:     domains,
	}
}

func (ce *CookieExtractor) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	if ce.browserType != BrowserAuto {
		return ce.extractFromBrowser(ctx, ce.browserType), nil
	}

	// Try browsers in order of preference, stopping at the first with cookies
	for _, browser := range []BrowserType{BrowserChrome, BrowserFirefox, BrowserZen, BrowserSafari} {
		if cookies := ce.extractFromBrowser(ctx, browser); len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil
}

func (ce *CookieExtractor) extractFromBrowser(ctx context.Context, browserType BrowserType) []*http.Cookie {
	var cookies []*http.Cookie

	for cookie, err := range kooky.TraverseCookies(ctx) {
		if err != nil {
			continue
		}
		if !ce.matchesBrowserType(cookie.Browser, browserType) || !matchesAnyDomain(cookie.Domain, ce.domains) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Path:     cookie.Path,
			Domain:   cookie.Domain,
			Expires:  cookie.Expires,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HttpOnly,
		})
	}

	return cookies
}

func (ce *CookieExtractor) matchesBrowserType(browser kooky.BrowserInfo, browserType BrowserType) bool {
	if browserType == BrowserAuto {
		return true
	}
	if browser == nil {
		return false
	}

	browserName := strings.ToLower(browser.Browser())
	switch browserType {
	case BrowserChrome:
		return strings.Contains(browserName, "chrome") || strings.Contains(browserName, "chromium")
	case BrowserFirefox:
		return strings.Contains(browserName, "firefox")
	case BrowserSafari:
		return strings.Contains(browserName, "safari")
	case BrowserZen:
		return strings.Contains(browserName, "zen") ||
			(strings.Contains(browserName, "firefox") && strings.Contains(browser.FilePath(), "zen"))
	}

	return false
}

func filterDomains(cookies []*http.Cookie, domains []string) []*http.Cookie {
	if len(domains) == 0 {
		return cookies
	}
	var kept []*http.Cookie
	for _, c := range cookies {
		if matchesAnyDomain(c.Domain, domains) {
			kept = append(kept, c)
		}
	}
	return kept
}

func matchesAnyDomain(cookieDomain string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	for _, d := range domains {
		if matchesDomain(cookieDomain, d) {
			return true
		}
	}
	return false
}

// matchesDomain reports whether a cookie set for cookieDomain belongs to
// targetDomain or one of its subdomains.
func matchesDomain(cookieDomain, targetDomain string) bool {
	if cookieDomain == "" || targetDomain == "" {
		return false
	}

	cookieDomain = strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	targetDomain = strings.ToLower(strings.TrimPrefix(targetDomain, "."))

	return cookieDomain == targetDomain ||
		strings.HasSuffix(cookieDomain, "."+targetDomain) ||
		strings.HasSuffix(targetDomain, "."+cookieDomain)
}

// DetectAvailableBrowsers lists browsers whose profile directories exist.
func (ce *CookieExtractor) DetectAvailableBrowsers() []BrowserType {
	var available []BrowserType

	for _, browser := range []BrowserType{BrowserChrome, BrowserFirefox, BrowserSafari, BrowserZen} {
		if ce.isBrowserAvailable(browser) {
			available = append(available, browser)
		}
	}

	return available
}

func (ce *CookieExtractor) isBrowserAvailable(browserType BrowserType) bool {
	switch browserType {
	case BrowserChrome:
		return ce.checkBrowserPath("chrome", []string{
			"~/.config/google-chrome",
			"~/Library/Application Support/Google/Chrome",
			"%LOCALAPPDATA%/Google/Chrome/User Data",
		})
	case BrowserFirefox:
		return ce.checkBrowserPath("firefox", []string{
			"~/.mozilla/firefox",
			"~/Library/Application Support/Firefox",
			"%APPDATA%/Mozilla/Firefox",
		})
	case BrowserSafari:
		if runtime.GOOS != "darwin" {
			return false
		}
		return ce.checkBrowserPath("safari", []string{
			"~/Library/Cookies",
		})
	case BrowserZen:
		return ce.checkBrowserPath("zen", []string{
			"~/.zen",
			"~/Library/Application Support/Zen",
			"%APPDATA%/Zen",
		})
	}
	return false
}

func (ce *CookieExtractor) checkBrowserPath(browserName string, defaultPaths []string) bool {
	if customPath, exists := ce.customPaths[browserName]; exists && customPath != "" {
		if _, err := os.Stat(expandPath(customPath)); err == nil {
			return true
		}
	}

	for _, path := range defaultPaths {
		if _, err := os.Stat(expandPath(path)); err == nil {
			return true
		}
	}

	return false
}

func expandPath(path string) string {
	path = config.ExpandPath(path)

	if strings.Contains(path, "%LOCALAPPDATA%") {
		return filepath.Clean(strings.Replace(path, "%LOCALAPPDATA%", os.Getenv("LOCALAPPDATA"), 1))
	}
	if strings.Contains(path, "%APPDATA%") {
		return filepath.Clean(strings.Replace(path, "%APPDATA%", os.Getenv("APPDATA"), 1))
	}

	return path
}
