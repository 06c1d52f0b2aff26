package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/logger"
)

// chromeExecutables are the binaries the local exec allocator can start.
var chromeExecutables = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"chrome",
}

const linksScript = `Array.from(document.links, a => a.href).filter(h => h.startsWith("http"))`

// consentScript clicks the first visible accept button of a cookie or consent
// banner and reports whether it found one.
const consentScript = `(() => {
  const words = ["accept", "agree", "allow", "ok"];
  const scopes = document.querySelectorAll('[id*="cookie"],[class*="cookie"],[id*="consent"],[class*="consent"],[id*="gdpr"],[class*="gdpr"],[role="dialog"]');
  for (const scope of scopes) {
    for (const b of scope.querySelectorAll("button,[role=button]")) {
      const label = (b.innerText || b.getAttribute("aria-label") || "").trim().toLowerCase();
      if (b.offsetParent !== null && words.some(w => label.startsWith(w))) {
        b.click();
        return true;
      }
    }
  }
  return false;
})()`

type ChromeOptions struct {
	// RemoteURL is a devtools websocket URL; empty launches a local Chrome.
	RemoteURL   string
	RenderWait  time.Duration
	PageTimeout time.Duration
	Cookies     CookieSource
	Logger      logger.Logger
}

// ChromeSession renders pages in Chrome through the devtools protocol.
type ChromeSession struct {
	remoteURL   string
	renderWait  time.Duration
	pageTimeout time.Duration
	cookies     CookieSource
	log         logger.Logger

	availOnce sync.Once
	available bool
}

func NewChromeSession(opts ChromeOptions) *ChromeSession {
	if opts.RenderWait == 0 {
		opts.RenderWait = defaultRenderWait
	}
	if opts.PageTimeout == 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &ChromeSession{
		remoteURL:   opts.RemoteURL,
		renderWait:  opts.RenderWait,
		pageTimeout: opts.PageTimeout,
		cookies:     opts.Cookies,
		log:         opts.Logger.With(logger.String("browser", "chrome")),
	}
}

func (c *ChromeSession) Name() string { return "chrome" }

// Available checks for a reachable devtools endpoint, or a local Chrome binary.
func (c *ChromeSession) Available(ctx context.Context) bool {
	c.availOnce.Do(func() {
		if c.remoteURL != "" {
			c.available = dialable(ctx, c.remoteURL)
		} else {
			for _, name := range chromeExecutables {
				if _, err := exec.LookPath(name); err == nil {
					c.available = true
					break
				}
			}
		}
		if c.available {
			c.log.Info("Chrome available")
		} else {
			c.log.Debug("Chrome not available")
		}
	})
	return c.available
}

func dialable(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "9222")
	}
	d := net.Dialer{Timeout: healthTimeout}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *ChromeSession) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.remoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, c.remoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(1280, 1600),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

func (c *ChromeSession) Capture(ctx context.Context, pageURL string) (*PageCapture, error) {
	if !c.Available(ctx) {
		return nil, fmt.Errorf("chrome: %w", errs.ErrUnavailable)
	}

	allocCtx, cancelAlloc := c.allocator(ctx)
	defer cancelAlloc()

	// cancelling the tab context closes the tab
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.pageTimeout)
	defer cancelTimeout()

	var (
		nodes []*accessibility.Node
		shot  []byte
		links []string
	)

	tasks := chromedp.Tasks{}
	if params := c.cookieParams(ctx); len(params) > 0 {
		tasks = append(tasks, network.SetCookies(params))
	}
	tasks = append(tasks,
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var clicked bool
			if err := chromedp.Evaluate(consentScript, &clicked).Do(ctx); err != nil {
				c.log.Debug("Consent banner check failed", logger.Error(err))
			} else if clicked {
				c.log.Debug("Dismissed consent banner")
			}
			return nil
		}),
		chromedp.Sleep(c.renderWait),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			nodes, err = accessibility.GetFullAXTree().Do(ctx)
			return err
		}),
	)
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return nil, fmt.Errorf("chrome: %w", &errs.FetchError{URL: pageURL, Err: err})
	}

	page := &PageCapture{URL: pageURL, Snapshot: RenderTree(fromCDP(nodes))}

	// 100 selects PNG
	if err := chromedp.Run(tabCtx, chromedp.FullScreenshot(&shot, 100)); err != nil {
		c.log.Warn("Chrome screenshot failed", logger.Error(err))
	} else if len(shot) > MinScreenshotBytes {
		page.Screenshot = shot
	}
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(linksScript, &links)); err != nil {
		c.log.Warn("Chrome get links failed", logger.Error(err))
	}
	page.Links = links

	c.log.Info("Chrome extracted page",
		logger.String("url", pageURL),
		logger.Int("chars", len(page.Snapshot)),
		logger.Bool("screenshot", page.Screenshot != nil),
		logger.Int("links", len(page.Links)))
	return page, nil
}

func (c *ChromeSession) cookieParams(ctx context.Context) []*network.CookieParam {
	if c.cookies == nil {
		return nil
	}
	cookies, err := c.cookies.Cookies(ctx)
	if err != nil {
		c.log.Warn("Failed to load cookies", logger.Error(err))
		return nil
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HttpOnly,
		}
		if !ck.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(ck.Expires)
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

// AXNode is the part of an accessibility node the tree dump needs.
type AXNode struct {
	ID       string
	ParentID string
	Role     string
	Name     string
	Level    int
	Ignored  bool
	Children []string
}

func fromCDP(nodes []*accessibility.Node) []AXNode {
	out := make([]AXNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		ax := AXNode{
			ID:       string(n.NodeID),
			ParentID: string(n.ParentID),
			Role:     axString(n.Role),
			Name:     axString(n.Name),
			Ignored:  n.Ignored,
		}
		for _, child := range n.ChildIDs {
			ax.Children = append(ax.Children, string(child))
		}
		for _, prop := range n.Properties {
			if prop != nil && prop.Name == accessibility.PropertyNameLevel {
				ax.Level = axInt(prop.Value)
			}
		}
		out = append(out, ax)
	}
	return out
}

func axString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(v.Value), &s); err != nil {
		return ""
	}
	return s
}

func axInt(v *accessibility.Value) int {
	if v == nil || len(v.Value) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal([]byte(v.Value), &f); err == nil {
		return int(f)
	}
	n, _ := strconv.Atoi(strings.Trim(string(v.Value), `"`))
	return n
}

// skippedRoles duplicate their parent's text or carry none.
var skippedRoles = map[string]bool{
	"InlineTextBox": true,
	"LineBreak":     true,
	"none":          true,
}

// RenderTree writes nodes as the indented "- role "name"" dump the snapshot
// cleaner reads. Ignored nodes are skipped but their children are kept.
func RenderTree(nodes []AXNode) string {
	byID := make(map[string]AXNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var b strings.Builder
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		n, ok := byID[id]
		if !ok {
			return
		}
		next := depth
		if !n.Ignored && !skippedRoles[n.Role] {
			if line := axLine(n); line != "" {
				b.WriteString(strings.Repeat("  ", depth))
				b.WriteString(line)
				b.WriteByte('\n')
				next = depth + 1
			}
		}
		for _, child := range n.Children {
			walk(child, next)
		}
	}

	for _, n := range nodes {
		if _, hasParent := byID[n.ParentID]; n.ParentID == "" || !hasParent {
			walk(n.ID, 0)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func axLine(n AXNode) string {
	name := strings.Join(strings.Fields(n.Name), " ")
	switch n.Role {
	case "StaticText":
		if name == "" {
			return ""
		}
		return "- text: " + strconv.Quote(name)
	case "heading":
		if n.Level > 0 {
			return fmt.Sprintf("- heading %s [level=%d]", strconv.Quote(name), n.Level)
		}
	case "image":
		n.Role = "img"
	case "RootWebArea":
		return ""
	case "generic":
		if name == "" {
			return ""
		}
	case "":
		if name == "" {
			return ""
		}
		return "- text: " + strconv.Quote(name)
	}
	if name == "" {
		return "- " + n.Role + ":"
	}
	return "- " + n.Role + " " + strconv.Quote(name)
}
