package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/logger"
)

const (
	healthTimeout = 3 * time.Second
	apiTimeout    = 15 * time.Second
	maxAPIBytes   = 20 * 1024 * 1024
)

type CamofoxOptions struct {
	URL         string
	UserID      string
	APIKey      string // required for cookie import
	RenderWait  time.Duration
	PageTimeout time.Duration
	Cookies     CookieSource
	Logger      logger.Logger
}

// CamofoxClient talks to a Camofox browser server over its REST API.
type CamofoxClient struct {
	baseURL     string
	userID      string
	apiKey      string
	renderWait  time.Duration
	pageTimeout time.Duration
	cookies     CookieSource
	client      *http.Client
	log         logger.Logger

	availOnce  sync.Once
	available  bool
	cookieOnce sync.Once
}

func NewCamofoxClient(opts CamofoxOptions) *CamofoxClient {
	if opts.RenderWait == 0 {
		opts.RenderWait = defaultRenderWait
	}
	if opts.PageTimeout == 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &CamofoxClient{
		baseURL:     strings.TrimRight(opts.URL, "/"),
		userID:      opts.UserID,
		apiKey:      opts.APIKey,
		renderWait:  opts.RenderWait,
		pageTimeout: opts.PageTimeout,
		cookies:     opts.Cookies,
		client:      &http.Client{},
		log:         opts.Logger.With(logger.String("browser", "camofox")),
	}
}

func (c *CamofoxClient) Name() string { return "camofox" }

func (c *CamofoxClient) Available(ctx context.Context) bool {
	c.availOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		resp, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
		if err != nil {
			c.log.Debug("Camofox server not available", logger.Error(err))
			return
		}
		resp.Body.Close()
		c.available = resp.StatusCode == http.StatusOK
		if c.available {
			c.log.Info("Camofox server available", logger.String("url", c.baseURL))
		}
	})
	return c.available
}

func (c *CamofoxClient) Capture(ctx context.Context, pageURL string) (*PageCapture, error) {
	if !c.Available(ctx) {
		return nil, fmt.Errorf("camofox: %w", errs.ErrUnavailable)
	}
	c.cookieOnce.Do(func() { c.importCookies(ctx) })

	tabID, err := c.createTab(ctx, pageURL, uuid.NewString())
	if err != nil {
		return nil, err
	}
	defer func() {
		// the tab must go away even when ctx is already cancelled
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apiTimeout)
		defer cancel()
		c.closeTab(closeCtx, tabID)
	}()

	if err := sleepCtx(ctx, c.renderWait); err != nil {
		return nil, err
	}

	page := &PageCapture{URL: pageURL}

	if page.Snapshot, err = c.snapshot(ctx, tabID); err != nil {
		c.log.Warn("Camofox snapshot failed", logger.String("tab", tabID), logger.Error(err))
	}
	shot, err := c.screenshot(ctx, tabID)
	if err != nil {
		c.log.Warn("Camofox screenshot failed", logger.String("tab", tabID), logger.Error(err))
	} else if len(shot) > MinScreenshotBytes {
		page.Screenshot = shot
	}
	if page.Links, err = c.links(ctx, tabID); err != nil {
		c.log.Warn("Camofox get links failed", logger.String("tab", tabID), logger.Error(err))
	}

	c.log.Info("Camofox extracted page",
		logger.String("url", pageURL),
		logger.Int("chars", len(page.Snapshot)),
		logger.Bool("screenshot", page.Screenshot != nil),
		logger.Int("links", len(page.Links)))
	return page, nil
}

type camofoxCookie struct {
	Domain  string `json:"domain"`
	Path    string `json:"path"`
	Secure  bool   `json:"secure"`
	Expires int64  `json:"expires"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// importCookies loads session cookies into the browser profile. Failures are
// logged; pages still render without a login.
func (c *CamofoxClient) importCookies(ctx context.Context) {
	if c.cookies == nil {
		return
	}
	if c.apiKey == "" {
		c.log.Debug("Camofox API key not set, skipping cookie import")
		return
	}

	cookies, err := c.cookies.Cookies(ctx)
	if err != nil {
		c.log.Warn("Failed to load cookies", logger.Error(err))
		return
	}
	if len(cookies) == 0 {
		c.log.Debug("No cookies to import")
		return
	}

	payload := make([]camofoxCookie, 0, len(cookies))
	for _, ck := range cookies {
		expires := int64(-1)
		if !ck.Expires.IsZero() {
			expires = ck.Expires.Unix()
		}
		payload = append(payload, camofoxCookie{
			Domain:  ck.Domain,
			Path:    ck.Path,
			Secure:  ck.Secure,
			Expires: expires,
			Name:    ck.Name,
			Value:   ck.Value,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	resp, err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(c.userID)+"/cookies",
		map[string]any{"cookies": payload}, headers)
	if err != nil {
		c.log.Warn("Cookie import request failed", logger.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Cookie import failed", logger.Int("status", resp.StatusCode))
		return
	}
	c.log.Info("Imported cookies into Camofox session", logger.Int("count", len(payload)))
}

func (c *CamofoxClient) createTab(ctx context.Context, pageURL, sessionKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	var out struct {
		ID    string `json:"id"`
		TabID string `json:"tabId"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/tabs", map[string]string{
		"userId":     c.userID,
		"sessionKey": sessionKey,
		"url":        pageURL,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("camofox: create tab: %w", err)
	}

	tabID := out.ID
	if tabID == "" {
		tabID = out.TabID
	}
	if tabID == "" {
		return "", fmt.Errorf("camofox: create tab: %w", &errs.ParseError{What: "tab id"})
	}
	c.log.Debug("Camofox tab created", logger.String("tab", tabID), logger.String("url", pageURL))
	return tabID, nil
}

func (c *CamofoxClient) closeTab(ctx context.Context, tabID string) {
	resp, err := c.do(ctx, http.MethodDelete, c.tabPath(tabID, ""), nil, nil)
	if err != nil {
		c.log.Debug("Camofox close tab failed", logger.String("tab", tabID), logger.Error(err))
		return
	}
	resp.Body.Close()
}

func (c *CamofoxClient) snapshot(ctx context.Context, tabID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	var out struct {
		Snapshot string `json:"snapshot"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.tabPath(tabID, "snapshot"), nil, &out); err != nil {
		return "", err
	}
	return out.Snapshot, nil
}

// screenshot accepts raw image bytes or a JSON body carrying base64.
func (c *CamofoxClient) screenshot(ctx context.Context, tabID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.tabPath(tabID, "screenshot"), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := readOK(resp, c.baseURL)
	if err != nil {
		return nil, err
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "image") {
		return body, nil
	}
	var out struct {
		Screenshot string `json:"screenshot"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Screenshot == "" {
		return body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(out.Screenshot)
	if err != nil {
		return nil, &errs.ParseError{What: "screenshot", Err: err}
	}
	return decoded, nil
}

func (c *CamofoxClient) links(ctx context.Context, tabID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	var out struct {
		Links []json.RawMessage `json:"links"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.tabPath(tabID, "links"), nil, &out); err != nil {
		return nil, err
	}
	return decodeLinks(out.Links), nil
}

// decodeLinks accepts plain href strings or {"href": ...} / {"url": ...} objects.
func decodeLinks(raw []json.RawMessage) []string {
	links := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				links = append(links, s)
			}
			continue
		}
		var obj struct {
			Href string `json:"href"`
			URL  string `json:"url"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		if obj.Href != "" {
			links = append(links, obj.Href)
		} else if obj.URL != "" {
			links = append(links, obj.URL)
		}
	}
	return links
}

func (c *CamofoxClient) tabPath(tabID, action string) string {
	p := "/tabs/" + url.PathEscape(tabID)
	if action != "" {
		p += "/" + action
	}
	return p + "?userId=" + url.QueryEscape(c.userID)
}

func (c *CamofoxClient) do(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.FetchError{URL: c.baseURL + path, Err: err}
	}
	return resp, nil
}

func (c *CamofoxClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := readOK(resp, c.baseURL+path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errs.ParseError{What: "camofox " + path, Err: err}
	}
	return nil
}

func readOK(resp *http.Response, target string) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.NewStatusError(target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBytes))
	if err != nil {
		return nil, &errs.FetchError{URL: target, Err: err}
	}
	return body, nil
}
