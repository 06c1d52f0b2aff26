package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/glean/internal/errs"
)

var _ Automation = (*CamofoxClient)(nil)
var _ Automation = (*ChromeSession)(nil)
var _ Automation = (*Static)(nil)

// fakeCamofox records every call made against it.
type fakeCamofox struct {
	mu          sync.Mutex
	healthCalls atomic.Int32
	healthy     bool
	snapshot    string
	snapshotErr bool
	screenshot  []byte
	shotAsJSON  bool
	links       any
	created     []map[string]string
	closed      []string
	cookieAuth  string
	cookies     []camofoxCookie
}

func (f *fakeCamofox) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		f.healthCalls.Add(1)
		if !f.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("POST /sessions/{user}/cookies", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cookies []camofoxCookie `json:"cookies"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.cookieAuth = r.Header.Get("Authorization")
		f.cookies = body.Cookies
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("POST /tabs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()
		w.Write([]byte(`{"tabId":"tab-1"}`))
	})
	mux.HandleFunc("GET /tabs/{id}/snapshot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tester", r.URL.Query().Get("userId"))
		if f.snapshotErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"snapshot": f.snapshot})
	})
	mux.HandleFunc("GET /tabs/{id}/screenshot", func(w http.ResponseWriter, r *http.Request) {
		if f.shotAsJSON {
			json.NewEncoder(w).Encode(map[string]string{
				"screenshot": base64.StdEncoding.EncodeToString(f.screenshot),
			})
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.screenshot)
	})
	mux.HandleFunc("GET /tabs/{id}/links", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"links": f.links})
	})
	mux.HandleFunc("DELETE /tabs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.closed = append(f.closed, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeCamofox) state() (created []map[string]string, closed []string, auth string, cookies []camofoxCookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.closed, f.cookieAuth, f.cookies
}

func newTestCamofox(serverURL string, cookies CookieSource, apiKey string) *CamofoxClient {
	return NewCamofoxClient(CamofoxOptions{
		URL:        serverURL,
		UserID:     "tester",
		APIKey:     apiKey,
		RenderWait: time.Millisecond,
		Cookies:    cookies,
	})
}

func TestCamofox_Capture(t *testing.T) {
	png := bytes.Repeat([]byte{0x89}, 2048)
	fake := &fakeCamofox{
		healthy:    true,
		snapshot:   `- text: "Hello from the feed"`,
		screenshot: png,
		links:      []any{"https://example.com/a", map[string]string{"href": "https://example.com/b"}},
	}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := newTestCamofox(server.URL, nil, "")
	page, err := c.Capture(context.Background(), "https://www.facebook.com/post/1")
	require.NoError(t, err)

	assert.Equal(t, `- text: "Hello from the feed"`, page.Snapshot)
	assert.Equal(t, png, page.Screenshot)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, page.Links)

	created, closed, _, _ := fake.state()
	require.Len(t, created, 1)
	assert.Equal(t, "tester", created[0]["userId"])
	assert.Equal(t, "https://www.facebook.com/post/1", created[0]["url"])
	assert.NotEmpty(t, created[0]["sessionKey"])
	assert.Equal(t, []string{"tab-1"}, closed)
}

func TestCamofox_ScreenshotAsJSON(t *testing.T) {
	png := bytes.Repeat([]byte{0x42}, 1500)
	fake := &fakeCamofox{healthy: true, screenshot: png, shotAsJSON: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	page, err := newTestCamofox(server.URL, nil, "").Capture(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, png, page.Screenshot)
}

func TestCamofox_SmallScreenshotDropped(t *testing.T) {
	fake := &fakeCamofox{healthy: true, screenshot: make([]byte, MinScreenshotBytes)}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	page, err := newTestCamofox(server.URL, nil, "").Capture(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Nil(t, page.Screenshot)
}

func TestCamofox_TabClosedWhenSnapshotFails(t *testing.T) {
	fake := &fakeCamofox{healthy: true, snapshotErr: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	page, err := newTestCamofox(server.URL, nil, "").Capture(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, page.Snapshot)
	_, closed, _, _ := fake.state()
	assert.Equal(t, []string{"tab-1"}, closed)
}

func TestCamofox_TabClosedWhenCancelled(t *testing.T) {
	fake := &fakeCamofox{healthy: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := newTestCamofox(server.URL, nil, "")
	c.renderWait = time.Hour
	require.True(t, c.Available(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.Capture(ctx, "https://example.com")
	assert.ErrorIs(t, err, context.Canceled)
	_, closed, _, _ := fake.state()
	assert.Equal(t, []string{"tab-1"}, closed)
}

func TestCamofox_UnavailableProbedOnce(t *testing.T) {
	fake := &fakeCamofox{healthy: false}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := newTestCamofox(server.URL, nil, "")
	for i := 0; i < 3; i++ {
		_, err := c.Capture(context.Background(), "https://example.com")
		assert.True(t, errors.Is(err, errs.ErrUnavailable))
	}
	assert.Equal(t, int32(1), fake.healthCalls.Load())
	created, _, _, _ := fake.state()
	assert.Empty(t, created)
}

func TestCamofox_UnreachableServer(t *testing.T) {
	c := newTestCamofox("http://127.0.0.1:1", nil, "")
	assert.False(t, c.Available(context.Background()))
}

type staticCookies []*http.Cookie

func (s staticCookies) Cookies(context.Context) ([]*http.Cookie, error) { return s, nil }

func TestCamofox_CookieImport(t *testing.T) {
	fake := &fakeCamofox{healthy: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	cookies := staticCookies{
		{Domain: ".facebook.com", Path: "/", Name: "c_user", Value: "42", Secure: true},
		{Domain: ".facebook.com", Path: "/", Name: "xs", Value: "abc", Expires: time.Unix(1900000000, 0)},
	}
	c := newTestCamofox(server.URL, cookies, "secret")

	for i := 0; i < 2; i++ {
		_, err := c.Capture(context.Background(), "https://www.facebook.com/post/1")
		require.NoError(t, err)
	}

	_, _, auth, imported := fake.state()
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, []camofoxCookie{
		{Domain: ".facebook.com", Path: "/", Secure: true, Expires: -1, Name: "c_user", Value: "42"},
		{Domain: ".facebook.com", Path: "/", Expires: 1900000000, Name: "xs", Value: "abc"},
	}, imported)
}

func TestCamofox_CookieImportNeedsAPIKey(t *testing.T) {
	fake := &fakeCamofox{healthy: true}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	cookies := staticCookies{{Domain: ".facebook.com", Name: "c_user", Value: "42"}}
	_, err := newTestCamofox(server.URL, cookies, "").Capture(context.Background(), "https://example.com")
	require.NoError(t, err)
	_, _, auth, _ := fake.state()
	assert.Empty(t, auth)
}

func TestDecodeLinks(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`"https://a.example"`),
		json.RawMessage(`{"href":"https://b.example","text":"B"}`),
		json.RawMessage(`{"url":"https://c.example"}`),
		json.RawMessage(`""`),
		json.RawMessage(`42`),
	}
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://c.example"}, decodeLinks(raw))
}

func TestTabPath(t *testing.T) {
	c := newTestCamofox("http://localhost:9377/", nil, "")
	assert.Equal(t, "/tabs/abc/snapshot?userId=tester", c.tabPath("abc", "snapshot"))
	assert.Equal(t, "/tabs/abc?userId=tester", c.tabPath("abc", ""))
	assert.True(t, strings.HasSuffix(c.baseURL, "9377"))
}
