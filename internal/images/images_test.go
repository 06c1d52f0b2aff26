package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/glean/internal/metrics"
	"github.com/byteowlz/glean/internal/processor"
)

func TestCurate(t *testing.T) {
	candidates := []processor.ImageCandidate{
		{Src: "data:image/gif;base64,R0lGOD"},
		{Src: "//cdn.example.com/hero.jpg"},
		{Src: "/uploads/chart.png", Width: "800px", Height: "600"},
		{Src: "https://example.com/tiny.png", Width: "50"},
		{Src: "https://example.com/short.png", Height: "99px"},
		{Src: "https://example.com/fluid.png", Width: "100%"},
		{Src: "https://example.com/assets/Logo-dark.svg"},
		{Src: "https://ads.example.com/ad-slot.gif"},
		{Src: "https://example.com/blank.gif"},
		{Src: "https://cdn.example.com/hero.jpg"},
		{Src: "photos/inline.webp"},
		{Src: "javascript:alert(1)"},
	}

	urls, total := Curate(candidates, "https://example.com/posts/1", CurateOptions{MaxImages: 5, MinDimension: 100})
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{
		"https://cdn.example.com/hero.jpg",
		"https://example.com/uploads/chart.png",
		"https://example.com/fluid.png",
		"https://example.com/posts/photos/inline.webp",
	}, urls)
}

func TestCurate_Cap(t *testing.T) {
	var candidates []processor.ImageCandidate
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		candidates = append(candidates, processor.ImageCandidate{Src: "https://example.com/" + name + ".jpg"})
	}

	urls, total := Curate(candidates, "https://example.com", CurateOptions{MaxImages: 5, MinDimension: 100})
	assert.Equal(t, 7, total)
	assert.Len(t, urls, 5)
	assert.Equal(t, "https://example.com/a.jpg", urls[0])
	assert.Equal(t, "https://example.com/e.jpg", urls[4])
}

func TestFromMeta(t *testing.T) {
	urls, total := FromMeta([]string{"1", "2", "3"}, 2)
	assert.Equal(t, []string{"1", "2"}, urls)
	assert.Equal(t, 3, total)

	urls, total = FromMeta(nil, 5)
	assert.Empty(t, urls)
	assert.Zero(t, total)
}

func TestDownloader_Download(t *testing.T) {
	big := bytes.Repeat([]byte{0xff}, 6000)
	mux := http.NewServeMux()
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png; charset=binary")
		w.Write(big)
	})
	mux.HandleFunc("/slow.jpg", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(big)
	})
	mux.HandleFunc("/small.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, 4999))
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(big)
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := metrics.New()
	d := NewDownloader(nil, DownloaderOptions{Concurrency: 2, Metrics: m})
	assets := d.Download(context.Background(), []string{
		server.URL + "/slow.jpg",
		server.URL + "/small.png",
		server.URL + "/gone.png",
		server.URL + "/page.html",
		server.URL + "/big.png",
	})

	require.Len(t, assets, 2)
	assert.Equal(t, server.URL+"/slow.jpg", assets[0].URL)
	assert.Equal(t, "image/jpeg", assets[0].MimeType)
	assert.Equal(t, server.URL+"/big.png", assets[1].URL)
	assert.Equal(t, "image/png", assets[1].MimeType)

	decoded, err := base64.StdEncoding.DecodeString(assets[1].Base64)
	require.NoError(t, err)
	assert.Equal(t, big, decoded)

	count, err := testutil.GatherAndCount(m.Registry(), "glean_image_downloads_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count) // ok, empty, fetch_error
}

func TestDownloader_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	d := NewDownloader(nil, DownloaderOptions{Timeout: 20 * time.Millisecond})
	assert.Empty(t, d.Download(context.Background(), []string{server.URL + "/x.png"}))
}

func TestScreenshotAsset(t *testing.T) {
	a := ScreenshotAsset([]byte{1, 2, 3})
	assert.Equal(t, "browser_screenshot", a.URL)
	assert.Equal(t, "image/png", a.MimeType)
	assert.Equal(t, "AQID", a.Base64)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "image/png", mediaType("image/png; charset=binary"))
	assert.Equal(t, "image/jpeg", mediaType("IMAGE/JPEG"))
	assert.Equal(t, "", mediaType(""))
}
