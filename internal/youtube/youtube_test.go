package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	yt "github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/glean/internal/errs"
)

var (
	_ TranscriptSource = (*WatchPageSource)(nil)
	_ TranscriptSource = (*InnertubeSource)(nil)
	_ TranscriptSource = Chain{}
)

const legacyTranscript = `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="2.1">Xin ch&amp;agrave;o c&amp;#225;c b&#7841;n</text>
<text start="2.6" dur="1.4"><font color="#E5E5E5">it&amp;#39;s</font> a test</text>
<text start="4.0" dur="1"></text>
</transcript>`

const srv3Transcript = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>
<p t="0" d="1500">first <s>line</s></p>
<p t="1500" d="2000">second line</p>
</body></timedtext>`

func newYouTubeServer(t *testing.T, script string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /watch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ABCDEFGHIJK", r.URL.Query().Get("v"))
		fmt.Fprintf(w, `<html><head><script>var x = 1;</script><script>%s</script></head><body></body></html>`,
			fmt.Sprintf(script, server.URL))
	})
	mux.HandleFunc("GET /api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("lang") {
		case "vi":
			w.Write([]byte(legacyTranscript))
		case "en":
			w.Write([]byte(srv3Transcript))
		case "de":
			w.WriteHeader(http.StatusOK)
		default:
			w.Write([]byte(`<transcript></transcript>`))
		}
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

const playerScript = `var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
	`{"baseUrl":"%[1]s/api/timedtext?v=ABCDEFGHIJK&lang=en","name":{"simpleText":"English (auto-generated)"},"languageCode":"en","kind":"asr"},` +
	`{"baseUrl":"%[1]s/api/timedtext?v=ABCDEFGHIJK&lang=vi","name":{"runs":[{"text":"Vietnamese"}]},"languageCode":"vi"}` +
	`],"audioTracks":[]}}};`

func TestWatchPageSource_List(t *testing.T) {
	server := newYouTubeServer(t, playerScript)
	src := NewWatchPageSource(server.URL+"/watch", 0)

	tracks, err := src.List(context.Background(), "ABCDEFGHIJK")
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, "ABCDEFGHIJK", tracks[0].VideoID)
	assert.Equal(t, "en", tracks[0].LanguageCode)
	assert.Equal(t, "English (auto-generated)", tracks[0].Name)
	assert.True(t, tracks[0].Generated)
	assert.Equal(t, server.URL+"/api/timedtext?v=ABCDEFGHIJK&lang=en", tracks[0].BaseURL)

	assert.Equal(t, "vi", tracks[1].LanguageCode)
	assert.Equal(t, "Vietnamese", tracks[1].Name)
	assert.False(t, tracks[1].Generated)
}

func TestWatchPageSource_NoCaptions(t *testing.T) {
	server := newYouTubeServer(t, `var ytInitialPlayerResponse = {"videoDetails":{}}; // %s`)
	src := NewWatchPageSource(server.URL+"/watch", 0)

	_, err := src.List(context.Background(), "ABCDEFGHIJK")
	assert.True(t, errors.Is(err, errs.ErrNoContent))
}

func TestWatchPageSource_BrokenCaptionJSON(t *testing.T) {
	server := newYouTubeServer(t, `var r = {"captionTracks":[{"baseUrl": %q`)
	src := NewWatchPageSource(server.URL+"/watch", 0)

	_, err := src.List(context.Background(), "ABCDEFGHIJK")
	var pe *errs.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestWatchPageSource_Fetch(t *testing.T) {
	server := newYouTubeServer(t, playerScript)
	src := NewWatchPageSource(server.URL+"/watch", 0)

	segments, err := src.Fetch(context.Background(), Track{BaseURL: server.URL + "/api/timedtext?lang=vi"})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "Xin chào các bạn", segments[0].Text)
	assert.InDelta(t, 0.5, segments[0].Start, 1e-9)
	assert.InDelta(t, 2.1, segments[0].Duration, 1e-9)
	assert.Equal(t, "it's a test", segments[1].Text)

	segments, err = src.Fetch(context.Background(), Track{BaseURL: server.URL + "/api/timedtext?lang=en"})
	require.NoError(t, err)
	assert.Equal(t, "first line second line", Join(segments))
	assert.InDelta(t, 1.5, segments[1].Start, 1e-9)

	_, err = src.Fetch(context.Background(), Track{BaseURL: server.URL + "/api/timedtext?lang=fr"})
	assert.ErrorIs(t, err, errs.ErrNoContent)
}

func TestWatchPageSource_FetchEmptyBody(t *testing.T) {
	server := newYouTubeServer(t, playerScript)
	src := NewWatchPageSource(server.URL+"/watch", 0)

	_, err := src.Fetch(context.Background(), Track{BaseURL: server.URL + "/api/timedtext?lang=de"})
	assert.ErrorIs(t, err, errs.ErrNoContent)
	var pe *errs.ParseError
	assert.False(t, errors.As(err, &pe))
}

func TestWatchPageSource_StatusError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewWatchPageSource(server.URL, 0).List(context.Background(), "ABCDEFGHIJK")
	var fe *errs.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestPick(t *testing.T) {
	viAuto := Track{LanguageCode: "vi", Generated: true}
	vi := Track{LanguageCode: "vi"}
	enGB := Track{LanguageCode: "en-GB"}
	enAuto := Track{LanguageCode: "en", Generated: true}
	fr := Track{LanguageCode: "fr"}
	deAuto := Track{LanguageCode: "de", Generated: true}

	tests := []struct {
		name   string
		tracks []Track
		langs  []string
		want   Track
	}{
		{"manual preferred within language", []Track{viAuto, vi}, []string{"vi", "en"}, vi},
		{"generated of first language beats second language", []Track{enGB, viAuto}, []string{"vi", "en"}, viAuto},
		{"regional variant matches", []Track{fr, enGB}, []string{"vi", "en"}, enGB},
		{"any manual", []Track{deAuto, fr}, []string{"vi", "en"}, fr},
		{"any generated", []Track{deAuto}, []string{"vi"}, deAuto},
		{"no preferences", []Track{enAuto, fr}, nil, fr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Pick(tt.tracks, tt.langs)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Pick(nil, []string{"vi"})
	assert.False(t, ok)
}

func TestOEmbedClient_Info(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://youtube.com/watch?v=ABCDEFGHIJK", r.URL.Query().Get("url"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"title":"Go in 100 Seconds","author_name":"Fireship","type":"video"}`))
	}))
	defer server.Close()

	info, err := NewOEmbedClient(server.URL, 0).Info(context.Background(), "ABCDEFGHIJK")
	require.NoError(t, err)
	assert.Equal(t, VideoInfo{Title: "Go in 100 Seconds", Author: "Fireship"}, info)
}

func TestOEmbedClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "https://youtube.com/watch?v=private0000" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := NewOEmbedClient(server.URL, 0)
	_, err := c.Info(context.Background(), "private0000")
	var fe *errs.FetchError
	assert.ErrorAs(t, err, &fe)

	_, err = c.Info(context.Background(), "ABCDEFGHIJK")
	var pe *errs.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestTracksFromCaptions(t *testing.T) {
	en := yt.CaptionTrack{BaseURL: "https://www.youtube.com/api/timedtext?lang=en", LanguageCode: "en", Kind: "asr"}
	en.Name.SimpleText = "English (auto-generated)"
	vi := yt.CaptionTrack{LanguageCode: "vi"}
	vi.Name.SimpleText = "Vietnamese"

	tracks := tracksFromCaptions("ABCDEFGHIJK", []yt.CaptionTrack{en, {}, vi})
	assert.Equal(t, []Track{
		{VideoID: "ABCDEFGHIJK", LanguageCode: "en", Name: "English (auto-generated)", BaseURL: en.BaseURL, Generated: true},
		{VideoID: "ABCDEFGHIJK", LanguageCode: "vi", Name: "Vietnamese"},
	}, tracks)

	track, ok := Pick(tracks, []string{"vi", "en"})
	require.True(t, ok)
	assert.Equal(t, "vi", track.LanguageCode)
}

func TestSegmentsFromTranscript(t *testing.T) {
	segments := segmentsFromTranscript(yt.VideoTranscript{
		{Text: "Xin chào\n các bạn", StartMs: 500, Duration: 2100},
		{Text: "  "},
		{Text: "hôm nay", StartMs: 2600, Duration: 1400},
	})
	require.Len(t, segments, 2)
	assert.Equal(t, "Xin chào các bạn hôm nay", Join(segments))
	assert.InDelta(t, 0.5, segments[0].Start, 1e-9)
	assert.InDelta(t, 1.4, segments[1].Duration, 1e-9)
}

type stubSource struct {
	tracks   []Track
	segments []Segment
	err      error
	fetches  int
}

func (s *stubSource) List(context.Context, string) ([]Track, error) { return s.tracks, s.err }

func (s *stubSource) Fetch(context.Context, Track) ([]Segment, error) {
	s.fetches++
	return s.segments, s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	down := &stubSource{err: &errs.FetchError{URL: "youtube:ABCDEFGHIJK", Err: errors.New("player blocked")}}
	page := &stubSource{
		tracks:   []Track{{VideoID: "ABCDEFGHIJK", LanguageCode: "en"}},
		segments: []Segment{{Text: "hello"}},
	}

	tracks, err := Chain{down, page}.List(ctx, "ABCDEFGHIJK")
	require.NoError(t, err)
	assert.Equal(t, page.tracks, tracks)

	segments, err := Chain{down, page}.Fetch(ctx, tracks[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", Join(segments))
	assert.Equal(t, 1, down.fetches)

	empty := &stubSource{err: errs.ErrNoContent}
	_, err = Chain{down, empty}.List(ctx, "ABCDEFGHIJK")
	assert.ErrorIs(t, err, errs.ErrNoContent)
	var fe *errs.FetchError
	assert.ErrorAs(t, err, &fe)

	_, err = Chain{}.Fetch(ctx, tracks[0])
	assert.ErrorIs(t, err, errs.ErrNoContent)
}
