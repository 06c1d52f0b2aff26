// Package youtube reads video transcripts and oEmbed metadata.
package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/byteowlz/glean/internal/errs"
	"github.com/byteowlz/glean/internal/processor"
)

const (
	defaultWatchURL = "https://www.youtube.com/watch"
	maxPageBytes    = 8 * 1024 * 1024
	captionMarker   = `"captionTracks":`
)

// Track is one caption track offered for a video.
type Track struct {
	VideoID      string
	LanguageCode string
	Name         string
	BaseURL      string
	// Generated marks automatic speech recognition captions.
	Generated bool
}

// Segment is one timed line of a transcript.
type Segment struct {
	Start    float64
	Duration float64
	Text     string
}

// TranscriptSource lists and downloads caption tracks.
type TranscriptSource interface {
	List(ctx context.Context, videoID string) ([]Track, error)
	Fetch(ctx context.Context, track Track) ([]Segment, error)
}

// WatchPageSource reads caption tracks from the player response embedded in
// the public watch page.
type WatchPageSource struct {
	WatchURL string // overridable for testing
	client   *http.Client
	text     *processor.ContentProcessor
}

func NewWatchPageSource(watchURL string, timeout time.Duration) *WatchPageSource {
	if watchURL == "" {
		watchURL = defaultWatchURL
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &WatchPageSource{
		WatchURL: watchURL,
		client:   &http.Client{Timeout: timeout},
		text:     processor.NewContentProcessor(),
	}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
		Runs       []struct {
			Text string `json:"text"`
		} `json:"runs"`
	} `json:"name"`
}

func (s *WatchPageSource) List(ctx context.Context, videoID string) ([]Track, error) {
	pageURL := s.WatchURL + "?v=" + url.QueryEscape(videoID)
	body, err := s.get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("youtube: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("youtube: %w", &errs.ParseError{What: "watch page", Err: err})
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if text := sel.Text(); strings.Contains(text, captionMarker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return nil, fmt.Errorf("youtube: no captions for %s: %w", videoID, errs.ErrNoContent)
	}

	// The decoder stops after the array, ignoring the rest of the script.
	start := strings.Index(script, captionMarker) + len(captionMarker)
	var raw []captionTrack
	if err := json.NewDecoder(strings.NewReader(script[start:])).Decode(&raw); err != nil {
		return nil, fmt.Errorf("youtube: %w", &errs.ParseError{What: "caption tracks", Err: err})
	}

	tracks := make([]Track, 0, len(raw))
	for _, ct := range raw {
		if ct.BaseURL == "" {
			continue
		}
		name := ct.Name.SimpleText
		if name == "" && len(ct.Name.Runs) > 0 {
			name = ct.Name.Runs[0].Text
		}
		tracks = append(tracks, Track{
			VideoID:      videoID,
			LanguageCode: ct.LanguageCode,
			Name:         name,
			BaseURL:      ct.BaseURL,
			Generated:    ct.Kind == "asr",
		})
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("youtube: no captions for %s: %w", videoID, errs.ErrNoContent)
	}
	return tracks, nil
}

// timedText covers both the legacy <transcript><text> format and the srv3
// <timedtext><body><p> format.
type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Inner string `xml:",innerxml"`
	} `xml:"text"`
	Body struct {
		Paragraphs []struct {
			T     int    `xml:"t,attr"`
			D     int    `xml:"d,attr"`
			Inner string `xml:",innerxml"`
		} `xml:"p"`
	} `xml:"body"`
}

func (s *WatchPageSource) Fetch(ctx context.Context, track Track) ([]Segment, error) {
	body, err := s.get(ctx, track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("youtube: %w", err)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("youtube: empty timed text: %w", errs.ErrNoContent)
	}

	var tt timedText
	if err := xml.Unmarshal([]byte(body), &tt); err != nil {
		return nil, fmt.Errorf("youtube: %w", &errs.ParseError{What: "timed text", Err: err})
	}

	var segments []Segment
	for _, t := range tt.Texts {
		if text := s.segmentText(t.Inner); text != "" {
			segments = append(segments, Segment{Start: parseSeconds(t.Start), Duration: parseSeconds(t.Dur), Text: text})
		}
	}
	for _, p := range tt.Body.Paragraphs {
		if text := s.segmentText(p.Inner); text != "" {
			segments = append(segments, Segment{
				Start:    float64(p.T) / 1000,
				Duration: float64(p.D) / 1000,
				Text:     text,
			})
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("youtube: empty transcript: %w", errs.ErrNoContent)
	}
	return segments, nil
}

func (s *WatchPageSource) segmentText(inner string) string {
	return strings.Join(strings.Fields(s.text.PlainText(inner)), " ")
}

func (s *WatchPageSource) get(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &errs.FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &errs.FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.NewStatusError(target, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", &errs.FetchError{URL: target, Err: err}
	}
	return string(body), nil
}

func parseSeconds(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// Pick chooses a track: each preferred language in order (manual before
// generated), then any manual track, then any generated track.
func Pick(tracks []Track, languages []string) (Track, bool) {
	if len(tracks) == 0 {
		return Track{}, false
	}
	for _, lang := range languages {
		for _, generated := range []bool{false, true} {
			for _, t := range tracks {
				if t.Generated == generated && matchesLanguage(t.LanguageCode, lang) {
					return t, true
				}
			}
		}
	}
	for _, generated := range []bool{false, true} {
		for _, t := range tracks {
			if t.Generated == generated {
				return t, true
			}
		}
	}
	return tracks[0], true
}

// matchesLanguage treats regional variants ("en-GB") as the base language.
func matchesLanguage(code, lang string) bool {
	code, lang = strings.ToLower(code), strings.ToLower(lang)
	return code == lang || strings.HasPrefix(code, lang+"-")
}

// Join concatenates segment texts with single spaces.
func Join(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}
