package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"

	"github.com/byteowlz/glean/internal/errs"
)

// InnertubeSource lists caption tracks through the player API and reads
// transcripts from the engagement-panel endpoint, which keeps working when
// timed-text URLs answer with an empty body.
type InnertubeSource struct {
	client *yt.Client
}

func NewInnertubeSource(timeout time.Duration) *InnertubeSource {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &InnertubeSource{client: &yt.Client{HTTPClient: &http.Client{Timeout: timeout}}}
}

func (s *InnertubeSource) List(ctx context.Context, videoID string) ([]Track, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("youtube: %w", &errs.FetchError{URL: "youtube:" + videoID, Err: err})
	}
	tracks := tracksFromCaptions(videoID, video.CaptionTracks)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("youtube: no captions for %s: %w", videoID, errs.ErrNoContent)
	}
	return tracks, nil
}

func (s *InnertubeSource) Fetch(ctx context.Context, track Track) ([]Segment, error) {
	if track.VideoID == "" {
		return nil, fmt.Errorf("youtube: track without video id: %w", errs.ErrNoContent)
	}
	transcript, err := s.client.GetTranscriptCtx(ctx, &yt.Video{ID: track.VideoID}, track.LanguageCode)
	switch {
	case errors.Is(err, yt.ErrTranscriptDisabled):
		return nil, fmt.Errorf("youtube: %s: %w", err, errs.ErrNoContent)
	case err != nil:
		return nil, fmt.Errorf("youtube: %w", &errs.FetchError{URL: "youtube:" + track.VideoID, Err: err})
	}
	segments := segmentsFromTranscript(transcript)
	if len(segments) == 0 {
		return nil, fmt.Errorf("youtube: empty transcript: %w", errs.ErrNoContent)
	}
	return segments, nil
}

func tracksFromCaptions(videoID string, captions []yt.CaptionTrack) []Track {
	tracks := make([]Track, 0, len(captions))
	for _, ct := range captions {
		if ct.LanguageCode == "" {
			continue
		}
		tracks = append(tracks, Track{
			VideoID:      videoID,
			LanguageCode: ct.LanguageCode,
			Name:         ct.Name.SimpleText,
			BaseURL:      ct.BaseURL,
			Generated:    ct.Kind == "asr",
		})
	}
	return tracks
}

func segmentsFromTranscript(transcript yt.VideoTranscript) []Segment {
	var segments []Segment
	for _, ts := range transcript {
		text := strings.Join(strings.Fields(ts.Text), " ")
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start:    float64(ts.StartMs) / 1000,
			Duration: float64(ts.Duration) / 1000,
			Text:     text,
		})
	}
	return segments
}

// Chain asks each source in turn. Tracks come from the first source that
// lists any; a track is fetched from the first source that returns segments.
type Chain []TranscriptSource

func (c Chain) List(ctx context.Context, videoID string) ([]Track, error) {
	var errList []error
	for _, src := range c {
		tracks, err := src.List(ctx, videoID)
		if err == nil && len(tracks) > 0 {
			return tracks, nil
		}
		errList = append(errList, err)
	}
	return nil, joinOrEmpty(errList)
}

func (c Chain) Fetch(ctx context.Context, track Track) ([]Segment, error) {
	var errList []error
	for _, src := range c {
		segments, err := src.Fetch(ctx, track)
		if err == nil && len(segments) > 0 {
			return segments, nil
		}
		errList = append(errList, err)
	}
	return nil, joinOrEmpty(errList)
}

func joinOrEmpty(errList []error) error {
	if err := errors.Join(errList...); err != nil {
		return err
	}
	return fmt.Errorf("youtube: no transcript source: %w", errs.ErrNoContent)
}
