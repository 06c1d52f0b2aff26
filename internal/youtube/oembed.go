package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/byteowlz/glean/internal/errs"
)

const defaultOEmbedURL = "https://www.youtube.com/oembed"

// VideoInfo is the subset of the oEmbed response used for transcript headers.
type VideoInfo struct {
	Title  string `json:"title"`
	Author string `json:"author_name"`
}

type OEmbedClient struct {
	BaseURL string // overridable for testing
	client  *http.Client
}

func NewOEmbedClient(baseURL string, timeout time.Duration) *OEmbedClient {
	if baseURL == "" {
		baseURL = defaultOEmbedURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &OEmbedClient{BaseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

// Info looks up a video's title and channel name.
func (o *OEmbedClient) Info(ctx context.Context, videoID string) (VideoInfo, error) {
	q := url.Values{}
	q.Set("url", "https://youtube.com/watch?v="+videoID)
	q.Set("format", "json")
	target := o.BaseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("oembed: %w", &errs.FetchError{URL: target, Err: err})
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("oembed: %w", &errs.FetchError{URL: target, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VideoInfo{}, fmt.Errorf("oembed: %w", errs.NewStatusError(target, resp.StatusCode))
	}

	var info VideoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return VideoInfo{}, fmt.Errorf("oembed: %w", &errs.ParseError{What: "oembed response", Err: err})
	}
	return info, nil
}
