package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/byteowlz/glean/internal/errs"
)

// TavilyBackend reads pages through the Tavily Extract API
type TavilyBackend struct {
	APIKey       string
	ExtractDepth string // "basic" or "advanced"
	Timeout      time.Duration
	BaseURL      string // overridable for testing
	MinChars     int
	client       *http.Client
}

// NewTavilyBackend creates a new Tavily backend
func NewTavilyBackend(apiKey, extractDepth string, timeout time.Duration) *TavilyBackend {
	if extractDepth == "" {
		extractDepth = "basic"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TavilyBackend{
		APIKey:       apiKey,
		ExtractDepth: extractDepth,
		Timeout:      timeout,
		BaseURL:      "https://api.tavily.com/extract",
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the backend identifier
func (t *TavilyBackend) Name() string {
	return "tavily"
}

// IsAvailable checks if the Tavily API key is configured
func (t *TavilyBackend) IsAvailable() bool {
	return t.APIKey != ""
}

type tavilyExtractRequest struct {
	URLs         []string `json:"urls"`
	ExtractDepth string   `json:"extract_depth,omitempty"`
}

type tavilyExtractResponse struct {
	Results      []tavilyExtractResult `json:"results"`
	FailedURLs   []string              `json:"failed_results"`
	ResponseTime float64               `json:"response_time"`
}

type tavilyExtractResult struct {
	URL        string `json:"url"`
	RawContent string `json:"raw_content"`
	Title      string `json:"title"`
}

// Extract reads a URL through Tavily
func (t *TavilyBackend) Extract(ctx context.Context, url string) (*ExtractResult, error) {
	if !t.IsAvailable() {
		return nil, fmt.Errorf("tavily: API key not configured: %w", errs.ErrUnavailable)
	}

	bodyBytes, err := json.Marshal(tavilyExtractRequest{
		URLs:         []string{url},
		ExtractDepth: t.ExtractDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("tavily: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: request failed: %w", &errs.FetchError{URL: url, Err: err})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReaderBytes))
	if err != nil {
		return nil, fmt.Errorf("tavily: failed to read response: %w", &errs.FetchError{URL: url, Err: err})
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := errs.NewStatusError(url, resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("tavily: authentication failed: %w", statusErr)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("tavily: rate limited: %w", statusErr)
		default:
			return nil, fmt.Errorf("tavily: %w", statusErr)
		}
	}

	var tavilyResp tavilyExtractResponse
	if err := json.Unmarshal(respBody, &tavilyResp); err != nil {
		return nil, fmt.Errorf("tavily: %w", &errs.ParseError{What: "extract response", Err: err})
	}

	if len(tavilyResp.Results) == 0 {
		if len(tavilyResp.FailedURLs) > 0 {
			return nil, fmt.Errorf("tavily: extraction failed for %s: %w", url, errs.ErrNoContent)
		}
		return nil, fmt.Errorf("tavily: no results returned for %s: %w", url, errs.ErrNoContent)
	}

	result := tavilyResp.Results[0]
	if err := checkLength("tavily", url, result.RawContent, t.MinChars); err != nil {
		return nil, err
	}

	return &ExtractResult{
		URL:     result.URL,
		Title:   result.Title,
		Content: result.RawContent,
	}, nil
}
