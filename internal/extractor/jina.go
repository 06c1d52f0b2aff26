package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/byteowlz/glean/internal/errs"
)

const maxReaderBytes = 5 * 1024 * 1024

// JinaBackend reads pages through the Jina Reader API (r.jina.ai)
type JinaBackend struct {
	APIKey   string // Optional - works without auth but with rate limits
	Timeout  time.Duration
	BaseURL  string // overridable for testing
	MinChars int
	client   *http.Client
}

// NewJinaBackend creates a new Jina Reader backend
func NewJinaBackend(apiKey string, timeout time.Duration) *JinaBackend {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &JinaBackend{
		APIKey:  apiKey,
		Timeout: timeout,
		BaseURL: "https://r.jina.ai/",
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the backend identifier
func (j *JinaBackend) Name() string {
	return "jina"
}

// IsAvailable always returns true - Jina Reader works without an API key
func (j *JinaBackend) IsAvailable() bool {
	return true
}

// Extract reads a URL through Jina: GET {base}/{url}
func (j *JinaBackend) Extract(ctx context.Context, url string) (*ExtractResult, error) {
	jinaURL := strings.TrimSuffix(j.BaseURL, "/") + "/" + url

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jinaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("jina: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/plain")

	// Add API key if available (higher rate limits)
	if j.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.APIKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina: request failed: %w", &errs.FetchError{URL: url, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReaderBytes))
	if err != nil {
		return nil, fmt.Errorf("jina: failed to read response: %w", &errs.FetchError{URL: url, Err: err})
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := errs.NewStatusError(url, resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("jina: authentication error: %w", statusErr)
		case http.StatusTooManyRequests:
			return nil, fmt.Errorf("jina: rate limited - consider adding an API key: %w", statusErr)
		default:
			return nil, fmt.Errorf("jina: %w", statusErr)
		}
	}

	content := string(body)

	// Jina prefixes the text with Title:, URL Source: and Markdown Content: headers
	title := extractJinaField(content, "Title:")
	text := extractJinaMarkdown(content)
	if text == "" {
		text = content
	}
	text = strings.TrimSpace(stripBasicMarkdown(text))

	if err := checkLength("jina", url, text, j.MinChars); err != nil {
		return nil, err
	}

	return &ExtractResult{
		URL:     url,
		Title:   title,
		Content: text,
	}, nil
}

// extractJinaField extracts a named field from Jina's response
func extractJinaField(content, field string) string {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, field) {
			return strings.TrimSpace(strings.TrimPrefix(line, field))
		}
	}
	return ""
}

// extractJinaMarkdown extracts the content section from Jina's response
func extractJinaMarkdown(content string) string {
	marker := "Markdown Content:"
	idx := strings.Index(content, marker)
	if idx == -1 {
		// No marker: skip the metadata header up to the first heading or prose line
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			if strings.HasPrefix(line, "#") || (i > 3 && strings.TrimSpace(line) != "" && !strings.Contains(line, ":")) {
				return strings.Join(lines[i:], "\n")
			}
		}
		return content
	}
	return strings.TrimSpace(content[idx+len(marker):])
}

// stripBasicMarkdown removes heading and emphasis markers
func stripBasicMarkdown(md string) string {
	lines := strings.Split(md, "\n")
	var result []string
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, "#")
		trimmed = strings.TrimSpace(trimmed)

		trimmed = strings.ReplaceAll(trimmed, "**", "")
		trimmed = strings.ReplaceAll(trimmed, "__", "")

		result = append(result, trimmed)
	}
	return strings.Join(result, "\n")
}
