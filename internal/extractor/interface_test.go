package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/byteowlz/glean/internal/config"
	"github.com/byteowlz/glean/internal/errs"
)

// Verify interfaces are satisfied at compile time
var _ Backend = (*TavilyBackend)(nil)
var _ Backend = (*JinaBackend)(nil)

func TestNew(t *testing.T) {
	cfg := config.Default().Reader

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	jina, ok := b.(*JinaBackend)
	if !ok {
		t.Fatalf("expected *JinaBackend, got %T", b)
	}
	if jina.MinChars != 50 {
		t.Errorf("expected MinChars 50, got %d", jina.MinChars)
	}
	if jina.BaseURL != "https://r.jina.ai/" {
		t.Errorf("unexpected BaseURL %q", jina.BaseURL)
	}

	cfg.Backend = "tavily"
	cfg.Tavily.APIKey = "tvly-xxx"
	b, err = New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if b.Name() != "tavily" || !b.IsAvailable() {
		t.Errorf("expected available tavily backend, got %s", b.Name())
	}

	cfg.Backend = "none"
	b, err = New(cfg)
	if err != nil || b != nil {
		t.Errorf("expected nil backend for none, got %v, %v", b, err)
	}

	cfg.Backend = "pigeon"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestCheckLength(t *testing.T) {
	tests := []struct {
		text     string
		minChars int
		wantErr  bool
	}{
		{"", 0, true},
		{"   ", 0, true},
		{"short", 50, true},
		{"exactly five", 12, true},
		{"exactly five", 11, false},
	}
	for _, tt := range tests {
		err := checkLength("test", "https://example.com", tt.text, tt.minChars)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkLength(%q, %d) error = %v, wantErr %v", tt.text, tt.minChars, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errs.ErrNoContent) {
			t.Errorf("expected ErrNoContent, got %v", err)
		}
	}
}

// mockBackend for testing
type mockExtractorBackend struct {
	name      string
	available bool
	result    *ExtractResult
	err       error
}

func (m *mockExtractorBackend) Name() string      { return m.name }
func (m *mockExtractorBackend) IsAvailable() bool { return m.available }
func (m *mockExtractorBackend) Extract(ctx context.Context, url string) (*ExtractResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestMockBackend_Interface(t *testing.T) {
	var _ Backend = &mockExtractorBackend{}
}
