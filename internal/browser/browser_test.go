package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/glean/internal/config"
	"github.com/byteowlz/glean/internal/errs"
)

func TestNew(t *testing.T) {
	cfg := config.Default().Browser
	cfg.Cookies.Source = "none"

	tests := []struct {
		backend string
		want    string
	}{
		{"camofox", "camofox"},
		{"chrome", "chrome"},
		{"none", "static"},
		{"", "static"},
	}
	for _, tt := range tests {
		cfg.Backend = tt.backend
		a, err := New(cfg, nil)
		require.NoError(t, err, tt.backend)
		assert.Equal(t, tt.want, a.Name())
	}

	cfg.Backend = "netscape-navigator"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	down := &Static{}
	assert.False(t, down.Available(ctx))
	_, err := down.Capture(ctx, "https://example.com")
	assert.True(t, errors.Is(err, errs.ErrUnavailable))

	up := &Static{Up: true, Page: &PageCapture{Snapshot: "- text: \"hello there\""}}
	page, err := up.Capture(ctx, "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", page.URL)
	assert.Equal(t, "- text: \"hello there\"", page.Snapshot)
	assert.Equal(t, 1, up.Calls())

	failing := &Static{Up: true, Err: errs.ErrNoContent}
	_, err = failing.Capture(ctx, "https://example.com")
	assert.ErrorIs(t, err, errs.ErrNoContent)
}
