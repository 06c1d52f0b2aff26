package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteowlz/glean/internal/config"
)

const cookiesTxt = `# Netscape HTTP Cookie File
# This is a generated file! Do not edit.

.facebook.com	TRUE	/	TRUE	1900000000	c_user	42
#HttpOnly_.facebook.com	TRUE	/	TRUE	0	xs	secret
.example.com	TRUE	/	FALSE	1900000000.5	other	1
broken line without tabs
`

func TestParseNetscape(t *testing.T) {
	cookies, err := ParseNetscape(strings.NewReader(cookiesTxt))
	require.NoError(t, err)
	require.Len(t, cookies, 3)

	assert.Equal(t, ".facebook.com", cookies[0].Domain)
	assert.Equal(t, "c_user", cookies[0].Name)
	assert.Equal(t, "42", cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, time.Unix(1900000000, 0), cookies[0].Expires)

	assert.Equal(t, "xs", cookies[1].Name)
	assert.True(t, cookies[1].HttpOnly)
	assert.True(t, cookies[1].Expires.IsZero())

	assert.False(t, cookies[2].Secure)
	assert.Equal(t, time.Unix(1900000000, 0), cookies[2].Expires)
}

func TestParseNetscape_BadExpiry(t *testing.T) {
	_, err := ParseNetscape(strings.NewReader(".a.com\tTRUE\t/\tTRUE\tsoon\tn\tv\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestNetscapeFile_FiltersDomains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facebook.txt")
	require.NoError(t, os.WriteFile(path, []byte(cookiesTxt), 0600))

	nf := &NetscapeFile{Path: path, Domains: []string{"facebook.com"}}
	cookies, err := nf.Cookies(context.Background())
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, ".facebook.com", c.Domain)
	}
}

func TestNetscapeFile_Missing(t *testing.T) {
	nf := &NetscapeFile{Path: filepath.Join(t.TempDir(), "nope.txt")}
	_, err := nf.Cookies(context.Background())
	assert.Error(t, err)
}

func TestMatchesDomain(t *testing.T) {
	tests := []struct {
		cookie, target string
		want           bool
	}{
		{".facebook.com", "facebook.com", true},
		{"facebook.com", "www.facebook.com", true},
		{"m.facebook.com", "facebook.com", true},
		{".FaceBook.com", "facebook.com", true},
		{"notfacebook.com", "facebook.com", false},
		{"", "facebook.com", false},
		{"facebook.com", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesDomain(tt.cookie, tt.target), "%s vs %s", tt.cookie, tt.target)
	}
}

func TestNewCookieSource(t *testing.T) {
	cfg := config.Default().Browser.Cookies

	cfg.Source = "none"
	src, err := NewCookieSource(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, src)

	cfg.Source = "file"
	src, err = NewCookieSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &NetscapeFile{}, src)

	cfg.Source = "browser"
	src, err = NewCookieSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &CookieExtractor{}, src)

	cfg.Source = "jar"
	_, err = NewCookieSource(cfg, nil)
	assert.Error(t, err)
}

func TestCookieExtractor_CustomPath(t *testing.T) {
	dir := t.TempDir()
	ce := NewCookieExtractor(BrowserZen, map[string]string{"zen": dir}, nil)
	assert.Contains(t, ce.DetectAvailableBrowsers(), BrowserZen)
}
