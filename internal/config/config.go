package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Images     ImagesConfig     `mapstructure:"images"`
	Network    NetworkConfig    `mapstructure:"network"`
	Reader     ReaderConfig     `mapstructure:"reader"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Parallel   ParallelConfig   `mapstructure:"parallel"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ExtractionConfig struct {
	ShortContentThreshold int      `mapstructure:"short_content_threshold"`
	EnrichWordThreshold   int      `mapstructure:"enrich_word_threshold"`
	MaxEnrichRepos        int      `mapstructure:"max_enrich_repos"`
	MaxReadmeChars        int      `mapstructure:"max_readme_chars"`
	FollowStrategy        string   `mapstructure:"follow_strategy"`
	WalledGardens         []string `mapstructure:"walled_gardens"`
	FollowSkip            []string `mapstructure:"follow_skip"`
}

type ImagesConfig struct {
	MaxImages       int `mapstructure:"max_images"`
	MinDimension    int `mapstructure:"min_dimension"`
	MinBytes        int `mapstructure:"min_bytes"`
	DownloadTimeout int `mapstructure:"download_timeout"`
}

type NetworkConfig struct {
	Timeout         int    `mapstructure:"timeout"`
	UserAgent       string `mapstructure:"user_agent"`
	BrowserAgent    string `mapstructure:"browser_agent"`
	CrawlerAgent    string `mapstructure:"crawler_agent"`
	FollowRedirects bool   `mapstructure:"follow_redirects"`
	MaxRedirects    int    `mapstructure:"max_redirects"`
	Delay           int    `mapstructure:"delay"`
}

type ReaderConfig struct {
	Backend  string       `mapstructure:"backend"`
	BaseURL  string       `mapstructure:"base_url"`
	APIKey   string       `mapstructure:"api_key"`
	Timeout  int          `mapstructure:"timeout"`
	MinChars int          `mapstructure:"min_chars"`
	Tavily   TavilyConfig `mapstructure:"tavily"`
}

type TavilyConfig struct {
	APIKey       string `mapstructure:"api_key"`
	ExtractDepth string `mapstructure:"extract_depth"`
}

type BrowserConfig struct {
	Backend     string               `mapstructure:"backend"`
	RenderWait  int                  `mapstructure:"render_wait"`
	PageTimeout int                  `mapstructure:"page_timeout"`
	Camofox     CamofoxConfig        `mapstructure:"camofox"`
	Chrome      ChromeConfig         `mapstructure:"chrome"`
	Cookies     BrowserCookiesConfig `mapstructure:"cookies"`
	Paths       map[string]string    `mapstructure:"paths"`
}

type CamofoxConfig struct {
	URL    string `mapstructure:"url"`
	UserID string `mapstructure:"user_id"`
	APIKey string `mapstructure:"api_key"`
}

type ChromeConfig struct {
	RemoteURL string `mapstructure:"remote_url"`
}

type BrowserCookiesConfig struct {
	Source  string   `mapstructure:"source"`
	File    string   `mapstructure:"file"`
	Browser string   `mapstructure:"browser"`
	Domains []string `mapstructure:"domains"`
}

type YouTubeConfig struct {
	Languages []string `mapstructure:"languages"`
	OEmbedURL string   `mapstructure:"oembed_url"`
	WatchURL  string   `mapstructure:"watch_url"`
}

type GitHubConfig struct {
	RawBase  string   `mapstructure:"raw_base"`
	Branches []string `mapstructure:"branches"`
	File     string   `mapstructure:"file"`
}

type ParallelConfig struct {
	MaxConcurrency int  `mapstructure:"max_concurrency"`
	FailFast       bool `mapstructure:"fail_fast"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const googlebotAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

func Default() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			ShortContentThreshold: 200,
			EnrichWordThreshold:   500,
			MaxEnrichRepos:        2,
			MaxReadmeChars:        3000,
			FollowStrategy:        "longest",
			WalledGardens:         []string{"facebook.com", "fb.com", "linkedin.com", "instagram.com"},
			FollowSkip:            []string{"t.co/", "bit.ly/", "#", "javascript:", "facebook.com", "fb.com"},
		},
		Images: ImagesConfig{
			MaxImages:       5,
			MinDimension:    100,
			MinBytes:        5000,
			DownloadTimeout: 10,
		},
		Network: NetworkConfig{
			Timeout:         15,
			UserAgent:       "",
			BrowserAgent:    "auto",
			CrawlerAgent:    googlebotAgent,
			FollowRedirects: true,
			MaxRedirects:    10,
			Delay:           0,
		},
		Reader: ReaderConfig{
			Backend:  "jina",
			BaseURL:  "https://r.jina.ai/",
			Timeout:  15,
			MinChars: 50,
			Tavily: TavilyConfig{
				ExtractDepth: "basic",
			},
		},
		Browser: BrowserConfig{
			Backend:     "camofox",
			RenderWait:  3,
			PageTimeout: 30,
			Camofox: CamofoxConfig{
				URL:    "http://localhost:9377",
				UserID: "glean",
			},
			Cookies: BrowserCookiesConfig{
				Source:  "file",
				File:    "~/.camofox/cookies/facebook.txt",
				Browser: "auto",
				Domains: []string{"facebook.com", "linkedin.com", "instagram.com"},
			},
			Paths: map[string]string{},
		},
		YouTube: YouTubeConfig{
			Languages: []string{"vi", "en"},
			OEmbedURL: "https://www.youtube.com/oembed",
			WatchURL:  "https://www.youtube.com/watch",
		},
		GitHub: GitHubConfig{
			RawBase:  "https://raw.githubusercontent.com",
			Branches: []string{"main", "master"},
			File:     "README.md",
		},
		Parallel: ParallelConfig{
			MaxConcurrency: 4,
			FailFast:       false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Seconds converts an integer seconds setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Dir returns $XDG_CONFIG_HOME/glean (or ~/.config/glean).
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("error finding home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "glean"), nil
}

func Load(configFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configDir, err := Dir()
		if err != nil {
			return cfg, err
		}
		v.AddConfigPath(configDir)
		v.SetConfigType("toml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GLEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error, we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Browser.Cookies.File = ExpandPath(cfg.Browser.Cookies.File)
	return cfg, nil
}

// bindEnv registers the keys that are commonly supplied through the
// environment, since AutomaticEnv only applies to keys viper already knows.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("reader.api_key", "GLEAN_READER_API_KEY", "JINA_API_KEY")
	_ = v.BindEnv("reader.tavily.api_key", "GLEAN_READER_TAVILY_API_KEY", "TAVILY_API_KEY")
	_ = v.BindEnv("browser.camofox.url", "GLEAN_BROWSER_CAMOFOX_URL", "CAMOFOX_URL")
	_ = v.BindEnv("browser.camofox.user_id", "GLEAN_BROWSER_CAMOFOX_USER_ID", "CAMOFOX_USER_ID")
	_ = v.BindEnv("browser.camofox.api_key", "GLEAN_BROWSER_CAMOFOX_API_KEY", "CAMOFOX_API_KEY")
	_ = v.BindEnv("browser.backend")
	_ = v.BindEnv("logging.level")
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) CreateExampleConfig(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	exampleContent := `# glean configuration file

[extraction]
short_content_threshold = 200   # words; below this a result counts as a preview
enrich_word_threshold = 500     # append repository READMEs while content is below this
max_enrich_repos = 2
max_readme_chars = 3000
follow_strategy = "longest"     # longest, first
walled_gardens = ["facebook.com", "fb.com", "linkedin.com", "instagram.com"]
follow_skip = ["t.co/", "bit.ly/", "#", "javascript:", "facebook.com", "fb.com"]

[images]
max_images = 5
min_dimension = 100             # pixels, from width/height hints
min_bytes = 5000                # smaller downloads are treated as placeholders
download_timeout = 10           # seconds

[network]
timeout = 15                    # seconds
user_agent = ""                 # custom user agent (empty = browser_agent)
browser_agent = "auto"          # auto, chrome, firefox, safari, edge
crawler_agent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
follow_redirects = true
max_redirects = 10
delay = 0                       # seconds between URLs

[reader]
backend = "jina"                # jina, tavily
base_url = "https://r.jina.ai/"
api_key = ""
timeout = 15
min_chars = 50

[reader.tavily]
api_key = ""
extract_depth = "basic"

[browser]
backend = "camofox"             # camofox, chrome, none
render_wait = 3                 # seconds
page_timeout = 30               # seconds

[browser.camofox]
url = "http://localhost:9377"
user_id = "glean"
api_key = ""

[browser.chrome]
remote_url = ""                 # devtools websocket URL; empty launches a local Chrome

[browser.cookies]
source = "file"                 # file, browser, none
file = "~/.camofox/cookies/facebook.txt"
browser = "auto"                # auto, chrome, firefox, safari, zen
domains = ["facebook.com", "linkedin.com", "instagram.com"]

[youtube]
languages = ["vi", "en"]
oembed_url = "https://www.youtube.com/oembed"
watch_url = "https://www.youtube.com/watch"

[github]
raw_base = "https://raw.githubusercontent.com"
branches = ["main", "master"]
file = "README.md"

[parallel]
max_concurrency = 4
fail_fast = false

[logging]
level = "info"                  # debug, info, warn, error
development = false
`

	return os.WriteFile(configPath, []byte(exampleContent), 0644)
}
