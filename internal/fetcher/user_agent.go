package fetcher

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

type UserAgentType string

const (
	UserAgentAuto    UserAgentType = "auto"
	UserAgentChrome  UserAgentType = "chrome"
	UserAgentFirefox UserAgentType = "firefox"
	UserAgentSafari  UserAgentType = "safari"
	UserAgentEdge    UserAgentType = "edge"
	// UserAgentCrawler identifies as a search crawler. Walled gardens still
	// serve preview meta tags to these agents.
	UserAgentCrawler UserAgentType = "crawler"
)

// GooglebotAgent is the default crawler identity.
const GooglebotAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

var userAgents = map[UserAgentType][]string{
	UserAgentChrome: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	},
	UserAgentFirefox: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.4; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	},
	UserAgentSafari: {
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	},
	UserAgentEdge: {
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
	},
}

// browserTypes excludes the crawler identity from random selection.
var browserTypes = []UserAgentType{UserAgentChrome, UserAgentFirefox, UserAgentSafari, UserAgentEdge}

type UserAgentSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewUserAgentSelector() *UserAgentSelector {
	return &UserAgentSelector{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetUserAgent returns a user agent string for uaType. "auto" or empty picks a
// random browser agent; a browser name picks one of that browser's agents;
// "crawler" returns the Googlebot identity; anything else is returned as-is.
func (uas *UserAgentSelector) GetUserAgent(uaType string) string {
	normalized := strings.ToLower(strings.TrimSpace(uaType))
	if normalized == "" {
		normalized = string(UserAgentAuto)
	}

	switch UserAgentType(normalized) {
	case UserAgentAuto:
		return uas.pick(browserTypes[uas.intn(len(browserTypes))])
	case UserAgentChrome, UserAgentFirefox, UserAgentSafari, UserAgentEdge:
		return uas.pick(UserAgentType(normalized))
	case UserAgentCrawler:
		return GooglebotAgent
	default:
		// custom strings keep their original casing
		return strings.TrimSpace(uaType)
	}
}

func (uas *UserAgentSelector) pick(t UserAgentType) string {
	agents := userAgents[t]
	return agents[uas.intn(len(agents))]
}

// rand.Rand is not safe for concurrent use.
func (uas *UserAgentSelector) intn(n int) int {
	uas.mu.Lock()
	defer uas.mu.Unlock()
	return uas.rng.Intn(n)
}
