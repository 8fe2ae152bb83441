package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/currency-annotator/internal/config"
)

// Rule limits one method on a path. A path ending in "/" matches every path
// below it.
type Rule struct {
	Method string
	Path   string
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // bucket capacity, Limit when 0
}

func (r Rule) matches(method, path string) bool {
	if r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	Default         Rule
	Rules           []Rule
	CleanupInterval time.Duration
	IdleExpiry      time.Duration
	Allow           map[string]bool
	Deny            map[string]bool
}

// DefaultRules limit the rate worker's endpoints. Rate lookups are cheap
// after the first fetch, settings writes are rare.
func DefaultRules() []Rule {
	return []Rule{
		{Method: http.MethodGet, Path: "/health"},
		{Method: http.MethodPost, Path: "/rates", Limit: 600, Window: time.Minute, Burst: 60},
		{Method: http.MethodPut, Path: "/options", Limit: 30, Window: time.Minute, Burst: 5},
		{Method: http.MethodPut, Path: "/sites/", Limit: 60, Window: time.Minute, Burst: 10},
	}
}

// LoadConfig loads rate limiting configuration from CCX_RATE_LIMIT_*
// environment variables.
func LoadConfig() *Config {
	if !config.EnvBool("CCX_RATE_LIMIT_ENABLED", true) {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled: true,
		Default: Rule{
			Limit:  config.EnvInt("CCX_RATE_LIMIT_DEFAULT_LIMIT", 300),
			Window: config.EnvDuration("CCX_RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		},
		Rules:           DefaultRules(),
		CleanupInterval: config.EnvDuration("CCX_RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		IdleExpiry:      time.Hour,
		Allow:           toSet(config.EnvList("CCX_RATE_LIMIT_ALLOW")),
		Deny:            toSet(config.EnvList("CCX_RATE_LIMIT_DENY")),
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// ruleFor returns the first rule matching the request, or the default.
func (c *Config) ruleFor(method, path string) Rule {
	for _, rule := range c.Rules {
		if rule.matches(method, path) {
			return rule
		}
	}
	return c.Default
}
