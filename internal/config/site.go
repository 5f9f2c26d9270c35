package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/presscan/presscan/internal/client"
	"github.com/presscan/presscan/internal/scraper"
)

// Duration wraps time.Duration so YAML values like "2s" or "500ms" parse.
// yaml.v3 does not decode duration strings into time.Duration on its own.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SiteConfig holds site-specific configuration for a single news site.
// This covers everything that varies between sites: page markup, URL
// structure, proxies, and the identity presented to the site.
type SiteConfig struct {
	// Selectors are the CSS selectors for this site's listing markup.
	// Empty fields fall back to the built-in defaults.
	Selectors scraper.Selectors `yaml:"selectors,omitempty"`

	// PageTemplate overrides the page URL pattern for this site.
	PageTemplate string `yaml:"page_template,omitempty"`

	// DateLayouts are extra date formats for this site, tried before the
	// built-in layouts.
	DateLayouts []string `yaml:"date_layouts,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is a raw Cookie header for this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// UserAgent overrides the generated user agent for this site.
	UserAgent string `yaml:"user_agent,omitempty"`

	// MaxPages overrides the global page bound for this site.
	// If zero, the global MaxPages is used.
	MaxPages int `yaml:"max_pages,omitempty"`

	// Delay overrides the global fetch delay for this site.
	Delay Duration `yaml:"delay,omitempty"`

	// Proxy routes this site's requests through forward proxies.
	Proxy client.ProxyConfig `yaml:"proxy,omitempty"`

	// Browser describes the browser identity presented to this site.
	Browser client.BrowserProfile `yaml:"browser,omitempty"`

	// Captcha holds solver credentials for this site.
	Captcha client.CaptchaConfig `yaml:"captcha,omitempty"`

	// Bypass toggles the bot-protection bypass for this site.
	// Nil means inherit the global setting.
	Bypass *bool `yaml:"bypass,omitempty"`
}

// File represents the structure of the .presscan configuration file.
type File struct {
	// Sites maps site hosts to their configurations.
	// Keys should be the host without the protocol (e.g. "news.example.com").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a specific site host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	// Start with defaults
	result := cf.Defaults

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if siteConfig.Selectors != (scraper.Selectors{}) {
		result.Selectors = siteConfig.Selectors
	}
	if siteConfig.PageTemplate != "" {
		result.PageTemplate = siteConfig.PageTemplate
	}
	if len(siteConfig.DateLayouts) > 0 {
		result.DateLayouts = siteConfig.DateLayouts
	}
	if len(siteConfig.Headers) > 0 {
		// Merge into a fresh map. Writing into result.Headers would mutate
		// the shared Defaults map, leaking one site's headers into every
		// later lookup and racing when lookups run concurrently.
		merged := make(map[string]string, len(cf.Defaults.Headers)+len(siteConfig.Headers))
		for k, v := range cf.Defaults.Headers {
			merged[k] = v
		}
		for k, v := range siteConfig.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if siteConfig.Delay != 0 {
		result.Delay = siteConfig.Delay
	}
	if !siteConfig.Proxy.IsZero() {
		result.Proxy = siteConfig.Proxy
	}
	if !siteConfig.Browser.IsZero() {
		result.Browser = siteConfig.Browser
	}
	if !siteConfig.Captcha.IsZero() {
		result.Captcha = siteConfig.Captcha
	}
	if siteConfig.Bypass != nil {
		result.Bypass = siteConfig.Bypass
	}

	return result
}

// ApplySite overlays a site configuration onto a copy of the global
// config, returning the effective configuration for one site.
// Only fields the site config actually sets are overridden.
func (c *Config) ApplySite(sc SiteConfig) *Config {
	effective := *c

	if sc.Selectors != (scraper.Selectors{}) {
		effective.Selectors = sc.Selectors
	}
	if sc.PageTemplate != "" {
		effective.PageTemplate = sc.PageTemplate
	}
	if len(sc.DateLayouts) > 0 {
		effective.DateLayouts = sc.DateLayouts
	}
	if len(sc.Headers) > 0 {
		merged := make(map[string]string, len(c.Headers)+len(sc.Headers))
		for k, v := range c.Headers {
			merged[k] = v
		}
		for k, v := range sc.Headers {
			merged[k] = v
		}
		effective.Headers = merged
	}
	if sc.Cookie != "" {
		effective.Cookie = sc.Cookie
	}
	if sc.UserAgent != "" {
		effective.UserAgent = sc.UserAgent
	}
	if sc.MaxPages != 0 {
		effective.MaxPages = sc.MaxPages
	}
	if sc.Delay != 0 {
		effective.Delay = sc.Delay.Std()
	}
	if !sc.Proxy.IsZero() {
		effective.Proxy = sc.Proxy
	}
	if !sc.Browser.IsZero() {
		effective.Browser = sc.Browser
	}
	if !sc.Captcha.IsZero() {
		effective.Captcha = sc.Captcha
	}
	if sc.Bypass != nil {
		effective.Bypass = *sc.Bypass
	}

	return &effective
}
