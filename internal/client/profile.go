package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	browser "github.com/EDDYCJY/fake-useragent"
)

// DefaultUserAgent is the user agent sent when no browser profile or
// explicit user agent is configured. Pinned rather than generated so the
// default behavior is deterministic.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// ProxyConfig maps URL schemes to forward proxies, mirroring the common
// {"http": ..., "https": ...} proxy map. Either entry may be empty; HTTPS
// requests fall back to the HTTP proxy when no HTTPS proxy is set.
// Credentials embedded in the URL (user:pass@host) are honored.
type ProxyConfig struct {
	// HTTP is the proxy URL for plain HTTP requests.
	HTTP string `yaml:"http,omitempty"`

	// HTTPS is the proxy URL for HTTPS requests.
	HTTPS string `yaml:"https,omitempty"`
}

// IsZero reports whether no proxy is configured.
func (p ProxyConfig) IsZero() bool {
	return p.HTTP == "" && p.HTTPS == ""
}

// Validate checks that the configured proxy URLs parse and carry a scheme
// and host. Returns an error wrapping ErrInvalidProxy on the first bad entry.
func (p ProxyConfig) Validate() error {
	for _, raw := range []string{p.HTTP, p.HTTPS} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidProxy, raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q: missing scheme or host", ErrInvalidProxy, raw)
		}
	}
	return nil
}

// proxyFunc returns a proxy selector for http.Transport. The proxy is
// chosen by the scheme of the outgoing request, not the proxy URL.
func (p ProxyConfig) proxyFunc() (func(*http.Request) (*url.URL, error), error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var httpProxy, httpsProxy *url.URL
	var err error
	if p.HTTP != "" {
		if httpProxy, err = url.Parse(p.HTTP); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidProxy, p.HTTP, err)
		}
	}
	if p.HTTPS != "" {
		if httpsProxy, err = url.Parse(p.HTTPS); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidProxy, p.HTTPS, err)
		}
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" {
			if httpsProxy != nil {
				return httpsProxy, nil
			}
			return httpProxy, nil
		}
		if httpProxy != nil {
			return httpProxy, nil
		}
		return httpsProxy, nil
	}, nil
}

// BrowserProfile describes the browser identity to present to the target
// site. The name selects which browser family the generated user agent
// belongs to; Desktop false selects a mobile user agent instead.
type BrowserProfile struct {
	// Name is the browser family: "chrome", "firefox", "safari", or
	// empty for a random family.
	Name string `yaml:"name,omitempty"`

	// Platform is the advertised platform (e.g. "Windows", "Linux").
	// Sent as the sec-ch-ua-platform client hint when set.
	Platform string `yaml:"platform,omitempty"`

	// Desktop selects a desktop user agent. When false a mobile user
	// agent is generated regardless of Name.
	Desktop bool `yaml:"desktop"`
}

// IsZero reports whether the profile is unset.
func (b BrowserProfile) IsZero() bool {
	return b.Name == "" && b.Platform == "" && !b.Desktop
}

// UserAgent generates a user agent string matching the profile.
// Falls back to DefaultUserAgent if generation yields nothing, so callers
// always get a usable value.
func (b BrowserProfile) UserAgent() string {
	var ua string
	if !b.Desktop {
		ua = browser.Mobile()
	} else {
		switch strings.ToLower(b.Name) {
		case "chrome":
			ua = browser.Chrome()
		case "firefox":
			ua = browser.Firefox()
		case "safari":
			ua = browser.Safari()
		case "":
			ua = browser.Computer()
		default:
			ua = browser.Random()
		}
	}

	if ua == "" {
		return DefaultUserAgent
	}
	return ua
}

// CaptchaConfig identifies an external CAPTCHA solving service.
// The client does not solve CAPTCHAs itself; the configuration is carried
// so callers that hand challenges off to a solver have the credentials in
// one place.
type CaptchaConfig struct {
	// Provider is the solver service name (e.g. "2captcha").
	Provider string `yaml:"provider,omitempty"`

	// APIKey is the solver account key.
	APIKey string `yaml:"api_key,omitempty"`
}

// IsZero reports whether no solver is configured.
func (c CaptchaConfig) IsZero() bool {
	return c.Provider == "" && c.APIKey == ""
}

// Validate checks that provider and key are either both set or both empty.
func (c CaptchaConfig) Validate() error {
	if c.Provider != "" && c.APIKey == "" {
		return fmt.Errorf("%w: provider %q set without api key", ErrInvalidCaptcha, c.Provider)
	}
	if c.Provider == "" && c.APIKey != "" {
		return fmt.Errorf("%w: api key set without provider", ErrInvalidCaptcha)
	}
	return nil
}
