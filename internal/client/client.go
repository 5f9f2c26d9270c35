package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/presscan/presscan/internal/model"
)

// Default values for client construction.
const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryCount is the number of retries after a failed request.
	DefaultRetryCount = 3

	// DefaultRetryWait is the initial wait between retries.
	DefaultRetryWait = 500 * time.Millisecond

	// DefaultRetryMaxWait caps the backoff between retries.
	DefaultRetryMaxWait = 10 * time.Second
)

// Client fetches pages from a single site, holding cookies, retry policy,
// and the bypass transport across requests. Challenge clearance cookies
// issued by the site survive in the jar for the lifetime of the client, so
// one Client per site is the intended usage.
type Client struct {
	resty       *resty.Client
	logger      *slog.Logger
	host        string
	maxBodySize int64
	bypass      bool
	userAgent   string
	browser     BrowserProfile
	captcha     CaptchaConfig
	proxy       ProxyConfig
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.resty.SetTimeout(d)
		}
	}
}

// WithBypass enables or disables the bot-protection bypass transport.
func WithBypass(enabled bool) Option {
	return func(c *Client) {
		c.bypass = enabled
	}
}

// WithProxy routes requests through the configured proxies.
func WithProxy(p ProxyConfig) Option {
	return func(c *Client) {
		c.proxy = p
	}
}

// WithBrowser sets the browser profile used to generate the user agent.
func WithBrowser(b BrowserProfile) Option {
	return func(c *Client) {
		c.browser = b
	}
}

// WithCaptcha attaches CAPTCHA solver credentials to the client.
// The client itself never calls the solver; see Captcha.
func WithCaptcha(cc CaptchaConfig) Option {
	return func(c *Client) {
		c.captcha = cc
	}
}

// WithUserAgent sets an explicit user agent, overriding the browser profile.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeaders adds headers sent on every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.resty.SetHeader(k, v)
		}
	}
}

// WithCookie sets a raw Cookie header sent on every request, for sites
// where a previously obtained clearance cookie should be reused.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		if cookie != "" {
			c.resty.SetHeader("Cookie", cookie)
		}
	}
}

// WithRetry configures the retry policy for failed requests.
func WithRetry(count int, wait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.resty.SetRetryCount(count)
		if wait > 0 {
			c.resty.SetRetryWaitTime(wait)
		}
		if maxWait > 0 {
			c.resty.SetRetryMaxWaitTime(maxWait)
		}
	}
}

// WithMaxBodySize caps how many bytes of a response body are kept.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the given target site.
//
// The target is used to pin redirects to the site's domain; requests to
// other hosts are still allowed but redirects leaving the domain are
// refused, which keeps challenge redirect loops on the origin.
func New(target string, opts ...Option) (*Client, error) {
	host, err := hostOf(target)
	if err != nil {
		return nil, fmt.Errorf("parse target %q: %w", target, err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		resty:       resty.New(),
		logger:      slog.Default(),
		host:        host,
		maxBodySize: model.MaxPageSize,
		bypass:      true,
	}
	c.resty.SetCookieJar(jar)
	c.resty.SetTimeout(DefaultTimeout)
	c.resty.SetRetryCount(DefaultRetryCount)
	c.resty.SetRetryWaitTime(DefaultRetryWait)
	c.resty.SetRetryMaxWaitTime(DefaultRetryMaxWait)
	c.resty.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(redirectHosts(host)...))
	c.resty.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		// Challenge pages don't resolve by retrying the same request.
		if isChallengeResponse(r.StatusCode(), r.Header()) {
			return false
		}
		return isRetryableStatus(r.StatusCode())
	})

	for _, opt := range opts {
		opt(c)
	}

	if err := c.setupTransport(); err != nil {
		return nil, err
	}
	c.setupIdentity()

	return c, nil
}

// setupTransport wires the proxy selector into the base transport and
// wraps it with the bypass round tripper when enabled. The proxy must be
// installed before wrapping so bypassed requests still go through it.
func (c *Client) setupTransport() error {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if !c.proxy.IsZero() {
		proxyFn, err := c.proxy.proxyFunc()
		if err != nil {
			return err
		}
		transport.Proxy = proxyFn
	}
	c.resty.SetTransport(transport)

	if c.bypass {
		c.resty.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(c.resty.GetClient().Transport)
	}
	return nil
}

// setupIdentity resolves the user agent from the explicit override or the
// browser profile and sets the identity headers.
func (c *Client) setupIdentity() {
	ua := c.userAgent
	if ua == "" {
		if !c.browser.IsZero() {
			ua = c.browser.UserAgent()
		} else {
			ua = DefaultUserAgent
		}
	}
	c.userAgent = ua
	c.resty.SetHeader("User-Agent", ua)

	if c.browser.Platform != "" {
		c.resty.SetHeader("Sec-CH-UA-Platform", `"`+c.browser.Platform+`"`)
	}
}

// Fetch retrieves a single page.
//
// On transport failure (DNS, connect, timeout after retries) it returns a
// nil page and an error. On a non-200 response it returns BOTH the fetched
// page and a *StatusError, so callers can inspect challenge pages; match
// with errors.Is(err, ErrChallengeBlocked) or ErrUnexpectedStatus. A 200
// response returns the page with its body decoded to UTF-8.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	c.logger.Debug("fetching page", "url", rawURL)

	resp, err := c.resty.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	page := &model.Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode(),
		Headers:     resp.Header(),
		ContentType: resp.Header().Get("Content-Type"),
		FetchedAt:   time.Now(),
	}
	page.Raw = c.decodeBody(resp.Body(), page.ContentType)
	page.ComputeHash()

	if resp.StatusCode() != http.StatusOK {
		challenge := isChallengeResponse(resp.StatusCode(), resp.Header())
		if challenge {
			c.logger.Warn("challenge page blocked request",
				"url", rawURL, "status", resp.StatusCode())
		} else {
			c.logger.Debug("unexpected status",
				"url", rawURL, "status", resp.StatusCode())
		}
		return page, &StatusError{URL: rawURL, StatusCode: resp.StatusCode(), Challenge: challenge}
	}

	return page, nil
}

// decodeBody converts the response body to UTF-8 using the charset from
// the Content-Type header (or sniffed from the content), capped at
// maxBodySize.
func (c *Client) decodeBody(body []byte, contentType string) []byte {
	if len(body) == 0 {
		return nil
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Undetectable charset, keep raw bytes.
		reader = bytes.NewReader(body)
	}

	decoded, err := io.ReadAll(io.LimitReader(reader, c.maxBodySize))
	if err != nil {
		if int64(len(body)) > c.maxBodySize {
			body = body[:c.maxBodySize]
		}
		return body
	}
	return decoded
}

// UserAgent returns the user agent the client sends.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Captcha returns the configured CAPTCHA solver credentials.
// Empty when no solver is configured.
func (c *Client) Captcha() CaptchaConfig {
	return c.captcha
}

// Host returns the target site host the client was created for.
func (c *Client) Host() string {
	return c.host
}

// isRetryableStatus reports whether a status code is worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isChallengeResponse reports whether a response looks like a
// bot-protection challenge page. Cloudflare serves challenges as 403 or
// 503 with its server header and a CF-Ray trace ID.
func isChallengeResponse(code int, headers http.Header) bool {
	if code != http.StatusForbidden && code != http.StatusServiceUnavailable {
		return false
	}
	if strings.Contains(strings.ToLower(headers.Get("Server")), "cloudflare") {
		return true
	}
	if headers.Get("CF-Ray") != "" || headers.Get("CF-Mitigated") != "" {
		return true
	}
	return false
}

// hostOf extracts the host from a target URL, defaulting to https when the
// scheme is missing.
func hostOf(target string) (string, error) {
	raw := target
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", target)
	}
	return u.Host, nil
}

// redirectHosts returns the hosts redirects may land on: the site itself
// and its www variant. Ports are stripped because the redirect policy
// compares hostnames only; SplitHostPort also unbrackets IPv6 literals
// like [::1]:8080 so they match the Hostname form.
func redirectHosts(host string) []string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	hosts := []string{host}
	if strings.HasPrefix(host, "www.") {
		hosts = append(hosts, strings.TrimPrefix(host, "www."))
	} else {
		hosts = append(hosts, "www."+host)
	}
	return hosts
}
