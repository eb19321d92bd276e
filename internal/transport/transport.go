// Package transport builds the outbound HTTP client used for OpsGenie
// delivery.
//
// The process-wide proxy is applied per request: a destination host that
// fully matches one of the configured no-proxy patterns is dialed directly,
// every other host is routed through proxyHost:proxyPort.
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"buildalert/internal/config"
)

// DefaultMaxRedirects bounds redirect chains on delivery requests.
const DefaultMaxRedirects = 3

// ErrTooManyRedirects is returned when the redirect limit is exceeded.
var ErrTooManyRedirects = errors.New("transport: too many redirects")

// ErrInvalidProxy is returned when the proxy host/port cannot form a URL.
var ErrInvalidProxy = errors.New("transport: invalid proxy configuration")

// ProxySelector decides, per request, whether to use the configured proxy.
// A zero ProxySelector (or nil) never proxies.
type ProxySelector struct {
	proxyURL   *url.URL
	exclusions []*regexp.Regexp
}

// NewProxySelector compiles the proxy configuration. A disabled proxy yields
// a selector that always connects directly.
func NewProxySelector(cfg config.ProxyConfig) (*ProxySelector, error) {
	if !cfg.Enabled() {
		return &ProxySelector{}, nil
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d", ErrInvalidProxy, cfg.Port)
	}

	proxyURL, err := url.Parse("http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}

	sel := &ProxySelector{proxyURL: proxyURL}
	for _, pattern := range cfg.NoProxyHosts {
		re := CompileNoProxyPattern(pattern)
		if re != nil {
			sel.exclusions = append(sel.exclusions, re)
		}
	}
	return sel, nil
}

// CompileNoProxyPattern turns a Jenkins-style host glob ("*.internal",
// "10.0.*", "localhost") into an anchored, case-insensitive regexp. Only
// '*' is special. A blank pattern returns nil.
func CompileNoProxyPattern(glob string) *regexp.Regexp {
	glob = strings.TrimSpace(glob)
	if glob == "" {
		return nil
	}
	quoted := regexp.QuoteMeta(glob)
	quoted = strings.ReplaceAll(quoted, `\*`, ".*")
	// QuoteMeta output is always a valid expression.
	return regexp.MustCompile(`(?i)^` + quoted + `$`)
}

// Excluded reports whether host matches any no-proxy pattern in full.
func (s *ProxySelector) Excluded(host string) bool {
	if s == nil {
		return false
	}
	for _, re := range s.exclusions {
		if re.MatchString(host) {
			return true
		}
	}
	return false
}

// ProxyURL returns the proxy that should carry a request to host, or nil
// for a direct connection.
func (s *ProxySelector) ProxyURL(host string) *url.URL {
	if s == nil || s.proxyURL == nil {
		return nil
	}
	if s.Excluded(host) {
		return nil
	}
	return s.proxyURL
}

// Proxy satisfies http.Transport.Proxy. Proxy environment variables are
// deliberately ignored; only the configured proxy is honored.
func (s *ProxySelector) Proxy(req *http.Request) (*url.URL, error) {
	return s.ProxyURL(req.URL.Hostname()), nil
}

// CheckRedirect returns an http.Client CheckRedirect function that enforces
// a maximum number of redirects.
func CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		return nil
	}
}

// NewHTTPClient creates the delivery http.Client: the given timeout, the
// proxy selector, and a bounded redirect policy.
func NewHTTPClient(timeout time.Duration, proxy *ProxySelector) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = proxy.Proxy

	return &http.Client{
		Transport:     base,
		Timeout:       timeout,
		CheckRedirect: CheckRedirect(DefaultMaxRedirects),
	}
}
