package client

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Belphemur/opensubtitles-dl/internal/config"
)

// NewTransport builds the HTTP transport shared by the XML-RPC client and the
// subtitle downloads: proxy support, the OpenSubtitles request budget and the
// registered User-Agent.
func NewTransport(cfg *config.Config, logger zerolog.Logger) http.RoundTripper {
	// Clone DefaultTransport to preserve its dial timeouts, pooling and HTTP/2 settings
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = cfg.ClientTimeoutDuration()

	if cfg.ProxyConnectionString != "" {
		proxyURL, err := url.Parse(cfg.ProxyConnectionString)
		if err != nil {
			logger.Warn().Err(err).Str("proxy", cfg.ProxyConnectionString).Msg("Invalid proxy URL, continuing without proxy")
		} else {
			base.Proxy = http.ProxyURL(proxyURL)
		}
	}

	var rt http.RoundTripper = base
	if cfg.RateLimit.Requests > 0 {
		rt = newRateLimitTransport(rt, newLimiter(cfg.RateLimit.Requests, cfg.RateLimitInterval()))
	}

	return newUserAgentTransport(rt, cfg.UserAgent)
}

// NewHTTPClient returns the client used for subtitle downloads.
func NewHTTPClient(cfg *config.Config, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   cfg.ClientTimeoutDuration(),
		Transport: transport,
	}
}

// newLimiter allows requests per interval with bursts up to requests.
func newLimiter(requests int, interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval/time.Duration(requests)), requests)
}

// rateLimitTransport blocks each request until the limiter grants a token or
// the request context ends.
type rateLimitTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func newRateLimitTransport(base http.RoundTripper, limiter *rate.Limiter) http.RoundTripper {
	return &rateLimitTransport{transport: base, limiter: limiter}
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// userAgentTransport sets the User-Agent registered with OpenSubtitles unless
// the request already carries one.
type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

func newUserAgentTransport(base http.RoundTripper, userAgent string) http.RoundTripper {
	return &userAgentTransport{transport: base, userAgent: userAgent}
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.transport.RoundTrip(req)
}
