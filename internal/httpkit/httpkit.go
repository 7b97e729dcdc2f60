// Package httpkit provides the shared HTTP client construction used
// for the core's one outbound network dependency, the LLM API call.
// It enforces consistent dial/TLS/response-header timeouts instead of
// leaving every caller to configure http.Client by hand.
//
// Grounded on nugget-thane-ai-agent's internal/httpkit package: a
// shared *http.Transport with explicit timeouts plus functional
// options over NewClient, trimmed of its retry-transport and
// User-Agent machinery since the core has exactly one caller and no
// need for either.
package httpkit

import (
	"io"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultDialTimeout is the maximum time to establish a TCP connection.
	DefaultDialTimeout = 10 * time.Second

	// DefaultKeepAlive is the interval between TCP keep-alive probes.
	DefaultKeepAlive = 30 * time.Second

	// DefaultTLSHandshakeTimeout is the maximum time for the TLS handshake.
	DefaultTLSHandshakeTimeout = 10 * time.Second

	// DefaultResponseHeaderTimeout is generous on purpose: LLM calls can
	// take a long time to produce their first byte (queueing, long
	// prompts, extended thinking) even though the body itself is short.
	DefaultResponseHeaderTimeout = 120 * time.Second

	// DefaultIdleConnTimeout is how long idle connections stay pooled.
	DefaultIdleConnTimeout = 90 * time.Second
)

// ClientOption configures a Client built by NewClient.
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout   time.Duration
	transport *http.Transport
}

// WithTimeout sets the overall request timeout on the http.Client. A
// zero value disables the timeout, relying entirely on the caller's
// context deadline — used for LLM calls, whose duration is bounded by
// the request's own context rather than a fixed budget.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithTransport overrides the default shared transport.
func WithTransport(t *http.Transport) ClientOption {
	return func(c *clientConfig) { c.transport = t }
}

// NewTransport creates an http.Transport with the package's default
// timeouts.
func NewTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   DefaultDialTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ForceAttemptHTTP2:     true,
	}
}

// NewClient builds an *http.Client over the shared transport.
func NewClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{timeout: 30 * time.Second}
	for _, o := range opts {
		o(cfg)
	}

	t := cfg.transport
	if t == nil {
		t = NewTransport()
	}

	return &http.Client{
		Timeout:   cfg.timeout,
		Transport: t,
	}
}

// ReadErrorBody reads up to limit bytes of resp for an error message
// and drains/closes the remainder so the connection can be reused.
func ReadErrorBody(rc interface {
	Read([]byte) (int, error)
	Close() error
}, limit int64) string {
	if rc == nil {
		return ""
	}
	buf := make([]byte, limit)
	n, _ := rc.Read(buf)
	io.Copy(io.Discard, rc)
	rc.Close()
	return string(buf[:n])
}
