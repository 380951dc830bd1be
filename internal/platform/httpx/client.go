package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

// Timeouts bounds one request. Zero fields take the package defaults; Connect
// and Header never exceed Total.
type Timeouts struct {
	Connect time.Duration
	Header  time.Duration
	Total   time.Duration
}

// NewClient returns a hardened HTTP client for runtime and ops probes.
func NewClient(timeout time.Duration) *http.Client {
	return NewClientWithTimeouts(Timeouts{Total: timeout})
}

// NewClientWithTimeouts is NewClient with separately bounded connect and
// response-header phases.
func NewClientWithTimeouts(t Timeouts) *http.Client {
	timeout := t.Total
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := t.Connect
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	if dialTimeout > timeout {
		dialTimeout = timeout
	}

	responseHeaderTimeout := t.Header
	if responseHeaderTimeout <= 0 {
		responseHeaderTimeout = defaultResponseHeaderTimeout
	}
	if responseHeaderTimeout > timeout {
		responseHeaderTimeout = timeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          defaultMaxIdleConns,
			MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   dialTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
			// Bodies stay as sent; callers sniff and inflate them.
			DisableCompression: true,
		},
	}
}

// Traced wraps the client's transport with OpenTelemetry instrumentation.
func Traced(c *http.Client) *http.Client {
	c.Transport = otelhttp.NewTransport(c.Transport)
	return c
}
