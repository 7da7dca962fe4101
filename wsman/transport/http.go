package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when the server responds with 401 Unauthorized.
// Use errors.Is(err, ErrUnauthorized) to check for authentication failures.
var ErrUnauthorized = errors.New("transport: authentication failed (401 Unauthorized)")

// Failure classes for requests that produced no HTTP response.
var (
	ErrConnectTimeout = errors.New("transport: connection timeout")
	ErrReceiveTimeout = errors.New("transport: receive timeout")
	ErrTLS            = errors.New("transport: tls failure")
)

const (
	// ContentTypeSOAP is the content type for SOAP 1.2 messages. It carries
	// no action parameter.
	ContentTypeSOAP = "application/soap+xml;charset=UTF-8"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// defaultBufferSize is the initial size for pooled buffers.
	defaultBufferSize = 32 * 1024 // 32KB

	// maxErrorPreview bounds the body excerpt in StatusError messages.
	maxErrorPreview = 3000
)

// StatusError is returned for non-2xx responses. Body holds the full
// response body, which for SOAP endpoints usually contains a fault.
type StatusError struct {
	Code int
	Body []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized.Error()
	}
	preview := string(e.Body)
	if len(preview) > maxErrorPreview {
		preview = preview[:maxErrorPreview] + "..."
	}
	return fmt.Sprintf("transport: HTTP %d: %s", e.Code, preview)
}

// Unwrap returns ErrUnauthorized for 401 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Authenticator wraps a round tripper with an authentication scheme.
type Authenticator interface {
	Transport(base http.RoundTripper) http.RoundTripper
}

// bufferPool is a pool of reusable bytes.Buffer to reduce allocations.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, defaultBufferSize))
	},
}

// readAllPooled reads from r using a pooled buffer and returns a copy of the data.
func readAllPooled(r io.Reader) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	// Return a copy since buf will be reused
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// HTTPTransport handles HTTP/HTTPS communication for WSMan.
type HTTPTransport struct {
	client  *http.Client
	base    *http.Transport
	auth    Authenticator
	limiter *rate.Limiter
}

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// NewHTTPTransport creates a new HTTP transport with the given options.
func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		base: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			// NTLM and Negotiate authenticate the connection, keep it alive.
			DisableKeepAlives:   false,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.client = &http.Client{Timeout: DefaultTimeout}

	for _, opt := range opts {
		opt(t)
	}

	if t.auth != nil {
		t.client.Transport = t.auth.Transport(t.base)
	} else {
		t.client.Transport = t.base
	}
	return t
}

// WithTimeout sets the overall HTTP request timeout. Zero disables it.
func WithTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client.Timeout = d
	}
}

// WithConnectTimeout bounds TCP connection setup and the TLS handshake.
// Zero disables it.
func WithConnectTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		dialer := &net.Dialer{Timeout: d, KeepAlive: 30 * time.Second}
		t.base.DialContext = dialer.DialContext
		t.base.TLSHandshakeTimeout = d
	}
}

// WithReceiveTimeout bounds the wait for response headers once the request
// has been written. Zero disables it.
func WithReceiveTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.base.ResponseHeaderTimeout = d
	}
}

// WithInsecureSkipVerify configures TLS to skip certificate verification.
// WARNING: Only use this for testing. Never use in production.
func WithInsecureSkipVerify(skip bool) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if skip {
			slog.Warn("TLS certificate verification disabled")
		}
		if t.base.TLSClientConfig == nil {
			t.base.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		t.base.TLSClientConfig.InsecureSkipVerify = skip
	}
}

// WithTLSConfig sets a custom TLS configuration. The transport uses a copy
// of cfg with MinVersion raised to at least TLS 1.2; cfg is not modified.
func WithTLSConfig(cfg *tls.Config) HTTPTransportOption {
	return func(t *HTTPTransport) {
		own := &tls.Config{}
		if cfg != nil {
			own = cfg.Clone()
		}
		if own.MinVersion < tls.VersionTLS12 {
			own.MinVersion = tls.VersionTLS12
		}
		t.base.TLSClientConfig = own
	}
}

// WithProxy sets the HTTP proxy. An empty string uses the environment,
// "direct" disables proxying.
func WithProxy(proxyURL string) HTTPTransportOption {
	return func(t *HTTPTransport) {
		switch proxyURL {
		case "":
			t.base.Proxy = http.ProxyFromEnvironment
		case "direct":
			t.base.Proxy = nil
		default:
			u, err := url.Parse(proxyURL)
			if err != nil {
				slog.Warn("ignoring invalid proxy url", "proxy", proxyURL, "error", err)
				return
			}
			t.base.Proxy = http.ProxyURL(u)
		}
	}
}

// WithAuthenticator wraps the transport with an authentication scheme.
func WithAuthenticator(a Authenticator) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.auth = a
	}
}

// WithRateLimit limits outgoing requests to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.limiter = rate.NewLimiter(r, burst)
	}
}

// Post sends a SOAP request and returns the response body.
// Non-2xx responses return a *StatusError carrying the body.
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("transport: rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeSOAP)
	// A known length keeps the request out of chunked encoding.
	req.ContentLength = int64(len(body))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	respBody, err := readAllPooled(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to read response: %w", classifyError(err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}

// classifyError tags err with the failure class it belongs to.
func classifyError(err error) error {
	var (
		opErr       *net.OpError
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		netErr      net.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("transport: request failed: %w", err)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		if opErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
		}
		return fmt.Errorf("transport: request failed: %w", err)
	case strings.Contains(err.Error(), "TLS handshake timeout"):
		return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
	case errors.As(err, &verifyErr), errors.As(err, &unknownAuth), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &recordErr), errors.As(err, &alertErr):
		return fmt.Errorf("%w: %w", ErrTLS, err)
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrReceiveTimeout, err)
	default:
		return fmt.Errorf("transport: request failed: %w", err)
	}
}

// Client returns the underlying HTTP client for advanced configuration.
func (t *HTTPTransport) Client() *http.Client {
	return t.client
}

// CloseIdleConnections closes any idle connections in the transport.
// This is useful to force a fresh NTLM handshake for subsequent requests.
func (t *HTTPTransport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}
