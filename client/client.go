package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/smnsjas/go-wsman/wsman"
	"github.com/smnsjas/go-wsman/wsman/auth"
	"github.com/smnsjas/go-wsman/wsman/transport"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("client is closed")

// Client is a high-level WSMan client for one host. It wires configuration,
// authentication, transport and security event logging around a
// wsman.Client.
type Client struct {
	mu     sync.Mutex
	closed bool

	hostname string
	config   Config
	endpoint *wsman.Endpoint

	transport *transport.HTTPTransport
	wsman     *wsman.Client
	logger    *slog.Logger
	security  *SecurityLogger
	authOnce  sync.Once
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *wsman.Metrics
}

// WithLogger sets the logger for protocol tracing and security events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *wsman.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New creates a client for hostname, which may be a host name, an IP
// address or a full endpoint URL.
func New(hostname string, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	ep, err := wsman.NewEndpoint(cfg.EndpointURL(hostname), cfg.endpointOptions()...)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	authenticator, err := auth.FromEndpoint(ep)
	if err != nil {
		return nil, fmt.Errorf("configure authentication: %w", err)
	}

	trOpts := []transport.HTTPTransportOption{
		transport.WithTimeout(cfg.Timeout),
		transport.WithConnectTimeout(ep.ConnectionTimeout()),
		transport.WithReceiveTimeout(ep.ReceiveTimeout()),
		transport.WithInsecureSkipVerify(!ep.StrictSSL()),
		transport.WithProxy(cfg.Proxy),
	}
	if authenticator != nil {
		trOpts = append(trOpts, transport.WithAuthenticator(authenticator))
	}
	if cfg.RateLimit > 0 {
		trOpts = append(trOpts, transport.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst))
	}
	tr := transport.NewHTTPTransport(trOpts...)

	wsOpts := []wsman.ClientOption{wsman.WithLogger(o.logger)}
	if o.metrics != nil {
		wsOpts = append(wsOpts, wsman.WithMetrics(o.metrics))
	}

	o.logger.Debug("wsman client configured", "endpoint", ep.String(), "auth_scheme", ep.Auth().Scheme())

	return &Client{
		hostname:  hostname,
		config:    cfg,
		endpoint:  ep,
		transport: tr,
		wsman:     wsman.NewClient(ep, tr, wsOpts...),
		logger:    o.logger,
		security:  NewSecurityLogger(o.logger, cfg.Username, ep.URL()),
	}, nil
}

// Endpoint returns the WSMan endpoint.
func (c *Client) Endpoint() *wsman.Endpoint {
	return c.endpoint
}

// Identify queries the service identity.
func (c *Client) Identify(ctx context.Context) (*wsman.Identity, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	id, err := c.wsman.Identify(ctx)
	c.record("identify", err)
	return id, err
}

// Get retrieves one resource instance.
func (c *Client) Get(ctx context.Context, resourceURI string, selectors wsman.Selectors) (*wsman.Element, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	el, err := c.wsman.Get(ctx, resourceURI, selectors)
	c.record("get", err)
	return el, err
}

// Put replaces one resource instance with body.
func (c *Client) Put(ctx context.Context, resourceURI string, body *wsman.Element, selectors wsman.Selectors) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	err := c.wsman.Put(ctx, resourceURI, body, selectors)
	c.record("put", err)

	details := map[string]any{"resource_uri": resourceURI, "selectors": len(selectors)}
	if err != nil {
		details["error_kind"] = wsman.KindOf(err).String()
		c.security.LogOperation(SubtypeOpFailed, SeverityWarning, "put", OutcomeFailure, details)
	} else {
		c.security.LogOperation(SubtypeOpModify, SeverityInfo, "put", OutcomeSuccess, details)
	}
	return err
}

// Enumerate starts an enumeration and returns its context. An empty dialect
// and filter enumerate every instance.
func (c *Client) Enumerate(ctx context.Context, resourceURI, dialect, filter string) (wsman.EnumerationContext, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	ec, err := c.wsman.EnumerateWithFilter(ctx, resourceURI, dialect, filter)
	c.record("enumerate", err)
	return ec, err
}

// Pull fetches items of an enumeration. With recursive set it pulls until
// the sequence ends.
func (c *Client) Pull(ctx context.Context, ec wsman.EnumerationContext, resourceURI string, recursive bool) ([]*wsman.Element, wsman.EnumerationContext, error) {
	if err := c.checkOpen(); err != nil {
		return nil, "", err
	}
	items, next, err := c.wsman.Pull(ctx, ec, resourceURI, recursive)
	c.record("pull", err)
	return items, next, err
}

// EnumerateAll enumerates resourceURI with the optimized fast path and
// pulls until the sequence ends.
func (c *Client) EnumerateAll(ctx context.Context, resourceURI, dialect, filter string) ([]*wsman.Element, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	items, _, err := c.wsman.EnumerateAndPullUsingFilter(ctx, resourceURI, dialect, filter, true)
	c.record("enumerate", err)
	return items, err
}

// Close releases idle connections. Operations after Close fail with
// ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	c.security.LogConnection(SubtypeConnClosed, SeverityInfo, "close", OutcomeSuccess, nil)
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// record emits the security events implied by the outcome of one operation:
// the first authenticated exchange, every rejected one and transport
// failures.
func (c *Client) record(action string, err error) {
	if err == nil {
		c.authOnce.Do(func() {
			c.security.LogAuthentication(SubtypeAuthSuccess, SeverityInfo, action, OutcomeSuccess,
				map[string]any{"auth_scheme": c.endpoint.Auth().Scheme()})
		})
		return
	}

	switch kind := wsman.KindOf(err); {
	case kind == wsman.KindUnauthorized:
		c.security.LogAuthentication(SubtypeAuthFailure, SeverityWarning, action, OutcomeDenied,
			map[string]any{"auth_scheme": c.endpoint.Auth().Scheme()})
	case kind == wsman.KindGeneric && isTransportFailure(err):
		c.security.LogConnection(SubtypeConnFailed, SeverityError, action, OutcomeFailure,
			map[string]any{"error": err.Error()})
	}
}

func isTransportFailure(err error) bool {
	return errors.Is(err, transport.ErrConnectTimeout) ||
		errors.Is(err, transport.ErrReceiveTimeout) ||
		errors.Is(err, transport.ErrTLS)
}
