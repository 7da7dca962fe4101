package wsman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smnsjas/go-wsman/wsman/transport"
)

// LevelTrace is the slog level at which every request and response
// envelope is logged in full.
const LevelTrace = slog.LevelDebug - 4

// Transport sends a SOAP request body to url and returns the response body.
// Non-2xx responses are reported as *transport.StatusError so that faults
// carried by error responses can still be classified.
type Transport interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
}

// Client is a WS-Management protocol client bound to one endpoint.
//
// A Client holds no per-operation state and may be used by multiple
// goroutines. Each operation is a blocking round trip, or a strictly
// sequential chain of round trips for recursive pulls. No operation is
// retried.
type Client struct {
	endpoint  *Endpoint
	transport Transport
	logger    *slog.Logger
	metrics   *Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for request tracing. Operations are logged at
// debug level, whole envelopes at LevelTrace.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new WSMan client.
func NewClient(ep *Endpoint, tr Transport, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:  ep,
		transport: tr,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the endpoint the client talks to.
func (c *Client) Endpoint() *Endpoint {
	return c.endpoint
}

// Identify issues a DSP0226 Identify request.
func (c *Client) Identify(ctx context.Context) (*Identity, error) {
	body, err := c.roundTrip(ctx, OpIdentify, RequestParams{})
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	id, err := ParseIdentity(body)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	return id, nil
}

// Get retrieves the resource identified by resourceURI and selectors. The
// returned element is renamed to {resourceURI}<last path segment>.
func (c *Client) Get(ctx context.Context, resourceURI string, selectors Selectors) (*Element, error) {
	body, err := c.roundTrip(ctx, OpGet, RequestParams{ResourceURI: resourceURI, Selectors: selectors})
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	el, err := TransferElement(body, resourceURI)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return el, nil
}

// Put replaces the resource identified by resourceURI and selectors with
// body. The response is only checked for faults.
func (c *Client) Put(ctx context.Context, resourceURI string, body *Element, selectors Selectors) error {
	if _, err := c.roundTrip(ctx, OpPut, RequestParams{ResourceURI: resourceURI, Selectors: selectors, Body: body}); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

// Enumerate starts an enumeration and returns its context.
func (c *Client) Enumerate(ctx context.Context, resourceURI string) (EnumerationContext, error) {
	return c.EnumerateWithFilter(ctx, resourceURI, "", "")
}

// EnumerateWithFilter starts a filtered enumeration and returns its context.
func (c *Client) EnumerateWithFilter(ctx context.Context, resourceURI, dialect, filter string) (EnumerationContext, error) {
	res, err := c.StartEnumeration(ctx, resourceURI, dialect, filter, false)
	if err != nil {
		return "", err
	}
	return res.Context, nil
}

// StartEnumeration issues one Enumerate request. With optimized set the
// server may return the first items inline; when the returned context is
// terminal no Pull is needed.
func (c *Client) StartEnumeration(ctx context.Context, resourceURI, dialect, filter string, optimized bool) (Items, error) {
	body, err := c.roundTrip(ctx, OpEnumerate, RequestParams{
		ResourceURI: resourceURI,
		Dialect:     dialect,
		Filter:      filter,
		Optimize:    optimized,
	})
	if err != nil {
		return Items{}, fmt.Errorf("enumerate: %w", err)
	}
	res, err := EnumerateItems(body)
	if err != nil {
		return Items{}, fmt.Errorf("enumerate: %w", err)
	}
	c.metrics.addItems(OpEnumerate, len(res.Elements))
	c.logger.Debug("enumeration started",
		"resource_uri", resourceURI,
		"items", len(res.Elements),
		"end_of_sequence", res.EndOfSequence,
		"context", string(res.Context))
	return res, nil
}

// Pull retrieves items for enumeration context ec. With recursive set it
// keeps pulling until EndOfSequence; otherwise it issues a single Pull.
// It returns the accumulated items and the latest context, which is
// terminal once the sequence has ended.
//
// There is no overall deadline for a recursive chain beyond ctx.
func (c *Client) Pull(ctx context.Context, ec EnumerationContext, resourceURI string, recursive bool) ([]*Element, EnumerationContext, error) {
	var items []*Element
	for {
		body, err := c.roundTrip(ctx, OpPull, RequestParams{ResourceURI: resourceURI, Context: ec})
		if err != nil {
			return nil, "", fmt.Errorf("pull: %w", err)
		}
		res, err := PullItems(body)
		if err != nil {
			return nil, "", fmt.Errorf("pull: %w", err)
		}
		c.metrics.addItems(OpPull, len(res.Elements))
		c.logger.Debug("pulled items",
			"resource_uri", resourceURI,
			"items", len(res.Elements),
			"end_of_sequence", res.EndOfSequence)

		items = append(items, res.Elements...)
		ec = res.Context
		if !recursive || ec.Terminal() {
			return items, ec, nil
		}
	}
}

// EnumerateAndPull enumerates resourceURI using the optimized fast path and
// pulls the remaining items if the sequence did not end inline.
func (c *Client) EnumerateAndPull(ctx context.Context, resourceURI string, recursive bool) ([]*Element, EnumerationContext, error) {
	return c.EnumerateAndPullUsingFilter(ctx, resourceURI, "", "", recursive)
}

// EnumerateAndPullUsingFilter is EnumerateAndPull with a filter.
func (c *Client) EnumerateAndPullUsingFilter(ctx context.Context, resourceURI, dialect, filter string, recursive bool) ([]*Element, EnumerationContext, error) {
	res, err := c.StartEnumeration(ctx, resourceURI, dialect, filter, true)
	if err != nil {
		return nil, "", err
	}
	if res.Context.Terminal() {
		return res.Elements, "", nil
	}

	more, next, err := c.Pull(ctx, res.Context, resourceURI, recursive)
	if err != nil {
		return nil, "", err
	}
	return append(res.Elements, more...), next, nil
}

// roundTrip builds, sends and classifies one request and returns the SOAP
// body of a successful response.
func (c *Client) roundTrip(ctx context.Context, op Operation, p RequestParams) (*Element, error) {
	start := time.Now()

	req, err := BuildRequest(op, c.endpoint, p)
	if err != nil {
		return nil, err
	}
	data, err := req.Marshal()
	if err != nil {
		return nil, newError(KindGeneric, "marshal envelope", err)
	}

	c.logger.Debug("wsman request",
		"operation", op.String(),
		"endpoint", c.endpoint.URL(),
		"resource_uri", p.ResourceURI,
		"bytes", len(data))
	c.trace(ctx, "wsman request envelope", op, data)

	respBody, postErr := c.transport.Post(ctx, c.endpoint.URL(), data)
	c.trace(ctx, "wsman response envelope", op, responseBody(respBody, postErr))
	env, err := classify(respBody, postErr)
	c.metrics.observe(op, err, time.Since(start))
	if err != nil {
		c.logger.Debug("wsman request failed",
			"operation", op.String(),
			"kind", KindOf(err).String(),
			"error", err)
		return nil, err
	}

	body := env.Child("Body", NsSoap)
	if body == nil {
		return nil, parseErrorf("%s: response has no SOAP Body", op)
	}
	return body, nil
}

func (c *Client) trace(ctx context.Context, msg string, op Operation, envelope []byte) {
	if len(envelope) == 0 || !c.logger.Enabled(ctx, LevelTrace) {
		return
	}
	c.logger.Log(ctx, LevelTrace, msg, "operation", op.String(), "envelope", string(envelope))
}

// responseBody returns the body the server sent, including the body of a
// non-2xx response.
func responseBody(body []byte, err error) []byte {
	var se *transport.StatusError
	if errors.As(err, &se) {
		return se.Body
	}
	return body
}
