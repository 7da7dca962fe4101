package wsman

import (
	"fmt"
	"net/url"
	"time"
)

// Version is a WS-Management protocol version.
type Version string

const (
	// Version10 is WS-Management 1.0 (legacy 2004/08 WS-Addressing).
	Version10 Version = "1.0"

	// Version12 is WS-Management 1.2 (W3C WS-Addressing).
	Version12 Version = "1.2"
)

// Auth is the authentication mode of an endpoint. It is one of NoAuth,
// BasicAuth, DigestAuth or NegotiateAuth.
type Auth interface {
	// Scheme returns the authentication scheme name.
	Scheme() string

	isAuth()
}

// NoAuth sends requests without credentials.
type NoAuth struct{}

// BasicAuth uses HTTP Basic authentication.
type BasicAuth struct {
	Username string
	Password string
}

// DigestAuth uses HTTP Digest authentication.
type DigestAuth struct {
	Username string
	Password string
}

// NegotiateAuth uses SPNEGO (Kerberos, with NTLM fallback when no Kerberos
// configuration is available). All fields are optional.
type NegotiateAuth struct {
	Username string
	Password string
	Domain   string

	// Realm is the Kerberos realm.
	Realm string

	// Krb5ConfPath overrides KRB5_CONFIG and /etc/krb5.conf.
	Krb5ConfPath string

	// KeytabPath selects keytab credentials.
	KeytabPath string

	// CCachePath selects a credential cache.
	CCachePath string

	// SPN overrides the service principal name (default HTTP/<host>).
	SPN string
}

func (NoAuth) Scheme() string        { return "none" }
func (BasicAuth) Scheme() string     { return "basic" }
func (DigestAuth) Scheme() string    { return "digest" }
func (NegotiateAuth) Scheme() string { return "negotiate" }

func (NoAuth) isAuth()        {}
func (BasicAuth) isAuth()     {}
func (DigestAuth) isAuth()    {}
func (NegotiateAuth) isAuth() {}

// Endpoint holds validated connection and protocol parameters for a
// WS-Management target. It is immutable once built and safe for concurrent
// reads.
type Endpoint struct {
	url               *url.URL
	auth              Auth
	strictSSL         bool
	version           Version
	maxElements       int
	maxEnvelopeSize   int
	connectionTimeout time.Duration
	receiveTimeout    time.Duration
}

// EndpointOption configures an Endpoint under construction.
type EndpointOption func(*endpointBuilder)

type endpointBuilder struct {
	basic     *BasicAuth
	digest    *DigestAuth
	lastPlain string
	negotiate *NegotiateAuth

	strictSSL         bool
	version           Version
	maxElements       int
	maxEnvelopeSize   int
	connectionTimeout time.Duration
	receiveTimeout    time.Duration
	errs              []error
}

// WithBasicAuth selects HTTP Basic authentication.
func WithBasicAuth(username, password string) EndpointOption {
	return func(b *endpointBuilder) {
		b.basic = &BasicAuth{Username: username, Password: password}
		b.lastPlain = "basic"
	}
}

// WithDigestAuth selects HTTP Digest authentication.
func WithDigestAuth(username, password string) EndpointOption {
	return func(b *endpointBuilder) {
		b.digest = &DigestAuth{Username: username, Password: password}
		b.lastPlain = "digest"
	}
}

// WithNegotiateAuth selects SPNEGO authentication. It takes precedence over
// Basic and Digest regardless of option order.
func WithNegotiateAuth(cfg NegotiateAuth) EndpointOption {
	return func(b *endpointBuilder) {
		b.negotiate = &cfg
	}
}

// WithStrictSSL controls certificate and hostname verification (default true).
func WithStrictSSL(strict bool) EndpointOption {
	return func(b *endpointBuilder) {
		b.strictSSL = strict
	}
}

// WithVersion sets the protocol version (default Version12).
func WithVersion(v Version) EndpointOption {
	return func(b *endpointBuilder) {
		if v != Version10 && v != Version12 {
			b.errs = append(b.errs, fmt.Errorf("unsupported protocol version %q", v))
			return
		}
		b.version = v
	}
}

// WithMaxElements caps the number of items per Enumerate/Pull response.
func WithMaxElements(n int) EndpointOption {
	return func(b *endpointBuilder) {
		if n < 1 {
			b.errs = append(b.errs, fmt.Errorf("maxElements must be strictly positive"))
			return
		}
		b.maxElements = n
	}
}

// WithMaxEnvelopeSize caps the response envelope size in bytes.
func WithMaxEnvelopeSize(n int) EndpointOption {
	return func(b *endpointBuilder) {
		if n < 1 {
			b.errs = append(b.errs, fmt.Errorf("maxEnvelopeSize must be strictly positive"))
			return
		}
		b.maxEnvelopeSize = n
	}
}

// WithConnectionTimeout bounds connection establishment, including the TLS
// handshake. Zero means no timeout.
func WithConnectionTimeout(d time.Duration) EndpointOption {
	return func(b *endpointBuilder) {
		if d < 0 {
			b.errs = append(b.errs, fmt.Errorf("connectionTimeout must be non-negative"))
			return
		}
		b.connectionTimeout = d
	}
}

// WithReceiveTimeout bounds the wait for a response. Zero means no timeout.
func WithReceiveTimeout(d time.Duration) EndpointOption {
	return func(b *endpointBuilder) {
		if d < 0 {
			b.errs = append(b.errs, fmt.Errorf("receiveTimeout must be non-negative"))
			return
		}
		b.receiveTimeout = d
	}
}

// NewEndpoint validates rawURL and opts and returns an immutable Endpoint.
// All validation happens here; a returned Endpoint is always usable.
func NewEndpoint(rawURL string, opts ...EndpointOption) (*Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError(KindGeneric, "invalid endpoint url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, newError(KindGeneric, fmt.Sprintf("endpoint url %q must be an absolute http or https url", rawURL), nil)
	}

	b := &endpointBuilder{strictSSL: true, version: Version12}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errs) > 0 {
		return nil, newError(KindGeneric, b.errs[0].Error(), nil)
	}

	var a Auth = NoAuth{}
	switch {
	case b.negotiate != nil:
		a = *b.negotiate
	case b.lastPlain == "basic":
		if b.basic.Username == "" || b.basic.Password == "" {
			return nil, newError(KindGeneric, "basic authentication requires a username and password", nil)
		}
		a = *b.basic
	case b.lastPlain == "digest":
		if b.digest.Username == "" || b.digest.Password == "" {
			return nil, newError(KindGeneric, "digest authentication requires a username and password", nil)
		}
		a = *b.digest
	}

	return &Endpoint{
		url:               u,
		auth:              a,
		strictSSL:         b.strictSSL,
		version:           b.version,
		maxElements:       b.maxElements,
		maxEnvelopeSize:   b.maxEnvelopeSize,
		connectionTimeout: b.connectionTimeout,
		receiveTimeout:    b.receiveTimeout,
	}, nil
}

// URL returns the endpoint URL as a string.
func (e *Endpoint) URL() string { return e.url.String() }

// Host returns the endpoint host name without port.
func (e *Endpoint) Host() string { return e.url.Hostname() }

// Auth returns the authentication mode.
func (e *Endpoint) Auth() Auth { return e.auth }

// StrictSSL reports whether certificates and host names are verified.
func (e *Endpoint) StrictSSL() bool { return e.strictSSL }

// Version returns the protocol version.
func (e *Endpoint) Version() Version { return e.version }

// MaxElements returns the per-response item cap, or 0 when unset.
func (e *Endpoint) MaxElements() int { return e.maxElements }

// MaxEnvelopeSize returns the envelope size cap, or 0 when unset.
func (e *Endpoint) MaxEnvelopeSize() int { return e.maxEnvelopeSize }

// ConnectionTimeout returns the connection timeout, or 0 when unset.
func (e *Endpoint) ConnectionTimeout() time.Duration { return e.connectionTimeout }

// ReceiveTimeout returns the receive timeout, or 0 when unset.
func (e *Endpoint) ReceiveTimeout() time.Duration { return e.receiveTimeout }

// String returns a description of the endpoint without credentials.
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s (wsman %s, auth %s)", e.url.Redacted(), e.version, e.auth.Scheme())
}
