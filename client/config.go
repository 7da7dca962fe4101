package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"

	"github.com/smnsjas/go-wsman/wsman"
)

// AuthType specifies the authentication mechanism.
type AuthType string

const (
	// AuthNone sends requests without credentials.
	AuthNone AuthType = "none"
	// AuthBasic uses HTTP Basic authentication.
	AuthBasic AuthType = "basic"
	// AuthDigest uses HTTP Digest authentication.
	AuthDigest AuthType = "digest"
	// AuthNegotiate uses SPNEGO: Kerberos when a realm, keytab or credential
	// cache is configured, NTLM otherwise.
	AuthNegotiate AuthType = "negotiate"
)

// Config holds configuration for a WSMan client. The struct tags double as
// the keys of the command line config file.
type Config struct {
	// Port is the WSMan port. Zero selects 5985 for HTTP and 5986 for HTTPS.
	Port int `mapstructure:"port" yaml:"port"`

	// Path is the URL path of the WSMan service.
	Path string `mapstructure:"path" yaml:"path" default:"/wsman"`

	// UseTLS enables HTTPS transport.
	UseTLS bool `mapstructure:"tls" yaml:"tls"`

	// InsecureSkipVerify skips TLS certificate and host name verification.
	// WARNING: Only use for testing.
	InsecureSkipVerify bool `mapstructure:"insecure" yaml:"insecure"`

	// Timeout bounds each HTTP exchange as a whole.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" default:"60s"`

	// ConnectionTimeout bounds connection setup. Zero means no limit.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" yaml:"connection_timeout"`

	// ReceiveTimeout bounds the wait for a response and is advertised to the
	// server as the operation timeout. Zero means no limit.
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout" yaml:"receive_timeout"`

	// Version is the WS-Management protocol version, "1.0" or "1.2".
	Version string `mapstructure:"version" yaml:"version" default:"1.2"`

	// MaxElements caps the items per Enumerate/Pull response.
	MaxElements int `mapstructure:"max_elements" yaml:"max_elements" default:"100"`

	// MaxEnvelopeSize caps the response envelope size in bytes. Zero leaves
	// it to the server.
	MaxEnvelopeSize int `mapstructure:"max_envelope_size" yaml:"max_envelope_size"`

	// AuthType specifies the authentication type.
	AuthType AuthType `mapstructure:"auth" yaml:"auth" default:"basic"`

	// Username for authentication.
	Username string `mapstructure:"username" yaml:"username"`

	// Password for authentication.
	Password string `mapstructure:"password" yaml:"-"`

	// Domain for NTLM authentication.
	Domain string `mapstructure:"domain" yaml:"domain"`

	// Realm, Krb5Conf, Keytab, CCache and SPN configure Kerberos.
	Realm    string `mapstructure:"realm" yaml:"realm"`
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf"`
	Keytab   string `mapstructure:"keytab" yaml:"keytab"`
	CCache   string `mapstructure:"ccache" yaml:"ccache"`
	SPN      string `mapstructure:"spn" yaml:"spn"`

	// Proxy is a proxy URL. Empty uses the environment, "direct" disables
	// proxying.
	Proxy string `mapstructure:"proxy" yaml:"proxy"`

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`

	// RateBurst is the burst allowed above RateLimit.
	RateBurst int `mapstructure:"rate_burst" yaml:"rate_burst" default:"1"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	var cfg Config
	// Set only fails for non-pointer arguments.
	_ = defaults.Set(&cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field that has a default.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply config defaults: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.AuthType {
	case AuthNone, AuthNegotiate:
	case AuthBasic, AuthDigest:
		if c.Username == "" {
			return errors.New("username is required")
		}
		if c.Password == "" {
			return errors.New("password is required")
		}
	default:
		return fmt.Errorf("unknown auth type %q", c.AuthType)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Version != string(wsman.Version10) && c.Version != string(wsman.Version12) {
		return fmt.Errorf("unsupported protocol version %q", c.Version)
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must be non-negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// EndpointURL builds the service URL for hostname. A hostname that already
// is an http or https URL is returned unchanged.
func (c *Config) EndpointURL(hostname string) string {
	if strings.HasPrefix(hostname, "http://") || strings.HasPrefix(hostname, "https://") {
		return hostname
	}
	scheme, port := "http", 5985
	if c.UseTLS {
		scheme, port = "https", 5986
	}
	if c.Port != 0 {
		port = c.Port
	}
	path := c.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(hostname, strconv.Itoa(port)), path)
}

// endpointOptions maps the configuration onto wsman endpoint options.
func (c *Config) endpointOptions() []wsman.EndpointOption {
	opts := []wsman.EndpointOption{
		wsman.WithStrictSSL(!c.InsecureSkipVerify),
		wsman.WithVersion(wsman.Version(c.Version)),
		wsman.WithMaxElements(c.MaxElements),
		wsman.WithConnectionTimeout(c.ConnectionTimeout),
		wsman.WithReceiveTimeout(c.ReceiveTimeout),
	}
	if c.MaxEnvelopeSize != 0 {
		opts = append(opts, wsman.WithMaxEnvelopeSize(c.MaxEnvelopeSize))
	}
	switch c.AuthType {
	case AuthBasic:
		opts = append(opts, wsman.WithBasicAuth(c.Username, c.Password))
	case AuthDigest:
		opts = append(opts, wsman.WithDigestAuth(c.Username, c.Password))
	case AuthNegotiate:
		opts = append(opts, wsman.WithNegotiateAuth(wsman.NegotiateAuth{
			Username:     c.Username,
			Password:     c.Password,
			Domain:       c.Domain,
			Realm:        c.Realm,
			Krb5ConfPath: c.Krb5Conf,
			KeytabPath:   c.Keytab,
			CCachePath:   c.CCache,
			SPN:          c.SPN,
		}))
	}
	return opts
}

// LogValue implements slog.LogValuer and never logs the password.
func (c Config) LogValue() slog.Value {
	password := ""
	if c.Password != "" {
		password = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("auth", string(c.AuthType)),
		slog.String("username", c.Username),
		slog.String("password", password),
		slog.String("domain", c.Domain),
		slog.String("realm", c.Realm),
		slog.Int("port", c.Port),
		slog.Bool("tls", c.UseTLS),
		slog.Bool("insecure", c.InsecureSkipVerify),
		slog.String("version", c.Version),
	)
}
