package auth

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// KerberosConfig configures a KerberosProvider.
type KerberosConfig struct {
	// SPN is the target service principal name (e.g. "HTTP/server.domain.com").
	SPN string

	// Realm is the Kerberos realm (e.g. EXAMPLE.COM).
	Realm string

	// Krb5ConfPath is the path to krb5.conf. Defaults to $KRB5_CONFIG, then
	// /etc/krb5.conf.
	Krb5ConfPath string

	// KeytabPath selects keytab credentials (requires Credentials.Username).
	KeytabPath string

	// CCachePath selects a credential cache.
	CCachePath string

	// Credentials are used for keytab and password logins.
	Credentials *Credentials
}

// KerberosProvider implements SecurityProvider with pure Go Kerberos.
// The handshake is single-leg: the first token carries the service ticket.
type KerberosProvider struct {
	client   *client.Client
	spn      string
	spnego   *spnego.SPNEGO
	complete bool
}

// NewKerberosProvider loads krb5.conf and the selected credentials. The
// order of preference is keytab, credential cache, then password.
func NewKerberosProvider(cfg KerberosConfig) (*KerberosProvider, error) {
	if cfg.SPN == "" {
		return nil, errors.New("kerberos: service principal name is required")
	}
	if cfg.Krb5ConfPath == "" {
		cfg.Krb5ConfPath = os.Getenv("KRB5_CONFIG")
		if cfg.Krb5ConfPath == "" {
			cfg.Krb5ConfPath = "/etc/krb5.conf"
		}
	}
	conf, err := config.Load(cfg.Krb5ConfPath)
	if err != nil {
		return nil, fmt.Errorf("kerberos: load %s: %w", cfg.Krb5ConfPath, err)
	}

	// FAST is disabled for compatibility with older KDCs.
	settings := []func(*client.Settings){client.DisablePAFXFAST(true)}

	var cl *client.Client
	switch {
	case cfg.KeytabPath != "":
		if cfg.Credentials == nil || cfg.Credentials.Username == "" {
			return nil, errors.New("kerberos: keytab login requires a username")
		}
		kt, err := keytab.Load(cfg.KeytabPath)
		if err != nil {
			return nil, fmt.Errorf("kerberos: load keytab: %w", err)
		}
		cl = client.NewWithKeytab(cfg.Credentials.Username, cfg.Realm, kt, conf, settings...)
	case cfg.CCachePath != "":
		cc, err := credentials.LoadCCache(cfg.CCachePath)
		if err != nil {
			return nil, fmt.Errorf("kerberos: load ccache: %w", err)
		}
		cl, err = client.NewFromCCache(cc, conf, settings...)
		if err != nil {
			return nil, fmt.Errorf("kerberos: client from ccache: %w", err)
		}
	case cfg.Credentials != nil:
		if err := cfg.Credentials.Validate(); err != nil {
			return nil, fmt.Errorf("kerberos: %w", err)
		}
		cl = client.NewWithPassword(cfg.Credentials.Username, cfg.Realm, cfg.Credentials.Password, conf, settings...)
	default:
		return nil, errors.New("kerberos: no credentials provided (keytab, ccache, or password required)")
	}

	return &KerberosProvider{client: cl, spn: cfg.SPN}, nil
}

// Step implements SecurityProvider.
func (p *KerberosProvider) Step(_ context.Context, inputToken []byte) ([]byte, bool, error) {
	if len(inputToken) > 0 {
		return nil, false, errors.New("kerberos: server rejected the service ticket")
	}
	if p.spnego == nil {
		if err := p.client.Login(); err != nil {
			return nil, false, fmt.Errorf("kerberos login: %w", err)
		}
		p.spnego = spnego.SPNEGOClient(p.client, p.spn)
	}

	tkn, err := p.spnego.InitSecContext()
	if err != nil {
		return nil, false, fmt.Errorf("kerberos: init security context: %w", err)
	}
	token, err := tkn.Marshal()
	if err != nil {
		return nil, false, fmt.Errorf("kerberos: marshal token: %w", err)
	}
	p.complete = true
	return token, false, nil
}

// Complete implements SecurityProvider.
func (p *KerberosProvider) Complete() bool {
	return p.complete
}

// Close implements SecurityProvider.
func (p *KerberosProvider) Close() error {
	p.client.Destroy()
	return nil
}
