package auth

import (
	"errors"
	"fmt"

	"github.com/smnsjas/go-wsman/wsman"
)

// FromEndpoint returns the Authenticator for the endpoint's auth mode, or
// nil for wsman.NoAuth.
//
// Negotiate uses Kerberos when a realm, keytab or credential cache is
// configured and NTLM otherwise. The Kerberos SPN defaults to HTTP/<host>.
func FromEndpoint(ep *wsman.Endpoint) (Authenticator, error) {
	switch a := ep.Auth().(type) {
	case wsman.NoAuth:
		return nil, nil
	case wsman.BasicAuth:
		return NewBasicAuth(Credentials{Username: a.Username, Password: a.Password}), nil
	case wsman.DigestAuth:
		return NewDigestAuth(Credentials{Username: a.Username, Password: a.Password}), nil
	case wsman.NegotiateAuth:
		return negotiateFor(ep, a)
	default:
		return nil, fmt.Errorf("auth: unsupported scheme %q", ep.Auth().Scheme())
	}
}

func negotiateFor(ep *wsman.Endpoint, a wsman.NegotiateAuth) (Authenticator, error) {
	creds := &Credentials{Username: a.Username, Password: a.Password, Domain: a.Domain}

	if a.Realm == "" && a.KeytabPath == "" && a.CCachePath == "" {
		if err := creds.Validate(); err != nil {
			return nil, fmt.Errorf("auth: negotiate without kerberos configuration falls back to NTLM: %w", err)
		}
		return NewNTLMAuth(*creds), nil
	}

	spn := a.SPN
	if spn == "" {
		if ep.Host() == "" {
			return nil, errors.New("auth: cannot derive SPN from endpoint without host")
		}
		spn = "HTTP/" + ep.Host()
	}
	cfg := KerberosConfig{
		SPN:          spn,
		Realm:        a.Realm,
		Krb5ConfPath: a.Krb5ConfPath,
		KeytabPath:   a.KeytabPath,
		CCachePath:   a.CCachePath,
	}
	if a.Username != "" || a.Password != "" {
		cfg.Credentials = creds
	}
	provider, err := NewKerberosProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewNegotiateAuth(provider), nil
}
