// Package auth provides authentication handlers for WSMan connections.
//
// # Supported Authentication Methods
//
//   - Basic: HTTP Basic authentication (use only over TLS)
//   - Digest: HTTP Digest authentication (via github.com/icholy/digest)
//   - NTLM: NT LAN Manager authentication (via github.com/Azure/go-ntlmssp)
//   - Negotiate: SPNEGO driven by a SecurityProvider, with a pure Go
//     Kerberos provider (via github.com/jcmturner/gokrb5/v8)
//
// Every handler implements Authenticator and wraps an http.RoundTripper,
// so it plugs into transport.WithAuthenticator.
//
// # Usage
//
// Digest authentication:
//
//	a := auth.NewDigestAuth(auth.Credentials{Username: "root", Password: "calvin"})
//	tr := transport.NewHTTPTransport(transport.WithAuthenticator(a))
//
// Kerberos with credential cache (after kinit):
//
//	provider, _ := auth.NewKerberosProvider(auth.KerberosConfig{
//	    SPN:          "HTTP/server.domain.com",
//	    CCachePath:   "/tmp/krb5cc_1000",
//	    Krb5ConfPath: "/etc/krb5.conf",
//	})
//	a := auth.NewNegotiateAuth(provider)
package auth
