package auth

import (
	"net/http"

	"github.com/icholy/digest"
)

// DigestAuth implements HTTP Digest authentication (RFC 7616).
type DigestAuth struct {
	creds Credentials
}

// NewDigestAuth creates a new Digest authentication handler.
func NewDigestAuth(creds Credentials) *DigestAuth {
	return &DigestAuth{creds: creds}
}

// Name returns the authentication scheme name.
func (a *DigestAuth) Name() string {
	return "Digest"
}

// Transport wraps an http.RoundTripper with Digest authentication. The
// first request is answered with a challenge that is cached for later
// requests.
func (a *DigestAuth) Transport(base http.RoundTripper) http.RoundTripper {
	return &digest.Transport{
		Username:  a.creds.Username,
		Password:  a.creds.Password,
		Transport: base,
	}
}
