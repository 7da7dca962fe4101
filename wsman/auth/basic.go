package auth

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
)

// BasicAuth implements HTTP Basic authentication. WinRM only accepts it
// over HTTPS unless AllowUnencrypted is set on the service; iDRAC and most
// other BMCs require it.
type BasicAuth struct {
	header string
}

// NewBasicAuth builds the Authorization header for creds once. The domain,
// if any, is folded into the user name.
func NewBasicAuth(creds Credentials) *BasicAuth {
	return &BasicAuth{header: basicHeader(creds.Principal(), creds.Password)}
}

// Name returns "Basic".
func (a *BasicAuth) Name() string {
	return "Basic"
}

// Transport sets the Basic header on every request and warns once when it
// is about to be sent in clear text.
func (a *BasicAuth) Transport(base http.RoundTripper) http.RoundTripper {
	return &headerRoundTripper{base: base, value: a.header, warnPlaintext: true}
}

func basicHeader(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// headerRoundTripper sets a fixed Authorization header on a clone of each
// request.
type headerRoundTripper struct {
	base          http.RoundTripper
	value         string
	warnPlaintext bool
	warnOnce      sync.Once
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.warnPlaintext && req.URL.Scheme != "https" {
		rt.warnOnce.Do(func() {
			slog.Warn("sending basic credentials without TLS", "host", req.URL.Host)
		})
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", rt.value)
	return rt.base.RoundTrip(out)
}
