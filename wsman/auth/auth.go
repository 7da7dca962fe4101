package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// ErrIncompleteCredentials is returned by Credentials.Validate.
var ErrIncompleteCredentials = errors.New("auth: incomplete credentials")

// Authenticator wraps the WS-Management HTTP transport with one
// authentication scheme. It satisfies transport.Authenticator.
type Authenticator interface {
	Transport(base http.RoundTripper) http.RoundTripper
	Name() string
}

// Credentials is the account a WS-Management request is made as.
type Credentials struct {
	Username string
	Password string

	// Domain qualifies Username for NTLM, producing DOMAIN\user.
	Domain string
}

// Principal returns the account name in the form the scheme expects on the
// wire: DOMAIN\user when a domain is set, the bare user name otherwise.
// A user name that is already qualified (DOMAIN\user or user@realm) is
// returned unchanged.
func (c Credentials) Principal() string {
	if c.Domain == "" || strings.ContainsAny(c.Username, `\@`) {
		return c.Username
	}
	return c.Domain + `\` + c.Username
}

// Validate reports the first missing field as an ErrIncompleteCredentials.
func (c Credentials) Validate() error {
	switch {
	case c.Username == "":
		return fmt.Errorf("%w: username is required", ErrIncompleteCredentials)
	case c.Password == "":
		return fmt.Errorf("%w: password is required for %s", ErrIncompleteCredentials, c.Principal())
	}
	return nil
}

// LogValue implements slog.LogValuer. The password is never emitted, only
// whether one was supplied.
func (c Credentials) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("principal", c.Principal())}
	if c.Password != "" {
		attrs = append(attrs, slog.String("password", "[REDACTED]"))
	}
	return slog.GroupValue(attrs...)
}
