package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// maxNegotiateRetries is the maximum number of authentication attempts.
// This prevents infinite loops from malicious servers.
const maxNegotiateRetries = 5

// SecurityProvider produces the SPNEGO tokens NegotiateAuth exchanges with
// the server. Step is first called with a nil token; each 401 that carries
// a server token feeds the next call until Complete reports true.
//
// Providers need not be safe for concurrent use.
type SecurityProvider interface {
	Step(ctx context.Context, serverToken []byte) (clientToken []byte, continueNeeded bool, err error)
	Complete() bool
	Close() error
}

// NegotiateAuth implements SPNEGO authentication using a pluggable SecurityProvider.
type NegotiateAuth struct {
	provider SecurityProvider
}

// NewNegotiateAuth creates a new Negotiate authenticator.
func NewNegotiateAuth(provider SecurityProvider) *NegotiateAuth {
	return &NegotiateAuth{
		provider: provider,
	}
}

// Name returns the scheme name.
func (a *NegotiateAuth) Name() string {
	return "Negotiate"
}

// Transport wraps the base transport with Negotiate authentication logic.
func (a *NegotiateAuth) Transport(base http.RoundTripper) http.RoundTripper {
	return &negotiateRoundTripper{
		base:     base,
		provider: a.provider,
	}
}

type negotiateRoundTripper struct {
	mu       sync.Mutex
	base     http.RoundTripper
	provider SecurityProvider
}

// RoundTrip sends req with a Negotiate token and continues the handshake
// while the server answers 401 with a token of its own. A 401 without a
// token is returned to the caller unchanged.
func (rt *negotiateRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	// Buffer the request body upfront so it can be replayed.
	var bodyBytes []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	token, _, err := rt.provider.Step(req.Context(), nil)
	if err != nil {
		return nil, fmt.Errorf("negotiate step failed: %w", err)
	}

	for attempt := 0; attempt < maxNegotiateRetries; attempt++ {
		reqClone := req.Clone(req.Context())
		if bodyBytes != nil {
			reqClone.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			reqClone.ContentLength = int64(len(bodyBytes))
		}
		if len(token) > 0 {
			reqClone.Header.Set("Authorization", "Negotiate "+base64.StdEncoding.EncodeToString(token))
		}

		resp, err := rt.base.RoundTrip(reqClone)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}

		serverToken, ok := negotiateToken(resp.Header.Values("WWW-Authenticate"))
		if !ok {
			// Rejected outright.
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		token, _, err = rt.provider.Step(req.Context(), serverToken)
		if err != nil {
			return nil, fmt.Errorf("negotiate step failed: %w", err)
		}
	}

	return nil, fmt.Errorf("negotiate authentication failed after %d attempts", maxNegotiateRetries)
}

// negotiateToken extracts the decoded token of a "Negotiate <token>"
// challenge.
func negotiateToken(values []string) ([]byte, bool) {
	for _, v := range values {
		scheme, param, _ := strings.Cut(strings.TrimSpace(v), " ")
		if !strings.EqualFold(scheme, "Negotiate") {
			continue
		}
		param = strings.TrimSpace(param)
		if param == "" {
			return nil, false
		}
		tok, err := base64.StdEncoding.DecodeString(param)
		if err != nil {
			return nil, false
		}
		return tok, true
	}
	return nil, false
}
