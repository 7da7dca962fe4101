package auth

import (
	"net/http"

	"github.com/Azure/go-ntlmssp"
)

// NTLMAuth implements NTLM through github.com/Azure/go-ntlmssp. It answers
// both NTLM and Negotiate challenges, which is what WinRM offers to hosts
// outside a Kerberos realm.
type NTLMAuth struct {
	header string
}

// NewNTLMAuth creates an NTLM authenticator for creds.
func NewNTLMAuth(creds Credentials) *NTLMAuth {
	return &NTLMAuth{header: basicHeader(creds.Principal(), creds.Password)}
}

// Name returns "NTLM".
func (a *NTLMAuth) Name() string {
	return "NTLM"
}

// Transport wraps base with the NTLM handshake. ntlmssp.Negotiator takes
// the account from a Basic header on the request it is given and replaces
// it with the NTLM messages, so nothing leaves the process as Basic.
func (a *NTLMAuth) Transport(base http.RoundTripper) http.RoundTripper {
	return &headerRoundTripper{
		base:  ntlmssp.Negotiator{RoundTripper: base},
		value: a.header,
	}
}
