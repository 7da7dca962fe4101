// Package transport provides HTTP/TLS transport for WSMan communication.
//
// The transport layer handles:
//   - HTTP/HTTPS connections, proxies and TLS configuration
//   - Connect and receive timeouts, reported as ErrConnectTimeout and
//     ErrReceiveTimeout
//   - Pluggable authentication through Authenticator
//   - Optional client side rate limiting
//
// Post returns the response body for 2xx responses and a *StatusError
// carrying the body otherwise, so callers can still parse SOAP faults.
package transport
