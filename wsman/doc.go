// Package wsman implements a WS-Management (WSMan) client for querying
// management endpoints such as WinRM, iDRAC and openwsman.
//
// The package handles SOAP envelope construction, WS-Addressing headers,
// response parsing and error classification for the following operations:
//
//   - Identify: discover the protocol versions and product of a service
//   - Get: retrieve a single resource (WS-Transfer)
//   - Put: replace a single resource (WS-Transfer)
//   - Enumerate: start an enumeration, optionally filtered (WS-Enumeration)
//   - Pull: fetch the next batch of an enumeration (WS-Enumeration)
//
// # Subpackages
//
//   - auth: Authentication handlers (Basic, Digest, NTLM, Kerberos)
//   - transport: HTTP/TLS transport layer
//
// # Protocol versions
//
// Envelopes are built with W3C WS-Addressing headers. Endpoints configured
// for WS-Management 1.0 receive the same envelope rewritten to the
// 2004/08 addressing namespace.
//
// # Errors
//
// Every failure is an *Error with one of the kinds in ErrorKind. Use
// errors.Is with the sentinel errors (ErrUnauthorized, ErrSOAPFault and so
// on) or KindOf to branch on the classification. SOAP faults are attached
// as *Fault.
//
// # Usage
//
//	ep, err := wsman.NewEndpoint("https://idrac.example.com/wsman",
//		wsman.WithBasicAuth("root", "calvin"),
//		wsman.WithMaxElements(100))
//	if err != nil {
//		return err
//	}
//	c := wsman.NewClient(ep, transport.NewHTTPTransport())
//	items, _, err := c.EnumerateAndPullUsingFilter(ctx, wsman.ResourceURIAllClasses,
//		wsman.DialectWQL, "select * from DCIM_PowerSupplyView", true)
package wsman
