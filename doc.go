// Package gowsman provides a WS-Management (DMTF DSP0226) client for
// managing Windows hosts over WinRM, Dell iDRAC and other BMCs, and any
// Openwsman based service.
//
// The module covers the management operations most callers need:
//   - Identify to discover the service and its protocol version
//   - WS-Transfer Get and Put on single resource instances
//   - WS-Enumeration Enumerate and Pull, including optimized enumeration
//
// # Architecture
//
// The library is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  cmd/wsman        Command line client                   │
//	├─────────────────────────────────────────────────────────┤
//	│  client/          Config, auth wiring, security events  │
//	├─────────────────────────────────────────────────────────┤
//	│  wsman/           Envelopes, responses, errors, client  │
//	├──────────────────────────────┬──────────────────────────┤
//	│  wsman/transport  HTTP(S)    │  wsman/auth  Basic,      │
//	│                              │  Digest, NTLM, Kerberos  │
//	└──────────────────────────────┴──────────────────────────┘
//
// # Quick Start
//
//	cfg := client.DefaultConfig()
//	cfg.Username = "root"
//	cfg.Password = "calvin"
//	cfg.UseTLS = true
//
//	c, err := client.New("idrac.example.com", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	items, err := c.EnumerateAll(ctx, wsman.ResourceURIAllClasses,
//	    wsman.DialectWQL, "select * from DCIM_PowerSupplyView")
package gowsman
