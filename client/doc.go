// Package client provides a high-level convenience API for WS-Management.
//
// It builds the endpoint, authentication and HTTP transport from a single
// Config and records security events for authentication outcomes and
// state-changing operations. Use the wsman package directly for full
// control over the protocol.
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
package client
