package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smnsjas/go-wsman/wsman"
)

func (a *app) identifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "identify",
		Short: "Query the service identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.printer()
			if err != nil {
				return err
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			id, err := c.Identify(cmd.Context())
			if err != nil {
				return err
			}
			return p.identity(id)
		},
	}
}

// selectorFlags parses repeated -s name=value flags.
func selectorFlags(raw []string) (wsman.Selectors, error) {
	sels := make(wsman.Selectors, 0, len(raw))
	for _, s := range raw {
		sel, err := wsman.ParseSelector(s)
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	if err := sels.Validate(); err != nil {
		return nil, err
	}
	return sels, nil
}

func (a *app) getCommand() *cobra.Command {
	var selectors []string
	cmd := &cobra.Command{
		Use:   "get <resource-uri>",
		Short: "Retrieve one resource instance (WS-Transfer Get)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := selectorFlags(selectors)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			el, err := c.Get(cmd.Context(), args[0], sels)
			if err != nil {
				return err
			}
			return p.elements(el)
		},
	}
	cmd.Flags().StringArrayVarP(&selectors, "selector", "s", nil, "selector as name=value (repeatable)")
	return cmd
}

func (a *app) putCommand() *cobra.Command {
	var (
		selectors []string
		bodyFile  string
	)
	cmd := &cobra.Command{
		Use:   "put <resource-uri>",
		Short: "Replace one resource instance (WS-Transfer Put)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sels, err := selectorFlags(selectors)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(bodyFile)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			body, err := wsman.ParseElement(data)
			if err != nil {
				return fmt.Errorf("parse body: %w", err)
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Put(cmd.Context(), args[0], body, sels)
		},
	}
	cmd.Flags().StringArrayVarP(&selectors, "selector", "s", nil, "selector as name=value (repeatable)")
	cmd.Flags().StringVar(&bodyFile, "body", "", "XML file holding the new resource representation")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func (a *app) enumCommand() *cobra.Command {
	var (
		dialect     string
		filter      string
		contextOnly bool
	)
	cmd := &cobra.Command{
		Use:   "enum [resource-uri]",
		Short: "Enumerate resource instances (WS-Enumeration)",
		Long: `enum enumerates the instances of a resource URI, pulling until the
sequence ends. The resource URI defaults to all CIM classes, which needs a
filter on most services. With --context-only the enumeration context is
printed instead, for use with the pull command.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := wsman.ResourceURIAllClasses
			if len(args) == 1 {
				uri = args[0]
			}
			if filter != "" && dialect == "" {
				dialect = wsman.DialectWQL
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			if contextOnly {
				ec, err := c.Enumerate(cmd.Context(), uri, dialect, filter)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, ec)
				return nil
			}

			items, err := c.EnumerateAll(cmd.Context(), uri, dialect, filter)
			if err != nil {
				return err
			}
			return p.elements(items...)
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "", "filter dialect URI (default WQL when --filter is set)")
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression")
	cmd.Flags().BoolVar(&contextOnly, "context-only", false, "print the enumeration context without pulling")
	return cmd
}

func (a *app) pullCommand() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "pull <context> [resource-uri]",
		Short: "Pull items of an open enumeration (WS-Enumeration Pull)",
		Long: `pull fetches the next items of an enumeration started with
"enum --context-only". Without --recursive a single Pull is sent and the
next context, if any, is printed to stderr.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := wsman.ResourceURIAllClasses
			if len(args) == 2 {
				uri = args[1]
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			defer c.Close()

			items, next, err := c.Pull(cmd.Context(), wsman.EnumerationContext(args[0]), uri, recursive)
			if err != nil {
				return err
			}
			if !next.Terminal() {
				fmt.Fprintln(a.errOut, "context:", next)
			}
			return p.elements(items...)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "pull until the sequence ends")
	return cmd
}
