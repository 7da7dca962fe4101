package main

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/smnsjas/go-wsman/wsman"
)

// Output formats.
const (
	formatText = "text"
	formatYAML = "yaml"
	formatXML  = "xml"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatText, formatYAML, formatXML:
		return &printer{w: w, format: format}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, yaml or xml)", format)
	}
}

type identityView struct {
	ProtocolVersions []string `yaml:"protocol_versions"`
	ProductVendor    string   `yaml:"product_vendor,omitempty"`
	ProductVersion   string   `yaml:"product_version,omitempty"`
}

func (p *printer) identity(id *wsman.Identity) error {
	switch p.format {
	case formatYAML:
		return p.yaml(identityView{
			ProtocolVersions: id.ProtocolVersions,
			ProductVendor:    id.ProductVendor,
			ProductVersion:   id.ProductVersion,
		})
	default:
		for _, v := range id.ProtocolVersions {
			fmt.Fprintf(p.w, "Protocol version: %s\n", v)
		}
		fmt.Fprintf(p.w, "Product vendor:   %s\n", id.ProductVendor)
		fmt.Fprintf(p.w, "Product version:  %s\n", id.ProductVersion)
		return nil
	}
}

// elementView is the YAML form of an element.
type elementView struct {
	Name       string            `yaml:"name"`
	Namespace  string            `yaml:"namespace,omitempty"`
	Nil        bool              `yaml:"nil,omitempty"`
	Text       string            `yaml:"text,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
	Children   []elementView     `yaml:"children,omitempty"`
}

func viewOf(e *wsman.Element) elementView {
	v := elementView{
		Name:      e.Name.Local,
		Namespace: e.Name.Space,
		Nil:       e.IsNil(),
		Text:      strings.TrimSpace(e.Text),
	}
	for _, a := range e.Attrs {
		if a.Name.Space == wsman.NsXsi {
			continue
		}
		if v.Attributes == nil {
			v.Attributes = make(map[string]string)
		}
		v.Attributes[a.Name.Local] = a.Value
	}
	for _, c := range e.Children {
		v.Children = append(v.Children, viewOf(c))
	}
	return v
}

func (p *printer) elements(els ...*wsman.Element) error {
	switch p.format {
	case formatYAML:
		views := make([]elementView, 0, len(els))
		for _, e := range els {
			views = append(views, viewOf(e))
		}
		return p.yaml(views)
	case formatXML:
		for _, e := range els {
			if err := e.Encode(p.w); err != nil {
				return err
			}
			fmt.Fprintln(p.w)
		}
		return nil
	default:
		for i, e := range els {
			if i > 0 {
				fmt.Fprintln(p.w)
			}
			p.text(e, 0)
		}
		return nil
	}
}

// text writes e as an indented tree. Leaves print as "name = value".
func (p *printer) text(e *wsman.Element, depth int) {
	indent := strings.Repeat("\t", depth)
	switch {
	case depth == 0:
		if e.Name.Space != "" {
			fmt.Fprintf(p.w, "%s (%s)\n", e.Name.Local, e.Name.Space)
		} else {
			fmt.Fprintln(p.w, e.Name.Local)
		}
	case e.IsNil():
		fmt.Fprintf(p.w, "%s%s = <nil>\n", indent, e.Name.Local)
		return
	case len(e.Children) == 0:
		fmt.Fprintf(p.w, "%s%s = %s\n", indent, e.Name.Local, strings.TrimSpace(e.Text))
		return
	default:
		fmt.Fprintf(p.w, "%s%s\n", indent, e.Name.Local)
	}
	for _, c := range e.Children {
		p.text(c, depth+1)
	}
}

func (p *printer) yaml(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
