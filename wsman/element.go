package wsman

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Element is a schema-less XML element tree node.
//
// Character data is kept in place the way etree does it: Text is the data
// before the first child and each child's Tail is the data that follows
// its end tag, so mixed content survives a round trip.
//
// Name.Space always holds a namespace URI, never a prefix. Namespace
// declarations are not kept as attributes; they are recorded internally so
// that QName-valued text (such as SOAP fault subcodes) can still be resolved
// after parsing.
type Element struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Element
	Text     string
	Tail     string

	// scope maps prefixes in scope at this element to namespace URIs.
	// Shared between elements and never mutated after parsing.
	scope map[string]string
}

// NewElement creates an element with the given namespace and local name.
func NewElement(space, local string) *Element {
	return &Element{Name: xml.Name{Space: space, Local: local}}
}

// WithText sets the element text and returns the element.
func (e *Element) WithText(text string) *Element {
	e.Text = text
	return e
}

// WithAttr sets an attribute and returns the element.
func (e *Element) WithAttr(space, local, value string) *Element {
	e.SetAttr(space, local, value)
	return e
}

// WithChildren appends children and returns the element.
func (e *Element) WithChildren(children ...*Element) *Element {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
	return e
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(space, local, value string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name.Space == space && e.Attrs[i].Name.Local == local {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Space: space, Local: local}, Value: value})
}

// Attr returns the value of an attribute.
func (e *Element) Attr(space, local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Is reports whether the element has the given local name and one of the
// given namespaces. With no namespaces only the local name is compared.
func (e *Element) Is(local string, spaces ...string) bool {
	if e == nil || e.Name.Local != local {
		return false
	}
	if len(spaces) == 0 {
		return true
	}
	for _, s := range spaces {
		if e.Name.Space == s {
			return true
		}
	}
	return false
}

// Child returns the first child matching local and one of spaces.
func (e *Element) Child(local string, spaces ...string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Is(local, spaces...) {
			return c
		}
	}
	return nil
}

// ChildText returns the trimmed text of the first child with the given local
// name, or "" if there is none.
func (e *Element) ChildText(local string) string {
	c := e.Child(local)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text)
}

// IsNil reports whether the element carries xsi:nil="true".
func (e *Element) IsNil() bool {
	v, ok := e.Attr(NsXsi, "nil")
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

// Rename replaces the element's qualified name.
func (e *Element) Rename(name xml.Name) {
	e.Name = name
}

// RenameNamespace rewrites every element and attribute in namespace from to
// namespace to, recursively.
func (e *Element) RenameNamespace(from, to string) {
	if e.Name.Space == from {
		e.Name.Space = to
	}
	for i := range e.Attrs {
		if e.Attrs[i].Name.Space == from {
			e.Attrs[i].Name.Space = to
		}
	}
	for _, c := range e.Children {
		c.RenameNamespace(from, to)
	}
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	c := &Element{
		Name:  e.Name,
		Text:  e.Text,
		Tail:  e.Tail,
		scope: e.scope,
	}
	if len(e.Attrs) > 0 {
		c.Attrs = make([]xml.Attr, len(e.Attrs))
		copy(c.Attrs, e.Attrs)
	}
	if len(e.Children) > 0 {
		c.Children = make([]*Element, len(e.Children))
		for i, child := range e.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// ResolveQName resolves a "prefix:local" value against the namespace
// declarations that were in scope where the element was parsed. A value
// without a prefix resolves against the default namespace.
func (e *Element) ResolveQName(value string) (xml.Name, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return xml.Name{}, false
	}
	prefix, local, found := strings.Cut(value, ":")
	if !found {
		return xml.Name{Space: e.scope[""], Local: value}, true
	}
	space, ok := e.scope[prefix]
	if !ok {
		return xml.Name{Local: local}, false
	}
	return xml.Name{Space: space, Local: local}, true
}

// ParseElement parses an XML document and returns its root element.
func ParseElement(data []byte) (*Element, error) {
	return decodeElement(xml.NewDecoder(bytes.NewReader(data)))
}

func decodeElement(d *xml.Decoder) (*Element, error) {
	var (
		root  *Element
		stack []*Element
	)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			var parentScope map[string]string
			if len(stack) > 0 {
				parentScope = stack[len(stack)-1].scope
			}
			el := &Element{Name: t.Name, scope: parentScope}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					el.declare(a.Name.Local, a.Value)
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					el.declare("", a.Value)
				default:
					el.Attrs = append(el.Attrs, a)
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("parse xml: unbalanced end element")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				break
			}
			cur := stack[len(stack)-1]
			if n := len(cur.Children); n > 0 {
				cur.Children[n-1].Tail += string(t)
			} else {
				cur.Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("parse xml: no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("parse xml: unexpected end of document")
	}
	return root, nil
}

// declare records a namespace declaration on a copy of the inherited scope.
func (e *Element) declare(prefix, uri string) {
	scope := make(map[string]string, len(e.scope)+1)
	for k, v := range e.scope {
		scope[k] = v
	}
	scope[prefix] = uri
	e.scope = scope
}

// Marshal serializes the element tree. All namespaces used in the tree are
// declared on the root element.
func (e *Element) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the serialized element tree to w.
func (e *Element) Encode(w io.Writer) error {
	if e == nil {
		return errors.New("marshal xml: nil element")
	}
	enc := &elementEncoder{prefixes: make(map[string]string), used: make(map[string]bool)}
	enc.collect(e)

	var buf bytes.Buffer
	enc.write(&buf, e, true)
	_, err := w.Write(buf.Bytes())
	return err
}

// String returns the serialized element, or an empty string on error.
func (e *Element) String() string {
	b, err := e.Marshal()
	if err != nil {
		return ""
	}
	return string(b)
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

type elementEncoder struct {
	prefixes map[string]string
	used     map[string]bool
	order    []string
	next     int
}

func (enc *elementEncoder) collect(e *Element) {
	enc.assign(e.Name.Space)
	for _, a := range e.Attrs {
		enc.assign(a.Name.Space)
	}
	for _, c := range e.Children {
		enc.collect(c)
	}
}

func (enc *elementEncoder) assign(space string) {
	if space == "" || space == "xmlns" || space == NsXmlns {
		return
	}
	if _, ok := enc.prefixes[space]; ok {
		return
	}
	if space == NsXML {
		// Bound by definition; declaring it is an error.
		enc.prefixes[space] = "xml"
		return
	}
	prefix, ok := prefixes[space]
	if !ok || enc.used[prefix] {
		for {
			enc.next++
			prefix = "ns" + strconv.Itoa(enc.next)
			if !enc.used[prefix] {
				break
			}
		}
	}
	enc.prefixes[space] = prefix
	enc.used[prefix] = true
	enc.order = append(enc.order, space)
}

func (enc *elementEncoder) qualify(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return enc.prefixes[n.Space] + ":" + n.Local
}

func (enc *elementEncoder) write(buf *bytes.Buffer, e *Element, root bool) {
	name := enc.qualify(e.Name)
	buf.WriteByte('<')
	buf.WriteString(name)
	if root {
		for _, space := range enc.order {
			fmt.Fprintf(buf, ` xmlns:%s="`, enc.prefixes[space])
			_ = xml.EscapeText(buf, []byte(space))
			buf.WriteByte('"')
		}
	}
	for _, a := range e.Attrs {
		if a.Name.Space == "xmlns" || a.Name.Space == NsXmlns || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(enc.qualify(a.Name))
		buf.WriteString(`="`)
		_ = xml.EscapeText(buf, []byte(a.Value))
		buf.WriteByte('"')
	}
	if e.Text == "" && len(e.Children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if e.Text != "" {
		_, _ = textEscaper.WriteString(buf, e.Text)
	}
	for _, c := range e.Children {
		enc.write(buf, c, false)
		if c.Tail != "" {
			_, _ = textEscaper.WriteString(buf, c.Tail)
		}
	}
	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
}
