package wsman

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
)

// Response parsing is strict. The only tolerated variations are Items and
// EndOfSequence in either the WS-Enumeration or the WS-Man namespace, and
// items wrapped in w:XmlFragment.

func parseErrorf(format string, args ...any) *Error {
	return newError(KindGeneric, fmt.Sprintf(format, args...), nil)
}

// ContextID extracts the enumeration context from an EnumerateResponse or
// PullResponse element. An EnumerationContext without content yields the
// empty (terminal) context. A missing element is an error only when
// required is set.
func ContextID(resp *Element, required bool) (EnumerationContext, error) {
	ec := resp.Child("EnumerationContext", NsEnumeration)
	if ec == nil {
		if required {
			return "", parseErrorf("%s: missing EnumerationContext", resp.Name.Local)
		}
		return "", nil
	}
	if len(ec.Children) > 0 {
		return "", parseErrorf("%s: unexpected EnumerationContext content <%s>", resp.Name.Local, ec.Children[0].Name.Local)
	}
	return EnumerationContext(strings.TrimSpace(ec.Text)), nil
}

// EnumerateItems parses the body of an Enumerate response.
func EnumerateItems(body *Element) (Items, error) {
	resp := body.Child("EnumerateResponse", NsEnumeration)
	if resp == nil {
		return Items{}, parseErrorf("enumerate: missing EnumerateResponse")
	}

	ctx, err := ContextID(resp, true)
	if err != nil {
		return Items{}, err
	}

	res := Items{Context: ctx}
	for _, c := range resp.Children {
		switch {
		case c.Is("EnumerationContext", NsEnumeration), c.Is("Expires", NsEnumeration):
		case c.Is("Items", NsEnumeration, NsWsman):
			res.Elements = append(res.Elements, itemsOf(c)...)
		case c.Is("EndOfSequence", NsEnumeration, NsWsman):
			res.EndOfSequence = true
		default:
			return Items{}, parseErrorf("enumerate: unexpected element {%s}%s", c.Name.Space, c.Name.Local)
		}
	}

	if res.EndOfSequence {
		res.Context = ""
	} else if res.Context.Terminal() && len(res.Elements) == 0 {
		return Items{}, parseErrorf("enumerate: response has no context, no items and no EndOfSequence")
	}
	return res, nil
}

// PullItems parses the body of a Pull response.
func PullItems(body *Element) (Items, error) {
	resp := body.Child("PullResponse", NsEnumeration)
	if resp == nil {
		return Items{}, parseErrorf("pull: missing PullResponse")
	}

	ctx, err := ContextID(resp, false)
	if err != nil {
		return Items{}, err
	}

	res := Items{Context: ctx}
	for _, c := range resp.Children {
		switch {
		case c.Is("EnumerationContext", NsEnumeration):
		case c.Is("Items", NsEnumeration, NsWsman):
			res.Elements = append(res.Elements, itemsOf(c)...)
		case c.Is("EndOfSequence", NsEnumeration, NsWsman):
			res.EndOfSequence = true
		default:
			return Items{}, parseErrorf("pull: unexpected element {%s}%s", c.Name.Space, c.Name.Local)
		}
	}

	if res.EndOfSequence {
		res.Context = ""
	} else if res.Context.Terminal() && len(res.Elements) == 0 {
		return Items{}, parseErrorf("pull: response has no context, no items and no EndOfSequence")
	}
	return res, nil
}

// itemsOf returns the children of an Items element with fragment-wrapped
// items flattened. Nil fragments are skipped.
func itemsOf(items *Element) []*Element {
	if items.IsNil() {
		return nil
	}
	out := make([]*Element, 0, len(items.Children))
	for _, c := range items.Children {
		if c.Is("XmlFragment", NsWsman) {
			if !c.IsNil() {
				out = append(out, flattenFragment(c))
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

// flattenFragment creates a w:XmlFragment element holding only the element
// children of frag. Text between the children is dropped.
func flattenFragment(frag *Element) *Element {
	out := &Element{Name: xml.Name{Space: NsWsman, Local: "XmlFragment"}, scope: frag.scope}
	out.Children = append(out.Children, frag.Children...)
	return out
}

// TransferElement returns the first element of a WS-Transfer response body,
// renamed to {resourceURI}elementType since the response does not name its
// class.
func TransferElement(body *Element, resourceURI string) (*Element, error) {
	if body == nil || len(body.Children) == 0 {
		return nil, parseErrorf("transfer: empty response body")
	}
	elementType, err := ElementTypeFromResourceURI(resourceURI)
	if err != nil {
		return nil, err
	}
	el := body.Children[0].Clone()
	el.Tail = ""
	el.Rename(xml.Name{Space: resourceURI, Local: elementType})
	return el, nil
}

// ElementTypeFromResourceURI returns the last path segment of uri.
func ElementTypeFromResourceURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", newError(KindGeneric, "invalid resource uri "+uri, err)
	}
	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		return "", parseErrorf("resource uri %q has no path", uri)
	}
	return path[strings.LastIndex(path, "/")+1:], nil
}

// ParseIdentity parses the body of an Identify response.
func ParseIdentity(body *Element) (*Identity, error) {
	resp := body.Child("IdentifyResponse", NsWsmanIdentity)
	if resp == nil {
		return nil, parseErrorf("identify: missing IdentifyResponse")
	}
	id := &Identity{}
	for _, c := range resp.Children {
		if c.Name.Space != NsWsmanIdentity {
			continue
		}
		switch c.Name.Local {
		case "ProtocolVersion":
			id.ProtocolVersions = append(id.ProtocolVersions, strings.TrimSpace(c.Text))
		case "ProductVendor":
			id.ProductVendor = strings.TrimSpace(c.Text)
		case "ProductVersion":
			id.ProductVersion = strings.TrimSpace(c.Text)
		}
	}
	return id, nil
}
