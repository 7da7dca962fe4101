package wsman

import (
	"fmt"
	"sort"
	"strings"
)

// Identity is the result of an Identify request.
type Identity struct {
	// ProtocolVersions lists the supported protocol version URIs.
	ProtocolVersions []string

	// ProductVendor is the implementation vendor.
	ProductVendor string

	// ProductVersion is the implementation version.
	ProductVersion string
}

// EnumerationContext is an opaque server-issued enumeration cursor.
// The empty context is terminal: the sequence has ended.
type EnumerationContext string

// Terminal reports whether no further items can be pulled.
func (c EnumerationContext) Terminal() bool {
	return c == ""
}

// Selector represents a WS-Management selector.
type Selector struct {
	Name  string
	Value string
}

// Selectors is an ordered selector set identifying a resource instance.
// Names must be unique; order only affects the wire representation.
type Selectors []Selector

// SelectorsFromMap builds selectors from m ordered by name.
func SelectorsFromMap(m map[string]string) Selectors {
	s := make(Selectors, 0, len(m))
	for k, v := range m {
		s = append(s, Selector{Name: k, Value: v})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	return s
}

// ParseSelector parses a "name=value" pair.
func ParseSelector(s string) (Selector, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Selector{}, fmt.Errorf("invalid selector %q: expected name=value", s)
	}
	return Selector{Name: name, Value: value}, nil
}

// Validate checks that selector names are non-empty and unique.
func (s Selectors) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, sel := range s {
		if sel.Name == "" {
			return fmt.Errorf("selector name is empty")
		}
		if _, dup := seen[sel.Name]; dup {
			return fmt.Errorf("duplicate selector %q", sel.Name)
		}
		seen[sel.Name] = struct{}{}
	}
	return nil
}

// Items is the parsed item list of an Enumerate or Pull response.
type Items struct {
	// Elements are the returned items, owned by the caller.
	Elements []*Element

	// Context is the next enumeration context, empty when none was returned.
	Context EnumerationContext

	// EndOfSequence is set when the response carried an EndOfSequence marker.
	EndOfSequence bool
}
