package wsman

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "http://127.0.0.1:5985/wsman"

func mustEndpoint(t *testing.T, opts ...EndpointOption) *Endpoint {
	t.Helper()
	ep, err := NewEndpoint(testURL, opts...)
	require.NoError(t, err)
	return ep
}

func header(t *testing.T, env *Element) *Element {
	t.Helper()
	h := env.Child("Header", NsSoap)
	require.NotNil(t, h)
	return h
}

func body(t *testing.T, env *Element) *Element {
	t.Helper()
	b := env.Child("Body", NsSoap)
	require.NotNil(t, b)
	return b
}

func TestEnvelope_Builder(t *testing.T) {
	env := NewEnvelope().
		WithAction(ActionGet).
		WithTo(testURL).
		WithMessageID("uuid:1").
		WithResourceURI("http://example.com/resource").
		WithSelector("Name", "a").
		WithSelector("Id", "1").
		WithBody(nil).
		Element()

	h := header(t, env)
	assert.Equal(t, ActionGet, h.ChildText("Action"))
	v, ok := h.Child("Action", NsAddressingW3C).Attr(NsSoap, "mustUnderstand")
	require.True(t, ok)
	assert.Equal(t, "true", v)

	set := h.Child("SelectorSet", NsWsman)
	require.NotNil(t, set)
	require.Len(t, set.Children, 2)
	name, _ := set.Children[1].Attr("", "Name")
	assert.Equal(t, "Id", name)
	assert.Equal(t, "1", set.Children[1].Text)

	assert.Empty(t, body(t, env).Children)
}

func TestBuildRequest_Identify(t *testing.T) {
	for _, v := range []Version{Version10, Version12} {
		t.Run(string(v), func(t *testing.T) {
			env, err := BuildRequest(OpIdentify, mustEndpoint(t, WithVersion(v), WithMaxEnvelopeSize(512000)), RequestParams{})
			require.NoError(t, err)

			h := header(t, env)
			assert.Nil(t, h.Child("Action"))
			assert.Nil(t, h.Child("To"))
			assert.Nil(t, h.Child("MessageID"))
			assert.Nil(t, h.Child("MaxEnvelopeSize"))
			assert.Equal(t, ResourceURIAllClasses, h.ChildText("ResourceURI"))
			assert.Equal(t, AddressAnonymous, h.Child("ReplyTo").ChildText("Address"))

			b := body(t, env)
			require.Len(t, b.Children, 1)
			assert.True(t, b.Children[0].Is("Identify", NsWsmanIdentity))
		})
	}
}

func TestBuildRequest_AddressingNamespace(t *testing.T) {
	tests := []struct {
		version Version
		want    string
		absent  string
	}{
		{Version10, NsAddressing, NsAddressingW3C},
		{Version12, NsAddressingW3C, NsAddressing},
	}
	for _, tt := range tests {
		t.Run(string(tt.version), func(t *testing.T) {
			env, err := BuildRequest(OpGet, mustEndpoint(t, WithVersion(tt.version)), RequestParams{ResourceURI: "http://example.com/r"})
			require.NoError(t, err)

			h := header(t, env)
			for _, name := range []string{"Action", "To", "MessageID", "ReplyTo", "FaultTo"} {
				assert.NotNil(t, h.Child(name, tt.want), name)
				assert.Nil(t, h.Child(name, tt.absent), name)
			}
			assert.NotNil(t, h.Child("ReplyTo").Child("Address", tt.want))

			data, err := env.Marshal()
			require.NoError(t, err)
			assert.NotContains(t, string(data), `="`+tt.absent+`"`)
			// The anonymous address keeps its 2004/08 form on both versions.
			assert.Contains(t, string(data), AddressAnonymous)
		})
	}
}

func TestBuildRequest_Get(t *testing.T) {
	ep := mustEndpoint(t)
	sel := Selectors{{Name: "CreationClassName", Value: "DCIM_ComputerSystem"}, {Name: "Name", Value: "srv:system"}}

	env, err := BuildRequest(OpGet, ep, RequestParams{ResourceURI: "http://example.com/DCIM_ComputerSystem", Selectors: sel, MessageID: "uuid:fixed"})
	require.NoError(t, err)

	h := header(t, env)
	assert.Equal(t, ActionGet, h.ChildText("Action"))
	assert.Equal(t, testURL, h.ChildText("To"))
	assert.Equal(t, "uuid:fixed", h.ChildText("MessageID"))
	assert.Equal(t, "http://example.com/DCIM_ComputerSystem", h.ChildText("ResourceURI"))
	assert.Nil(t, h.Child("OperationTimeout"))

	set := h.Child("SelectorSet", NsWsman)
	require.NotNil(t, set)
	require.Len(t, set.Children, 2)
	for i, s := range sel {
		name, _ := set.Children[i].Attr("", "Name")
		assert.Equal(t, s.Name, name)
		assert.Equal(t, s.Value, set.Children[i].Text)
	}
	assert.Empty(t, body(t, env).Children)
}

func TestBuildRequest_NoSelectorSetWhenEmpty(t *testing.T) {
	env, err := BuildRequest(OpGet, mustEndpoint(t), RequestParams{ResourceURI: "http://example.com/r"})
	require.NoError(t, err)
	assert.Nil(t, header(t, env).Child("SelectorSet"))
}

func TestBuildRequest_GeneratedMessageID(t *testing.T) {
	ep := mustEndpoint(t)
	a, err := BuildRequest(OpGet, ep, RequestParams{ResourceURI: "http://example.com/r"})
	require.NoError(t, err)
	b, err := BuildRequest(OpGet, ep, RequestParams{ResourceURI: "http://example.com/r"})
	require.NoError(t, err)

	idA := header(t, a).ChildText("MessageID")
	idB := header(t, b).ChildText("MessageID")
	assert.True(t, strings.HasPrefix(idA, "uuid:"))
	assert.Len(t, idA, len("uuid:")+36)
	assert.Equal(t, strings.ToUpper(idA[5:]), idA[5:])
	assert.NotEqual(t, idA, idB)
}

func TestBuildRequest_Put(t *testing.T) {
	payload := NewElement("http://example.com/Thing", "Thing").WithChildren(
		NewElement("http://example.com/Thing", "Value").WithText("42"),
	)
	env, err := BuildRequest(OpPut, mustEndpoint(t), RequestParams{
		ResourceURI: "http://example.com/Thing",
		Selectors:   Selectors{{Name: "Id", Value: "1"}},
		Body:        payload,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionPut, header(t, env).ChildText("Action"))
	b := body(t, env)
	require.Len(t, b.Children, 1)
	assert.Equal(t, "42", b.Children[0].ChildText("Value"))

	// The caller's element is copied, not adopted.
	b.Children[0].Children[0].Text = "changed"
	assert.Equal(t, "42", payload.ChildText("Value"))
}

// A parsed Put body is written back unchanged apart from prefixes.
func TestBuildRequest_PutKeepsParsedBody(t *testing.T) {
	payload, err := ParseElement([]byte(`<p:Note xmlns:p="urn:note" xml:lang="en">see <p:b>this</p:b> now</p:Note>`))
	require.NoError(t, err)

	env, err := BuildRequest(OpPut, mustEndpoint(t), RequestParams{ResourceURI: "urn:note", Body: payload})
	require.NoError(t, err)
	out := env.String()
	assert.Contains(t, out, `<ns1:Note xml:lang="en">see <ns1:b>this</ns1:b> now</ns1:Note>`)
	assert.NotContains(t, out, NsXML)
}

func TestBuildRequest_Enumerate(t *testing.T) {
	const query = "select * from DCIM_PowerSupplyView"
	tests := []struct {
		name   string
		opts   []EndpointOption
		params RequestParams
		want   []string
	}{
		{
			name:   "plain",
			params: RequestParams{ResourceURI: ResourceURIAllClasses},
		},
		{
			name:   "wql filter",
			params: RequestParams{ResourceURI: ResourceURIAllClasses, Dialect: DialectWQL, Filter: query},
			want:   []string{"Filter"},
		},
		{
			name:   "dialect without filter text",
			params: RequestParams{ResourceURI: ResourceURIAllClasses, Dialect: DialectWQL},
		},
		{
			name:   "filter text without dialect",
			params: RequestParams{ResourceURI: ResourceURIAllClasses, Filter: query},
		},
		{
			name:   "optimized with max elements",
			opts:   []EndpointOption{WithMaxElements(25)},
			params: RequestParams{ResourceURI: ResourceURIAllClasses, Optimize: true},
			want:   []string{"OptimizeEnumeration", "MaxElements"},
		},
		{
			name:   "everything",
			opts:   []EndpointOption{WithMaxElements(25), WithMaxEnvelopeSize(153600)},
			params: RequestParams{ResourceURI: ResourceURIAllClasses, Dialect: DialectWQL, Filter: query, Optimize: true},
			want:   []string{"Filter", "OptimizeEnumeration", "MaxEnvelopeSize", "MaxElements"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := BuildRequest(OpEnumerate, mustEndpoint(t, tt.opts...), tt.params)
			require.NoError(t, err)
			assert.Equal(t, ActionEnumerate, header(t, env).ChildText("Action"))

			enum := body(t, env).Child("Enumerate", NsEnumeration)
			require.NotNil(t, enum)
			var got []string
			for _, c := range enum.Children {
				assert.Equal(t, NsWsman, c.Name.Space, c.Name.Local)
				got = append(got, c.Name.Local)
			}
			assert.Equal(t, tt.want, got)

			if c := enum.Child("MaxElements"); c != nil {
				assert.Equal(t, "25", c.Text)
			}
			if c := enum.Child("MaxEnvelopeSize"); c != nil {
				assert.Equal(t, "153600", c.Text)
			}
			if filter := enum.Child("Filter"); filter != nil {
				assert.Equal(t, query, filter.Text)
				dialect, ok := filter.Attr("", "Dialect")
				require.True(t, ok)
				assert.Equal(t, DialectWQL, dialect)
			}
		})
	}
}

func TestBuildRequest_EnumerateFilterEscaped(t *testing.T) {
	env, err := BuildRequest(OpEnumerate, mustEndpoint(t), RequestParams{
		ResourceURI: ResourceURIAllClasses,
		Dialect:     DialectWQL,
		Filter:      "select * from Win32_Service where Name < 'b' and State = 'R&R'",
	})
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "Name &lt; 'b' and State = 'R&amp;R'")

	parsed, err := ParseElement(data)
	require.NoError(t, err)
	filter := parsed.Child("Body", NsSoap).Child("Enumerate", NsEnumeration).Child("Filter", NsWsman)
	assert.Equal(t, "select * from Win32_Service where Name < 'b' and State = 'R&R'", filter.Text)
}

func TestBuildRequest_Pull(t *testing.T) {
	ep := mustEndpoint(t, WithMaxElements(100))
	env, err := BuildRequest(OpPull, ep, RequestParams{ResourceURI: ResourceURIAllClasses, Context: "c6595ee1-2664-1664-801f-c115cfb5fe14"})
	require.NoError(t, err)

	assert.Equal(t, ActionPull, header(t, env).ChildText("Action"))
	pull := body(t, env).Child("Pull", NsEnumeration)
	require.NotNil(t, pull)
	assert.Equal(t, "c6595ee1-2664-1664-801f-c115cfb5fe14", pull.ChildText("EnumerationContext"))
	require.NotNil(t, pull.Child("MaxElements", NsEnumeration))
	assert.Equal(t, "100", pull.ChildText("MaxElements"))
}

func TestBuildRequest_HeaderLimits(t *testing.T) {
	ep := mustEndpoint(t, WithMaxEnvelopeSize(153600), WithReceiveTimeout(90*time.Second))
	for _, op := range []Operation{OpGet, OpPut, OpPull} {
		t.Run(op.String(), func(t *testing.T) {
			env, err := BuildRequest(op, ep, RequestParams{
				ResourceURI: "http://example.com/r",
				Body:        NewElement("http://example.com/r", "r"),
				Context:     "ctx",
			})
			require.NoError(t, err)

			h := header(t, env)
			assert.Equal(t, "PT90S", h.ChildText("OperationTimeout"))
			// MaxEnvelopeSize is only carried by the Enumerate body.
			assert.Nil(t, h.Child("MaxEnvelopeSize"))
			assert.NotContains(t, env.String(), "MaxEnvelopeSize")
		})
	}
}

func TestBuildRequest_Errors(t *testing.T) {
	ep := mustEndpoint(t)
	tests := []struct {
		name   string
		op     Operation
		params RequestParams
	}{
		{"get without resource uri", OpGet, RequestParams{}},
		{"enumerate without resource uri", OpEnumerate, RequestParams{}},
		{"put without body", OpPut, RequestParams{ResourceURI: "http://example.com/r"}},
		{"pull without context", OpPull, RequestParams{ResourceURI: "http://example.com/r"}},
		{"duplicate selectors", OpGet, RequestParams{ResourceURI: "http://example.com/r", Selectors: Selectors{{Name: "a"}, {Name: "a"}}}},
		{"empty selector name", OpGet, RequestParams{ResourceURI: "http://example.com/r", Selectors: Selectors{{Value: "x"}}}},
		{"unknown operation", Operation(42), RequestParams{ResourceURI: "http://example.com/r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRequest(tt.op, ep, tt.params)
			require.Error(t, err)
			assert.Equal(t, KindGeneric, KindOf(err))
		})
	}
}

func TestBuildRequest_DoesNotMutateInputs(t *testing.T) {
	ep := mustEndpoint(t, WithVersion(Version10))
	payload := NewElement(NsAddressingW3C, "Address").WithText("kept")
	sel := Selectors{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}}

	_, err := BuildRequest(OpPut, ep, RequestParams{ResourceURI: "http://example.com/r", Body: payload, Selectors: sel})
	require.NoError(t, err)

	assert.Equal(t, NsAddressingW3C, payload.Name.Space)
	assert.Equal(t, Selectors{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}}, sel)
	assert.Equal(t, Version10, ep.Version())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "PT60S", formatDuration(time.Minute))
	assert.Equal(t, "PT1.5S", formatDuration(1500*time.Millisecond))
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "identify", OpIdentify.String())
	assert.Equal(t, "get", OpGet.String())
	assert.Equal(t, "put", OpPut.String())
	assert.Equal(t, "enumerate", OpEnumerate.String())
	assert.Equal(t, "pull", OpPull.String())
	assert.Equal(t, "unknown", Operation(9).String())
}
