package wsman

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Envelope builds a SOAP 1.2 envelope for WS-Management messages.
// Addressing headers are always built in the W3C namespace.
type Envelope struct {
	header    []*Element
	selectors *Element
	body      []*Element
}

// NewEnvelope creates an empty envelope.
func NewEnvelope() *Envelope {
	return &Envelope{}
}

func mustUnderstand(e *Element) *Element {
	return e.WithAttr(NsSoap, "mustUnderstand", "true")
}

// WithAction sets the WS-Addressing Action header.
func (e *Envelope) WithAction(action string) *Envelope {
	e.header = append(e.header, mustUnderstand(NewElement(NsAddressingW3C, "Action").WithText(action)))
	return e
}

// WithTo sets the WS-Addressing To header.
func (e *Envelope) WithTo(to string) *Envelope {
	e.header = append(e.header, mustUnderstand(NewElement(NsAddressingW3C, "To").WithText(to)))
	return e
}

// WithMessageID sets the WS-Addressing MessageID header.
func (e *Envelope) WithMessageID(messageID string) *Envelope {
	e.header = append(e.header, NewElement(NsAddressingW3C, "MessageID").WithText(messageID))
	return e
}

// WithReplyTo sets the WS-Addressing ReplyTo header.
func (e *Envelope) WithReplyTo(address string) *Envelope {
	e.header = append(e.header, NewElement(NsAddressingW3C, "ReplyTo").WithChildren(
		NewElement(NsAddressingW3C, "Address").WithText(address),
	))
	return e
}

// WithFaultTo sets the WS-Addressing FaultTo header.
func (e *Envelope) WithFaultTo(address string) *Envelope {
	e.header = append(e.header, NewElement(NsAddressingW3C, "FaultTo").WithChildren(
		NewElement(NsAddressingW3C, "Address").WithText(address),
	))
	return e
}

// WithResourceURI sets the WS-Management ResourceURI header.
func (e *Envelope) WithResourceURI(uri string) *Envelope {
	e.header = append(e.header, mustUnderstand(NewElement(NsWsman, "ResourceURI").WithText(uri)))
	return e
}

// WithOperationTimeout sets the WS-Management OperationTimeout header.
// The timeout should be in ISO 8601 duration format (e.g., "PT60S" for 60 seconds).
func (e *Envelope) WithOperationTimeout(timeout string) *Envelope {
	e.header = append(e.header, NewElement(NsWsman, "OperationTimeout").WithText(timeout))
	return e
}

// WithSelector adds a selector to the SelectorSet.
func (e *Envelope) WithSelector(name, value string) *Envelope {
	if e.selectors == nil {
		e.selectors = NewElement(NsWsman, "SelectorSet")
		e.header = append(e.header, e.selectors)
	}
	e.selectors.WithChildren(NewElement(NsWsman, "Selector").WithAttr("", "Name", name).WithText(value))
	return e
}

// WithBody appends content to the SOAP body.
func (e *Envelope) WithBody(content *Element) *Envelope {
	if content != nil {
		e.body = append(e.body, content)
	}
	return e
}

// Element returns the envelope as an element tree.
func (e *Envelope) Element() *Element {
	header := NewElement(NsSoap, "Header").WithChildren(e.header...)
	body := NewElement(NsSoap, "Body").WithChildren(e.body...)
	return NewElement(NsSoap, "Envelope").WithChildren(header, body)
}

// Marshal serializes the envelope to XML.
func (e *Envelope) Marshal() ([]byte, error) {
	return e.Element().Marshal()
}

// Operation is a WS-Management request type.
type Operation int

const (
	OpIdentify Operation = iota
	OpGet
	OpPut
	OpEnumerate
	OpPull
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpIdentify:
		return "identify"
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpEnumerate:
		return "enumerate"
	case OpPull:
		return "pull"
	default:
		return "unknown"
	}
}

// RequestParams carries the per-call inputs of BuildRequest.
type RequestParams struct {
	// ResourceURI is required for every operation except Identify.
	ResourceURI string

	// Selectors apply to Get and Put.
	Selectors Selectors

	// Dialect and Filter apply to Enumerate. A filter is sent only when
	// both are set.
	Dialect string
	Filter  string

	// Optimize requests inline items in the Enumerate response.
	Optimize bool

	// Context is the enumeration context for Pull.
	Context EnumerationContext

	// Body is the Put payload. It is copied, never mutated.
	Body *Element

	// MessageID overrides the generated message id.
	MessageID string
}

// BuildRequest builds the request envelope for op. It never mutates ep or p.
func BuildRequest(op Operation, ep *Endpoint, p RequestParams) (*Element, error) {
	env := NewEnvelope()

	if op == OpIdentify {
		env.WithReplyTo(AddressAnonymous).
			WithFaultTo(AddressAnonymous).
			WithResourceURI(ResourceURIAllClasses).
			WithBody(NewElement(NsWsmanIdentity, "Identify"))
		return finishRequest(ep, env), nil
	}

	if p.ResourceURI == "" {
		return nil, newError(KindGeneric, op.String()+": resource uri is required", nil)
	}

	var action string
	switch op {
	case OpGet:
		action = ActionGet
	case OpPut:
		action = ActionPut
	case OpEnumerate:
		action = ActionEnumerate
	case OpPull:
		action = ActionPull
	default:
		return nil, newError(KindGeneric, fmt.Sprintf("unsupported operation %d", int(op)), nil)
	}

	messageID := p.MessageID
	if messageID == "" {
		messageID = newMessageID()
	}
	env.WithAction(action).
		WithTo(ep.URL()).
		WithMessageID(messageID).
		WithReplyTo(AddressAnonymous).
		WithFaultTo(AddressAnonymous).
		WithResourceURI(p.ResourceURI)
	if ep.ReceiveTimeout() > 0 {
		env.WithOperationTimeout(formatDuration(ep.ReceiveTimeout()))
	}

	switch op {
	case OpGet, OpPut:
		if err := p.Selectors.Validate(); err != nil {
			return nil, newError(KindGeneric, op.String(), err)
		}
		for _, sel := range p.Selectors {
			env.WithSelector(sel.Name, sel.Value)
		}
		if op == OpPut {
			if p.Body == nil {
				return nil, newError(KindGeneric, "put: body is required", nil)
			}
			env.WithBody(p.Body.Clone())
		}
	case OpEnumerate:
		env.WithBody(enumerateBody(ep, p))
	case OpPull:
		if p.Context.Terminal() {
			return nil, newError(KindGeneric, "pull: enumeration context is required", nil)
		}
		pull := NewElement(NsEnumeration, "Pull").WithChildren(
			NewElement(NsEnumeration, "EnumerationContext").WithText(string(p.Context)),
		)
		if ep.MaxElements() > 0 {
			pull.WithChildren(NewElement(NsEnumeration, "MaxElements").WithText(strconv.Itoa(ep.MaxElements())))
		}
		env.WithBody(pull)
	}

	return finishRequest(ep, env), nil
}

// enumerateBody lays out the Enumerate body as Filter followed by the
// WS-Man extensions: OptimizeEnumeration, MaxEnvelopeSize, MaxElements.
// A filter is only sent when both dialect and text are set.
func enumerateBody(ep *Endpoint, p RequestParams) *Element {
	enum := NewElement(NsEnumeration, "Enumerate")
	if p.Dialect != "" && p.Filter != "" {
		// The filter lives in the WS-Man namespace, not WS-Enumeration.
		enum.WithChildren(NewElement(NsWsman, "Filter").
			WithAttr("", "Dialect", p.Dialect).
			WithText(p.Filter))
	}
	if p.Optimize {
		enum.WithChildren(NewElement(NsWsman, "OptimizeEnumeration"))
	}
	if ep.MaxEnvelopeSize() > 0 {
		enum.WithChildren(NewElement(NsWsman, "MaxEnvelopeSize").WithText(strconv.Itoa(ep.MaxEnvelopeSize())))
	}
	if ep.MaxElements() > 0 {
		enum.WithChildren(NewElement(NsWsman, "MaxElements").WithText(strconv.Itoa(ep.MaxElements())))
	}
	return enum
}

func finishRequest(ep *Endpoint, env *Envelope) *Element {
	root := env.Element()
	if ep.Version() == Version10 {
		root.RenameNamespace(NsAddressingW3C, NsAddressing)
	}
	return root
}

func newMessageID() string {
	return "uuid:" + strings.ToUpper(uuid.New().String())
}

// formatDuration renders d as an ISO 8601 duration in seconds.
func formatDuration(d time.Duration) string {
	return "PT" + strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "S"
}
