package wsman

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/smnsjas/go-wsman/wsman/transport"
)

// ErrorKind classifies every failure returned by this package.
type ErrorKind int

const (
	// KindGeneric covers malformed or unexpected responses, missing required
	// elements and unclassified failures such as timeouts.
	KindGeneric ErrorKind = iota

	// KindUnauthorized is an HTTP 401 response.
	KindUnauthorized

	// KindInvalidResourceURI is a SOAP fault with the WS-Addressing
	// DestinationUnreachable subcode.
	KindInvalidResourceURI

	// KindSOAPFault is any other SOAP fault.
	KindSOAPFault

	// KindTransportHTTP is any other non-2xx HTTP status.
	KindTransportHTTP
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindInvalidResourceURI:
		return "InvalidResourceURI"
	case KindSOAPFault:
		return "SOAPFault"
	case KindTransportHTTP:
		return "TransportHTTPError"
	default:
		return "Generic"
	}
}

// Sentinel errors, one per kind. Use errors.Is(err, ErrUnauthorized) and so on.
var (
	ErrGeneric            = errors.New("wsman: generic error")
	ErrUnauthorized       = errors.New("wsman: unauthorized")
	ErrInvalidResourceURI = errors.New("wsman: invalid resource uri")
	ErrSOAPFault          = errors.New("wsman: soap fault")
	ErrTransportHTTP      = errors.New("wsman: http transport error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return ErrUnauthorized
	case KindInvalidResourceURI:
		return ErrInvalidResourceURI
	case KindSOAPFault:
		return ErrSOAPFault
	case KindTransportHTTP:
		return ErrTransportHTTP
	default:
		return ErrGeneric
	}
}

// Error is the error type returned by Client operations.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error

	// Fault is set for KindSOAPFault and KindInvalidResourceURI.
	Fault *Fault

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("wsman: ")
	b.WriteString(e.Message)
	if e.StatusCode != 0 && e.Kind == KindTransportHTTP {
		b.WriteString(" (HTTP " + strconv.Itoa(e.StatusCode) + ")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the kind of err. Errors not produced by this package are
// KindGeneric.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// Fault represents a WSMan SOAP fault.
type Fault struct {
	// Code is the SOAP fault code (e.g., "s:Sender", "s:Receiver").
	Code string

	// Subcode is the raw subcode value (e.g., "w:InvalidSelectors").
	Subcode string

	// SubcodeName is Subcode resolved against the namespaces in scope.
	SubcodeName xml.Name

	// Reason is the human-readable fault reason.
	Reason string

	// WSManCode is the numeric WSMan error code.
	WSManCode int

	// Machine is the machine that generated the fault.
	Machine string

	// Message is the WSMan fault message.
	Message string

	// Detail is the raw s:Detail element, if present.
	Detail *Element
}

// Error implements the error interface.
func (f *Fault) Error() string {
	var parts []string
	if f.Code != "" {
		parts = append(parts, f.Code)
	}
	if f.Subcode != "" {
		parts = append(parts, f.Subcode)
	}
	if f.Reason != "" {
		parts = append(parts, f.Reason)
	}
	if f.WSManCode != 0 {
		parts = append(parts, fmt.Sprintf("code=%d", f.WSManCode))
	}
	return "wsman fault: " + strings.Join(parts, ": ")
}

// IsDestinationUnreachable reports whether the subcode is the WS-Addressing
// DestinationUnreachable fault in either addressing namespace.
func (f *Fault) IsDestinationUnreachable() bool {
	if f.SubcodeName.Local != FaultDestinationUnreachable {
		return false
	}
	return f.SubcodeName.Space == NsAddressing || f.SubcodeName.Space == NsAddressingW3C
}

// IsAccessDenied returns true if the fault indicates access was denied.
func (f *Fault) IsAccessDenied() bool {
	if f.SubcodeName.Local == "AccessDenied" {
		return true
	}
	// Windows ERROR_ACCESS_DENIED
	return f.WSManCode == 5
}

// IsTimeout returns true if the fault indicates an operation timeout.
func (f *Fault) IsTimeout() bool {
	return f.SubcodeName.Local == "TimedOut"
}

// IsFault returns true if the error is or wraps a WSMan Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// ParseFault parses a SOAP response and returns a Fault if present.
// Returns nil if the response does not contain a fault.
func ParseFault(data []byte) (*Fault, error) {
	root, err := ParseElement(data)
	if err != nil {
		return nil, fmt.Errorf("parse fault: %w", err)
	}
	return faultFromEnvelope(root), nil
}

// CheckFault parses a response and returns an error if it contains a fault.
func CheckFault(data []byte) error {
	fault, err := ParseFault(data)
	if err != nil {
		return err
	}
	if fault != nil {
		return fault
	}
	return nil
}

func faultFromEnvelope(env *Element) *Fault {
	if !env.Is("Envelope", NsSoap) {
		return nil
	}
	fe := env.Child("Body", NsSoap).Child("Fault", NsSoap)
	if fe == nil {
		return nil
	}

	code := fe.Child("Code", NsSoap)
	f := &Fault{
		Code:   strings.TrimSpace(code.Child("Value", NsSoap).textOrEmpty()),
		Reason: strings.TrimSpace(fe.Child("Reason", NsSoap).Child("Text", NsSoap).textOrEmpty()),
	}
	if sub := code.Child("Subcode", NsSoap).Child("Value", NsSoap); sub != nil {
		f.Subcode = strings.TrimSpace(sub.Text)
		f.SubcodeName, _ = sub.ResolveQName(f.Subcode)
	}
	if detail := fe.Child("Detail", NsSoap); detail != nil {
		f.Detail = detail
		if wf := detail.Child("WSManFault"); wf != nil {
			if v, ok := wf.Attr("", "Code"); ok {
				f.WSManCode, _ = strconv.Atoi(strings.TrimSpace(v))
			}
			f.Machine, _ = wf.Attr("", "Machine")
			f.Message = strings.TrimSpace(wf.Child("Message").textOrEmpty())
		}
	}
	return f
}

func (e *Element) textOrEmpty() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// classify maps the result of one exchange to a parsed envelope or to
// exactly one error kind. A 401 always wins; otherwise a fault in the body
// takes precedence over the HTTP status.
func classify(body []byte, postErr error) (*Element, error) {
	status := http.StatusOK
	if postErr != nil {
		var se *transport.StatusError
		if !errors.As(postErr, &se) {
			return nil, newError(KindGeneric, "request failed", postErr)
		}
		status = se.Code
		body = se.Body
	}

	if status == http.StatusUnauthorized {
		return nil, &Error{Kind: KindUnauthorized, Message: "unauthorized", Err: postErr, StatusCode: status}
	}

	var (
		env      *Element
		parseErr error
	)
	if len(strings.TrimSpace(string(body))) > 0 {
		env, parseErr = ParseElement(body)
	}
	if env != nil {
		if f := faultFromEnvelope(env); f != nil {
			kind := KindSOAPFault
			msg := "soap fault"
			if f.IsDestinationUnreachable() {
				kind = KindInvalidResourceURI
				msg = "invalid resource uri"
			}
			return nil, &Error{Kind: kind, Message: msg, Err: f, Fault: f, StatusCode: status}
		}
	}

	if status < 200 || status > 299 {
		return nil, &Error{Kind: KindTransportHTTP, Message: "unexpected http status", Err: postErr, StatusCode: status}
	}
	if parseErr != nil {
		return nil, &Error{Kind: KindGeneric, Message: "malformed response", Err: parseErr, StatusCode: status}
	}
	if env == nil {
		return nil, &Error{Kind: KindGeneric, Message: "empty response", StatusCode: status}
	}
	if !env.Is("Envelope", NsSoap) {
		return nil, &Error{Kind: KindGeneric, Message: fmt.Sprintf("unexpected response root %s", env.Name.Local), StatusCode: status}
	}
	return env, nil
}
