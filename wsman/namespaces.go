package wsman

// XML Namespace URIs for WS-Management protocol.
const (
	// NsSoap is the SOAP 1.2 envelope namespace.
	NsSoap = "http://www.w3.org/2003/05/soap-envelope"

	// NsAddressing is the legacy (2004/08) WS-Addressing namespace used by
	// WS-Management 1.0 targets.
	NsAddressing = "http://schemas.xmlsoap.org/ws/2004/08/addressing"

	// NsAddressingW3C is the W3C WS-Addressing namespace. Envelopes are
	// always built in this namespace and rewritten for 1.0 targets.
	NsAddressingW3C = "http://www.w3.org/2005/08/addressing"

	// NsWsman is the DMTF WS-Management namespace.
	NsWsman = "http://schemas.dmtf.org/wbem/wsman/1/wsman.xsd"

	// NsWsmanIdentity is the WS-Management identity namespace (DSP0226 Identify).
	NsWsmanIdentity = "http://schemas.dmtf.org/wbem/wsman/identity/1/wsmanidentity.xsd"

	// NsTransfer is the WS-Transfer namespace.
	NsTransfer = "http://schemas.xmlsoap.org/ws/2004/09/transfer"

	// NsEnumeration is the WS-Enumeration namespace.
	NsEnumeration = "http://schemas.xmlsoap.org/ws/2004/09/enumeration"

	// NsXsi is the XML Schema Instance namespace.
	NsXsi = "http://www.w3.org/2001/XMLSchema-instance"

	// NsXML is the namespace bound to the reserved xml prefix (xml:lang).
	NsXML = "http://www.w3.org/XML/1998/namespace"

	// NsXmlns is the namespace of xmlns declarations.
	NsXmlns = "http://www.w3.org/2000/xmlns/"
)

// WS-Addressing constants.
const (
	// AddressAnonymous is the WS-Addressing anonymous reply address. The
	// 2004/08 form is sent for both protocol versions.
	AddressAnonymous = "http://schemas.xmlsoap.org/ws/2004/08/addressing/role/anonymous"

	// FaultDestinationUnreachable is the WS-Addressing fault subcode local
	// name returned for unknown resource URIs.
	FaultDestinationUnreachable = "DestinationUnreachable"
)

// WSMan Action URIs for WS-Transfer operations.
const (
	// ActionGet retrieves a resource representation.
	ActionGet = "http://schemas.xmlsoap.org/ws/2004/09/transfer/Get"

	// ActionPut updates a resource representation.
	ActionPut = "http://schemas.xmlsoap.org/ws/2004/09/transfer/Put"
)

// WSMan Action URIs for Enumeration.
const (
	// ActionEnumerate enumerates resources.
	ActionEnumerate = "http://schemas.xmlsoap.org/ws/2004/09/enumeration/Enumerate"

	// ActionPull retrieves the next batch of an enumeration.
	ActionPull = "http://schemas.xmlsoap.org/ws/2004/09/enumeration/Pull"
)

// Filter dialects and resource URIs.
const (
	// DialectWQL is the WMI Query Language filter dialect.
	DialectWQL = "http://schemas.microsoft.com/wbem/wsman/1/WQL"

	// ResourceURIAllClasses is the wildcard resource URI selecting all CIM classes.
	ResourceURIAllClasses = "http://schemas.dmtf.org/wbem/wscim/1/*"
)

// prefixes maps well-known namespaces to the prefixes used on the wire.
var prefixes = map[string]string{
	NsSoap:          "s",
	NsAddressing:    "a",
	NsAddressingW3C: "a",
	NsWsman:         "w",
	NsWsmanIdentity: "wsmid",
	NsTransfer:      "t",
	NsEnumeration:   "n",
	NsXsi:           "xsi",
}
