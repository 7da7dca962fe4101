package integration

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/smnsjas/go-wsman/wsman"
)

const serviceURI = "http://schemas.microsoft.com/wbem/wsman/1/wmi/root/cimv2/Win32_Service"

// fakeService is an in-memory WS-Management service exposing Win32_Service
// instances. It pages enumerations by the requested MaxElements and keeps
// the envelopes it received.
type fakeService struct {
	t *testing.T

	mu        sync.Mutex
	services  []map[string]string
	enums     map[string]int
	requests  []*wsman.Element
	legacyNS  bool
	fragments bool
}

func newFakeService(t *testing.T, n int) *fakeService {
	s := &fakeService{t: t, enums: make(map[string]int)}
	for i := range n {
		s.services = append(s.services, map[string]string{
			"Name":      fmt.Sprintf("svc%02d", i),
			"State":     "Running",
			"StartMode": "Auto",
		})
	}
	return s
}

func (s *fakeService) start() *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	s.t.Cleanup(srv.Close)
	return srv
}

func (s *fakeService) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *fakeService) serveHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := wsman.ParseElement(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	header := req.Child("Header", wsman.NsSoap)
	body := req.Child("Body", wsman.NsSoap)
	addressing := wsman.NsAddressingW3C
	if s.legacyNS {
		addressing = wsman.NsAddressing
	}

	if body.Child("Identify", wsman.NsWsmanIdentity) != nil {
		s.reply(w, http.StatusOK, "", wsman.NewElement(wsman.NsWsmanIdentity, "IdentifyResponse").WithChildren(
			wsman.NewElement(wsman.NsWsmanIdentity, "ProtocolVersion").WithText(wsman.NsWsman),
			wsman.NewElement(wsman.NsWsmanIdentity, "ProductVendor").WithText("Microsoft Corporation"),
			wsman.NewElement(wsman.NsWsmanIdentity, "ProductVersion").WithText("OS: 10.0.20348 SP: 0.0 Stack: 3.0"),
		))
		return
	}

	action := text(header.Child("Action", addressing))
	if action == "" {
		s.fault(w, "s:Sender", "a:InvalidMessageInformationHeader", "missing or misqualified Action")
		return
	}
	if uri := text(header.Child("ResourceURI", wsman.NsWsman)); uri != serviceURI {
		s.fault(w, "s:Sender", "a:DestinationUnreachable", "unknown resource "+uri)
		return
	}

	switch action {
	case wsman.ActionGet:
		svc := s.lookup(header)
		if svc == nil {
			s.fault(w, "s:Sender", "w:InvalidSelectors", "no such instance")
			return
		}
		s.reply(w, http.StatusOK, action+"Response", instance(svc))
	case wsman.ActionPut:
		svc := s.lookup(header)
		if svc == nil {
			s.fault(w, "s:Sender", "w:InvalidSelectors", "no such instance")
			return
		}
		in := body.Child("Win32_Service", serviceURI)
		if in == nil {
			s.fault(w, "s:Sender", "w:SchemaValidationError", "missing Win32_Service body")
			return
		}
		for _, c := range in.Children {
			svc[c.Name.Local] = strings.TrimSpace(c.Text)
		}
		s.reply(w, http.StatusOK, action+"Response", instance(svc))
	case wsman.ActionEnumerate:
		enum := body.Child("Enumerate", wsman.NsEnumeration)
		if enum == nil {
			s.fault(w, "s:Sender", "w:SchemaValidationError", "missing Enumerate body")
			return
		}
		id := "uuid:" + strings.ToUpper(uuid.NewString())
		s.enums[id] = 0
		resp := wsman.NewElement(wsman.NsEnumeration, "EnumerateResponse")
		if enum.Child("OptimizeEnumeration", wsman.NsWsman) != nil {
			items, eos := s.page(id, atoi(enum.ChildText("MaxElements")))
			resp.WithChildren(wsman.NewElement(wsman.NsEnumeration, "EnumerationContext").WithText(ctxText(id, eos)))
			resp.WithChildren(items.element(wsman.NsWsman))
			if eos {
				resp.WithChildren(wsman.NewElement(wsman.NsWsman, "EndOfSequence"))
			}
		} else {
			resp.WithChildren(wsman.NewElement(wsman.NsEnumeration, "EnumerationContext").WithText(id))
		}
		s.reply(w, http.StatusOK, action+"Response", resp)
	case wsman.ActionPull:
		pull := body.Child("Pull", wsman.NsEnumeration)
		id := pull.ChildText("EnumerationContext")
		if _, ok := s.enums[id]; !ok {
			s.fault(w, "s:Sender", "wsen:InvalidEnumerationContext", "unknown context")
			return
		}
		items, eos := s.page(id, atoi(pull.ChildText("MaxElements")))
		resp := wsman.NewElement(wsman.NsEnumeration, "PullResponse")
		if !eos {
			resp.WithChildren(wsman.NewElement(wsman.NsEnumeration, "EnumerationContext").WithText(id))
		}
		resp.WithChildren(items.element(wsman.NsEnumeration))
		if eos {
			resp.WithChildren(wsman.NewElement(wsman.NsEnumeration, "EndOfSequence"))
		}
		s.reply(w, http.StatusOK, action+"Response", resp)
	default:
		s.fault(w, "s:Sender", "a:ActionNotSupported", "unsupported action "+action)
	}
}

func text(e *wsman.Element) string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text)
}

func ctxText(id string, eos bool) string {
	if eos {
		return ""
	}
	return id
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// itemList is an Items element whose namespace is chosen at reply time.
type itemList []*wsman.Element

func (l itemList) element(space string) *wsman.Element {
	return wsman.NewElement(space, "Items").WithChildren(l...)
}

// page returns the next limit items of enumeration id and whether the
// sequence ended. Must be called with mu held.
func (s *fakeService) page(id string, limit int) (itemList, bool) {
	pos := s.enums[id]
	end := min(pos+limit, len(s.services))
	var items itemList
	for _, svc := range s.services[pos:end] {
		if s.fragments {
			items = append(items, wsman.NewElement(wsman.NsWsman, "XmlFragment").WithChildren(
				wsman.NewElement(serviceURI, "Name").WithText(svc["Name"])))
			continue
		}
		items = append(items, instance(svc))
	}
	if end >= len(s.services) {
		delete(s.enums, id)
		return items, true
	}
	s.enums[id] = end
	return items, false
}

// lookup finds the instance named by the Name selector. Must be called with
// mu held.
func (s *fakeService) lookup(header *wsman.Element) map[string]string {
	set := header.Child("SelectorSet", wsman.NsWsman)
	if set == nil {
		return nil
	}
	for _, sel := range set.Children {
		if name, _ := sel.Attr("", "Name"); name != "Name" {
			continue
		}
		for _, svc := range s.services {
			if svc["Name"] == strings.TrimSpace(sel.Text) {
				return svc
			}
		}
	}
	return nil
}

func instance(svc map[string]string) *wsman.Element {
	el := wsman.NewElement(serviceURI, "Win32_Service")
	for _, k := range []string{"Name", "StartMode", "State"} {
		el.WithChildren(wsman.NewElement(serviceURI, k).WithText(svc[k]))
	}
	return el
}

func (s *fakeService) reply(w http.ResponseWriter, status int, action string, body *wsman.Element) {
	addressing := wsman.NsAddressingW3C
	if s.legacyNS {
		addressing = wsman.NsAddressing
	}
	header := wsman.NewElement(wsman.NsSoap, "Header")
	if action != "" {
		header.WithChildren(wsman.NewElement(addressing, "Action").WithText(action))
	}
	env := wsman.NewElement(wsman.NsSoap, "Envelope").WithChildren(
		header,
		wsman.NewElement(wsman.NsSoap, "Body").WithChildren(body),
	)
	data, err := env.Marshal()
	if err != nil {
		s.t.Errorf("marshal reply: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/soap+xml;charset=UTF-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// fault writes a SOAP fault. Code and subcode are QNames with the s, a, w
// or wsen prefix, which are declared on the envelope.
func (s *fakeService) fault(w http.ResponseWriter, code, subcode, reason string) {
	data := `<s:Envelope xmlns:s="` + wsman.NsSoap + `" xmlns:a="` + wsman.NsAddressing +
		`" xmlns:w="` + wsman.NsWsman + `" xmlns:wsen="` + wsman.NsEnumeration + `">` +
		`<s:Header><a:Action>` + wsman.NsAddressing + `/fault</a:Action></s:Header>` +
		`<s:Body><s:Fault><s:Code><s:Value>` + code + `</s:Value><s:Subcode><s:Value>` + subcode +
		`</s:Value></s:Subcode></s:Code><s:Reason><s:Text xml:lang="en-US">` + reason +
		`</s:Text></s:Reason></s:Fault></s:Body></s:Envelope>`
	w.Header().Set("Content-Type", "application/soap+xml;charset=UTF-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, data)
}
