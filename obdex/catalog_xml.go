package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Load a catalog document (spec.md 6) into a Catalog.
 *
 * Description:	The catalog file loader is an external collaborator
 *		per spec.md's scope ("treated as a source of a
 *		structured tree"), but a complete repository needs a
 *		concrete one. No repo in the retrieval pack parses XML
 *		of any kind, so this is built directly on the standard
 *		library's encoding/xml rather than a pack-grounded
 *		third-party library (see DESIGN.md).
 *
 *------------------------------------------------------------------*/

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// LoadCatalog parses the XML grammar of spec.md 6 from r into an
// indexed, read-only Catalog. The root element's name is not
// prescribed by spec.md; only its "spec" children are interpreted.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	dec := xml.NewDecoder(r)
	cat := newCatalog()

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &XMLParsingError{Offset: dec.InputOffset(), Description: err.Error()}
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Local != "spec" {
			continue
		}

		spec, err := parseSpec(dec, start)
		if err != nil {
			return nil, err
		}
		cat.specs[spec.name] = spec
	}

	return cat, nil
}

func xmlErr(dec *xml.Decoder, format string, args ...any) error {
	return &XMLParsingError{Offset: dec.InputOffset(), Description: fmt.Sprintf(format, args...)}
}

func attrValue(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// skipElement consumes tokens up to and including the matching end
// element for a start element already read from dec, discarding
// everything in between. Used for catalog elements this loader does
// not interpret.
func skipElement(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return &XMLParsingError{Offset: dec.InputOffset(), Description: err.Error()}
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

func parseSpec(dec *xml.Decoder, start xml.StartElement) (*specDef, error) {
	name, ok := attrValue(start, "name")
	if !ok || name == "" {
		return nil, xmlErr(dec, "<spec> missing required name attribute")
	}

	spec := &specDef{
		name:        name,
		protocols:   make(map[string]*protocolDef),
		paramGroups: make(map[string]*paramGroupDef),
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlErr(dec, "unexpected end of document inside <spec name=%q>: %v", name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "protocol":
				protocol, err := parseProtocol(dec, t)
				if err != nil {
					return nil, err
				}
				spec.protocols[protocol.name] = protocol
			case "parameters":
				group, err := parseParamsGroup(dec, t)
				if err != nil {
					return nil, err
				}
				spec.paramGroups[group.address] = group
			default:
				if err := skipElement(dec); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "spec" {
				return spec, nil
			}
		}
	}
}

func parseProtocol(dec *xml.Decoder, start xml.StartElement) (*protocolDef, error) {
	name, ok := attrValue(start, "name")
	if !ok || name == "" {
		return nil, xmlErr(dec, "<protocol> missing required name attribute")
	}

	protocol := &protocolDef{
		name:      name,
		options:   make(map[string]string),
		addresses: make(map[string]*addressDef),
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlErr(dec, "unexpected end of document inside <protocol name=%q>: %v", name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "option":
				optName, _ := attrValue(t, "name")
				optValue, _ := attrValue(t, "value")
				protocol.options[optName] = optValue
				if err := skipElement(dec); err != nil {
					return nil, err
				}
			case "address":
				addr, err := parseAddress(dec, t)
				if err != nil {
					return nil, err
				}
				protocol.addresses[addr.name] = addr
				protocol.addressOrder = append(protocol.addressOrder, addr.name)
			default:
				if err := skipElement(dec); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "protocol" {
				return protocol, nil
			}
		}
	}
}

func parseAddress(dec *xml.Decoder, start xml.StartElement) (*addressDef, error) {
	name, ok := attrValue(start, "name")
	if !ok || name == "" {
		return nil, xmlErr(dec, "<address> missing required name attribute")
	}

	addr := &addressDef{name: name}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlErr(dec, "unexpected end of document inside <address name=%q>: %v", name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "request":
				spec, err := parseHeaderFieldSpec(dec, t)
				if err != nil {
					return nil, err
				}
				addr.request = spec
			case "response":
				spec, err := parseHeaderFieldSpec(dec, t)
				if err != nil {
					return nil, err
				}
				addr.response = spec
			default:
				if err := skipElement(dec); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "address" {
				return addr, nil
			}
		}
	}
}

func parseHeaderFieldSpec(dec *xml.Decoder, start xml.StartElement) (*headerFieldSpec, error) {
	spec := &headerFieldSpec{}

	for _, name := range []string{"prio", "target", "source", "identifier", "format"} {
		v, ok := attrValue(start, name)
		if !ok {
			continue
		}
		n, err := ParseLiteral(v)
		if err != nil {
			return nil, xmlErr(dec, "<%s %s=%q> is not a valid numeric literal: %v", start.Name.Local, name, v, err)
		}
		switch name {
		case "prio":
			spec.prio = &n
		case "target":
			spec.target = &n
		case "source":
			spec.source = &n
		case "identifier":
			spec.identifier = &n
		case "format":
			spec.format = &n
		}
	}

	if err := skipElement(dec); err != nil {
		return nil, err
	}

	return spec, nil
}

func parseParamsGroup(dec *xml.Decoder, start xml.StartElement) (*paramGroupDef, error) {
	address, ok := attrValue(start, "address")
	if !ok || address == "" {
		return nil, xmlErr(dec, "<parameters> missing required address attribute")
	}

	group := &paramGroupDef{address: address, params: make(map[string]*parameterDef)}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlErr(dec, "unexpected end of document inside <parameters address=%q>: %v", address, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "parameter":
				param, err := parseParameter(dec, t)
				if err != nil {
					return nil, err
				}
				group.params[param.name] = param
				group.paramOrder = append(group.paramOrder, param.name)
			default:
				if err := skipElement(dec); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			// The original implementation's GetParameterNames
			// famously advances on the wrong sibling pointer here
			// (spec.md 9, Open Questions); walking this loop's own
			// </parameters> end element, rather than reusing the
			// enclosing <protocol>'s cursor, is how that bug is
			// avoided.
			if t.Name.Local == "parameters" {
				return group, nil
			}
		}
	}
}

// rawParameter accumulates a <parameter> element's attributes before
// they're resolved into either a single request or an ordered set of
// indexed requests.
type rawParameter struct {
	name     string
	combined bool

	singlePresent bool
	single        requestSpec

	indexed map[int]*requestSpec
}

func parseParameter(dec *xml.Decoder, start xml.StartElement) (*parameterDef, error) {
	raw := rawParameter{indexed: make(map[int]*requestSpec)}

	for _, a := range start.Attr {
		name, value := a.Name.Local, a.Value

		switch name {
		case "name":
			raw.name = value
			continue
		case "parse":
			raw.combined = value == "combined"
			continue
		}

		if idx, kind, ok := parseIndexedRequestAttr(name); ok {
			rs := raw.indexed[idx]
			if rs == nil {
				rs = &requestSpec{}
				raw.indexed[idx] = rs
			}
			if err := applyRequestAttr(dec, rs, kind, value); err != nil {
				return nil, err
			}
			continue
		}

		switch name {
		case "request":
			raw.singlePresent = true
			raw.single.bytes = value
		case "request.delay":
			raw.singlePresent = true
			if err := applyRequestAttr(dec, &raw.single, "request.delay", value); err != nil {
				return nil, err
			}
		case "response.prefix":
			raw.singlePresent = true
			raw.single.responsePrefix = value
		case "response.bytes":
			raw.singlePresent = true
			if err := applyRequestAttr(dec, &raw.single, "response.bytes", value); err != nil {
				return nil, err
			}
		}
	}

	if raw.name == "" {
		return nil, xmlErr(dec, "<parameter> missing required name attribute")
	}

	param := &parameterDef{name: raw.name, combined: raw.combined}

	switch {
	case raw.singlePresent && len(raw.indexed) > 0:
		param.mixedRequestForms = true
	case raw.singlePresent:
		param.requests = []requestSpec{raw.single}
	default:
		param.requests = orderedIndexedRequests(raw.indexed)
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, xmlErr(dec, "unexpected end of document inside <parameter name=%q>: %v", raw.name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "script":
				script, err := parseScriptElement(dec, t)
				if err != nil {
					return nil, err
				}
				param.scripts = append(param.scripts, script)
			default:
				if err := skipElement(dec); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "parameter" {
				return param, nil
			}
		}
	}
}

func applyRequestAttr(dec *xml.Decoder, rs *requestSpec, kind, value string) error {
	switch kind {
	case "request":
		rs.bytes = value
	case "request.delay":
		n, err := strconv.Atoi(value)
		if err != nil {
			return xmlErr(dec, "request.delay=%q is not an integer: %v", value, err)
		}
		rs.delayMs = n
	case "response.prefix":
		rs.responsePrefix = value
	case "response.bytes":
		n, err := ParseLiteral(value)
		if err != nil {
			return xmlErr(dec, "response.bytes=%q is not a valid numeric literal: %v", value, err)
		}
		rs.hasResponseByteCount = true
		rs.responseByteCount = int(n)
	}
	return nil
}

func orderedIndexedRequests(indexed map[int]*requestSpec) []requestSpec {
	keys := make([]int, 0, len(indexed))
	for k := range indexed {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]requestSpec, 0, len(keys))
	for _, k := range keys {
		out = append(out, *indexed[k])
	}
	return out
}

// parseIndexedRequestAttr recognizes the indexed attribute forms
// "requestN", "requestN.delay", "responseN.prefix", "responseN.bytes"
// and reports the index and which field they set.
func parseIndexedRequestAttr(name string) (idx int, kind string, ok bool) {
	var base string
	switch {
	case strings.HasPrefix(name, "request"):
		base = "request"
	case strings.HasPrefix(name, "response"):
		base = "response"
	default:
		return 0, "", false
	}

	rest := name[len(base):]

	digitLen := 0
	for digitLen < len(rest) && rest[digitLen] >= '0' && rest[digitLen] <= '9' {
		digitLen++
	}
	if digitLen == 0 {
		return 0, "", false
	}

	n, err := strconv.Atoi(rest[:digitLen])
	if err != nil {
		return 0, "", false
	}
	suffix := rest[digitLen:]

	switch {
	case base == "request" && suffix == "":
		return n, "request", true
	case base == "request" && suffix == ".delay":
		return n, "request.delay", true
	case base == "response" && suffix == ".prefix":
		return n, "response.prefix", true
	case base == "response" && suffix == ".bytes":
		return n, "response.bytes", true
	default:
		return 0, "", false
	}
}

func parseScriptElement(dec *xml.Decoder, start xml.StartElement) (scriptDef, error) {
	protocols, _ := attrValue(start, "protocols")

	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return scriptDef{}, xmlErr(dec, "unexpected end of document inside <script>: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}

	return scriptDef{protocols: protocols, source: sb.String()}, nil
}
