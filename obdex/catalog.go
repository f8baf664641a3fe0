package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Read-only, in-memory view of the declarative catalog:
 *		specs -> protocols -> addresses -> parameters -> scripts.
 *
 * Description:	Built once at load time as indexed maps (spec.md 9's
 *		re-architecture guidance: "treat the catalog as
 *		immutable and use direct indexed lookups... built once
 *		at load" rather than re-walking a tree on every Build
 *		call, which is what the original C++ parser does).
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

// headerFieldSpec is one optional numeric field (prio/target/source/
// identifier/format) in a <request> or <response> element. A nil
// pointer means the attribute was absent from the catalog.
type headerFieldSpec struct {
	prio       *int64
	target     *int64
	source     *int64
	identifier *int64
	format     *int64
}

// addressDef is one <address> element: its name and optional request/
// response header templates.
type addressDef struct {
	name     string
	request  *headerFieldSpec
	response *headerFieldSpec
}

// protocolDef is one <protocol> element: declared options and its
// addresses, in declaration order.
type protocolDef struct {
	name         string
	options      map[string]string
	addresses    map[string]*addressDef
	addressOrder []string
}

// requestSpec is one request/response pair within a <parameter>,
// either the bare "request="/"response.*" attributes or one indexed
// "requestN="/"responseN.*" group.
type requestSpec struct {
	bytes                string
	delayMs              int
	responsePrefix       string
	hasResponseByteCount bool
	responseByteCount    int
}

// scriptDef is one inline <script> element.
type scriptDef struct {
	protocols string // raw attribute, substring-matched against the requested protocol name
	source    string
}

// parameterDef is one <parameter> element.
type parameterDef struct {
	name     string
	combined bool
	requests []requestSpec
	scripts  []scriptDef

	// mixedRequestForms is true when the catalog declared both the
	// single ("request=") and indexed ("requestN=") forms on the same
	// parameter. Detected at load time in catalog_xml.go, where the
	// raw attribute names are visible; raised as a BuildFailedError at
	// Build time (spec.md 4.2.2), not at load time, since the catalog
	// loader itself only ever fails with XMLParsingError.
	mixedRequestForms bool
}

// paramGroupDef is one <parameters address=...> element.
type paramGroupDef struct {
	address    string
	params     map[string]*parameterDef
	paramOrder []string
}

// specDef is one <spec> element.
type specDef struct {
	name          string
	protocols     map[string]*protocolDef
	paramGroups   map[string]*paramGroupDef
}

// Catalog is the read-only, indexed catalog model. Build it once with
// LoadCatalog and share it across every Engine that uses the same
// definitions file.
type Catalog struct {
	specs map[string]*specDef
}

func newCatalog() *Catalog {
	return &Catalog{specs: make(map[string]*specDef)}
}

func (c *Catalog) spec(name string) (*specDef, bool) {
	s, ok := c.specs[name]
	return s, ok
}

func (s *specDef) protocol(name string) (*protocolDef, bool) {
	p, ok := s.protocols[name]
	return p, ok
}

func (p *protocolDef) address(name string) (*addressDef, bool) {
	a, ok := p.addresses[name]
	return a, ok
}

func (s *specDef) paramGroup(address string) (*paramGroupDef, bool) {
	g, ok := s.paramGroups[address]
	return g, ok
}

func (g *paramGroupDef) parameter(name string) (*parameterDef, bool) {
	p, ok := g.params[name]
	return p, ok
}

// ParameterNames returns the parameter names declared for the
// (spec, address) group when the (spec, protocol, address) triple is
// found in the catalog; it returns an empty slice if any of the three
// levels does not exist. This mirrors Parser::GetParameterNames from
// the original implementation, but walks indexed maps instead of a
// linked sibling-node chain, sidestepping the original's sibling-
// pointer bug noted in spec.md 9 (Open Questions) entirely.
func (c *Catalog) ParameterNames(spec, protocol, address string) []string {
	s, ok := c.spec(spec)
	if !ok {
		return nil
	}

	p, ok := s.protocol(protocol)
	if !ok {
		return nil
	}

	if _, ok := p.address(address); !ok {
		return nil
	}

	g, ok := s.paramGroup(address)
	if !ok {
		return nil
	}

	out := make([]string, len(g.paramOrder))
	copy(out, g.paramOrder)
	return out
}

// resolveParseProtocol classifies a requested protocol name string
// into a ProtocolTag per spec.md 4.4 step 1, and reports whether the
// extended-id ISO 15765 variant was requested.
func resolveParseProtocol(protocol string) (ProtocolTag, bool, error) {
	switch {
	case strings.Contains(protocol, "SAE J1850"):
		return ProtocolJ1850, false, nil
	case protocol == "ISO 9141-2":
		return ProtocolISO9141, false, nil
	case protocol == "ISO 14230":
		return ProtocolISO14230, false, nil
	case strings.Contains(protocol, "ISO 15765"):
		extended := strings.Contains(protocol, "Extended Id")
		return ProtocolISO15765, extended, nil
	default:
		return ProtocolUnknown, false, fmt.Errorf("unrecognized protocol %q", protocol)
	}
}
