package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Engine: orchestrates Build and Parse against a Catalog
 *		and a Script Host (spec.md 4.4).
 *
 * Description:	Grounded on kissutil.go/appserver.go's top-level
 *		request-dispatch style (resolve a name against a
 *		registry, build a response, hand it back) generalized
 *		from "one KISS command" to "one catalog parameter".
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

// Engine owns one Catalog and one Script Host for its lifetime
// (spec.md 5). Exactly one Build/Parse call is in flight at a time;
// concurrent use of one Engine is undefined.
type Engine struct {
	catalog *Catalog
	scripts *ScriptHost
	logger  Logger
}

// NewEngine constructs an Engine over catalog, compiling every
// parameter script up front into the Script Host registry (spec.md
// 4.3 item 2, spec.md 5's "acquired in the Engine constructor"). A
// compile failure anywhere in the catalog is a ScriptContextSetupError
// and no Engine is returned.
func NewEngine(catalog *Catalog, logger Logger) (*Engine, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	host := newScriptHost(logger)

	for specName, spec := range catalog.specs {
		for addrName, group := range spec.paramGroups {
			for paramName, param := range group.params {
				for _, script := range param.scripts {
					key := scriptRegistryKey(specName, addrName, paramName, script.protocols)
					if _, err := host.Compile(key, script.source); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return &Engine{catalog: catalog, scripts: host, logger: logger}, nil
}

func scriptRegistryKey(spec, address, name, protocols string) string {
	return fmt.Sprintf("%s:%s:%s:%s", spec, address, name, protocols)
}

// Build resolves pf's lookup keys against the catalog, builds the
// request/expectation headers and request payloads, and resolves the
// decoder handle, per spec.md 4.4. The first missing catalog level is
// reported in the order spec/protocol/address/parameter-group/
// parameter (spec.md 4.4 step 6).
func (e *Engine) Build(pf *ParameterFrame) error {
	spec, ok := e.catalog.spec(pf.Spec)
	if !ok {
		return newBuildFailed("spec", "spec %q not found in catalog", pf.Spec)
	}

	protocol, ok := spec.protocol(pf.Protocol)
	if !ok {
		return newBuildFailed("protocol", "protocol %q not found for spec %q", pf.Protocol, pf.Spec)
	}

	parseProtocol, extended, err := resolveParseProtocol(pf.Protocol)
	if err != nil {
		return newBuildFailed("protocol", "%v", err)
	}
	pf.ParseProtocol = parseProtocol
	pf.ISO15765ExtendedID = extended

	if optionEnabled(protocol.options, "Length Byte") {
		pf.ISO14230AddLengthByte = true
	}
	if optionEnabled(protocol.options, "Extended Address") {
		pf.ISO15765ExtendedAddr = true
	}

	addr, ok := protocol.address(pf.Address)
	if !ok {
		return newBuildFailed("address", "address %q not found for protocol %q", pf.Address, pf.Protocol)
	}

	var reqHeader, expHeader, expMask []byte
	switch {
	case parseProtocol.IsLegacy():
		reqHeader, expHeader, expMask, err = buildHeaderLegacy(addr)
	case parseProtocol == ProtocolISO14230:
		reqHeader, expHeader, expMask, err = buildHeaderISO14230(addr)
	case parseProtocol == ProtocolISO15765:
		reqHeader, expHeader, expMask, err = buildHeaderISO15765(addr, extended)
	default:
		err = newBuildFailed("protocol", "unsupported protocol %q", pf.Protocol)
	}
	if err != nil {
		return err
	}

	group, ok := spec.paramGroup(pf.Address)
	if !ok {
		return newBuildFailed("parameter-group", "no parameters declared for address %q", pf.Address)
	}

	param, ok := group.parameter(pf.Name)
	if !ok {
		return newBuildFailed("parameter", "could not find parameter %q at address %q", pf.Name, pf.Address)
	}

	if param.combined {
		pf.ParseMode = ParseCombined
	} else {
		pf.ParseMode = ParseSeparately
	}

	if err := buildData(pf, param, reqHeader, expHeader, expMask); err != nil {
		return err
	}

	script, ok := findMatchingScript(param.scripts, pf.Protocol)
	if !ok {
		return newBuildFailed("parameter", "parameter %q has no decoder script matching protocol %q", pf.Name, pf.Protocol)
	}

	key := scriptRegistryKey(pf.Spec, pf.Address, pf.Name, script.protocols)
	handle, ok := e.scripts.resolve(key)
	if !ok {
		return newBuildFailed("parameter", "decoder for parameter %q is not registered (key %q)", pf.Name, key)
	}
	pf.DecoderHandle = handle

	return nil
}

func findMatchingScript(scripts []scriptDef, protocol string) (scriptDef, bool) {
	for _, s := range scripts {
		if strings.Contains(s.protocols, protocol) {
			return s, true
		}
	}
	return scriptDef{}, false
}

func optionEnabled(options map[string]string, name string) bool {
	v, ok := options[name]
	if !ok {
		return false
	}
	return !strings.EqualFold(v, "false")
}

// Parse cleans every MessageData's raw frames and runs the resolved
// decoder over them, per spec.md 4.4.
func (e *Engine) Parse(pf *ParameterFrame, out *[]Data) error {
	if pf.DecoderHandle < 0 {
		return newParseFailed(pf.ParseProtocol, "decoder handle is unresolved; Build must succeed before Parse")
	}

	for i := range pf.ListMessageData {
		md := &pf.ListMessageData[i]

		var err error
		switch {
		case pf.ParseProtocol.IsLegacy():
			err = cleanFramesLegacy(md, e.logger)
		case pf.ParseProtocol == ProtocolISO14230:
			err = cleanFramesISO14230(md, e.logger)
		case pf.ParseProtocol == ProtocolISO15765:
			headerLen := 2
			if pf.ISO15765ExtendedID {
				headerLen = 4
			}
			err = cleanFramesISO15765(md, headerLen, e.logger)
		default:
			err = newParseFailed(pf.ParseProtocol, "unsupported protocol")
		}
		if err != nil {
			return err
		}
	}

	switch pf.ParseMode {
	case ParseSeparately:
		return e.parseSeparately(pf, out)
	case ParseCombined:
		return e.parseCombined(pf, out)
	default:
		return newParseFailed(pf.ParseProtocol, "unknown parse mode")
	}
}

// parseSeparately invokes the decoder once per (header, data) pair
// across every MessageData, synthesizing the "Source Address" literal
// per spec.md 4.4 step 4.
func (e *Engine) parseSeparately(pf *ParameterFrame, out *[]Data) error {
	for i := range pf.ListMessageData {
		md := &pf.ListMessageData[i]
		reqBytes := flattenBytes(md.ListReqDataBytes)

		for j := range md.ListData {
			e.scripts.clearState()
			e.scripts.pushDataBytes([][]byte{md.ListData[j]})
			e.scripts.setRequestBytes(reqBytes)

			if err := e.scripts.invoke(pf.DecoderHandle); err != nil {
				return err
			}

			nums, lits := e.scripts.drainResults()
			sourceAddress := hexJoinWithTrailingSpace(md.ListHeaders[j])
			lits = append(lits, LiteralData{
				PropertyName: "Source Address",
				Value:        true,
				ValueIfTrue:  sourceAddress,
			})

			*out = append(*out, Data{
				ParameterName: pf.Name,
				SourceAddress: sourceAddress,
				Numericals:    nums,
				Literals:      lits,
			})
		}
	}

	return nil
}

// parseCombined invokes the decoder exactly once over every
// MessageData's cleaned headers and payloads together.
func (e *Engine) parseCombined(pf *ParameterFrame, out *[]Data) error {
	e.scripts.clearState()

	var headers, datas [][]byte
	var reqBytes []byte
	for i := range pf.ListMessageData {
		md := &pf.ListMessageData[i]
		headers = append(headers, md.ListHeaders...)
		datas = append(datas, md.ListData...)
		reqBytes = append(reqBytes, flattenBytes(md.ListReqDataBytes)...)
	}

	e.scripts.pushMsg(headers, datas)
	e.scripts.setRequestBytes(reqBytes)

	if err := e.scripts.invoke(pf.DecoderHandle); err != nil {
		return err
	}

	nums, lits := e.scripts.drainResults()
	*out = append(*out, Data{
		ParameterName: pf.Name,
		Numericals:    nums,
		Literals:      lits,
	})

	return nil
}

func flattenBytes(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
