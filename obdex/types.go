package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Core data model shuttled between a caller and the Engine.
 *
 * Description:	A ParameterFrame starts out holding only lookup keys.
 *		Engine.Build fills in everything needed to transmit a
 *		request; the caller then fills in ListRawFrames with
 *		whatever came back off the bus, and Engine.Parse turns
 *		that into a []Data.
 *
 *------------------------------------------------------------------*/

// ProtocolTag identifies a wire protocol family. Values are fixed so
// that "legacy" is a simple threshold test.
type ProtocolTag int

const (
	ProtocolUnknown  ProtocolTag = 0x000
	ProtocolJ1850    ProtocolTag = 0x001
	ProtocolISO9141  ProtocolTag = 0x002
	ProtocolISO14230 ProtocolTag = 0xA01
	ProtocolISO15765 ProtocolTag = 0xA02
)

// legacyProtocolCeiling is the tag value at and above which a protocol
// is no longer "legacy" (three-byte header family).
const legacyProtocolCeiling ProtocolTag = 0xA00

// IsLegacy reports whether tag belongs to the three-byte-header family
// (SAE J1850, ISO 9141-2).
func (tag ProtocolTag) IsLegacy() bool {
	return tag != ProtocolUnknown && tag < legacyProtocolCeiling
}

func (tag ProtocolTag) String() string {
	switch tag {
	case ProtocolJ1850:
		return "SAE J1850"
	case ProtocolISO9141:
		return "ISO 9141-2"
	case ProtocolISO14230:
		return "ISO 14230"
	case ProtocolISO15765:
		return "ISO 15765"
	default:
		return "unknown protocol"
	}
}

// ParseMode selects how Engine.Parse groups cleaned frames before
// invoking the decoder script.
type ParseMode int

const (
	// ParseSeparately invokes the decoder once per (header, data) pair.
	ParseSeparately ParseMode = iota
	// ParseCombined invokes the decoder exactly once over every
	// MessageData's cleaned headers and payloads together.
	ParseCombined
)

// decoderHandleUnresolved is DecoderHandle's value before Build has
// resolved it against the Script Host registry.
const decoderHandleUnresolved = -1

// ParameterFrame is the central value passed into Engine.Build and
// Engine.Parse. It is caller-owned: Build mutates it once to populate
// the outbound request side, the caller is responsible for filling in
// ListRawFrames on every MessageData, and Parse mutates the cleaned
// side and returns the decoded []Data separately.
type ParameterFrame struct {
	// Lookup keys, filled in by the caller before Build.
	Spec     string
	Protocol string
	Address  string
	Name     string

	// ParseProtocol is set by Build from Protocol.
	ParseProtocol ProtocolTag

	// Protocol options. Defaults match spec.md's stated defaults and
	// are applied by NewParameterFrame.
	ISO15765AddPCIByte         bool
	ISO15765SplitReqIntoFrames bool
	ISO14230AddLengthByte      bool
	ISO15765ExtendedID         bool
	ISO15765ExtendedAddr       bool

	// ParseMode controls decoder invocation in Parse.
	ParseMode ParseMode

	// DecoderHandle indexes into the Script Host's function registry,
	// or decoderHandleUnresolved before Build resolves it.
	DecoderHandle int

	// ListMessageData holds one entry per declared request.
	ListMessageData []MessageData
}

// NewParameterFrame returns a ParameterFrame with the lookup keys set
// and every option at its spec-mandated default.
func NewParameterFrame(spec, protocol, address, name string) *ParameterFrame {
	return &ParameterFrame{
		Spec:                       spec,
		Protocol:                   protocol,
		Address:                    address,
		Name:                       name,
		ISO15765AddPCIByte:         true,
		ISO15765SplitReqIntoFrames: true,
		ISO14230AddLengthByte:      false,
		ISO15765ExtendedID:         false,
		ISO15765ExtendedAddr:       false,
		ParseMode:                  ParseSeparately,
		DecoderHandle:              decoderHandleUnresolved,
	}
}

// MessageData is the per-request container: the bytes to transmit,
// the header shape expected back, and (once filled by the caller and
// then cleaned by Parse) the raw and cleaned response bytes.
type MessageData struct {
	// Request side, filled by Build.
	ReqHeaderBytes    []byte
	ListReqDataBytes  [][]byte
	ReqDataDelayMs    int

	// Expectation side, filled by Build. ExpHeaderBytes and
	// ExpHeaderMask always have equal length.
	ExpHeaderBytes   []byte
	ExpHeaderMask    []byte
	ExpDataPrefix    []byte
	ExpDataByteCount int // negative means "unknown"

	// Raw side, filled by the caller after transmitting the request.
	ListRawFrames [][]byte

	// Cleaned side, filled by Parse. ListHeaders and ListData always
	// have equal length; the i-th header corresponds to the i-th data
	// payload.
	ListHeaders [][]byte
	ListData    [][]byte
}

// resetCleaned clears the cleaned-side fields in preparation for a
// fresh Parse pass, per spec.md 4.4 step 2.
func (md *MessageData) resetCleaned() {
	md.ListHeaders = nil
	md.ListData = nil
}

// Data is one decoded result record: a parameter's numeric
// measurements and literal facts, tagged with the source address the
// decoder program read them from.
type Data struct {
	ParameterName string
	SourceAddress string
	Numericals    []NumericalData
	Literals      []LiteralData
}

// NumericalData is one decoded measurement.
type NumericalData struct {
	PropertyName string
	Value        float64
	Min          float64
	Max          float64
	Units        string
}

// LiteralData is one decoded boolean-labelled fact.
type LiteralData struct {
	PropertyName  string
	Value         bool
	ValueIfTrue   string
	ValueIfFalse  string
}
