package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	ISO 14230 (KWP2000) variable-header framing.
 *
 * Description:	Grounded on il2p_header.go/il2p_rec.go's pattern of a
 *		leading format/control byte whose bit-fields select the
 *		rest of the header's shape, decoded once up front and
 *		then used to slice the remainder of the frame.
 *
 *------------------------------------------------------------------*/

import "fmt"

const iso14230FormatMask = 0xC0
const iso14230LengthMask = 0x3F
const iso14230MaxPayloadAbsolute = 255
const iso14230MaxPayloadInlineLength = 63

// buildHeaderISO14230 builds the request header ([format] or
// [format, target, source], depending on whether the catalog
// declares target+source) and a fixed 3-slot expected response
// header/mask ([format, target, source]), per spec.md 4.2.1. The
// format byte's expected mask is always 0xC0 (the low six length
// bits are never part of header identity); target/source masks flip
// to 0xFF only when the catalog declares them for the response.
func buildHeaderISO14230(addr *addressDef) (reqHeader, expHeader, expMask []byte, err error) {
	if addr.request == nil || addr.request.format == nil {
		return nil, nil, nil, newBuildFailed("address", "ISO 14230 request header requires format")
	}

	hasTarget := addr.request.target != nil
	hasSource := addr.request.source != nil
	if hasTarget != hasSource {
		return nil, nil, nil, newBuildFailed("address", "ISO 14230 request header requires both target and source, or neither")
	}
	addressed := hasTarget && hasSource

	format := byte(*addr.request.format)
	if addressed {
		reqHeader = []byte{format, byte(*addr.request.target), byte(*addr.request.source)}
	} else {
		reqHeader = []byte{format}
	}

	expHeader = make([]byte, 3)
	expMask = make([]byte, 3)
	expMask[0] = iso14230FormatMask

	if addr.response != nil {
		if addr.response.format != nil {
			expHeader[0] = byte(*addr.response.format)
		}
		if addr.response.target != nil {
			expHeader[1] = byte(*addr.response.target)
			expMask[1] = 0xFF
		}
		if addr.response.source != nil {
			expHeader[2] = byte(*addr.response.source)
			expMask[2] = 0xFF
		}
	}

	return reqHeader, expHeader, expMask, nil
}

// postprocessISO14230 applies the ISO 14230 request encoding rules of
// spec.md 4.2.2: the total payload length either becomes a trailing
// header byte, or gets OR'd into the low six bits of header byte 0.
func postprocessISO14230(md *MessageData, addLengthByte bool) error {
	total := 0
	for _, frame := range md.ListReqDataBytes {
		total += len(frame)
	}

	if total > iso14230MaxPayloadAbsolute {
		return newBuildFailed("parameter", "ISO 14230 request payload of %d bytes exceeds the 255-byte limit", total)
	}

	if addLengthByte {
		md.ReqHeaderBytes = append(md.ReqHeaderBytes, byte(total))
		return nil
	}

	if total > iso14230MaxPayloadInlineLength {
		return newBuildFailed("parameter", "ISO 14230 request payload of %d bytes exceeds the 63-byte inline-length limit", total)
	}

	if len(md.ReqHeaderBytes) == 0 {
		return newBuildFailed("address", "ISO 14230 request header is empty")
	}
	md.ReqHeaderBytes[0] |= byte(total) & iso14230LengthMask

	return nil
}

// cleanFramesISO14230 decodes the variable-length format byte of each
// raw frame, slices out its header and payload, validates the header
// with a per-frame expected-header/mask derived from the fixed 3-slot
// expectation, and strips the declared data prefix. Individual
// mismatches are warned and the frame is skipped (spec.md 4.2.3/7);
// only an empty result after the whole pass is fatal.
func cleanFramesISO14230(md *MessageData, logger Logger) error {
	md.resetCleaned()

	for _, raw := range md.ListRawFrames {
		if len(raw) < 1 {
			logger.Emit(LevelWarn, "ISO 14230: dropping empty raw frame")
			continue
		}

		formatByte := raw[0]
		addressed := (formatByte>>6)&0x03 != 0x00
		inlineLen := formatByte & iso14230LengthMask

		headerLen := 1
		if addressed {
			headerLen = 3
		}

		var dataLen int
		if inlineLen != 0 {
			dataLen = int(inlineLen)
		} else {
			headerLen++ // trailing length byte
			if len(raw) < headerLen {
				logger.Emit(LevelWarn, "ISO 14230: dropping frame too short for its own length byte", "frame", fmt.Sprintf("%X", raw))
				continue
			}
			dataLen = int(raw[headerLen-1])
		}

		if len(raw) < headerLen+dataLen {
			logger.Emit(LevelWarn, "ISO 14230: dropping frame shorter than header+declared length", "frame", fmt.Sprintf("%X", raw))
			continue
		}

		header := raw[:headerLen]
		data := raw[headerLen : headerLen+dataLen]

		expSlice, maskSlice := iso14230PerFrameExpectation(md.ExpHeaderBytes, md.ExpHeaderMask, headerLen, addressed)

		if !maskedMatch(expSlice, maskSlice, header) {
			logger.Emit(LevelWarn, "ISO 14230: dropping frame with mismatched header", "header", fmt.Sprintf("%X", header))
			continue
		}

		stripped, ok := stripPrefix(data, md.ExpDataPrefix)
		if !ok {
			logger.Emit(LevelWarn, "ISO 14230: dropping frame with mismatched data prefix", "data", fmt.Sprintf("%X", data))
			continue
		}

		md.ListHeaders = append(md.ListHeaders, append([]byte(nil), header...))
		md.ListData = append(md.ListData, stripped)
	}

	if len(md.ListData) == 0 {
		return newParseFailed(ProtocolISO14230, "every frame was dropped while cleaning")
	}

	return nil
}

// iso14230PerFrameExpectation builds the expected-header/mask slice
// for one frame given its decoded header length, per spec.md 4.2.3:
// slot 0 always comes from the fixed expectation, slots 1-2 are
// included only for addressed headers, and any trailing length-byte
// slot is padded with 0/0 so it always matches.
func iso14230PerFrameExpectation(exp, mask []byte, headerLen int, addressed bool) ([]byte, []byte) {
	expSlice := make([]byte, headerLen)
	maskSlice := make([]byte, headerLen)

	expSlice[0] = exp[0]
	maskSlice[0] = mask[0]

	idx := 1
	if addressed {
		expSlice[1], maskSlice[1] = exp[1], mask[1]
		expSlice[2], maskSlice[2] = exp[2], mask[2]
		idx = 3
	}

	if headerLen > idx {
		expSlice[idx], maskSlice[idx] = 0, 0
	}

	return expSlice, maskSlice
}
