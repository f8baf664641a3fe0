package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	ISO 15765 (ISO-TP over CAN) framing: PCI packing, request
 *		segmentation, and multi-frame defragmentation.
 *
 * Description:	Grounded on fx25_send.go's bitStuff (fixed-size chunk
 *		splitting with a running remainder, spec.md B.3) for the
 *		request side, and on fx25_rec.go/il2p_rec.go's
 *		validate-then-strip-then-accumulate, warn-and-continue
 *		receive discipline for the reassembly side.
 *
 *------------------------------------------------------------------*/

import "fmt"

const (
	iso15765FirstFrameChunk       = 6
	iso15765ConsecutiveFrameChunk = 7
	iso15765PCINibbleSingle       = 0x0
	iso15765PCINibbleFirst        = 0x1
	iso15765FirstExpectedCFPCI    = 0x21
	iso15765LastCFPCIBeforeWrap   = 0x2F
	iso15765WrappedCFPCI          = 0x20
)

// buildHeaderISO15765 builds the request/expected-response header
// pair for ISO 15765, per spec.md 4.2.1.
func buildHeaderISO15765(addr *addressDef, extended bool) (reqHeader, expHeader, expMask []byte, err error) {
	if extended {
		return buildHeaderISO15765Extended(addr)
	}
	return buildHeaderISO15765Standard(addr)
}

func buildHeaderISO15765Standard(addr *addressDef) (reqHeader, expHeader, expMask []byte, err error) {
	if addr.request == nil || addr.request.identifier == nil {
		return nil, nil, nil, newBuildFailed("address", "ISO 15765 request header requires identifier")
	}

	reqHeader = pack11BitIdentifier(*addr.request.identifier)

	expHeader = make([]byte, 2)
	expMask = make([]byte, 2)
	if addr.response != nil && addr.response.identifier != nil {
		copy(expHeader, pack11BitIdentifier(*addr.response.identifier))
		expMask[0], expMask[1] = 0xFF, 0xFF
	}

	return reqHeader, expHeader, expMask, nil
}

func pack11BitIdentifier(id int64) []byte {
	return []byte{byte((id & 0xF00) >> 8), byte(id & 0xFF)}
}

func buildHeaderISO15765Extended(addr *addressDef) (reqHeader, expHeader, expMask []byte, err error) {
	if addr.request == nil ||
		addr.request.prio == nil || addr.request.format == nil ||
		addr.request.target == nil || addr.request.source == nil {
		return nil, nil, nil, newBuildFailed("address", "ISO 15765 extended-id request header requires prio, format, target and source")
	}

	reqHeader = []byte{
		byte(*addr.request.prio),
		byte(*addr.request.format),
		byte(*addr.request.target),
		byte(*addr.request.source),
	}

	expHeader = make([]byte, 4)
	expMask = make([]byte, 4)

	if addr.response != nil {
		fields := []*int64{addr.response.prio, addr.response.format, addr.response.target, addr.response.source}
		for i, f := range fields {
			if f != nil {
				expHeader[i] = byte(*f)
				expMask[i] = 0xFF
			}
		}
	}

	return reqHeader, expHeader, expMask, nil
}

// postprocessISO15765 applies the multi-frame split and PCI-byte
// encoding of spec.md 4.2.2 to a MessageData whose ListReqDataBytes
// currently holds exactly one frame (the whole payload as built by
// the generic data builder).
func postprocessISO15765(md *MessageData, split, addPCI bool) {
	payload := md.ListReqDataBytes[0]
	total := len(payload)

	frames := [][]byte{payload}
	if split && total > 7 {
		frames = splitISO15765Payload(payload)
	}

	if addPCI {
		if len(frames) == 1 {
			frames[0] = prependBytes(frames[0], byte(len(frames[0])&0x0F))
		} else {
			pci0 := byte(((total & 0xF00) >> 8) | 0x10)
			pci1 := byte(total & 0xFF)
			frames[0] = prependBytes(frames[0], pci0, pci1)
			for j := 1; j < len(frames); j++ {
				frames[j] = prependBytes(frames[j], byte(0x20+(j%0x10)))
			}
		}
	}

	md.ListReqDataBytes = frames
}

// splitISO15765Payload chunks payload the way spec.md 4.2.2 step 1
// describes: the first frame keeps 6 bytes, every consecutive frame
// keeps 7, with remainders carried forward until everything is
// placed.
func splitISO15765Payload(payload []byte) [][]byte {
	var frames [][]byte

	firstLen := min(iso15765FirstFrameChunk, len(payload))
	frames = append(frames, payload[:firstLen])

	rest := payload[firstLen:]
	for len(rest) > 0 {
		n := min(iso15765ConsecutiveFrameChunk, len(rest))
		frames = append(frames, rest[:n])
		rest = rest[n:]
	}

	return frames
}

func prependBytes(data []byte, prefix ...byte) []byte {
	out := make([]byte, 0, len(prefix)+len(data))
	out = append(out, prefix...)
	out = append(out, data...)
	return out
}

// cleanFramesISO15765 validates each raw frame's header against the
// expected header/mask, then defragments multi-frame ISO-TP messages
// per spec.md 4.2.3: First Frames accumulate Consecutive Frames from
// the remaining, same-header frame pool in PCI order until the
// declared length is reached, then every surviving frame has its PCI
// byte(s) stripped and its data prefix validated.
// iso15765RawFrame is one header-validated, not-yet-defragmented raw
// frame awaiting PCI interpretation.
type iso15765RawFrame struct {
	header []byte
	data   []byte
}

func cleanFramesISO15765(md *MessageData, headerLen int, logger Logger) error {
	md.resetCleaned()

	var frames []iso15765RawFrame
	for _, raw := range md.ListRawFrames {
		if len(raw) < headerLen {
			logger.Emit(LevelWarn, "ISO 15765: dropping frame shorter than the header", "frame", fmt.Sprintf("%X", raw))
			continue
		}

		header := raw[:headerLen]
		if !maskedMatch(md.ExpHeaderBytes, md.ExpHeaderMask, header) {
			logger.Emit(LevelWarn, "ISO 15765: dropping frame with mismatched header", "header", fmt.Sprintf("%X", header))
			continue
		}

		frames = append(frames, iso15765RawFrame{
			header: append([]byte(nil), header...),
			data:   append([]byte(nil), raw[headerLen:]...),
		})
	}

	consumed := make([]bool, len(frames))

	type assembled struct {
		header []byte
		data   []byte
	}
	var results []assembled

	for j := range frames {
		if consumed[j] || len(frames[j].data) == 0 {
			continue
		}

		pci := frames[j].data[0]
		nibble := pci >> 4

		switch nibble {
		case iso15765PCINibbleSingle:
			consumed[j] = true
			results = append(results, assembled{header: frames[j].header, data: frames[j].data[1:]})

		case iso15765PCINibbleFirst:
			consumed[j] = true
			if len(frames[j].data) < 2 {
				logger.Emit(LevelWarn, "ISO 15765: dropping truncated First Frame")
				continue
			}

			total := (int(pci&0x0F) << 8) | int(frames[j].data[1])
			acc := append([]byte(nil), frames[j].data[2:]...)
			expectedPCI := byte(iso15765FirstExpectedCFPCI)

			for len(acc) < total {
				next := findConsecutiveFrame(frames, consumed, frames[j].header, expectedPCI)
				if next < 0 {
					break
				}
				acc = append(acc, frames[next].data[1:]...)
				consumed[next] = true
				expectedPCI = nextISO15765CFPCI(expectedPCI)
			}

			if len(acc) > total {
				acc = acc[:total]
			}

			results = append(results, assembled{header: frames[j].header, data: acc})

		default:
			consumed[j] = true
			logger.Emit(LevelWarn, "ISO 15765: dropping frame with unexpected PCI nibble", "pci", fmt.Sprintf("%X", pci))
		}
	}

	for _, r := range results {
		stripped, ok := stripPrefix(r.data, md.ExpDataPrefix)
		if !ok {
			logger.Emit(LevelWarn, "ISO 15765: dropping frame with mismatched data prefix", "data", fmt.Sprintf("%X", r.data))
			continue
		}
		md.ListHeaders = append(md.ListHeaders, r.header)
		md.ListData = append(md.ListData, stripped)
	}

	if len(md.ListData) == 0 {
		return newParseFailed(ProtocolISO15765, "every frame was dropped while cleaning")
	}

	return nil
}

// findConsecutiveFrame scans, in receipt order, for the earliest
// not-yet-consumed frame sharing header and carrying the expected
// Consecutive Frame PCI byte (spec.md 5's ordering rule).
func findConsecutiveFrame(frames []iso15765RawFrame, consumed []bool, header []byte, expectedPCI byte) int {
	for k := range frames {
		if consumed[k] || len(frames[k].data) == 0 {
			continue
		}
		if frames[k].data[0] != expectedPCI {
			continue
		}
		if !bytesEqualExact(frames[k].header, header) {
			continue
		}
		return k
	}
	return -1
}

func bytesEqualExact(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// nextISO15765CFPCI advances a Consecutive Frame PCI byte: 0x21..0x2F
// then wraps to 0x20, per spec.md 4.2.3 and the wrap behavior
// discussed in spec.md 9's Open Questions.
func nextISO15765CFPCI(pci byte) byte {
	if pci == iso15765LastCFPCIBeforeWrap {
		return iso15765WrappedCFPCI
	}
	return pci + 1
}
