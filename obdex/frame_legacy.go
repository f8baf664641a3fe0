package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Legacy (SAE J1850, ISO 9141-2) three-byte header framing.
 *
 * Description:	Grounded on ax25_pad.go's style of packing a fixed set
 *		of declared fields into a fixed-width byte layout, one
 *		field at a time, each with its own presence check.
 *
 *------------------------------------------------------------------*/

const legacyHeaderLen = 3

// buildHeaderLegacy builds the request header [prio, target, source]
// (all three required) and the expected response header/mask, per
// spec.md 4.2.1. Declared response fields set their byte and flip
// their mask byte to 0xFF; everything else starts at zero.
func buildHeaderLegacy(addr *addressDef) (reqHeader, expHeader, expMask []byte, err error) {
	if addr.request == nil || addr.request.prio == nil || addr.request.target == nil || addr.request.source == nil {
		return nil, nil, nil, newBuildFailed("address", "legacy request header requires prio, target and source")
	}

	reqHeader = []byte{
		byte(*addr.request.prio),
		byte(*addr.request.target),
		byte(*addr.request.source),
	}

	expHeader = make([]byte, legacyHeaderLen)
	expMask = make([]byte, legacyHeaderLen)

	if addr.response != nil {
		if addr.response.prio != nil {
			expHeader[0] = byte(*addr.response.prio)
			expMask[0] = 0xFF
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

// cleanFramesLegacy splits each raw frame at the fixed 3-byte header
// boundary, validates the header via maskedMatch, strips the
// declared response prefix, and appends the survivors. Any mismatch
// is fatal for the legacy family (spec.md 4.2.3/7).
func cleanFramesLegacy(md *MessageData, logger Logger) error {
	md.resetCleaned()

	for _, raw := range md.ListRawFrames {
		if len(raw) < legacyHeaderLen {
			return newParseFailed(ProtocolJ1850, "raw frame shorter than the fixed 3-byte legacy header")
		}

		header := raw[:legacyHeaderLen]
		data := raw[legacyHeaderLen:]

		if !maskedMatch(md.ExpHeaderBytes, md.ExpHeaderMask, header) {
			return newParseFailed(ProtocolJ1850, "response header %X does not match expected %X under mask %X",
				header, md.ExpHeaderBytes, md.ExpHeaderMask)
		}

		stripped, ok := stripPrefix(data, md.ExpDataPrefix)
		if !ok {
			return newParseFailed(ProtocolJ1850, "response data %X does not start with expected prefix %X",
				data, md.ExpDataPrefix)
		}

		md.ListHeaders = append(md.ListHeaders, append([]byte(nil), header...))
		md.ListData = append(md.ListData, stripped)
	}

	if len(md.ListData) == 0 {
		return newParseFailed(ProtocolJ1850, "no frames survived cleaning")
	}

	return nil
}
