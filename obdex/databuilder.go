package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Build the per-request MessageData list for a parameter.
 *
 * Description:	Handles the "request=" + optional
 *		"response.prefix="/"response.bytes="/"request.delay="
 *		single-request form and the indexed "requestN=" form,
 *		copies header fields from the first MessageData into
 *		every subsequent one, then dispatches to the
 *		protocol-specific post-processing step (spec.md 4.2.2).
 *
 *------------------------------------------------------------------*/

const unknownByteCount = -1

// buildData turns a parameter's declared requests into
// pf.ListMessageData, applying the shared request/response header
// and the protocol-specific post-processing.
func buildData(pf *ParameterFrame, param *parameterDef, reqHeader, expHeader, expMask []byte) error {
	if param.mixedRequestForms {
		return newBuildFailed("parameter", "parameter %q mixes the single and indexed request attribute forms", param.name)
	}

	if len(param.requests) == 0 {
		return newBuildFailed("parameter", "parameter %q declares no requests", param.name)
	}

	pf.ListMessageData = make([]MessageData, 0, len(param.requests))

	for _, rs := range param.requests {
		reqBytes, err := parseByteString(rs.bytes)
		if err != nil {
			return newBuildFailed("parameter", "parameter %q has an unparsable request byte sequence %q: %v", param.name, rs.bytes, err)
		}

		prefixBytes, err := parseByteString(rs.responsePrefix)
		if err != nil {
			return newBuildFailed("parameter", "parameter %q has an unparsable response prefix %q: %v", param.name, rs.responsePrefix, err)
		}

		byteCount := unknownByteCount
		if rs.hasResponseByteCount {
			byteCount = rs.responseByteCount
		}

		md := MessageData{
			ListReqDataBytes: [][]byte{reqBytes},
			ReqDataDelayMs:   rs.delayMs,
			ExpDataPrefix:    prefixBytes,
			ExpDataByteCount: byteCount,
		}

		pf.ListMessageData = append(pf.ListMessageData, md)
	}

	// Copy header fields from the first MessageData into every
	// subsequent one (spec.md 4.2.2).
	for i := range pf.ListMessageData {
		pf.ListMessageData[i].ReqHeaderBytes = append([]byte(nil), reqHeader...)
		pf.ListMessageData[i].ExpHeaderBytes = append([]byte(nil), expHeader...)
		pf.ListMessageData[i].ExpHeaderMask = append([]byte(nil), expMask...)
	}

	for i := range pf.ListMessageData {
		md := &pf.ListMessageData[i]

		switch pf.ParseProtocol {
		case ProtocolISO15765:
			postprocessISO15765(md, pf.ISO15765SplitReqIntoFrames, pf.ISO15765AddPCIByte)
		case ProtocolISO14230:
			if err := postprocessISO14230(md, pf.ISO14230AddLengthByte); err != nil {
				return err
			}
		}
	}

	return nil
}
