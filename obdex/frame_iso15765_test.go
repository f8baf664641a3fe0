package obdex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// S2 — ISO 15765 multi-frame request build.
func Test_postprocessISO15765_S2(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	md := &MessageData{ListReqDataBytes: [][]byte{payload}}
	postprocessISO15765(md, true, true)

	require.Len(t, md.ListReqDataBytes, 3)
	assert.Equal(t, []byte{0x10, 0x14, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, md.ListReqDataBytes[0])
	assert.Equal(t, []byte{0x21, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C}, md.ListReqDataBytes[1])
	assert.Equal(t, []byte{0x22, 0x0D, 0x0E, 0x0F, 0x10, 0x11, 0x12, 0x13}, md.ListReqDataBytes[2])
}

// S3 — ISO 15765 multi-frame defragmentation.
func Test_cleanFramesISO15765_S3(t *testing.T) {
	header := []byte{0x00, 0x00}
	md := &MessageData{
		ExpHeaderBytes: header,
		ExpHeaderMask:  []byte{0x00, 0x00},
		ListRawFrames: [][]byte{
			append(append([]byte{}, header...), 0x10, 0x0D, 0x41, 0x00, 0xBE, 0x3E, 0xB8, 0x11),
			append(append([]byte{}, header...), 0x21, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00),
			append(append([]byte{}, header...), 0x22, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77),
		},
	}

	err := cleanFramesISO15765(md, 2, noopLogger{})
	require.NoError(t, err)
	require.Len(t, md.ListData, 1)
	assert.Equal(t, []byte{
		0x41, 0x00, 0xBE, 0x3E, 0xB8, 0x11,
		0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00,
	}, md.ListData[0])
}

// Property 3 — ISO 15765 round trip: build then reassemble yields the
// original payload back.
func Test_ISO15765_roundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "payload")

		header := []byte{0x07, 0xE8}
		md := &MessageData{
			ListReqDataBytes: [][]byte{append([]byte(nil), payload...)},
			ExpHeaderBytes:   header,
			ExpHeaderMask:    []byte{0xFF, 0xFF},
		}
		postprocessISO15765(md, true, true)

		// Concatenate all frames after stripping PCI bytes; the result
		// equals the original payload.
		var stripped []byte
		for i, frame := range md.ListReqDataBytes {
			if i == 0 && len(md.ListReqDataBytes) > 1 {
				stripped = append(stripped, frame[2:]...)
			} else {
				stripped = append(stripped, frame[1:]...)
			}
		}
		assert.Equal(t, payload, stripped)

		// Reassembling with the cleaner yields a single list_data entry
		// equal to the payload.
		md.ListRawFrames = nil
		for _, frame := range md.ListReqDataBytes {
			raw := append(append([]byte{}, header...), frame...)
			md.ListRawFrames = append(md.ListRawFrames, raw)
		}

		err := cleanFramesISO15765(md, 2, noopLogger{})
		require.NoError(t, err)
		require.Len(t, md.ListData, 1)
		assert.Equal(t, payload, md.ListData[0])
	})
}

func Test_buildHeaderISO15765Standard(t *testing.T) {
	id := int64(0x7E0)
	respID := int64(0x7E8)
	addr := &addressDef{
		request:  &headerFieldSpec{identifier: &id},
		response: &headerFieldSpec{identifier: &respID},
	}

	reqHeader, expHeader, expMask, err := buildHeaderISO15765(addr, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07, 0xE0}, reqHeader)
	assert.Equal(t, []byte{0x07, 0xE8}, expHeader)
	assert.Equal(t, []byte{0xFF, 0xFF}, expMask)
}

func Test_buildHeaderISO15765Extended_requiresAllFourFields(t *testing.T) {
	addr := &addressDef{request: &headerFieldSpec{}}
	_, _, _, err := buildHeaderISO15765(addr, true)
	assert.Error(t, err)
	var buildFailed *BuildFailedError
	assert.ErrorAs(t, err, &buildFailed)
}

func Test_nextISO15765CFPCI_wraps(t *testing.T) {
	assert.Equal(t, byte(0x22), nextISO15765CFPCI(0x21))
	assert.Equal(t, byte(0x20), nextISO15765CFPCI(0x2F))
}
