package obdex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const s1CatalogXML = `<catalog>
  <spec name="SAEJ1979">
    <protocol name="ISO 9141-2">
      <address name="Default">
        <request prio="0x68" target="0x6A" source="0xF1"/>
        <response prio="0x48" target="0x6B" source="0x10"/>
      </address>
    </protocol>
    <parameters address="Default">
      <parameter name="Engine RPM" request="01 0C" response.prefix="41 0C" response.bytes="2">
        <script protocols="ISO 9141-2">NUM("", (256*BYTE(0)+BYTE(1))/4, 0, 16383.75, "rpm")</script>
      </parameter>
    </parameters>
  </spec>
</catalog>`

func Test_LoadCatalog_S1(t *testing.T) {
	cat, err := LoadCatalog(strings.NewReader(s1CatalogXML))
	require.NoError(t, err)

	names := cat.ParameterNames("SAEJ1979", "ISO 9141-2", "Default")
	assert.Equal(t, []string{"Engine RPM"}, names)

	spec, ok := cat.spec("SAEJ1979")
	require.True(t, ok)
	protocol, ok := spec.protocol("ISO 9141-2")
	require.True(t, ok)
	addr, ok := protocol.address("Default")
	require.True(t, ok)
	require.NotNil(t, addr.request)
	assert.Equal(t, int64(0x68), *addr.request.prio)
	require.NotNil(t, addr.response)
	assert.Equal(t, int64(0x48), *addr.response.prio)

	group, ok := spec.paramGroup("Default")
	require.True(t, ok)
	param, ok := group.parameter("Engine RPM")
	require.True(t, ok)
	require.Len(t, param.requests, 1)
	assert.Equal(t, "01 0C", param.requests[0].bytes)
	assert.Equal(t, "41 0C", param.requests[0].responsePrefix)
	assert.Equal(t, 2, param.requests[0].responseByteCount)
	require.Len(t, param.scripts, 1)
	assert.Contains(t, param.scripts[0].source, "NUM(")
}

const indexedRequestXML = `<catalog>
  <spec name="S">
    <protocol name="SAE J1850 PWM">
      <address name="A">
        <request prio="0x68" target="0x6A" source="0xF1"/>
      </address>
    </protocol>
    <parameters address="A">
      <parameter name="P" request0="01" request0.delay="10" response0.prefix="41" request1="02">
        <script protocols="SAE J1850">NUM("", 1, 0, 0, "")</script>
      </parameter>
    </parameters>
  </spec>
</catalog>`

func Test_LoadCatalog_indexedRequestForm(t *testing.T) {
	cat, err := LoadCatalog(strings.NewReader(indexedRequestXML))
	require.NoError(t, err)

	group, ok := cat.specs["S"].paramGroup("A")
	require.True(t, ok)
	param, ok := group.parameter("P")
	require.True(t, ok)

	require.Len(t, param.requests, 2)
	assert.Equal(t, "01", param.requests[0].bytes)
	assert.Equal(t, 10, param.requests[0].delayMs)
	assert.Equal(t, "41", param.requests[0].responsePrefix)
	assert.Equal(t, "02", param.requests[1].bytes)
	assert.False(t, param.mixedRequestForms)
}

const mixedRequestXML = `<catalog>
  <spec name="S">
    <parameters address="A">
      <parameter name="P" request="01" request0="02">
      </parameter>
    </parameters>
  </spec>
</catalog>`

func Test_LoadCatalog_detectsMixedRequestForms(t *testing.T) {
	cat, err := LoadCatalog(strings.NewReader(mixedRequestXML))
	require.NoError(t, err)

	param, ok := cat.specs["S"].paramGroups["A"].parameter("P")
	require.True(t, ok)
	assert.True(t, param.mixedRequestForms)
}

func Test_LoadCatalog_malformedXMLReturnsXMLParsingError(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader(`<catalog><spec name="S">`))
	require.Error(t, err)
	var xmlErr *XMLParsingError
	assert.ErrorAs(t, err, &xmlErr)
}

func Test_LoadCatalog_missingSpecNameIsAnError(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader(`<catalog><spec></spec></catalog>`))
	assert.Error(t, err)
}
