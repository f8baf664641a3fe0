package obdex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, xmlDoc string) *Engine {
	t.Helper()
	cat, err := LoadCatalog(strings.NewReader(xmlDoc))
	require.NoError(t, err)
	engine, err := NewEngine(cat, noopLogger{})
	require.NoError(t, err)
	return engine
}

// S1 — legacy single-request parse, full Build+Parse round trip.
func Test_Engine_S1(t *testing.T) {
	engine := newTestEngine(t, s1CatalogXML)

	pf := NewParameterFrame("SAEJ1979", "ISO 9141-2", "Default", "Engine RPM")
	require.NoError(t, engine.Build(pf))

	require.Len(t, pf.ListMessageData, 1)
	pf.ListMessageData[0].ListRawFrames = [][]byte{{0x48, 0x6B, 0x10, 0x41, 0x0C, 0x2A, 0xBC}}

	var results []Data
	require.NoError(t, engine.Parse(pf, &results))

	require.Len(t, results, 1)
	require.Len(t, results[0].Numericals, 1)
	assert.Equal(t, 2735.0, results[0].Numericals[0].Value)
	assert.Equal(t, "rpm", results[0].Numericals[0].Units)

	require.Len(t, results[0].Literals, 1)
	assert.Equal(t, "Source Address", results[0].Literals[0].PropertyName)
	assert.True(t, results[0].Literals[0].Value)
	assert.Equal(t, "48 6B 10 ", results[0].Literals[0].ValueIfTrue)
}

// S6 — missing catalog entry.
func Test_Engine_S6_missingParameter(t *testing.T) {
	engine := newTestEngine(t, s1CatalogXML)

	pf := NewParameterFrame("SAEJ1979", "ISO 9141-2", "Default", "Does Not Exist")
	err := engine.Build(pf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find parameter")

	var buildFailed *BuildFailedError
	assert.ErrorAs(t, err, &buildFailed)
}

func Test_Engine_Build_unknownSpec(t *testing.T) {
	engine := newTestEngine(t, s1CatalogXML)
	pf := NewParameterFrame("NoSuchSpec", "ISO 9141-2", "Default", "Engine RPM")
	err := engine.Build(pf)
	require.Error(t, err)
	var buildFailed *BuildFailedError
	require.ErrorAs(t, err, &buildFailed)
	assert.Equal(t, "spec", buildFailed.Stage)
}

// Property 1 — Build idempotence.
func Test_Engine_Build_idempotent(t *testing.T) {
	engine := newTestEngine(t, s1CatalogXML)

	pf1 := NewParameterFrame("SAEJ1979", "ISO 9141-2", "Default", "Engine RPM")
	require.NoError(t, engine.Build(pf1))
	first := pf1.ListMessageData

	pf2 := NewParameterFrame("SAEJ1979", "ISO 9141-2", "Default", "Engine RPM")
	require.NoError(t, engine.Build(pf2))
	require.NoError(t, engine.Build(pf2))
	second := pf2.ListMessageData

	assert.Equal(t, first, second)
}

const multiResponseXML = `<catalog>
  <spec name="S">
    <protocol name="ISO 9141-2">
      <address name="A">
        <request prio="0x68" target="0x6A" source="0xF1"/>
        <response prio="0x48"/>
      </address>
    </protocol>
    <parameters address="A">
      <parameter name="P" request="01 0C" response.prefix="41 0C" response.bytes="2">
        <script protocols="ISO 9141-2">NUM("", BYTE(0), 0, 0, "")</script>
      </parameter>
    </parameters>
  </spec>
</catalog>`

// Property 7 — Parse SEPARATELY scale: emitted Data count equals the
// sum of list_headers length after cleaning, across multiple response
// frames from distinct ECUs on the same request.
func Test_Engine_Parse_separatelyScale(t *testing.T) {
	engine := newTestEngine(t, multiResponseXML)

	pf := NewParameterFrame("S", "ISO 9141-2", "A", "P")
	require.NoError(t, engine.Build(pf))

	pf.ListMessageData[0].ListRawFrames = [][]byte{
		{0x48, 0x6B, 0x10, 0x41, 0x0C, 0x00, 0x01},
		{0x48, 0x10, 0x6B, 0x41, 0x0C, 0x00, 0x02},
		{0x48, 0xEC, 0x00, 0x41, 0x0C, 0x00, 0x03},
	}

	var results []Data
	require.NoError(t, engine.Parse(pf, &results))
	assert.Len(t, results, 3)
}
