package obdex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScript(t *testing.T, src string, data [][]byte, req []byte) ([]NumericalData, []LiteralData) {
	t.Helper()
	host := newScriptHost(noopLogger{})
	handle, err := host.Compile("test", src)
	require.NoError(t, err)

	host.clearState()
	host.pushDataBytes(data)
	host.setRequestBytes(req)
	require.NoError(t, host.invoke(handle))
	return host.drainResults()
}

func Test_scriptHost_S1Decoder(t *testing.T) {
	nums, lits := runScript(t, `NUM("", (256*BYTE(0)+BYTE(1))/4, 0, 0, "rpm")`, [][]byte{{0x2A, 0xBC}}, nil)
	require.Len(t, nums, 1)
	assert.Equal(t, 2735.0, nums[0].Value)
	assert.Equal(t, "rpm", nums[0].Units)
	assert.Empty(t, lits)
}

func Test_scriptHost_letBindings(t *testing.T) {
	nums, _ := runScript(t, `
		let a = BYTE(0)
		let b = BYTE(1)
		NUM("sum", a + b, 0, 510, "raw")
	`, [][]byte{{10, 20}}, nil)
	require.Len(t, nums, 1)
	assert.Equal(t, 30.0, nums[0].Value)
}

func Test_scriptHost_ternaryAndComparison(t *testing.T) {
	_, lits := runScript(t, `LIT("MIL", BYTE(0) > 0 ? true : false, "on", "off")`, [][]byte{{1}}, nil)
	require.Len(t, lits, 1)
	assert.True(t, lits[0].Value)
	assert.Equal(t, "on", lits[0].ValueIfTrue)
}

func Test_scriptHost_DATAandREQ(t *testing.T) {
	nums, _ := runScript(t, `NUM("x", DATA(1, 0) + REQ(0), 0, 0, "")`,
		[][]byte{{1}, {2}}, []byte{3})
	require.Len(t, nums, 1)
	assert.Equal(t, 5.0, nums[0].Value)
}

func Test_scriptHost_multipleResultStatements(t *testing.T) {
	nums, lits := runScript(t, `
		NUM("a", 1, 0, 0, "")
		NUM("b", 2, 0, 0, "")
		LIT("c", true, "y", "n")
	`, [][]byte{{0}}, nil)
	assert.Len(t, nums, 2)
	assert.Len(t, lits, 1)
}

func Test_parseScript_rejectsEmptyBody(t *testing.T) {
	_, err := parseScript("")
	assert.Error(t, err)
}

func Test_parseScript_rejectsMissingResultStatement(t *testing.T) {
	_, err := parseScript(`let a = 1`)
	assert.Error(t, err)
}

func Test_parseScript_rejectsWrongArgCount(t *testing.T) {
	_, err := parseScript(`NUM("x", 1)`)
	assert.Error(t, err)
}

func Test_ScriptHost_Compile_errorIsScriptContextSetup(t *testing.T) {
	host := newScriptHost(noopLogger{})
	_, err := host.Compile("bad", `this is not valid (`)
	assert.Error(t, err)
	var setupErr *ScriptContextSetupError
	assert.ErrorAs(t, err, &setupErr)
}

func Test_ScriptHost_resolve(t *testing.T) {
	host := newScriptHost(noopLogger{})
	handle, err := host.Compile("spec:addr:name:protocols", `NUM("", 1, 0, 0, "")`)
	require.NoError(t, err)

	got, ok := host.resolve("spec:addr:name:protocols")
	require.True(t, ok)
	assert.Equal(t, handle, got)

	_, ok = host.resolve("nope")
	assert.False(t, ok)
}

func Test_ScriptHost_clearStateResetsRuntime(t *testing.T) {
	host := newScriptHost(noopLogger{})
	handle, err := host.Compile("test", `NUM("", 1, 0, 0, "")`)
	require.NoError(t, err)

	require.NoError(t, host.invoke(handle))
	nums, _ := host.drainResults()
	require.Len(t, nums, 1)

	host.clearState()
	nums, lits := host.drainResults()
	assert.Empty(t, nums)
	assert.Empty(t, lits)
}
