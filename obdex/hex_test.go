package obdex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_hexRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := byte(rapid.IntRange(0, 255).Draw(t, "b"))

		hex := HexOfByte(b)
		assert.Len(t, hex, 2)
		assert.Equal(t, hex, hexUpper(hex))

		got, err := ByteOfHex(hex)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})
}

func hexUpper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func Test_ByteOfHex_rejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "1", "1G", "XYZ", " 1", "1 "} {
		_, err := ByteOfHex(bad)
		assert.Error(t, err, bad)
		var invalid *InvalidHexError
		assert.ErrorAs(t, err, &invalid)
	}
}

func Test_ByteOfHex_acceptsEitherCase(t *testing.T) {
	got, err := ByteOfHex("aB")
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), got)
}

func Test_ParseLiteral(t *testing.T) {
	cases := map[string]int64{
		"0b101":  5,
		"0B11":   3,
		"0x2A":   42,
		"0xff":   255,
		"10":     10,
	}
	for in, want := range cases {
		got, err := ParseLiteral(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func Test_parseByteString(t *testing.T) {
	got, err := parseByteString("01 0C")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x0C}, got)
}

func Test_hexJoinWithTrailingSpace(t *testing.T) {
	assert.Equal(t, "48 6B 10 ", hexJoinWithTrailingSpace([]byte{0x48, 0x6B, 0x10}))
}
