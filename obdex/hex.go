package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Byte/hex string helpers and the numeric literal grammar
 *		shared by the catalog loader and the data builder.
 *
 * Description:	Grounded on ObdexUtil.cpp's ToHexString/StringToUInt
 *		(original_source): hex_of_byte/byte_of_hex are public API
 *		for transport adapters (spec.md 6), and ParseLiteral
 *		implements the "0b.../0x.../decimal" attribute grammar
 *		used throughout the catalog file format.
 *
 *------------------------------------------------------------------*/

import (
	"strconv"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// HexOfByte renders b as exactly two uppercase hex digits.
func HexOfByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}

// ByteOfHex parses exactly two hex digits (either case) into a byte.
// Anything else, including surrounding whitespace, is an
// InvalidHexError.
func ByteOfHex(s string) (byte, error) {
	if len(s) != 2 {
		return 0, &InvalidHexError{Input: s}
	}

	hi, ok := hexNibble(s[0])
	if !ok {
		return 0, &InvalidHexError{Input: s}
	}

	lo, ok := hexNibble(s[1])
	if !ok {
		return 0, &InvalidHexError{Input: s}
	}

	return hi<<4 | lo, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// ParseLiteral accepts the numeric literal grammar used throughout
// catalog attributes: "0b"-prefixed binary, "0x"-prefixed hex, else
// decimal.
func ParseLiteral(s string) (int64, error) {
	switch {
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		return strconv.ParseInt(s[2:], 2, 64)
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		return strconv.ParseInt(s[2:], 16, 64)
	default:
		return strconv.ParseInt(s, 10, 64)
	}
}

// parseByteToken parses one whitespace-delimited token of a
// multi-byte attribute (request=, response.prefix=, ...) using the
// same auto-detected base as ParseLiteral, and truncates to a byte.
func parseByteToken(tok string) (byte, error) {
	v, err := ParseLiteral(tok)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// parseByteString splits a whitespace-separated attribute value into
// bytes, per spec.md 6's "Multi-byte attributes... are
// whitespace-separated tokens".
func parseByteString(s string) ([]byte, error) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		b, err := parseByteToken(f)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// hexJoinWithTrailingSpace renders bytes as space-separated uppercase
// hex pairs with a trailing space, matching the original's
// ConvUByteToHexStr-based Source Address formatting (scenario S1).
func hexJoinWithTrailingSpace(bytes []byte) string {
	var sb strings.Builder
	for _, b := range bytes {
		sb.WriteString(HexOfByte(b))
		sb.WriteByte(' ')
	}
	return sb.String()
}
