package jsontok

import (
	"bytes"
	"fmt"
	"strconv"
)

// DecodeString returns the unescaped contents of string token t. Escapes are
// rewritten in place in a copy of the span; no escape decodes to more bytes
// than it occupies in the source.
//
// A \u escape holding a high surrogate is combined with an immediately
// following low surrogate escape. A surrogate that cannot be paired is encoded
// as its own code point rather than rejected.
func DecodeString(json []byte, t Token) (string, error) {
	if t.Kind != String {
		return "", fmt.Errorf("%w: %s token is not a string", ErrStructure, t.Kind)
	}

	buf := append([]byte(nil), json[t.Start:t.End]...)
	r := bytes.IndexByte(buf, '\\')
	if r < 0 {
		return string(buf), nil
	}

	w := r
	for r < len(buf) {
		if buf[r] != '\\' {
			buf[w] = buf[r]
			w++
			r++
			continue
		}
		if r+1 >= len(buf) {
			return "", fmt.Errorf("%w: truncated escape at offset %d", ErrDecode, r)
		}

		var c byte
		switch buf[r+1] {
		case '"', '\\', '/':
			c = buf[r+1]
		case 'b':
			c = '\b'
		case 'f':
			c = '\f'
		case 'n':
			c = '\n'
		case 'r':
			c = '\r'
		case 't':
			c = '\t'
		case 'u':
			cp, n, err := decodeUnicodeEscape(buf, r)
			if err != nil {
				return "", err
			}
			r += n
			var enc [4]byte
			m, err := encodeUTF8(enc[:], cp)
			if err != nil {
				return "", err
			}
			if w+m > r {
				return "", fmt.Errorf("%w: escape at offset %d expands", ErrDecode, r-n)
			}
			w += copy(buf[w:], enc[:m])
			continue
		default:
			return "", fmt.Errorf("%w: invalid escape \\%c", ErrDecode, buf[r+1])
		}
		buf[w] = c
		w++
		r += 2
	}
	return string(buf[:w]), nil
}

// decodeUnicodeEscape decodes the \u escape at buf[r:], pairing a high
// surrogate with a following low surrogate escape. It returns the code point
// and the number of source bytes consumed.
func decodeUnicodeEscape(buf []byte, r int) (rune, int, error) {
	hi, err := parseHex4(buf, r+2)
	if err != nil {
		return 0, 0, err
	}
	if hi < 0xd800 || hi > 0xdbff {
		return rune(hi), 6, nil
	}

	// A second escape that is not \u, or not a low surrogate, is left for
	// the next iteration.
	if r+7 >= len(buf) || buf[r+6] != '\\' || buf[r+7] != 'u' {
		return rune(hi), 6, nil
	}
	lo, err := parseHex4(buf, r+8)
	if err != nil || lo < 0xdc00 || lo > 0xdfff {
		return rune(hi), 6, nil
	}
	return 0x10000 + (rune(hi)-0xd800)<<10 + (rune(lo) - 0xdc00), 12, nil
}

func parseHex4(buf []byte, i int) (uint16, error) {
	if i+4 > len(buf) {
		return 0, fmt.Errorf("%w: truncated \\u escape", ErrDecode)
	}
	var v uint16
	for _, c := range buf[i : i+4] {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint16(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint16(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			v |= uint16(c - 'A' + 10)
		default:
			return 0, fmt.Errorf("%w: invalid hex digit %q in \\u escape", ErrDecode, c)
		}
	}
	return v, nil
}

// encodeUTF8 writes the UTF-8 encoding of cp to p and returns the number of
// bytes written. Unlike utf8.EncodeRune it encodes surrogate code points
// as three-byte sequences instead of replacing them.
func encodeUTF8(p []byte, cp rune) (int, error) {
	switch {
	case cp < 0:
		return 0, fmt.Errorf("%w: invalid code point %d", ErrDecode, cp)
	case cp <= 0x7f:
		p[0] = byte(cp)
		return 1, nil
	case cp <= 0x7ff:
		p[0] = 0xc0 | byte(cp>>6)
		p[1] = 0x80 | byte(cp)&0x3f
		return 2, nil
	case cp <= 0xffff:
		p[0] = 0xe0 | byte(cp>>12)
		p[1] = 0x80 | byte(cp>>6)&0x3f
		p[2] = 0x80 | byte(cp)&0x3f
		return 3, nil
	case cp <= 0x10ffff:
		p[0] = 0xf0 | byte(cp>>18)
		p[1] = 0x80 | byte(cp>>12)&0x3f
		p[2] = 0x80 | byte(cp>>6)&0x3f
		p[3] = 0x80 | byte(cp)&0x3f
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: code point %#x out of range", ErrDecode, cp)
	}
}

// DecodeUint64 parses primitive token t as a base-10 unsigned 64-bit integer.
// Signs, fractions and exponents are rejected.
func DecodeUint64(json []byte, t Token) (uint64, error) {
	if t.Kind != Primitive {
		return 0, fmt.Errorf("%w: %s token is not a number", ErrNumber, t.Kind)
	}
	span := json[t.Start:t.End]
	v, err := strconv.ParseUint(string(span), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNumber, span, err)
	}
	return v, nil
}
