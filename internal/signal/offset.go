package signal

// UTF16UnitsToUTF8Bytes returns the byte length of the prefix of text that
// holds the given number of UTF-16 code units. Sequences of one to three bytes
// count as one unit and four-byte sequences as two. A four-byte sequence that
// straddles the limit is included whole. The result never exceeds len(text).
//
// An invalid lead byte, or a lead byte without its continuation bytes, counts
// as one unit of one byte.
func UTF16UnitsToUTF8Bytes(text string, units int) int {
	off, n := 0, 0
	for n < units && off < len(text) {
		size, width := utf8SequenceAt(text, off)
		off += size
		n += width
	}
	return off
}

// utf8SequenceAt returns the byte size and UTF-16 width of the sequence that
// starts at text[i]. Surrogate code points encoded as three bytes are
// accepted, as the string decoder produces them for unpaired escapes.
func utf8SequenceAt(text string, i int) (size, width int) {
	c := text[i]
	switch {
	case c < 0x80:
		return 1, 1
	case c&0xe0 == 0xc0:
		size = 2
	case c&0xf0 == 0xe0:
		size = 3
	case c&0xf8 == 0xf0:
		size = 4
	default:
		return 1, 1
	}
	if i+size > len(text) {
		return 1, 1
	}
	for k := 1; k < size; k++ {
		if text[i+k]&0xc0 != 0x80 {
			return 1, 1
		}
	}
	if size == 4 {
		return 4, 2
	}
	return size, 1
}
