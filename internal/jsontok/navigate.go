package jsontok

import (
	"bytes"
	"fmt"
)

// Doc is a tokenized document: the source bytes and the token table that
// indexes them. Token 0 is the document root.
type Doc struct {
	JSON   []byte
	Tokens []Token
}

// Root returns the index of the root object, or an error if the document is
// not an object.
func (d *Doc) Root() (int, error) {
	if len(d.Tokens) == 0 || d.Tokens[0].Kind != Object {
		return 0, fmt.Errorf("%w: root is not an object", ErrStructure)
	}
	return 0, nil
}

// Raw returns the source bytes spanned by token i.
func (d *Doc) Raw(i int) []byte {
	t := d.Tokens[i]
	return d.JSON[t.Start:t.End]
}

// SubtreeSize returns the number of tokens occupied by the value at index i,
// including the value itself.
func (d *Doc) SubtreeSize(i int) (int, error) {
	if i < 0 || i >= len(d.Tokens) {
		return 0, fmt.Errorf("%w: token %d out of range", ErrStructure, i)
	}

	t := d.Tokens[i]
	switch t.Kind {
	case Object:
		n := 1
		for k := 0; k < t.Size; k++ {
			key := i + n
			if key >= len(d.Tokens) || d.Tokens[key].Kind != String || d.Tokens[key].Size != 1 {
				return 0, fmt.Errorf("%w: invalid key at token %d", ErrStructure, key)
			}
			n++
			m, err := d.SubtreeSize(i + n)
			if err != nil {
				return 0, err
			}
			n += m
		}
		return n, nil
	case Array:
		n := 1
		for k := 0; k < t.Size; k++ {
			m, err := d.SubtreeSize(i + n)
			if err != nil {
				return 0, err
			}
			n += m
		}
		return n, nil
	case String, Primitive:
		if t.Size != 0 {
			return 0, fmt.Errorf("%w: %s token %d has %d children", ErrStructure, t.Kind, i, t.Size)
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: undefined token %d", ErrStructure, i)
	}
}

// FindKey returns the index of the value stored under key in the object at
// index obj, or -1 if there is none. Keys are compared byte for byte without
// unescaping.
func (d *Doc) FindKey(obj int, key string) (int, error) {
	if obj < 0 || obj >= len(d.Tokens) || d.Tokens[obj].Kind != Object {
		return -1, fmt.Errorf("%w: token %d is not an object", ErrStructure, obj)
	}

	i := obj + 1
	for k := 0; k < d.Tokens[obj].Size; k++ {
		if i >= len(d.Tokens) || d.Tokens[i].Kind != String || d.Tokens[i].Size != 1 {
			return -1, fmt.Errorf("%w: invalid key at token %d", ErrStructure, i)
		}
		if bytes.Equal(d.Raw(i), []byte(key)) {
			return i + 1, nil
		}
		n, err := d.SubtreeSize(i + 1)
		if err != nil {
			return -1, err
		}
		i += 1 + n
	}
	return -1, nil
}

// Value returns the index of the value stored under key if it has the given
// kind. A missing key or a value of another kind yields -1 and no error.
func (d *Doc) Value(obj int, key string, kind Kind) (int, error) {
	i, err := d.FindKey(obj, key)
	if err != nil || i < 0 {
		return -1, err
	}
	if d.Tokens[i].Kind != kind {
		return -1, nil
	}
	return i, nil
}

// Array looks up an array field.
func (d *Doc) Array(obj int, key string) (int, error) {
	return d.Value(obj, key, Array)
}

// Object looks up an object field.
func (d *Doc) Object(obj int, key string) (int, error) {
	return d.Value(obj, key, Object)
}

// Str looks up a string field.
func (d *Doc) Str(obj int, key string) (int, error) {
	return d.Value(obj, key, String)
}

// Number looks up a numeric primitive field.
func (d *Doc) Number(obj int, key string) (int, error) {
	i, err := d.Value(obj, key, Primitive)
	if err != nil || i < 0 {
		return -1, err
	}
	if !d.IsNumber(i) {
		return -1, nil
	}
	return i, nil
}

// NumberOrString looks up a field that is either a numeric primitive or a
// string.
func (d *Doc) NumberOrString(obj int, key string) (int, error) {
	i, err := d.FindKey(obj, key)
	if err != nil || i < 0 {
		return -1, err
	}
	switch {
	case d.Tokens[i].Kind == String:
		return i, nil
	case d.Tokens[i].Kind == Primitive && d.IsNumber(i):
		return i, nil
	default:
		return -1, nil
	}
}

// IsNumber reports whether token i is a primitive starting with '-' or a
// digit. true, false and null are not numbers.
func (d *Doc) IsNumber(i int) bool {
	t := d.Tokens[i]
	if t.Kind != Primitive || t.Start >= t.End {
		return false
	}
	c := d.JSON[t.Start]
	return c == '-' || (c >= '0' && c <= '9')
}

// IsTrue reports whether token i is the literal true.
func (d *Doc) IsTrue(i int) bool {
	return d.Tokens[i].Kind == Primitive && string(d.Raw(i)) == "true"
}

// Elements returns the indices of the elements of the array at index arr.
func (d *Doc) Elements(arr int) ([]int, error) {
	if arr < 0 || arr >= len(d.Tokens) || d.Tokens[arr].Kind != Array {
		return nil, fmt.Errorf("%w: token %d is not an array", ErrStructure, arr)
	}

	elems := make([]int, 0, d.Tokens[arr].Size)
	i := arr + 1
	for k := 0; k < d.Tokens[arr].Size; k++ {
		n, err := d.SubtreeSize(i)
		if err != nil {
			return nil, err
		}
		elems = append(elems, i)
		i += n
	}
	return elems, nil
}

// Text decodes the string token at index i.
func (d *Doc) Text(i int) (string, error) {
	return DecodeString(d.JSON, d.Tokens[i])
}

// Uint64 decodes the numeric token at index i.
func (d *Doc) Uint64(i int) (uint64, error) {
	return DecodeUint64(d.JSON, d.Tokens[i])
}
