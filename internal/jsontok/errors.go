package jsontok

import "errors"

var (
	// ErrSyntax reports a malformed or truncated document.
	ErrSyntax = errors.New("json syntax error")
	// ErrCapacity reports a document with more tokens than the table holds.
	ErrCapacity error = &capacityError{}
	// ErrStructure reports a token of an unexpected kind or shape.
	ErrStructure = errors.New("json structure error")
	// ErrDecode reports an invalid escape sequence in a string.
	ErrDecode = errors.New("json string decode error")
	// ErrNumber reports a primitive that is not an unsigned 64-bit integer.
	ErrNumber = errors.New("json number error")
)

type capacityError struct{}

func (*capacityError) Error() string { return "json token capacity exceeded" }

func (*capacityError) Is(target error) bool { return target == ErrSyntax }
