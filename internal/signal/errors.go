package signal

import "errors"

var (
	// ErrMention reports mention ranges that are out of order, overlap or
	// cannot be sized.
	ErrMention = errors.New("invalid mentions")
	// ErrMessage reports a message document that lacks a required field.
	ErrMessage = errors.New("invalid message")
)
