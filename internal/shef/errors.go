package shef

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedBlock is wrapped by every MalformedBlockError.
	ErrMalformedBlock = errors.New("malformed SHEF block")
	// ErrUnknownZone is returned for unrecognized time zone codes.
	ErrUnknownZone = errors.New("unknown time zone")
)

// MalformedBlockError reports a block that violates the grammar. Decoding
// other blocks continues.
type MalformedBlockError struct {
	Line   int
	Kind   Kind
	Reason string
	Err    error
}

func (e *MalformedBlockError) Error() string {
	msg := fmt.Sprintf("line %d: %s block: %s", e.Line, e.Kind, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedBlockError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedBlock}
	}
	return []error{ErrMalformedBlock, e.Err}
}

func malformed(b Block, reason string, err error) *MalformedBlockError {
	return &MalformedBlockError{Line: b.Line, Kind: b.Kind, Reason: reason, Err: err}
}
