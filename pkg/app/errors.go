package app

import "errors"

// ErrBufferTooSmall is returned by wire-encoding methods when the
// destination buffer cannot hold the encoded value.
var ErrBufferTooSmall = errors.New("app: destination buffer too small")

// ObjectParseError classifies why an object header or its prefixed/range
// data could not be decoded. Each variant maps to a specific IIN2 bit so
// the session can answer a malformed request without understanding the
// object semantics that failed.
type ObjectParseError int

const (
	// ErrInsufficientBytes means the fragment ended mid-header or
	// mid-object-data.
	ErrInsufficientBytes ObjectParseError = iota
	// ErrUnknownGroupVariation means the group/variation pair is not
	// implemented by this stack.
	ErrUnknownGroupVariation
	// ErrUnknownQualifier means the qualifier code is not implemented.
	ErrUnknownQualifier
	// ErrInvalidRange means a start/stop or count field was internally
	// inconsistent (e.g. start > stop).
	ErrInvalidRange
	// ErrInvalidObject means object data failed a type-specific
	// validation (e.g. a zero-length octet string).
	ErrInvalidObject
	// ErrBadObjectCount means a qualifier's declared count did not match
	// the remaining fragment bytes.
	ErrBadObjectCount
	// ErrInvalidQualifierForVariation means the group/variation is known
	// but was framed with a qualifier that variation does not support
	// (e.g. a range qualifier on an object this stack only accepts
	// indexed).
	ErrInvalidQualifierForVariation
)

func (e ObjectParseError) Error() string {
	switch e {
	case ErrInsufficientBytes:
		return "insufficient bytes to parse object header"
	case ErrUnknownGroupVariation:
		return "unknown group/variation"
	case ErrUnknownQualifier:
		return "unknown qualifier code"
	case ErrInvalidRange:
		return "invalid range in qualifier"
	case ErrInvalidObject:
		return "invalid object data"
	case ErrBadObjectCount:
		return "object count does not match available bytes"
	case ErrInvalidQualifierForVariation:
		return "qualifier not valid for this group/variation"
	default:
		return "object parse error"
	}
}

// Iin2 maps a parse failure onto the IIN2 bit a response must assert.
// Unknown group/variation is reported as Iin2ObjectUnknown; a structurally
// broken fragment (bad range, insufficient bytes, an unsupported
// qualifier, invalid object data) is Iin2ParameterError; a qualifier
// that simply isn't valid for an otherwise-recognized group/variation is
// Iin2NoFuncCodeSupport.
func (e ObjectParseError) Iin2() Iin2 {
	switch e {
	case ErrUnknownGroupVariation:
		return Iin2ObjectUnknown
	case ErrInvalidQualifierForVariation:
		return Iin2NoFuncCodeSupport
	case ErrInsufficientBytes, ErrInvalidRange, ErrUnknownQualifier, ErrInvalidObject, ErrBadObjectCount:
		return Iin2ParameterError
	default:
		return Iin2ParameterError
	}
}

// HeaderParseError classifies a failure to decode the control field and
// function code that precede any object headers.
type HeaderParseError struct {
	// UnknownFunction holds the offending byte when the failure was an
	// unrecognized function code; zero value otherwise.
	UnknownFunction  byte
	IsUnknownFunc    bool
	InsufficientData bool
}

func (e *HeaderParseError) Error() string {
	switch {
	case e.IsUnknownFunc:
		return "unknown function code"
	case e.InsufficientData:
		return "insufficient bytes for application header"
	default:
		return "header parse error"
	}
}

// Iin2 maps a header parse failure onto the IIN2 bit a response must
// assert.
func (e *HeaderParseError) Iin2() Iin2 {
	if e.IsUnknownFunc {
		return Iin2NoFuncCodeSupport
	}
	return Iin2ParameterError
}
