package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseScan    Phase = "scan"    // locating metalib blobs in host files
	PhaseDecode  Phase = "decode"  // byte-level record decoding
	PhaseResolve Phase = "resolve" // string and type reference resolution
	PhaseRender  Phase = "render"  // document generation
)

// Kind categorizes the error
type Kind string

const (
	KindUnexpectedEOF      Kind = "unexpected_end_of_data"
	KindBadMagic           Kind = "bad_magic"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindInvalidStringOff   Kind = "invalid_string_offset"
	KindUnknownTypeKind    Kind = "unknown_type_kind"
	KindDanglingTypeRef    Kind = "dangling_type_reference"
	KindInvalidData        Kind = "invalid_data"
	KindNotFound           Kind = "not_found"
)

// NoOffset marks errors that carry no meaningful byte position.
const NoOffset int64 = -1

// Error is the structured error type used throughout the decoder.
// Offset is the byte position at which the failure was detected,
// relative to the blob body unless the constructor says otherwise.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Offset int64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Offset != NoOffset {
		fmt.Fprintf(&b, " at 0x%X", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors, one per failure the decode pipeline can hit.

// UnexpectedEOF reports a read of n bytes at offset that would run past
// the end of the input buffer.
func UnexpectedEOF(offset int64, n int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnexpectedEOF,
		Offset: offset,
		Detail: fmt.Sprintf("read of %d byte(s) exceeds input", n),
		Value:  n,
	}
}

// BadMagic reports a header signature mismatch at the starting offset.
func BadMagic(offset int64, found uint16) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindBadMagic,
		Offset: offset,
		Detail: fmt.Sprintf("signature 0x%04X does not match metalib magic", found),
		Value:  found,
	}
}

// UnsupportedVersion reports a recognized header whose tag set revision
// this decoder does not handle.
func UnsupportedVersion(found uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnsupportedVersion,
		Offset: NoOffset,
		Detail: fmt.Sprintf("tag set revision %d", found),
		Value:  found,
	}
}

// InvalidStringOffset reports a string pointer outside the string buffer
// region, or one whose bytes do not decode as text.
func InvalidStringOffset(offset int64, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindInvalidStringOff,
		Offset: offset,
		Detail: "string offset outside table or undecodable text",
		Cause:  cause,
	}
}

// UnknownTypeKind reports an unrecognized descriptor tag. Decoding stops
// here: skipping the record would desynchronize every later read.
func UnknownTypeKind(tag int32, offset int64) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnknownTypeKind,
		Offset: offset,
		Detail: fmt.Sprintf("descriptor tag %d not recognized", tag),
		Value:  tag,
	}
}

// DanglingTypeRef reports a descriptor at blob offset from referencing a
// type at blob offset to that was never registered with the arena.
func DanglingTypeRef(from, to int64) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindDanglingTypeRef,
		Offset: to,
		Detail: fmt.Sprintf("descriptor at 0x%X references unregistered type at 0x%X", from, to),
		Value:  from,
	}
}

// InvalidData creates a generic malformed-input error.
func InvalidData(phase Phase, offset int64, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Offset: offset,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Offset: NoOffset,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with phase and kind context.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}
