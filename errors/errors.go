package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred.
type Phase string

const (
	PhaseLoad   Phase = "load"   // reading module bytes
	PhaseDecode Phase = "decode" // binary to instruction model
	PhaseExpand Phase = "expand" // marker expansion
	PhaseTrace  Phase = "trace"  // operand provenance tracing
	PhaseStrip  Phase = "strip"  // dead marker import removal
	PhaseEncode Phase = "encode" // instruction model to binary
)

// Kind categorizes the error.
type Kind string

const (
	// Expansion failures. Each of these aborts the whole pass; the body
	// may be left partially rewritten.
	KindUnexpectedMarkerUse  Kind = "unexpected_marker_use"
	KindUnrecognizedKeyField Kind = "unrecognized_key_field"
	KindMissingKeyValue      Kind = "missing_key_value"
	KindTraceFailure         Kind = "trace_failure"
	KindMissingProcessor     Kind = "missing_processor"
	KindBadOperandShape      Kind = "bad_operand_shape"

	// Infrastructure failures.
	KindInvalidData Kind = "invalid_data"
	KindUnsupported Kind = "unsupported"
	KindOutOfBounds Kind = "out_of_bounds"
	KindNotFound    Kind = "not_found"
)

// Error is the structured error type used throughout the toolchain.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Member string // marker member name, when one is involved
	Detail string
	Func   int // function index, -1 when not applicable
	Instr  int // instruction index, -1 when not applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Func >= 0 {
		fmt.Fprintf(&b, " in func %d", e.Func)
		if e.Instr >= 0 {
			fmt.Fprintf(&b, " at instr %d", e.Instr)
		}
	}
	if e.Member != "" {
		b.WriteString(": ")
		b.WriteString(e.Member)
	}
	if e.Detail != "" {
		if e.Member != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's phase and kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates an error builder for the given phase and kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind, Func: -1, Instr: -1}}
}

// Func records the function index.
func (b *Builder) Func(idx uint32) *Builder {
	b.err.Func = int(idx)
	return b
}

// Instr records the instruction index within the function body.
func (b *Builder) Instr(idx int) *Builder {
	b.err.Instr = idx
	return b
}

// Member records the marker member name involved.
func (b *Builder) Member(name string) *Builder {
	b.err.Member = name
	return b
}

// Cause records the underlying error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	return &b.err
}

// Match returns a probe error for errors.Is checks against a phase and kind.
func Match(phase Phase, kind Kind) *Error {
	return &Error{Phase: phase, Kind: kind, Func: -1, Instr: -1}
}

// Convenience constructors for common patterns.

// UnexpectedMarkerUse reports a marker reference no expander accepts.
func UnexpectedMarkerUse(funcIdx uint32, instrIdx int, member string) *Error {
	return New(PhaseExpand, KindUnexpectedMarkerUse).
		Func(funcIdx).Instr(instrIdx).Member(member).Build()
}

// UnrecognizedKeyField reports a marker field outside the key naming scheme.
func UnrecognizedKeyField(funcIdx uint32, instrIdx int, member string) *Error {
	return New(PhaseExpand, KindUnrecognizedKeyField).
		Func(funcIdx).Instr(instrIdx).Member(member).Build()
}

// MissingKeyValue reports a recognized key slot absent from the key mapping.
func MissingKeyValue(funcIdx uint32, instrIdx int, member string) *Error {
	return New(PhaseExpand, KindMissingKeyValue).
		Func(funcIdx).Instr(instrIdx).Member(member).
		Detail("no value configured for key field").Build()
}

// TraceFailure reports that operand provenance could not be resolved.
func TraceFailure(funcIdx uint32, instrIdx int, cause error) *Error {
	return New(PhaseExpand, KindTraceFailure).
		Func(funcIdx).Instr(instrIdx).Cause(cause).Build()
}

// MissingProcessor reports a marker encountered with no transform configured.
func MissingProcessor(funcIdx uint32, instrIdx int, member string) *Error {
	return New(PhaseExpand, KindMissingProcessor).
		Func(funcIdx).Instr(instrIdx).Member(member).
		Detail("no processor configured").Build()
}

// BadOperandShape reports a crypt call whose operands are not the expected
// two local loads.
func BadOperandShape(funcIdx uint32, instrIdx int, detail string) *Error {
	return New(PhaseExpand, KindBadOperandShape).
		Func(funcIdx).Instr(instrIdx).Detail("%s", detail).Build()
}

// Decode wraps a module or instruction decoding failure.
func Decode(detail string, cause error) *Error {
	return New(PhaseDecode, KindInvalidData).Detail("%s", detail).Cause(cause).Build()
}

// Encode wraps an encoding failure.
func Encode(detail string, cause error) *Error {
	return New(PhaseEncode, KindInvalidData).Detail("%s", detail).Cause(cause).Build()
}

// Unsupported reports an input construct the toolchain does not handle.
func Unsupported(phase Phase, what string) *Error {
	return New(phase, KindUnsupported).Detail("%s", what).Build()
}

// NotFound reports a missing named entity.
func NotFound(phase Phase, what, name string) *Error {
	return New(phase, KindNotFound).Detail("%s %q not found", what, name).Build()
}
