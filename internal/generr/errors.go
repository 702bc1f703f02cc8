// Package generr defines the structured errors raised while turning a
// hardware module description into co-simulation artifacts.
//
// Every stage reports failures as *Error so callers can branch on the
// Kind with errors.Is, regardless of how deeply the error was wrapped:
//
//	if errors.Is(err, generr.ErrParse) { ... }
package generr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind categorizes the error
type Kind string

const (
	KindInput        Kind = "input_error"        // config or source file missing/unreadable
	KindNameMismatch Kind = "name_mismatch"      // declared module differs from configured name
	KindParse        Kind = "parse_error"        // description does not follow the expected shape
	KindTypeMapping  Kind = "type_mapping_error" // port type has no scalar tag
	KindConsistency  Kind = "consistency_error"  // artifacts would disagree
	KindPolicy       Kind = "policy_error"       // port model rejected by lint rules
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrInput        = &Error{Kind: KindInput}
	ErrNameMismatch = &Error{Kind: KindNameMismatch}
	ErrParse        = &Error{Kind: KindParse}
	ErrTypeMapping  = &Error{Kind: KindTypeMapping}
	ErrConsistency  = &Error{Kind: KindConsistency}
	ErrPolicy       = &Error{Kind: KindPolicy}
)

// Error is the structured error type used by every generation stage
type Error struct {
	Cause error
	Kind  Kind
	// File is the offending input file, if any
	File string
	Line int
	// Construct names the offending port, field, config key or template hole
	Construct string
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))

	if e.File != "" {
		b.WriteString(" in ")
		b.WriteString(e.File)
		if e.Line > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(e.Line))
		}
	}

	if e.Construct != "" {
		b.WriteString(" at ")
		b.WriteString(strconv.Quote(e.Construct))
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

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// File sets the offending file
func (b *Builder) File(path string) *Builder {
	b.err.File = path
	return b
}

// Line sets the 1-based source line
func (b *Builder) Line(line int) *Builder {
	b.err.Line = line
	return b
}

// Construct sets the offending construct name
func (b *Builder) Construct(name string) *Builder {
	b.err.Construct = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Convenience constructors for common error patterns

// Input reports a missing or unreadable input
func Input(file, construct, detail string, cause error) *Error {
	return &Error{Kind: KindInput, File: file, Construct: construct, Detail: detail, Cause: cause}
}

// MissingKey reports a required configuration key that is absent or empty
func MissingKey(file, key string) *Error {
	return &Error{Kind: KindInput, File: file, Construct: key, Detail: "required configuration key is missing"}
}

// NameMismatch reports a declared module name that differs from the configured one
func NameMismatch(file, declared, configured string) *Error {
	return &Error{
		Kind:      KindNameMismatch,
		File:      file,
		Construct: declared,
		Detail:    fmt.Sprintf("declared module %q does not match configured name %q", declared, configured),
	}
}

// Parse reports a malformed description
func Parse(file string, line int, construct, detail string) *Error {
	return &Error{Kind: KindParse, File: file, Line: line, Construct: construct, Detail: detail}
}

// TypeMapping reports a port whose type cannot be mapped to a scalar tag
func TypeMapping(construct, detail string) *Error {
	return &Error{Kind: KindTypeMapping, Construct: construct, Detail: detail}
}

// Consistency reports an internal disagreement between derived artifacts
func Consistency(construct, detail string) *Error {
	return &Error{Kind: KindConsistency, Construct: construct, Detail: detail}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
