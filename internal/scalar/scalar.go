// Package scalar maps hardware port types onto FMI 3.0 scalar variable types.
package scalar

import (
	"fmt"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
)

// Semantic is the source-level meaning of a port's value
type Semantic string

const (
	Bool   Semantic = "bool"
	Uint   Semantic = "uint"
	Int    Semantic = "int"
	Float  Semantic = "float"
	Double Semantic = "double"
)

// DefaultWidth applies to uint/int ports declared without an explicit width
const DefaultWidth = 32

// Tag is an FMI 3.0 scalar variable type
type Tag int

const (
	Invalid Tag = iota
	Boolean
	UInt8
	UInt16
	UInt32
	UInt64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
)

// All lists every tag in catalog order
var All = []Tag{Float32, Float64, Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64, Boolean}

var tagNames = map[Tag]string{
	Boolean: "Boolean",
	UInt8:   "UInt8",
	UInt16:  "UInt16",
	UInt32:  "UInt32",
	UInt64:  "UInt64",
	Int8:    "Int8",
	Int16:   "Int16",
	Int32:   "Int32",
	Int64:   "Int64",
	Float32: "Float32",
	Float64: "Float64",
}

// String returns the FMI element name, e.g. "UInt16"
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", int(t))
}

// CType returns the C type from fmi3PlatformTypes.h, e.g. "fmi3UInt16"
func (t Tag) CType() string {
	return "fmi3" + t.String()
}

// StartLiteral is the literal used for the start attribute of input variables
func (t Tag) StartLiteral() string {
	switch t {
	case Boolean:
		return "false"
	case Float32, Float64:
		return "0.0"
	default:
		return "0"
	}
}

// MarshalText encodes the tag by its FMI name. Invalid encodes as "".
func (t Tag) MarshalText() ([]byte, error) {
	if t == Invalid {
		return []byte{}, nil
	}
	name, ok := tagNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown scalar tag %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText decodes an FMI name written by MarshalText
func (t *Tag) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = Invalid
		return nil
	}
	tag, ok := ParseTag(string(text))
	if !ok {
		return fmt.Errorf("unknown scalar tag %q", text)
	}
	*t = tag
	return nil
}

// ParseTag converts an FMI element name back into a Tag
func ParseTag(name string) (Tag, bool) {
	for tag, n := range tagNames {
		if n == name {
			return tag, true
		}
	}
	return Invalid, false
}

var unsignedTags = []struct {
	bits int
	tag  Tag
}{{8, UInt8}, {16, UInt16}, {32, UInt32}, {64, UInt64}}

var signedTags = []struct {
	bits int
	tag  Tag
}{{8, Int8}, {16, Int16}, {32, Int32}, {64, Int64}}

// Map picks the tag for a semantic type and optional bit width.
// Integer ports get the smallest tag that covers the width; an absent
// width means DefaultWidth. Widths outside 1..64 fail.
func Map(sem Semantic, width *int) (Tag, error) {
	switch sem {
	case Bool:
		return Boolean, nil
	case Float:
		return Float32, nil
	case Double:
		return Float64, nil
	case Uint, Int:
		bits := DefaultWidth
		if width != nil {
			bits = *width
		}
		if bits <= 0 {
			return Invalid, generr.TypeMapping(string(sem), fmt.Sprintf("bit width %d must be positive", bits))
		}
		table := unsignedTags
		if sem == Int {
			table = signedTags
		}
		for _, entry := range table {
			if bits <= entry.bits {
				return entry.tag, nil
			}
		}
		return Invalid, generr.TypeMapping(string(sem), fmt.Sprintf("bit width %d exceeds 64", bits))
	default:
		return Invalid, generr.TypeMapping(string(sem), "unrecognized semantic type")
	}
}
