// Package model holds the intermediate port model shared by every emitter:
// the parsed Module, and the Layout that fixes value references and
// scalar types for it.
package model

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

// Direction is the data flow of a port as seen from the module
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Causality returns the FMI causality attribute for the direction
func (d Direction) Causality() string {
	if d == Out {
		return "output"
	}
	return "input"
}

// AdapterKind selects how the module is described and driven
type AdapterKind string

const (
	// ModulePort is an RTL module with sc_in/sc_out ports
	ModulePort AdapterKind = "rtl"
	// PayloadField is a TLM top exchanging one payload struct per step
	PayloadField AdapterKind = "tlm"
)

// Port is one exposed signal of the module
type Port struct {
	Name      string          `json:"name"`
	Direction Direction       `json:"direction"`
	Semantic  scalar.Semantic `json:"semantic"`
	Width     *int            `json:"width,omitempty"`
	// NativeType is the declared source type, used for shadow signals
	NativeType string `json:"native_type"`
	Line       int    `json:"line"`
}

// BookkeepingField is a parsed field that carries adapter metadata and is
// never exposed as a port (payload "<field>_dir" annotations).
type BookkeepingField struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Value  string `json:"value"`
	Line   int    `json:"line"`
}

// Module is the parsed description of the simulated unit
type Module struct {
	Name string      `json:"name"`
	Kind AdapterKind `json:"kind"`
	// File is the description the ports were parsed from
	File string `json:"file"`
	// Header is included by the generated struct and function sources
	Header string `json:"header"`
	// PayloadType is the payload struct name (PayloadField only)
	PayloadType string             `json:"payload_type,omitempty"`
	Ports       []Port             `json:"ports"`
	Bookkeeping []BookkeepingField `json:"bookkeeping,omitempty"`
}

// PortNamed looks up a port by name
func (m *Module) PortNamed(name string) (Port, bool) {
	for _, p := range m.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// ValueReference is the numeric handle of a variable in every artifact
type ValueReference uint32

const (
	// TimeRef is reserved for the implicit simulation time variable
	TimeRef ValueReference = 0
	// TimeName is the variable and struct field name of simulation time
	TimeName = "time"
)

// Identifier returns the C enumerator used for a variable in dispatch
// tables, e.g. "VR_OP1".
func Identifier(name string) string {
	return "VR_" + upper(name)
}

// StructName returns the adapter record name for a module, e.g. "ADDER_SYSC"
func StructName(module string) string {
	return upper(module) + "_SYSC"
}

// InstanceField returns the struct field holding the module instance
func InstanceField(module string) string {
	return "new_" + module
}

// ShadowSignal returns the signal a port is bound to in the adapter record
func ShadowSignal(port string) string {
	return "s_" + port
}

func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}

// String renders a compact description for logs
func (p Port) String() string {
	if p.Width != nil {
		return fmt.Sprintf("%s %s %s<%d>", p.Direction, p.Name, p.Semantic, *p.Width)
	}
	return fmt.Sprintf("%s %s %s", p.Direction, p.Name, p.Semantic)
}
