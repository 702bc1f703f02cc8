package model

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

// Binding ties a port to its value reference and scalar type
type Binding struct {
	Port  Port           `json:"port"`
	Ref   ValueReference `json:"ref"`
	Tag   scalar.Tag     `json:"tag"`
	Ident string         `json:"ident"`
}

// Layout is the single numbering and typing scheme every artifact is
// projected from. It is immutable once Assign returns.
type Layout struct {
	Module        Module    `json:"module"`
	Bindings      []Binding `json:"bindings"`
	StructName    string    `json:"struct_name"`
	InstanceField string    `json:"instance_field"`
}

// TimeBinding is the implicit Float64 time variable at reference 0
func TimeBinding() Binding {
	return Binding{
		Port: Port{
			Name:       TimeName,
			Direction:  In,
			Semantic:   scalar.Double,
			NativeType: "double",
		},
		Ref:   TimeRef,
		Tag:   scalar.Float64,
		Ident: Identifier(TimeName),
	}
}

// Assign numbers the module's ports in declaration order starting at 1
// and maps each to a scalar tag.
func Assign(m Module) (*Layout, error) {
	bindings := make([]Binding, 0, len(m.Ports))
	seenNames := make(map[string]bool, len(m.Ports))
	seenIdents := map[string]string{Identifier(TimeName): TimeName}

	for i, port := range m.Ports {
		if seenNames[port.Name] {
			return nil, generr.Consistency(port.Name, "port declared more than once")
		}
		seenNames[port.Name] = true

		ident := Identifier(port.Name)
		if other, ok := seenIdents[ident]; ok {
			return nil, generr.Consistency(port.Name, fmt.Sprintf("binding identifier %s collides with %q", ident, other))
		}
		seenIdents[ident] = port.Name

		tag, err := scalar.Map(port.Semantic, port.Width)
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", port.Name, err)
		}

		ref, err := safecast.Conv[uint32](i + 1)
		if err != nil {
			return nil, generr.Consistency(port.Name, "value reference out of range")
		}

		bindings = append(bindings, Binding{
			Port:  port,
			Ref:   ValueReference(ref),
			Tag:   tag,
			Ident: ident,
		})
	}

	return &Layout{
		Module:        m,
		Bindings:      bindings,
		StructName:    StructName(m.Name),
		InstanceField: InstanceField(m.Name),
	}, nil
}

// ByTag returns the bindings of one scalar type in reference order.
// Float64 includes the time binding first.
func (l *Layout) ByTag(tag scalar.Tag) []Binding {
	var out []Binding
	if tag == scalar.Float64 {
		out = append(out, TimeBinding())
	}
	for _, b := range l.Bindings {
		if b.Tag == tag {
			out = append(out, b)
		}
	}
	return out
}

// Inputs returns the input bindings in reference order
func (l *Layout) Inputs() []Binding {
	return l.filter(In)
}

// Outputs returns the output bindings in reference order
func (l *Layout) Outputs() []Binding {
	return l.filter(Out)
}

func (l *Layout) filter(dir Direction) []Binding {
	var out []Binding
	for _, b := range l.Bindings {
		if b.Port.Direction == dir {
			out = append(out, b)
		}
	}
	return out
}

// Lookup finds the binding for a port name
func (l *Layout) Lookup(name string) (Binding, bool) {
	for _, b := range l.Bindings {
		if b.Port.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Tags returns the distinct tags used by ports, in reference order of first use
func (l *Layout) Tags() []scalar.Tag {
	seen := make(map[scalar.Tag]bool)
	var out []scalar.Tag
	for _, b := range l.Bindings {
		if !seen[b.Tag] {
			seen[b.Tag] = true
			out = append(out, b.Tag)
		}
	}
	return out
}
