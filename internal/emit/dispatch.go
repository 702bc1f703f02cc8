package emit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

// ErrUnknownValueReference is returned by Resolve for a reference that has
// no case in the table. Generated code takes the fmi3Error branch for it.
var ErrUnknownValueReference = errors.New("unknown value reference")

// Case is one branch of a generated switch
type Case struct {
	Ref   model.ValueReference `json:"ref" msgpack:"ref"`
	Ident string               `json:"ident" msgpack:"ident"`
	Field string               `json:"field" msgpack:"field"`
}

// DispatchTable maps value references to record fields for one accessor
type DispatchTable struct {
	Function string     `json:"function" msgpack:"function"`
	Tag      scalar.Tag `json:"tag" msgpack:"tag"`
	Cases    []Case     `json:"cases" msgpack:"cases"`
}

// BuildDispatch derives the table of one accessor from bindings. Every
// binding must be present in the layout with the same reference and tag.
func BuildDispatch(function string, tag scalar.Tag, l *model.Layout, bindings []model.Binding) (DispatchTable, error) {
	table := DispatchTable{Function: function, Tag: tag}
	seen := make(map[model.ValueReference]bool, len(bindings))

	for _, b := range bindings {
		known, ok := lookupBinding(l, b.Port.Name)
		if !ok {
			return DispatchTable{}, generr.Consistency(b.Port.Name,
				fmt.Sprintf("%s dispatches a port that has no binding", function))
		}
		if known.Ref != b.Ref || known.Tag != b.Tag {
			return DispatchTable{}, generr.Consistency(b.Port.Name,
				fmt.Sprintf("%s dispatches ref %d as %s, binding is ref %d as %s", function, b.Ref, b.Tag, known.Ref, known.Tag))
		}
		if b.Tag != tag {
			return DispatchTable{}, generr.Consistency(b.Port.Name,
				fmt.Sprintf("%s serves %s, port is %s", function, tag, b.Tag))
		}
		if seen[b.Ref] {
			return DispatchTable{}, generr.Consistency(b.Port.Name,
				fmt.Sprintf("%s dispatches ref %d twice", function, b.Ref))
		}
		seen[b.Ref] = true

		table.Cases = append(table.Cases, Case{Ref: b.Ref, Ident: b.Ident, Field: b.Port.Name})
	}
	return table, nil
}

func lookupBinding(l *model.Layout, name string) (model.Binding, bool) {
	if name == model.TimeName {
		return model.TimeBinding(), true
	}
	return l.Lookup(name)
}

// Resolve returns the case serving ref
func (d DispatchTable) Resolve(ref model.ValueReference) (Case, error) {
	for _, c := range d.Cases {
		if c.Ref == ref {
			return c, nil
		}
	}
	return Case{}, fmt.Errorf("%s: %w %d", d.Function, ErrUnknownValueReference, ref)
}

// Refs lists the references with a case, in table order
func (d DispatchTable) Refs() []model.ValueReference {
	refs := make([]model.ValueReference, 0, len(d.Cases))
	for _, c := range d.Cases {
		refs = append(refs, c.Ref)
	}
	return refs
}

// enum renders the binding table the switch labels refer to
func (d DispatchTable) enum() string {
	if len(d.Cases) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("enum ValueReferences_enum {\n")
	for _, c := range d.Cases {
		fmt.Fprintf(&b, "    %s = %d,\n", c.Ident, c.Ref)
	}
	b.WriteString("};\n")
	return b.String()
}

// cases renders the switch branches; body returns the statements of one case
func (d DispatchTable) cases(body func(Case) []string) string {
	var b strings.Builder
	for _, c := range d.Cases {
		fmt.Fprintf(&b, "        case %s:\n", c.Ident)
		writeLines(&b, 3, body(c))
		b.WriteString("            break;\n")
	}
	return b.String()
}
