package emit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
	"github.com/robert-at-pretension-io/scfmu/internal/tmpl"
)

const unusedDefine = "#define UNUSED(x) (void)(x)"

var (
	fileSkeleton = tmpl.MustParse("function file", `// ${provenance}
${includes}
${declarations}${signature}
{
${body}}
`)

	stubBody = tmpl.MustParse("stub body", `${unused}${results}${ret}`)

	accessorBody = tmpl.MustParse("accessor body", `${prologue}    for (size_t i = 0; i < nValueReferences; i++) {
        switch (valueReferences[i]) {
${cases}        default:
            return fmi3Error;
        }
    }
    return fmi3OK;
`)

	stepBody = tmpl.MustParse("fmi3DoStep body", `${fmu}${unused}    sc_time step_size(communicationStepSize, SC_SEC);
    fmu->current_time = fmu->current_time + step_size;
    fmu->time = currentCommunicationPoint + communicationStepSize;
    sc_start(step_size);
${exchange}    *eventHandlingNeeded = fmi3False;
    *terminateSimulation = fmi3False;
    *earlyReturn = fmi3False;
    *lastSuccessfulTime = fmu->time;
    return fmi3OK;
`)

	instantiateBody = tmpl.MustParse("fmi3InstantiateCoSimulation body", `${unused}${alloc}    fmu->time = 0.0;
    fmu->current_time = sc_time(0, SC_SEC);
${bind}    return (fmi3Instance)fmu;
`)

	freeBody = tmpl.MustParse("fmi3FreeInstance body", `${fmu}    if (fmu == NULL) {
        return;
    }
    delete fmu->${instance_field};
    delete fmu;
`)

	mainBody = tmpl.MustParse("sc_main body", `${unused}    sc_core::sc_set_time_resolution(1, sc_core::SC_MS);
    return 0;
`)
)

// part is what a role contributes to one function file
type part struct {
	includes     []string
	declarations []string
	body         string
}

// Functions renders one source file per catalog entry. Each entry is
// instantiated exactly once.
func (e *Emitter) Functions(l *model.Layout) ([]Artifact, error) {
	tables, err := e.Dispatch(l)
	if err != nil {
		return nil, err
	}
	return e.functions(l, tables)
}

func (e *Emitter) functions(l *model.Layout, tables map[string]DispatchTable) ([]Artifact, error) {
	seen := make(map[string]bool, len(catalog))
	out := make([]Artifact, 0, len(catalog))
	for _, f := range catalog {
		if seen[f.File] {
			return nil, generr.Consistency(f.File, "function file instantiated twice")
		}
		seen[f.File] = true

		content, err := e.renderFunction(l, f, tables[f.Name])
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", f.Name, err)
		}
		out = append(out, Artifact{Path: e.sourcePath(f.File), Content: content, Formattable: true})
	}
	return out, nil
}

// Dispatch builds the table of every accessor, keyed by function name.
// Getters serve every binding of their tag, Float64 including time.
// Setters serve the ports only: time is independent and read-only.
func (e *Emitter) Dispatch(l *model.Layout) (map[string]DispatchTable, error) {
	tables := make(map[string]DispatchTable)
	for _, f := range catalog {
		var bindings []model.Binding
		switch f.role {
		case roleGetter:
			if f.tag != scalar.Invalid {
				bindings = l.ByTag(f.tag)
			}
		case roleSetter:
			if f.tag != scalar.Invalid {
				for _, b := range l.ByTag(f.tag) {
					if b.Ref != model.TimeRef {
						bindings = append(bindings, b)
					}
				}
			}
		default:
			continue
		}
		table, err := BuildDispatch(f.Name, f.tag, l, bindings)
		if err != nil {
			return nil, err
		}
		tables[f.Name] = table
	}
	return tables, nil
}

func (e *Emitter) renderFunction(l *model.Layout, f FunctionTemplate, table DispatchTable) (string, error) {
	var (
		p   part
		err error
	)
	switch f.role {
	case roleStub:
		p, err = e.stub(f)
	case roleGetter, roleSetter:
		p, err = e.accessor(l, f, table)
	case roleStep:
		p, err = e.step(l, f)
	case roleInstantiate:
		p, err = e.instantiate(l, f)
	case roleFree:
		p, err = e.free(l, f)
	case roleMain:
		p, err = e.scMain(f)
	default:
		err = generr.Consistency(f.Name, "catalog entry has no role")
	}
	if err != nil {
		return "", err
	}

	var includes strings.Builder
	for _, inc := range p.includes {
		fmt.Fprintf(&includes, "#include \"%s\"\n", inc)
	}
	var decls strings.Builder
	for _, d := range p.declarations {
		decls.WriteString(d)
		if !strings.HasSuffix(d, "\n") {
			decls.WriteByte('\n')
		}
		decls.WriteByte('\n')
	}

	return fileSkeleton.Render(map[string]string{
		"provenance":   Provenance,
		"includes":     includes.String(),
		"declarations": decls.String(),
		"signature":    f.Signature(),
		"body":         p.body,
	})
}

// unused returns an UNUSED(x) line for every parameter not in used, and
// declares the macro on p when there is at least one
func unused(p *part, f FunctionTemplate, used ...string) string {
	var b strings.Builder
	for _, name := range f.ParamNames() {
		if !slices.Contains(used, name) {
			fmt.Fprintf(&b, "    UNUSED(%s);\n", name)
		}
	}
	if b.Len() > 0 && !slices.Contains(p.declarations, unusedDefine) {
		p.declarations = append(p.declarations, unusedDefine)
	}
	return b.String()
}

func (e *Emitter) fmuDecl(l *model.Layout) string {
	return fmt.Sprintf("    %s *fmu = (%s *)instance;\n", l.StructName, l.StructName)
}

func (e *Emitter) stub(f FunctionTemplate) (part, error) {
	p := part{includes: []string{"fmi3Functions.h"}}

	var results strings.Builder
	writeLines(&results, 1, f.results)
	ret := ""
	if f.returns != "" {
		ret = "    return " + f.returns + ";\n"
	}

	body, err := stubBody.Render(map[string]string{
		"unused":  unused(&p, f),
		"results": results.String(),
		"ret":     ret,
	})
	p.body = body
	return p, err
}

func (e *Emitter) accessor(l *model.Layout, f FunctionTemplate, table DispatchTable) (part, error) {
	p := part{includes: []string{e.structInclude()}}

	var prologue string
	if len(table.Cases) == 0 {
		prologue = unused(&p, f, "valueReferences", "nValueReferences")
	} else {
		prologue = e.fmuDecl(l) + unused(&p, f, "instance", "valueReferences", "nValueReferences", "values")
		p.declarations = append(p.declarations, table.enum())
	}

	var cases string
	if f.role == roleGetter {
		cases = table.cases(func(c Case) []string {
			return []string{fmt.Sprintf("values[i] = fmu->%s;", c.Field)}
		})
	} else {
		var missing error
		cases = table.cases(func(c Case) []string {
			lines := []string{fmt.Sprintf("fmu->%s = values[i];", c.Field)}
			b, ok := l.Lookup(c.Field)
			if !ok {
				missing = generr.Consistency(c.Field, f.Name+" case has no binding")
				return lines
			}
			if mirror := e.adapter.Mirror(l, b); mirror != "" {
				lines = append(lines, mirror)
			}
			return lines
		})
		if missing != nil {
			return p, missing
		}
	}

	body, err := accessorBody.Render(map[string]string{
		"prologue": prologue,
		"cases":    cases,
	})
	p.body = body
	return p, err
}

func (e *Emitter) step(l *model.Layout, f FunctionTemplate) (part, error) {
	p := part{includes: []string{e.structInclude()}}

	var exchange strings.Builder
	writeLines(&exchange, 1, e.adapter.Step(l))

	body, err := stepBody.Render(map[string]string{
		"fmu": e.fmuDecl(l),
		"unused": unused(&p, f, "instance", "currentCommunicationPoint", "communicationStepSize",
			"eventHandlingNeeded", "terminateSimulation", "earlyReturn", "lastSuccessfulTime"),
		"exchange": exchange.String(),
	})
	p.body = body
	return p, err
}

func (e *Emitter) instantiate(l *model.Layout, f FunctionTemplate) (part, error) {
	p := part{includes: []string{e.structInclude()}}

	module := l.Module.Name
	alloc := fmt.Sprintf("    %s *fmu = new %s();\n    fmu->%s = new %s(\"%s\");\n",
		l.StructName, l.StructName, l.InstanceField, module, module)

	var bind strings.Builder
	writeLines(&bind, 1, e.adapter.Instantiate(l))

	body, err := instantiateBody.Render(map[string]string{
		"unused": unused(&p, f),
		"alloc":  alloc,
		"bind":   bind.String(),
	})
	p.body = body
	return p, err
}

func (e *Emitter) free(l *model.Layout, f FunctionTemplate) (part, error) {
	p := part{includes: []string{e.structInclude()}}
	body, err := freeBody.Render(map[string]string{
		"fmu":            e.fmuDecl(l),
		"instance_field": l.InstanceField,
	})
	p.body = body
	return p, err
}

func (e *Emitter) scMain(f FunctionTemplate) (part, error) {
	p := part{includes: []string{"systemc"}}
	body, err := mainBody.Render(map[string]string{
		"unused": unused(&p, f),
	})
	p.body = body
	return p, err
}
