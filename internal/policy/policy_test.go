package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func input(kind string, ports ...Port) Input {
	return Input{
		Module:        "adder",
		Kind:          kind,
		File:          "adder.h",
		StructName:    "ADDER_SYSC",
		InstanceField: "new_adder",
		Ports:         ports,
	}
}

func rules(r *Result, severity string) []string {
	var out []string
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v.Rule+":"+v.Port)
		}
	}
	return out
}

func TestPortRules(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name     string
		input    Input
		errors   []string
		warnings []string
	}{
		{
			name: "clean",
			input: input("rtl",
				Port{Name: "a", Direction: "in", Tag: "Boolean", Ref: 1, Line: 3},
				Port{Name: "c", Direction: "out", Tag: "Float64", Ref: 2, Line: 4}),
		},
		{
			name: "reserved struct members",
			input: input("rtl",
				Port{Name: "time", Direction: "in", Tag: "Float64", Ref: 1, Line: 3},
				Port{Name: "current_time", Direction: "in", Tag: "Float64", Ref: 2, Line: 4},
				Port{Name: "new_adder", Direction: "out", Tag: "Int32", Ref: 3, Line: 5}),
			errors: []string{"reserved_name:time", "reserved_name:current_time", "reserved_name:new_adder"},
		},
		{
			name: "keyword",
			input: input("tlm",
				Port{Name: "delete", Direction: "in", Tag: "Int32", Ref: 1, Line: 7},
				Port{Name: "out", Direction: "out", Tag: "Int32", Ref: 2, Line: 8}),
			errors: []string{"cpp_keyword:delete"},
		},
		{
			name: "implementation reserved identifiers",
			input: input("rtl",
				Port{Name: "_Value", Direction: "in", Tag: "Int32", Ref: 1, Line: 2},
				Port{Name: "a__b", Direction: "out", Tag: "Int32", Ref: 2, Line: 3},
				Port{Name: "_ok", Direction: "out", Tag: "Int32", Ref: 3, Line: 4}),
			errors: []string{"reserved_identifier:_Value", "reserved_identifier:a__b"},
		},
		{
			name: "shadow signal collision on rtl",
			input: input("rtl",
				Port{Name: "a", Direction: "in", Tag: "Boolean", Ref: 1, Line: 2},
				Port{Name: "s_a", Direction: "out", Tag: "Boolean", Ref: 2, Line: 3}),
			errors: []string{"shadow_collision:s_a"},
		},
		{
			name: "no shadow signals on tlm",
			input: input("tlm",
				Port{Name: "a", Direction: "in", Tag: "Boolean", Ref: 1, Line: 2},
				Port{Name: "s_a", Direction: "out", Tag: "Boolean", Ref: 2, Line: 3}),
		},
		{
			name: "clock input not boolean",
			input: input("rtl",
				Port{Name: "clk", Direction: "in", Tag: "UInt8", Ref: 1, Line: 2},
				Port{Name: "sys_CLOCK_in", Direction: "in", Tag: "Int32", Ref: 2, Line: 3},
				Port{Name: "clk_ok", Direction: "in", Tag: "Boolean", Ref: 3, Line: 4},
				Port{Name: "clkdiv", Direction: "in", Tag: "Int32", Ref: 4, Line: 5},
				Port{Name: "clk_out", Direction: "out", Tag: "Int32", Ref: 5, Line: 6}),
			warnings: []string{"clock_not_boolean:clk", "clock_not_boolean:sys_CLOCK_in"},
		},
		{
			name:     "no ports",
			input:    input("rtl"),
			warnings: []string{"no_ports:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := e.Evaluate(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got := rules(r, SeverityError); !sameSet(got, tt.errors) {
				t.Fatalf("errors = %v, want %v", got, tt.errors)
			}
			if got := rules(r, SeverityWarning); !sameSet(got, tt.warnings) {
				t.Fatalf("warnings = %v, want %v", got, tt.warnings)
			}
			if r.Summary.Errors != len(tt.errors) || r.Summary.Warnings != len(tt.warnings) {
				t.Fatalf("summary = %+v", r.Summary)
			}
			if r.Summary.TotalViolations != len(r.Violations) {
				t.Fatalf("summary total %d, %d violations", r.Summary.TotalViolations, len(r.Violations))
			}
		})
	}
}

func TestViolationsAreOrdered(t *testing.T) {
	e := newEngine(t)
	r, err := e.Evaluate(context.Background(), input("rtl",
		Port{Name: "switch", Direction: "in", Tag: "Int32", Ref: 1, Line: 9},
		Port{Name: "new_adder", Direction: "out", Tag: "Int32", Ref: 2, Line: 2}))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(r.Violations) != 2 {
		t.Fatalf("violations = %+v", r.Violations)
	}
	if r.Violations[0].Line != 2 || r.Violations[1].Line != 9 {
		t.Fatalf("not ordered by line: %+v", r.Violations)
	}
	if r.Violations[0].File != "adder.h" {
		t.Fatalf("file = %q", r.Violations[0].File)
	}
}

func TestCheckLayout(t *testing.T) {
	e := newEngine(t)

	good, err := model.Assign(model.Module{
		Name: "adder",
		Kind: model.ModulePort,
		File: "adder.h",
		Ports: []model.Port{
			{Name: "a", Direction: model.In, Semantic: scalar.Bool, Line: 4},
			{Name: "c", Direction: model.Out, Semantic: scalar.Double, Line: 5},
		},
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if _, err := e.Check(context.Background(), good); err != nil {
		t.Fatalf("Check clean layout: %v", err)
	}

	bad, err := model.Assign(model.Module{
		Name: "adder",
		Kind: model.ModulePort,
		File: "adder.h",
		Ports: []model.Port{
			{Name: "class", Direction: model.In, Semantic: scalar.Bool, Line: 4},
			{Name: "new_adder", Direction: model.Out, Semantic: scalar.Double, Line: 5},
		},
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	_, err = e.Check(context.Background(), bad)
	if !errors.Is(err, generr.ErrPolicy) {
		t.Fatalf("Check = %v, want policy error", err)
	}
	var ge *generr.Error
	if !errors.As(err, &ge) {
		t.Fatalf("not a generr.Error: %T", err)
	}
	if ge.File != "adder.h" || ge.Line != 4 || ge.Construct != "class" {
		t.Fatalf("error names %s:%d %s", ge.File, ge.Line, ge.Construct)
	}
	if !strings.Contains(err.Error(), "and 1 more") {
		t.Fatalf("error does not count the rest: %v", err)
	}
}

func TestCheckWarningsDoNotFail(t *testing.T) {
	e := newEngine(t)
	l, err := model.Assign(model.Module{
		Name: "counter",
		Kind: model.ModulePort,
		File: "counter.h",
		Ports: []model.Port{
			{Name: "clk", Direction: model.In, Semantic: scalar.Uint, Line: 3},
			{Name: "count", Direction: model.Out, Semantic: scalar.Uint, Line: 4},
		},
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	r, err := e.Check(context.Background(), l)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if r.Summary.Warnings != 1 {
		t.Fatalf("summary = %+v", r.Summary)
	}
}

func TestInputFromLayoutSkipsTime(t *testing.T) {
	l, err := model.Assign(model.Module{
		Name: "adder",
		Kind: model.PayloadField,
		File: "payload.h",
		Ports: []model.Port{
			{Name: "x", Direction: model.In, Semantic: scalar.Float, Line: 6},
		},
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	in := InputFromLayout(l)
	if in.Kind != "tlm" || in.StructName != "ADDER_SYSC" || in.InstanceField != "new_adder" {
		t.Fatalf("input = %+v", in)
	}
	if len(in.Ports) != 1 {
		t.Fatalf("ports = %+v", in.Ports)
	}
	if p := in.Ports[0]; p.Name != "x" || p.Tag != "Float32" || p.Ref != 1 || p.Direction != "in" {
		t.Fatalf("port = %+v", p)
	}
}

func sameSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]int, len(want))
	for _, w := range want {
		seen[w]++
	}
	for _, g := range got {
		if seen[g] == 0 {
			return false
		}
		seen[g]--
	}
	return true
}

func TestEvaluateTreatsNilPortsAsEmpty(t *testing.T) {
	e, err := New(context.Background())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, ports := range [][]Port{nil, {}} {
		in := input("tlm")
		in.Ports = ports
		r, err := e.Evaluate(context.Background(), in)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got := rules(r, SeverityWarning); len(got) != 1 || got[0] != "no_ports:" {
			t.Fatalf("ports=%#v: warnings = %v, want [no_ports:]", ports, got)
		}
		if r.Summary.Warnings != 1 {
			t.Fatalf("ports=%#v: summary = %+v", ports, r.Summary)
		}
	}
}
