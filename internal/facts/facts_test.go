package facts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/robert-at-pretension-io/scfmu/internal/adapter"
	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/emit"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

const testToken = "{00000000-0000-0000-0000-000000000000}"

func width(n int) *int { return &n }

func layout(t *testing.T, ports ...model.Port) *model.Layout {
	t.Helper()
	l, err := model.Assign(model.Module{
		Name:   "adder",
		Kind:   model.ModulePort,
		File:   "adder.h",
		Header: "adder.h",
		Ports:  ports,
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	return l
}

func scenarioA(t *testing.T) *model.Layout {
	return layout(t,
		model.Port{Name: "a", Direction: model.In, Semantic: scalar.Bool, NativeType: "bool", Line: 5},
		model.Port{Name: "b", Direction: model.In, Semantic: scalar.Uint, Width: width(16), NativeType: "sc_uint<16>", Line: 6},
		model.Port{Name: "c", Direction: model.Out, Semantic: scalar.Double, NativeType: "double", Line: 7},
	)
}

func buildTables(t *testing.T, l *model.Layout) Tables {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Type = config.TypeRTL
	a, err := adapter.New(cfg, nil)
	if err != nil {
		t.Fatalf("adapter.New: %v", err)
	}
	e := emit.New(cfg, a, emit.WithToken(func() string { return testToken }))
	out, err := e.Generate(l)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return Build(l, out.Dispatch, out.Artifacts)
}

func TestBuildPopulatesRelations(t *testing.T) {
	tables := buildTables(t, scenarioA(t))

	if len(tables.Variables) != 4 {
		t.Fatalf("expected time plus 3 ports, got %+v", tables.Variables)
	}
	want := []VariableRow{
		{Name: "time", Ref: 0, Tag: "Float64", Causality: "independent", Variability: "continuous", NativeType: "double", Ident: "VR_TIME"},
		{Name: "a", Ref: 1, Tag: "Boolean", Causality: "input", Variability: "discrete", NativeType: "bool", Ident: "VR_A", Line: 5},
		{Name: "b", Ref: 2, Tag: "UInt16", Causality: "input", Variability: "discrete", NativeType: "sc_uint<16>", Ident: "VR_B", Line: 6},
		{Name: "c", Ref: 3, Tag: "Float64", Causality: "output", Variability: "discrete", NativeType: "double", Ident: "VR_C", Line: 7},
	}
	for i, w := range want {
		if tables.Variables[i] != w {
			t.Fatalf("variable %d = %+v, want %+v", i, tables.Variables[i], w)
		}
	}

	if len(tables.Functions) != len(emit.Catalog()) {
		t.Fatalf("expected one function row per catalog entry, got %d", len(tables.Functions))
	}
	if len(tables.Artifacts) != len(emit.Catalog())+2 {
		t.Fatalf("expected functions plus description and struct, got %d artifacts", len(tables.Artifacts))
	}

	var getFloat []DispatchRow
	for _, d := range tables.Dispatch {
		if d.Function == "fmi3GetFloat64" {
			getFloat = append(getFloat, d)
		}
	}
	if len(getFloat) != 2 || getFloat[0].Field != "time" || getFloat[1].Field != "c" {
		t.Fatalf("fmi3GetFloat64 rows = %+v", getFloat)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	l := scenarioA(t)
	first := buildTables(t, l)
	second := buildTables(t, l)
	if d := ComputeDelta(first, second); !d.Empty() {
		t.Fatalf("unchanged input produced a delta: %+v", d)
	}
}

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		Variables: []VariableRow{
			{Name: "a", Ref: 1, Tag: "Boolean"},
		},
		Dispatch: []DispatchRow{
			{Function: "fmi3GetBoolean", Ref: 1, Field: "a"},
		},
	}
	next := Tables{
		Variables: []VariableRow{
			{Name: "b", Ref: 1, Tag: "Boolean"},
		},
		Dispatch: []DispatchRow{
			{Function: "fmi3GetBoolean", Ref: 1, Field: "b"},
		},
	}

	delta := ComputeDelta(prev, next)

	if len(delta.Added.Variables) != 1 || delta.Added.Variables[0].Name != "b" {
		t.Fatalf("expected variable b added, got %+v", delta.Added.Variables)
	}
	if len(delta.Removed.Variables) != 1 || delta.Removed.Variables[0].Name != "a" {
		t.Fatalf("expected variable a removed, got %+v", delta.Removed.Variables)
	}
	if len(delta.Added.Dispatch) != 1 || delta.Added.Dispatch[0].Field != "b" {
		t.Fatalf("expected dispatch row added, got %+v", delta.Added.Dispatch)
	}
	if delta.Empty() {
		t.Fatalf("delta with rows reported empty")
	}
}

func TestDeltaIgnoresLineMoves(t *testing.T) {
	prev := Tables{Variables: []VariableRow{{Name: "a", Ref: 1, Tag: "Boolean", Line: 3}}}
	next := Tables{Variables: []VariableRow{{Name: "a", Ref: 1, Tag: "Boolean", Line: 9}}}
	if d := ComputeDelta(prev, next); !d.Empty() {
		t.Fatalf("moved declaration produced a delta: %+v", d)
	}
}

func TestDrift(t *testing.T) {
	prev := buildTables(t, scenarioA(t))

	// b removed: c renumbers from 3 to 2; d is new
	next := buildTables(t, layout(t,
		model.Port{Name: "a", Direction: model.In, Semantic: scalar.Bool, NativeType: "bool"},
		model.Port{Name: "c", Direction: model.Out, Semantic: scalar.Float, NativeType: "float"},
		model.Port{Name: "d", Direction: model.Out, Semantic: scalar.Int, NativeType: "int"},
	))

	changes := Drift(prev, next)
	got := make(map[string]Change, len(changes))
	for _, c := range changes {
		got[c.Name] = c
	}
	if len(got) != 3 {
		t.Fatalf("changes = %+v", changes)
	}
	if c := got["c"]; c.Kind != "changed" || c.OldRef != 3 || c.NewRef != 2 || c.OldTag != "Float64" || c.NewTag != "Float32" {
		t.Fatalf("c = %+v", c)
	}
	if c := got["b"]; c.Kind != "removed" || c.OldRef != 2 {
		t.Fatalf("b = %+v", c)
	}
	if c := got["d"]; c.Kind != "added" || c.NewRef != 3 || c.NewTag != "Int32" {
		t.Fatalf("d = %+v", c)
	}
	if _, ok := got["a"]; ok {
		t.Fatalf("a did not change")
	}

	if len(Drift(prev, prev)) != 0 {
		t.Fatalf("identical snapshots drifted")
	}
}

func TestFilterTablesByPorts(t *testing.T) {
	tables := buildTables(t, scenarioA(t))

	filtered := FilterTablesByPorts(tables, map[string]bool{"c": true})
	if len(filtered.Variables) != 1 || filtered.Variables[0].Name != "c" {
		t.Fatalf("expected only c variable row, got %#v", filtered.Variables)
	}
	for _, d := range filtered.Dispatch {
		if d.Field != "c" {
			t.Fatalf("dispatch row for %q kept", d.Field)
		}
	}
	if len(filtered.Dispatch) != 2 {
		t.Fatalf("expected get and set rows for c, got %#v", filtered.Dispatch)
	}
	if len(filtered.Functions) != 0 || len(filtered.Artifacts) != 0 {
		t.Fatalf("per-run rows kept: %#v", filtered)
	}

	if empty := FilterTablesByPorts(tables, nil); empty.rows() != 0 {
		t.Fatalf("expected empty tables, got %#v", empty)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	l := scenarioA(t)
	m := NewManifest(l, "3.0", testToken, buildTables(t, l))

	path := filepath.Join(t.TempDir(), "out", "scfmu.manifest")
	if err := Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Model != "adder" || loaded.Kind != "rtl" || loaded.FMIVersion != "3.0" || loaded.Token != testToken {
		t.Fatalf("header = %+v", loaded)
	}
	if loaded.Digest != m.Digest {
		t.Fatalf("digest %s, want %s", loaded.Digest, m.Digest)
	}
	if d := ComputeDelta(m.Tables, loaded.Tables); !d.Empty() {
		t.Fatalf("tables changed across round trip: %+v", d)
	}
}

func TestManifestDigestTracksContent(t *testing.T) {
	l := scenarioA(t)
	tables := buildTables(t, l)
	a := NewManifest(l, "3.0", testToken, tables)

	tables.Artifacts[0].Digest = Digest("edited by hand")
	b := NewManifest(l, "3.0", testToken, tables)
	if a.Digest == b.Digest {
		t.Fatalf("digest did not change with artifact content")
	}
}

func TestDecodeRejectsOtherSchema(t *testing.T) {
	data, err := msgpack.Marshal(&Manifest{Schema: SchemaVersion + 1, Model: "adder"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := Decode(data); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("Decode = %v, want schema mismatch", err)
	}
	if _, err := Decode([]byte("not msgpack")); err == nil {
		t.Fatalf("Decode accepted garbage")
	}
}

func TestSourceRows(t *testing.T) {
	base := t.TempDir()
	header := filepath.Join(base, "include", "adder.h")
	if err := os.MkdirAll(filepath.Dir(header), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(header, []byte("SC_MODULE(adder) {};\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := SourceRows(base, []string{header})
	if err != nil {
		t.Fatalf("SourceRows: %v", err)
	}
	if len(rows) != 1 || rows[0].Path != "include/adder.h" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Digest != Digest("SC_MODULE(adder) {};\n") {
		t.Fatalf("digest = %s", rows[0].Digest)
	}

	if _, err := SourceRows(base, []string{filepath.Join(base, "missing.h")}); err == nil {
		t.Fatalf("expected error for missing source")
	}
}
