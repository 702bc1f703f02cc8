package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/emit"
	"github.com/robert-at-pretension-io/scfmu/internal/facts"
	"github.com/robert-at-pretension-io/scfmu/internal/format"
	"github.com/robert-at-pretension-io/scfmu/internal/generr"
)

const testToken = "{11111111-2222-3333-4444-555555555555}"

const adderHeader = `#include "systemc.h"

SC_MODULE(ADDER) {
    sc_in<bool> a;
    sc_in<sc_uint<16> > b;
    sc_out<double> c;

    SC_CTOR(ADDER) {}
};
`

const payloadHeader = `typedef struct {
    int op1;
    int op2;
    int result;
    PortDirection op1_dir = PORT_INPUT;
    PortDirection op2_dir = PORT_INPUT;
    PortDirection result_dir = PORT_OUTPUT;
} alu_data_t;
`

const topHeader = `#include "payload.h"
class Top : public sc_core::sc_module {
  public:
    Top(sc_core::sc_module_name name);
    alu_data_t send_data(const alu_data_t &data);
};
`

func writeProject(t *testing.T, files map[string]string, edit func(*config.Config)) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cfg := config.DefaultConfig()
	edit(cfg)
	cfgPath := filepath.Join(dir, "scfmu.yaml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := config.LoadFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return loaded
}

func rtlProject(t *testing.T, header string) *config.Config {
	return writeProject(t, map[string]string{"modules/adder.h": header}, func(c *config.Config) {
		c.Type = config.TypeRTL
		c.RTL.ModulesFolder = "modules"
		c.RTL.HeaderFile = "modules/adder.h"
		c.RTL.ModuleName = "ADDER"
	})
}

func run(t *testing.T, cfg *config.Config) *ArtifactSet {
	t.Helper()
	set, err := New(cfg, WithToken(testToken), WithFormatter(format.None{})).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return set
}

func TestRunModulePort(t *testing.T) {
	set := run(t, rtlProject(t, adderHeader))

	if n := len(set.Layout.Bindings); n != 3 {
		t.Fatalf("expected 3 bindings, got %d", n)
	}
	want := len(emit.Catalog()) + 3
	if len(set.Artifacts) != want {
		t.Fatalf("expected %d artifacts, got %d", want, len(set.Artifacts))
	}
	if set.Artifacts[0].Path != "modelDescription.xml" {
		t.Fatalf("first artifact = %s", set.Artifacts[0].Path)
	}
	last := set.Artifacts[len(set.Artifacts)-1]
	if last.Path != "scfmu.manifest" || last.Formattable {
		t.Fatalf("last artifact = %+v", last)
	}
	if !strings.Contains(set.Artifacts[0].Content, testToken) {
		t.Fatalf("model description does not carry the fixed token")
	}

	m, err := facts.Decode([]byte(last.Content))
	if err != nil {
		t.Fatalf("Decode manifest: %v", err)
	}
	if m.Model != "ADDER" || m.Kind != "rtl" || m.Token != testToken || m.FMIVersion != "3.0" {
		t.Fatalf("manifest = %+v", m)
	}
	if len(m.Tables.Sources) != 1 || m.Tables.Sources[0].Path != "modules/adder.h" {
		t.Fatalf("sources = %+v", m.Tables.Sources)
	}
	if len(m.Tables.Artifacts) != want-1 {
		t.Fatalf("manifest lists %d artifacts", len(m.Tables.Artifacts))
	}
}

func TestRunPayloadField(t *testing.T) {
	cfg := writeProject(t, map[string]string{"payload.h": payloadHeader, "top.h": topHeader}, func(c *config.Config) {
		c.Type = config.TypeTLM
		c.TLM.PayloadFile = "payload.h"
		c.TLM.PayloadStruct = "alu_data_t"
		c.TLM.HeaderFile = "top.h"
		c.TLM.ModuleName = "Top"
	})
	set := run(t, cfg)

	var names []string
	for _, b := range set.Layout.Bindings {
		names = append(names, b.Port.Name)
	}
	if strings.Join(names, ",") != "op1,op2,result" {
		t.Fatalf("ports = %v", names)
	}
	for _, a := range set.Artifacts {
		if a.Path == "src/fmi3DoStep.cpp" && !strings.Contains(a.Content, "send_data(payload)") {
			t.Fatalf("step does not exchange the payload:\n%s", a.Content)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := rtlProject(t, adderHeader)
	first := run(t, cfg)
	second := run(t, cfg)
	if len(first.Artifacts) != len(second.Artifacts) {
		t.Fatalf("artifact counts differ")
	}
	for i := range first.Artifacts {
		if first.Artifacts[i] != second.Artifacts[i] {
			t.Fatalf("%s differs between runs", first.Artifacts[i].Path)
		}
	}
}

func TestRunFailuresProduceNothing(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) *config.Config
		kind error
	}{
		{
			name: "missing header",
			cfg: func(t *testing.T) *config.Config {
				cfg := rtlProject(t, adderHeader)
				cfg.RTL.HeaderFile = "modules/missing.h"
				return cfg
			},
			kind: generr.ErrInput,
		},
		{
			name: "module name mismatch",
			cfg: func(t *testing.T) *config.Config {
				cfg := rtlProject(t, adderHeader)
				cfg.RTL.ModuleName = "SUBTRACTOR"
				return cfg
			},
			kind: generr.ErrNameMismatch,
		},
		{
			name: "port wider than 64 bits",
			cfg: func(t *testing.T) *config.Config {
				return rtlProject(t, strings.Replace(adderHeader, "sc_uint<16>", "sc_uint<128>", 1))
			},
			kind: generr.ErrTypeMapping,
		},
		{
			name: "unsupported capability",
			cfg: func(t *testing.T) *config.Config {
				cfg := rtlProject(t, adderHeader)
				cfg.FMI.CoSimulation.HasEventMode = true
				return cfg
			},
			kind: generr.ErrInput,
		},
		{
			name: "port named like the instance field",
			cfg: func(t *testing.T) *config.Config {
				return rtlProject(t, strings.Replace(adderHeader, "sc_out<double> c;", "sc_out<double> new_ADDER;", 1))
			},
			kind: generr.ErrPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg(t)
			set, err := New(cfg, WithFormatter(format.None{})).Run(context.Background())
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Run error = %v, want %v", err, tt.kind)
			}
			if set != nil {
				t.Fatalf("failed run returned artifacts")
			}
			entries, err := os.ReadDir(cfg.BaseDir())
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			for _, e := range entries {
				if e.Name() != "modules" && e.Name() != "scfmu.yaml" {
					t.Fatalf("failed run left %s behind", e.Name())
				}
			}
		})
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(rtlProject(t, adderHeader), WithFormatter(format.None{})).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

func TestWrite(t *testing.T) {
	set := run(t, rtlProject(t, adderHeader))
	out := t.TempDir()
	if err := Write(context.Background(), set, out); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, a := range set.Artifacts {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(a.Path)))
		if err != nil {
			t.Fatalf("read %s: %v", a.Path, err)
		}
		if string(got) != a.Content {
			t.Fatalf("%s content differs", a.Path)
		}
	}

	m, err := facts.Load(filepath.Join(out, "scfmu.manifest"))
	if err != nil {
		t.Fatalf("Load manifest: %v", err)
	}
	if m.Digest != set.Manifest.Digest {
		t.Fatalf("manifest on disk differs from the run")
	}

	_ = filepath.Walk(out, func(path string, info os.FileInfo, err error) error {
		if err == nil && strings.HasSuffix(path, ".tmp") {
			t.Fatalf("temp file left behind: %s", path)
		}
		return nil
	})
}

func TestWriteFailureWritesNothing(t *testing.T) {
	out := t.TempDir()
	if err := os.WriteFile(filepath.Join(out, "blocked"), []byte("a file"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	set := &ArtifactSet{Artifacts: []emit.Artifact{
		{Path: "modelDescription.xml", Content: "<x/>"},
		{Path: "blocked/fmi3DoStep.cpp", Content: "int x;"},
	}}

	if err := Write(context.Background(), set, out); err == nil {
		t.Fatalf("expected error writing under a file")
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "blocked" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("output dir holds %v", names)
	}
}

func TestTimingPath(t *testing.T) {
	cfg := rtlProject(t, adderHeader)
	path := filepath.Join(t.TempDir(), "timing.jsonl")
	set, err := New(cfg, WithToken(testToken), WithFormatter(format.None{}), WithTimingPath(path)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open timing file: %v", err)
	}
	defer f.Close()

	var phases []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev StageTiming
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("parse timing event: %v", err)
		}
		phases = append(phases, ev.Phase)
	}
	want := "config,describe,assign,policy,emit,manifest,format,total"
	if strings.Join(phases, ",") != want {
		t.Fatalf("phases = %v, want %s", phases, want)
	}
	if len(set.Timings) != len(phases) {
		t.Fatalf("set carries %d timings, file has %d", len(set.Timings), len(phases))
	}
}
