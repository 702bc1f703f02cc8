package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
)

const adderHeader = `#include "systemc.h"

SC_MODULE(ADDER) {
    sc_in<bool> a;
    sc_in<sc_uint<16> > b;
    sc_out<double> c;

    SC_CTOR(ADDER) {}
};
`

func project(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	header := filepath.Join(dir, "modules", "adder.h")
	if err := os.MkdirAll(filepath.Dir(header), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(header, []byte(adderHeader), 0644); err != nil {
		t.Fatalf("write header: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Type = config.TypeRTL
	cfg.RTL.HeaderFile = "modules/adder.h"
	cfg.RTL.ModuleName = "ADDER"
	cfgPath = filepath.Join(dir, "scfmu.yaml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return dir, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestGenerateThenVerify(t *testing.T) {
	dir, cfgPath := project(t)

	out, err := execute(t, "-c", cfgPath, "generate", "--no-format")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	for _, name := range []string{"modelDescription.xml", "include/struct.h", "src/fmi3DoStep.cpp", "src/main.cpp", "scfmu.manifest"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Fatalf("%s not generated: %v", name, err)
		}
	}
	if !strings.Contains(out, "ADDER: 3 ports") {
		t.Fatalf("unexpected generate output:\n%s", out)
	}

	out, err = execute(t, "-c", cfgPath, "verify")
	if err != nil {
		t.Fatalf("verify after generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "up to date") {
		t.Fatalf("unexpected verify output:\n%s", out)
	}

	edited := strings.Replace(adderHeader, "sc_out<double> c;", "sc_out<float> c;", 1)
	if err := os.WriteFile(filepath.Join(dir, "modules", "adder.h"), []byte(edited), 0644); err != nil {
		t.Fatalf("edit header: %v", err)
	}
	out, err = execute(t, "-c", cfgPath, "verify")
	if !errors.Is(err, errDrift) {
		t.Fatalf("verify after edit = %v, want drift\n%s", err, out)
	}
	if !strings.Contains(out, "c: ref 3 Float64 -> ref 3 Float32") {
		t.Fatalf("drift report does not name the port:\n%s", out)
	}
	if !strings.Contains(out, "modules/adder.h changed") {
		t.Fatalf("drift report does not name the input:\n%s", out)
	}
}

func TestVerifyWithoutManifest(t *testing.T) {
	_, cfgPath := project(t)
	_, err := execute(t, "-c", cfgPath, "verify")
	if err == nil || !strings.Contains(err.Error(), "run scfmu generate first") {
		t.Fatalf("verify without manifest = %v", err)
	}
}

func TestVerifyReportsMissingFile(t *testing.T) {
	dir, cfgPath := project(t)
	if out, err := execute(t, "-c", cfgPath, "generate", "--no-format"); err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if err := os.Remove(filepath.Join(dir, "src", "fmi3DoStep.cpp")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out, err := execute(t, "-c", cfgPath, "verify")
	if !errors.Is(err, errDrift) || !strings.Contains(out, "src/fmi3DoStep.cpp is missing") {
		t.Fatalf("verify = %v\n%s", err, out)
	}
}

func TestPorts(t *testing.T) {
	_, cfgPath := project(t)

	out, err := execute(t, "-c", cfgPath, "ports")
	if err != nil {
		t.Fatalf("ports: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected header, blank, columns, time and 3 ports:\n%s", out)
	}
	for i, want := range []string{"0", "1", "2", "3"} {
		fields := strings.Fields(lines[3+i])
		if fields[0] != want {
			t.Fatalf("row %d = %q", i, lines[3+i])
		}
	}
	if !strings.Contains(lines[5], "b") || !strings.Contains(lines[5], "UInt16") {
		t.Fatalf("row for b = %q", lines[5])
	}

	out, err = execute(t, "-c", cfgPath, "ports", "--dump")
	if err != nil {
		t.Fatalf("ports --dump: %v", err)
	}
	if !strings.Contains(out, "StructName: (string) (len=10) \"ADDER_SYSC\"") {
		t.Fatalf("dump missing layout fields:\n%s", out)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "scfmu.toml")
	if out, err := execute(t, "init", "--type", "tlm", path); err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Type != config.TypeTLM {
		t.Fatalf("type = %q", cfg.Type)
	}

	if _, err := execute(t, "init", path); err == nil {
		t.Fatalf("init should refuse to overwrite")
	}
	if _, err := execute(t, "init", "--force", path); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	if _, err := execute(t, "init", "--type", "gate", filepath.Join(t.TempDir(), "x.yaml")); err == nil {
		t.Fatalf("init should reject unknown type")
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"tool": "scfmu"`) || !strings.Contains(out, `"manifest_schema": 1`) {
		t.Fatalf("unexpected version output:\n%s", out)
	}
}
