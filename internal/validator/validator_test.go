package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/scalar"
)

func rtlConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RTL.HeaderFile = "adder.h"
	cfg.RTL.ModuleName = "adder"
	return cfg
}

func TestConfigContract(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	step := 0.5
	negative := -1.0

	tests := []struct {
		name      string
		edit      func(*config.Config)
		wantErr   bool
		construct string
	}{
		{
			name: "defaults with module",
			edit: func(*config.Config) {},
		},
		{
			name: "fixed step size",
			edit: func(c *config.Config) { c.FMI.CoSimulation.FixedInternalStepSize = &step },
		},
		{
			name: "tlm",
			edit: func(c *config.Config) {
				c.Type = config.TypeTLM
				c.TLM = config.TLMConfig{
					PayloadFile:       "payload.h",
					PayloadStruct:     "alu_data_t",
					HeaderFile:        "top.h",
					ModuleName:        "Top",
					UnannotatedFields: config.UnannotatedReject,
				}
			},
		},
		{
			name:      "state capability",
			edit:      func(c *config.Config) { c.FMI.CoSimulation.CanGetAndSetFMUState = true },
			wantErr:   true,
			construct: "fmi_config.CoSimulation.canGetAndSetFMUState",
		},
		{
			name:      "event mode",
			edit:      func(c *config.Config) { c.FMI.CoSimulation.HasEventMode = true },
			wantErr:   true,
			construct: "fmi_config.CoSimulation.hasEventMode",
		},
		{
			name:      "module name not an identifier",
			edit:      func(c *config.Config) { c.RTL.ModuleName = "my-adder" },
			wantErr:   true,
			construct: "rtl.systemc_top_level_module_name",
		},
		{
			name:    "fmi 2",
			edit:    func(c *config.Config) { c.FMI.Version = "2.0" },
			wantErr: true,
		},
		{
			name:    "negative start",
			edit:    func(c *config.Config) { c.FMI.DefaultExperiment.StartTime = &negative },
			wantErr: true,
		},
		{
			name:    "tlm without payload",
			edit:    func(c *config.Config) { c.Type = config.TypeTLM },
			wantErr: true,
		},
		{
			name:    "unknown compile flavour",
			edit:    func(c *config.Config) { c.Compile.Type = "make" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := rtlConfig()
			tt.edit(cfg)
			err := v.ValidateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, generr.ErrInput) {
				t.Fatalf("config violations should be input errors, got %v", err)
			}
			if tt.construct != "" && !strings.Contains(err.Error(), tt.construct) {
				t.Fatalf("error %q does not name %s", err, tt.construct)
			}
		})
	}
}

func layoutFixture(t *testing.T) *model.Layout {
	t.Helper()
	w := 16
	l, err := model.Assign(model.Module{
		Name:   "adder",
		Kind:   model.ModulePort,
		File:   "adder.h",
		Header: "adder.h",
		Ports: []model.Port{
			{Name: "a", Direction: model.In, Semantic: scalar.Bool, NativeType: "bool", Line: 3},
			{Name: "b", Direction: model.In, Semantic: scalar.Uint, Width: &w, NativeType: "sc_uint<16>", Line: 4},
			{Name: "c", Direction: model.Out, Semantic: scalar.Double, NativeType: "double", Line: 5},
		},
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	return l
}

func TestLayoutContract(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := v.ValidateLayout(layoutFixture(t)); err != nil {
		t.Fatalf("assigned layout should satisfy the contract: %v", err)
	}

	tests := []struct {
		name string
		edit func(*model.Layout)
	}{
		{"gap in numbering", func(l *model.Layout) { l.Bindings[1].Ref = 5 }},
		{"bool mapped to integer", func(l *model.Layout) { l.Bindings[0].Tag = scalar.UInt8 }},
		{"unsigned mapped to signed", func(l *model.Layout) { l.Bindings[1].Tag = scalar.Int16 }},
		{"duplicate name", func(l *model.Layout) { l.Bindings[2].Port.Name = "a" }},
		{"bad identifier", func(l *model.Layout) { l.Bindings[0].Ident = "a" }},
		{"payload without type", func(l *model.Layout) { l.Module.Kind = model.PayloadField }},
		{"zero reference", func(l *model.Layout) { l.Bindings[0].Ref = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := layoutFixture(t)
			tt.edit(l)
			err := v.ValidateLayout(l)
			if !errors.Is(err, generr.ErrConsistency) {
				t.Fatalf("expected consistency error, got %v", err)
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	cfg := rtlConfig()
	cfg.FMI.CoSimulation.CanSerializeFMUState = true
	cfg.FMI.CoSimulation.ProvidesIntermediateUpdate = true

	errs := v.ValidationErrors(ConfigDef, cfg)
	joined := strings.Join(errs, "\n")
	if len(errs) == 0 || !strings.Contains(joined, "canSerializeFMUState") && !strings.Contains(joined, "providesIntermediateUpdate") {
		t.Fatalf("expected the capability violations, got %v", errs)
	}
	if v.ValidationErrors(ConfigDef, rtlConfig()) != nil {
		t.Fatalf("valid config reported errors")
	}
}

func TestValidateJSONUnknownDefinition(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	if err := v.ValidateJSON("#Missing", []byte(`{}`)); err == nil {
		t.Fatalf("expected lookup error")
	}
}

// Both adapter types select their section through a comprehension on
// "type"; the definition must still be usable before data fills it in.
func TestConfigContractPerAdapterType(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	if err := v.ValidateConfig(rtlConfig()); err != nil {
		t.Fatalf("rtl config rejected: %v", err)
	}

	tlm := config.DefaultConfig()
	tlm.Type = config.TypeTLM
	tlm.TLM.PayloadFile = "payload.h"
	tlm.TLM.PayloadStruct = "alu_data_t"
	tlm.TLM.HeaderFile = "top.h"
	tlm.TLM.ModuleName = "Top"
	if err := v.ValidateConfig(tlm); err != nil {
		t.Fatalf("tlm config rejected: %v", err)
	}

	if err := v.ValidateJSON(ConfigDef, []byte(`{"type": "gate"}`)); err == nil {
		t.Fatalf("unknown adapter type accepted")
	}
}
