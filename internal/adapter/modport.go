package adapter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/extractor"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// ModulePort drives an SC_MODULE through one shadow signal per port
type ModulePort struct {
	cfg *config.Config
}

// Kind implements Adapter
func (a *ModulePort) Kind() model.AdapterKind {
	return model.ModulePort
}

// Describe parses the configured module header
func (a *ModulePort) Describe(ctx context.Context) (model.Module, error) {
	if err := ctx.Err(); err != nil {
		return model.Module{}, err
	}

	path, content, err := readSource(a.cfg, "rtl.systemc_top_level_module_header_file_path", a.cfg.RTL.HeaderFile)
	if err != nil {
		return model.Module{}, err
	}

	mod, err := extractor.ParseModulePorts(path, content, a.cfg.RTL.ModuleName)
	if err != nil {
		return model.Module{}, err
	}
	mod.Header = includeName(a.cfg.RTL.HeaderFile)

	Logger().Debug("described module ports",
		zap.String("module", mod.Name), zap.Int("ports", len(mod.Ports)))
	return mod, nil
}

// Signals declares s_<port> for every port, typed by the declared source type
func (a *ModulePort) Signals(l *model.Layout) []string {
	lines := make([]string, 0, len(l.Bindings))
	for _, b := range l.Bindings {
		lines = append(lines, fmt.Sprintf("sc_signal<%s> %s;", b.Port.NativeType, model.ShadowSignal(b.Port.Name)))
	}
	return lines
}

// Instantiate binds every port of the module to its shadow signal
func (a *ModulePort) Instantiate(l *model.Layout) []string {
	lines := make([]string, 0, len(l.Bindings))
	for _, b := range l.Bindings {
		lines = append(lines, fmt.Sprintf("fmu->%s->%s(fmu->%s);",
			l.InstanceField, b.Port.Name, model.ShadowSignal(b.Port.Name)))
	}
	return lines
}

// Mirror writes inputs through to the shadow signal. Outputs are driven
// by the module and are never written from outside.
func (a *ModulePort) Mirror(_ *model.Layout, b model.Binding) string {
	if b.Port.Direction != model.In {
		return ""
	}
	return fmt.Sprintf("fmu->%s.write(values[i]);", model.ShadowSignal(b.Port.Name))
}

// Step reads every port back from the module after the kernel has run
func (a *ModulePort) Step(l *model.Layout) []string {
	lines := make([]string, 0, len(l.Bindings))
	for _, b := range l.Bindings {
		lines = append(lines, fmt.Sprintf("fmu->%s = fmu->%s->%s.read();",
			b.Port.Name, l.InstanceField, b.Port.Name))
	}
	return lines
}
