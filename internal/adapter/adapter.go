// Package adapter holds the two ways a simulated unit can be described
// and driven: a module with sc_in/sc_out ports, or a transaction-level
// top that exchanges one payload struct per step.
//
// The variant is chosen once from the configuration. Every emitter goes
// through the Adapter interface and never branches on the kind itself.
package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/extractor"
	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// Adapter parses a description and supplies the variant-specific lines
// of the generated sources
type Adapter interface {
	// Kind identifies the variant
	Kind() model.AdapterKind

	// Describe reads the configured sources and returns the port model
	Describe(ctx context.Context) (model.Module, error)

	// Signals returns the extra member declarations of the adapter record
	Signals(l *model.Layout) []string

	// Instantiate returns the statements run after the module instance is
	// allocated, with "fmu" in scope
	Instantiate(l *model.Layout) []string

	// Mirror returns the statement a setter runs after storing values[i]
	// into the field of b, or "" when nothing needs to be mirrored
	Mirror(l *model.Layout, b model.Binding) string

	// Step returns the statements of one communication step that move
	// data between the record and the module, after sc_start has run
	Step(l *model.Layout) []string
}

// New selects the adapter for cfg.Type. The extractor is only used by
// the payload-field variant and may be nil for module ports.
func New(cfg *config.Config, ex *extractor.Extractor) (Adapter, error) {
	switch cfg.Type {
	case config.TypeRTL:
		return &ModulePort{cfg: cfg}, nil
	case config.TypeTLM:
		if ex == nil {
			return nil, fmt.Errorf("payload-field adapter needs an extractor")
		}
		return &PayloadField{cfg: cfg, ex: ex}, nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

// readSource reads a configured file relative to the config directory
func readSource(cfg *config.Config, key, path string) (string, []byte, error) {
	resolved := cfg.Resolve(path)
	content, err := os.ReadFile(resolved)
	if err != nil {
		return resolved, nil, generr.Input(resolved, key, "cannot read file", err)
	}
	return resolved, content, nil
}

func includeName(path string) string {
	return filepath.Base(path)
}
