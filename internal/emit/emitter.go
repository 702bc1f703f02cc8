// Package emit projects a Layout into the text artifacts of a
// co-simulation unit: the model description, the adapter record header
// and one source file per FMI 3.0 function.
//
// Every artifact is derived from the same Layout, so value references,
// identifiers and types agree across files by construction. Emission is
// pure: nothing here touches the filesystem.
package emit

import (
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/adapter"
	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// Provenance is written at the top of every generated file
const Provenance = "Generated by scfmu. Do not modify it manually."

// Artifact is one generated file
type Artifact struct {
	// Path is relative to the output directory, slash separated
	Path    string
	Content string
	// Formattable marks C/C++ sources the external formatter may rewrite
	Formattable bool
}

// Emitter renders artifacts for one configuration and adapter
type Emitter struct {
	cfg     *config.Config
	adapter adapter.Adapter
	token   func() string
}

// Option configures an Emitter
type Option func(*Emitter)

// WithToken replaces the instantiation token generator
func WithToken(token func() string) Option {
	return func(e *Emitter) {
		e.token = token
	}
}

// New creates an Emitter. By default each model description gets a
// fresh "{uuid}" instantiation token.
func New(cfg *config.Config, a adapter.Adapter, opts ...Option) *Emitter {
	e := &Emitter{
		cfg:     cfg,
		adapter: a,
		token: func() string {
			return "{" + uuid.NewString() + "}"
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit renders the complete artifact set: model description, struct
// header, then every function source in catalog order
func (e *Emitter) Emit(l *model.Layout) ([]Artifact, error) {
	out, err := e.Generate(l)
	if err != nil {
		return nil, err
	}
	return out.Artifacts, nil
}

// Output is one emission: the artifacts and the dispatch tables their
// accessor bodies were rendered from
type Output struct {
	Artifacts []Artifact
	Dispatch  map[string]DispatchTable
}

// Generate emits every artifact, building the dispatch tables once
func (e *Emitter) Generate(l *model.Layout) (*Output, error) {
	md, err := e.ModelDescription(l)
	if err != nil {
		return nil, err
	}
	st, err := e.Struct(l)
	if err != nil {
		return nil, err
	}
	tables, err := e.Dispatch(l)
	if err != nil {
		return nil, err
	}
	fns, err := e.functions(l, tables)
	if err != nil {
		return nil, err
	}

	artifacts := append([]Artifact{md, st}, fns...)
	Logger().Debug("emitted artifacts", zap.String("model", l.Module.Name), zap.Int("count", len(artifacts)))
	return &Output{Artifacts: artifacts, Dispatch: tables}, nil
}

func (e *Emitter) sourcePath(file string) string {
	return path.Join(filepath.ToSlash(e.cfg.SrcOutputDir), file)
}

// structInclude is the name sources use to include the adapter record
func (e *Emitter) structInclude() string {
	return path.Base(filepath.ToSlash(e.cfg.StructOutputFilePath))
}
