// Package pipeline runs one generation: configuration in, a complete
// artifact set out. Run is pure and keeps everything in memory; Write
// is the only step that touches the output directory.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/scfmu/internal/adapter"
	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/emit"
	"github.com/robert-at-pretension-io/scfmu/internal/extractor"
	"github.com/robert-at-pretension-io/scfmu/internal/facts"
	"github.com/robert-at-pretension-io/scfmu/internal/format"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/policy"
	"github.com/robert-at-pretension-io/scfmu/internal/validator"
)

// ArtifactSet is everything one run produced. It is complete or absent:
// Run never returns a partial set.
type ArtifactSet struct {
	Layout *model.Layout
	// Artifacts in write order: model description, struct header,
	// function sources, manifest
	Artifacts []emit.Artifact
	Manifest  *facts.Manifest
	Policy    *policy.Result
	Timings   []StageTiming
}

// Pipeline generates the unit described by one configuration
type Pipeline struct {
	cfg        *config.Config
	token      string
	formatter  format.Formatter
	timingPath string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithToken fixes the instantiation token instead of drawing a fresh one
func WithToken(token string) Option {
	return func(p *Pipeline) {
		p.token = token
	}
}

// WithFormatter replaces the formatter chosen from the configuration
func WithFormatter(f format.Formatter) Option {
	return func(p *Pipeline) {
		p.formatter = f
	}
}

// WithTimingPath writes one JSON line per stage to path
func WithTimingPath(path string) Option {
	return func(p *Pipeline) {
		p.timingPath = path
	}
}

// New creates a pipeline for cfg
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.formatter == nil {
		p.formatter = format.FromConfig(cfg)
	}
	return p
}

// Layout runs the front half of generation: config checks, parsing,
// numbering and the layout contract
func (p *Pipeline) Layout(ctx context.Context) (*model.Layout, error) {
	l, _, err := p.layout(ctx, newTimingRecorder(time.Now(), ""))
	return l, err
}

// layout also returns the adapter that described the module. Its
// extractor is released on return; emission does not parse.
func (p *Pipeline) layout(ctx context.Context, tr *timingRecorder) (*model.Layout, adapter.Adapter, error) {
	start := time.Now()
	if err := p.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	v, err := validator.New()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing contract validator: %w", err)
	}
	if err := v.ValidateConfig(p.cfg); err != nil {
		return nil, nil, err
	}
	tr.stage("config", start, "")

	start = time.Now()
	var ex *extractor.Extractor
	if p.cfg.Type == config.TypeTLM {
		ex = extractor.New()
		defer ex.Close()
	}
	a, err := adapter.New(p.cfg, ex)
	if err != nil {
		return nil, nil, err
	}
	mod, err := a.Describe(ctx)
	if err != nil {
		return nil, nil, err
	}
	tr.stage("describe", start, string(a.Kind()))

	start = time.Now()
	l, err := model.Assign(mod)
	if err != nil {
		return nil, nil, err
	}
	if err := v.ValidateLayout(l); err != nil {
		return nil, nil, err
	}
	tr.stage("assign", start, fmt.Sprintf("%d ports", len(l.Bindings)))
	return l, a, nil
}

// Run builds the complete artifact set in memory. Nothing is written.
func (p *Pipeline) Run(ctx context.Context) (*ArtifactSet, error) {
	runStart := time.Now()
	tr := newTimingRecorder(runStart, p.timingPath)
	if err := tr.Err(); err != nil {
		Logger().Warn("timing output disabled", zap.Error(err))
	}
	defer tr.Close()

	l, a, err := p.layout(ctx, tr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	engine, err := policy.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing port policy: %w", err)
	}
	verdict, err := engine.Check(ctx, l)
	if err != nil {
		return nil, err
	}
	tr.stage("policy", start, fmt.Sprintf("%d warnings", verdict.Summary.Warnings))

	start = time.Now()
	token := p.token
	if token == "" {
		token = "{" + uuid.NewString() + "}"
	}
	e := emit.New(p.cfg, a, emit.WithToken(func() string { return token }))
	out, err := e.Generate(l)
	if err != nil {
		return nil, err
	}
	artifacts, dispatch := out.Artifacts, out.Dispatch
	tr.stage("emit", start, fmt.Sprintf("%d artifacts", len(artifacts)))

	start = time.Now()
	manifest, err := p.manifest(l, token, dispatch, artifacts)
	if err != nil {
		return nil, err
	}
	data, err := manifest.Encode()
	if err != nil {
		return nil, err
	}
	tr.stage("manifest", start, "")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	artifacts = p.formatter.Format(ctx, artifacts)
	tr.stage("format", start, fmt.Sprintf("%T", p.formatter))

	artifacts = append(artifacts, emit.Artifact{
		Path:    filepath.ToSlash(p.cfg.ManifestOutputFilePath),
		Content: string(data),
	})
	tr.stage("total", runStart, "")

	return &ArtifactSet{
		Layout:    l,
		Artifacts: artifacts,
		Manifest:  manifest,
		Policy:    verdict,
		Timings:   tr.Events(),
	}, nil
}

// manifest digests the unformatted artifacts, so it does not depend on
// which formatter, if any, ran
func (p *Pipeline) manifest(l *model.Layout, token string, dispatch map[string]emit.DispatchTable, artifacts []emit.Artifact) (*facts.Manifest, error) {
	tables := facts.Build(l, dispatch, artifacts)

	files, err := p.cfg.SourceFiles()
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	tables.Sources, err = facts.SourceRows(p.cfg.BaseDir(), files)
	if err != nil {
		return nil, fmt.Errorf("digesting sources: %w", err)
	}
	return facts.NewManifest(l, p.cfg.FMI.Version, token, tables), nil
}
