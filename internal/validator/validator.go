package validator

// =============================================================================
// CONTRACT GUARD
// =============================================================================
//
// Two contracts are checked with CUE before anything is emitted:
//
//   #Config  the configuration as loaded. Besides shape, it refuses
//            capability flags the generated adapter does not implement.
//   #Layout  the numbered port model. Every emitter projects from it, so a
//            broken layout would produce artifacts that disagree.
//
// A config violation is the user's to fix (InputError). A layout violation
// means the parser or the assigner is wrong (ConsistencyError).
// =============================================================================

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/generr"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

//go:embed schema.cue
var schemaFS embed.FS

// Definitions in schema.cue
const (
	ConfigDef = "#Config"
	LayoutDef = "#Layout"
)

// Validator checks data against the embedded CUE contracts
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New creates a new Validator with the embedded CUE schema
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// ValidateConfig checks a loaded configuration against #Config
func (v *Validator) ValidateConfig(cfg *config.Config) error {
	err := v.Validate(ConfigDef, cfg)
	if err == nil {
		return nil
	}
	construct, detail := describe(err)
	return generr.New(generr.KindInput).File(cfg.Path()).Construct(construct).
		Detail("configuration violates contract: %s", detail).Cause(err).Build()
}

// ValidateLayout checks the numbered port model against #Layout
func (v *Validator) ValidateLayout(l *model.Layout) error {
	err := v.Validate(LayoutDef, l)
	if err == nil {
		return nil
	}
	construct, detail := describe(err)
	return generr.New(generr.KindConsistency).File(l.Module.File).Construct(construct).
		Detail("layout violates contract: %s", detail).Cause(err).Build()
}

// Validate unifies the JSON form of data with a schema definition.
// Returns nil if valid, or the CUE error explaining what failed.
func (v *Validator) Validate(def string, data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(def, jsonBytes)
}

// ValidateJSON validates JSON bytes directly against a definition
func (v *Validator) ValidateJSON(def string, jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling data as CUE: %w", dataValue.Err())
	}

	// A definition with comprehensions over fields the data supplies is
	// incomplete on its own, so only its existence is checked here.
	schemaDef := v.schema.LookupPath(cue.ParsePath(def))
	if !schemaDef.Exists() {
		return fmt.Errorf("looking up %s definition: not found", def)
	}

	unified := schemaDef.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true), cue.Hidden(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors returns every violation of a definition, one per line
// of CUE output
func (v *Validator) ValidationErrors(def string, data any) []string {
	err := v.Validate(def, data)
	if err == nil {
		return nil
	}
	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

// describe returns the dotted path and message of the first violation
func describe(err error) (path, detail string) {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return "", err.Error()
	}
	first := errs[0]
	format, args := first.Msg()
	return strings.Join(first.Path(), "."), fmt.Sprintf(format, args...)
}
