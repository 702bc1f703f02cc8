package facts

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/robert-at-pretension-io/scfmu/internal/emit"
	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// Tables is the relational projection of one generation run.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Variables []VariableRow `json:"variables" msgpack:"variables"`
	Functions []FunctionRow `json:"functions" msgpack:"functions"`
	Dispatch  []DispatchRow `json:"dispatch" msgpack:"dispatch"`
	Artifacts []ArtifactRow `json:"artifacts" msgpack:"artifacts"`
	Sources   []SourceRow   `json:"sources" msgpack:"sources"`
}

// VariableRow is one model variable, time included
type VariableRow struct {
	Name        string `json:"name" msgpack:"name"`
	Ref         uint32 `json:"ref" msgpack:"ref"`
	Tag         string `json:"tag" msgpack:"tag"`
	Causality   string `json:"causality" msgpack:"causality"`
	Variability string `json:"variability" msgpack:"variability"`
	NativeType  string `json:"native_type" msgpack:"native_type"`
	Ident       string `json:"ident" msgpack:"ident"`
	Line        int    `json:"line" msgpack:"line"`
}

type FunctionRow struct {
	Name   string `json:"name" msgpack:"name"`
	Return string `json:"return" msgpack:"return"`
	File   string `json:"file" msgpack:"file"`
}

type DispatchRow struct {
	Function string `json:"function" msgpack:"function"`
	Ref      uint32 `json:"ref" msgpack:"ref"`
	Field    string `json:"field" msgpack:"field"`
}

type ArtifactRow struct {
	Path   string `json:"path" msgpack:"path"`
	Digest string `json:"digest" msgpack:"digest"`
}

// SourceRow is one SystemC input the run read or could have read
type SourceRow struct {
	Path   string `json:"path" msgpack:"path"`
	Digest string `json:"digest" msgpack:"digest"`
}

// Build converts a layout, its dispatch tables and the emitted artifacts
// into the relational model. Artifacts are digested as given, so callers
// pass them before formatting.
func Build(l *model.Layout, dispatch map[string]emit.DispatchTable, artifacts []emit.Artifact) Tables {
	tables := emptyTables()

	t := model.TimeBinding()
	tables.Variables = append(tables.Variables, VariableRow{
		Name:        model.TimeName,
		Ref:         uint32(t.Ref),
		Tag:         t.Tag.String(),
		Causality:   "independent",
		Variability: "continuous",
		NativeType:  t.Port.NativeType,
		Ident:       t.Ident,
	})
	for _, b := range l.Bindings {
		tables.Variables = append(tables.Variables, VariableRow{
			Name:        b.Port.Name,
			Ref:         uint32(b.Ref),
			Tag:         b.Tag.String(),
			Causality:   b.Port.Direction.Causality(),
			Variability: "discrete",
			NativeType:  b.Port.NativeType,
			Ident:       b.Ident,
			Line:        b.Port.Line,
		})
	}

	for _, f := range emit.Catalog() {
		tables.Functions = append(tables.Functions, FunctionRow{
			Name:   f.Name,
			Return: f.Return,
			File:   f.File,
		})
	}

	for _, table := range dispatch {
		for _, c := range table.Cases {
			tables.Dispatch = append(tables.Dispatch, DispatchRow{
				Function: table.Function,
				Ref:      uint32(c.Ref),
				Field:    c.Field,
			})
		}
	}

	for _, a := range artifacts {
		tables.Artifacts = append(tables.Artifacts, ArtifactRow{
			Path:   a.Path,
			Digest: Digest(a.Content),
		})
	}

	sort.Slice(tables.Functions, func(i, j int) bool { return tables.Functions[i].Name < tables.Functions[j].Name })
	sort.Slice(tables.Dispatch, func(i, j int) bool {
		a, b := tables.Dispatch[i], tables.Dispatch[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		return a.Ref < b.Ref
	})
	sort.Slice(tables.Artifacts, func(i, j int) bool { return tables.Artifacts[i].Path < tables.Artifacts[j].Path })

	return tables
}

// Digest is the hex SHA-256 of an artifact's content
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Variable looks up a variable row by name
func (t Tables) Variable(name string) (VariableRow, bool) {
	for _, v := range t.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableRow{}, false
}

// SourceRows digests input files. Paths are recorded relative to base
// and slash separated, so a manifest does not depend on where the
// project is checked out.
func SourceRows(base string, files []string) ([]SourceRow, error) {
	rows := make([]SourceRow, 0, len(files))
	for _, f := range files {
		digest, err := hashFile(f)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(base, f)
		if err != nil {
			rel = f
		}
		rows = append(rows, SourceRow{Path: filepath.ToSlash(rel), Digest: digest})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	return rows, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
