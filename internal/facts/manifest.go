package facts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/robert-at-pretension-io/scfmu/internal/model"
)

// SchemaVersion is bumped whenever the Manifest encoding changes
const SchemaVersion uint16 = 1

// ErrSchemaMismatch is returned when a manifest was written by an
// incompatible version
var ErrSchemaMismatch = errors.New("manifest schema mismatch")

// Manifest records what one run generated, so a later run can tell
// whether the unit on disk is still what its inputs describe.
type Manifest struct {
	Schema     uint16 `json:"schema" msgpack:"schema"`
	Model      string `json:"model" msgpack:"model"`
	Kind       string `json:"kind" msgpack:"kind"`
	FMIVersion string `json:"fmi_version" msgpack:"fmi_version"`
	// Token is the instantiation token written to the model description.
	// Regenerating with the same token reproduces the same bytes.
	Token  string `json:"token" msgpack:"token"`
	Tables Tables `json:"tables" msgpack:"tables"`
	// Digest covers every artifact row
	Digest string `json:"digest" msgpack:"digest"`
}

// NewManifest builds the manifest of a run
func NewManifest(l *model.Layout, fmiVersion, token string, tables Tables) *Manifest {
	return &Manifest{
		Schema:     SchemaVersion,
		Model:      l.Module.Name,
		Kind:       string(l.Module.Kind),
		FMIVersion: fmiVersion,
		Token:      token,
		Tables:     tables,
		Digest:     contentDigest(tables.Artifacts),
	}
}

func contentDigest(rows []ArtifactRow) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r.Path)
		b.WriteByte(0)
		b.WriteString(r.Digest)
		b.WriteByte('\n')
	}
	return Digest(b.String())
}

// Encode serializes the manifest with msgpack
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a msgpack manifest and checks its schema version
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: found %d, expected %d", ErrSchemaMismatch, m.Schema, SchemaVersion)
	}
	return &m, nil
}

// Save writes the manifest to path, replacing any previous file atomically
func Save(path string, m *Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a manifest written by Save or by a generation run
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
