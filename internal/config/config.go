package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/robert-at-pretension-io/scfmu/internal/generr"
)

// Adapter types accepted by the "type" key
const (
	TypeRTL = "rtl"
	TypeTLM = "tlm"
)

// Policies for payload fields that carry no direction annotation
const (
	UnannotatedReject  = "reject"
	UnannotatedInput   = "input"
	UnannotatedOutput  = "output"
	UnannotatedExclude = "exclude"
)

// Config is the top-level configuration for scfmu
type Config struct {
	// Type selects the adapter: "rtl" (module ports) or "tlm" (payload fields)
	Type string `json:"type" yaml:"type" toml:"type"`

	XMLOutputFilePath      string `json:"xml_output_file_path" yaml:"xml_output_file_path" toml:"xml_output_file_path"`
	StructOutputFilePath   string `json:"struct_output_file_path" yaml:"struct_output_file_path" toml:"struct_output_file_path"`
	SrcOutputDir           string `json:"src_output_dir,omitempty" yaml:"src_output_dir,omitempty" toml:"src_output_dir,omitempty"`
	ManifestOutputFilePath string `json:"manifest_output_file_path,omitempty" yaml:"manifest_output_file_path,omitempty" toml:"manifest_output_file_path,omitempty"`

	RTL RTLConfig `json:"rtl,omitempty" yaml:"rtl,omitempty" toml:"rtl,omitempty"`
	TLM TLMConfig `json:"tlm,omitempty" yaml:"tlm,omitempty" toml:"tlm,omitempty"`

	FMI FMIConfig `json:"fmi_config" yaml:"fmi_config" toml:"fmi_config"`

	// Format controls the external source formatter
	Format FormatConfig `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`

	// Compile records the native build flavour; generation only carries it through
	Compile CompileConfig `json:"compile,omitempty" yaml:"compile,omitempty" toml:"compile,omitempty"`

	// path is the file the config was loaded from, empty for defaults
	path string
}

// RTLConfig describes a module-port (SC_MODULE) top level
type RTLConfig struct {
	ModulesFolder string `json:"systemc_modules_folder" yaml:"systemc_modules_folder" toml:"systemc_modules_folder"`
	SourceFile    string `json:"systemc_top_level_module_source_file_path" yaml:"systemc_top_level_module_source_file_path" toml:"systemc_top_level_module_source_file_path"`
	HeaderFile    string `json:"systemc_top_level_module_header_file_path" yaml:"systemc_top_level_module_header_file_path" toml:"systemc_top_level_module_header_file_path"`
	ModuleName    string `json:"systemc_top_level_module_name" yaml:"systemc_top_level_module_name" toml:"systemc_top_level_module_name"`
}

// TLMConfig describes a payload-field (transaction level) top level
type TLMConfig struct {
	ModulesFolder string `json:"tlm_modules_folder" yaml:"tlm_modules_folder" toml:"tlm_modules_folder"`
	PayloadFile   string `json:"tlm_top_level_module_payload_file_path" yaml:"tlm_top_level_module_payload_file_path" toml:"tlm_top_level_module_payload_file_path"`
	PayloadStruct string `json:"tlm_top_level_module_payload_struct_name" yaml:"tlm_top_level_module_payload_struct_name" toml:"tlm_top_level_module_payload_struct_name"`
	HeaderFile    string `json:"tlm_top_level_module_header_file_path" yaml:"tlm_top_level_module_header_file_path" toml:"tlm_top_level_module_header_file_path"`
	ModuleName    string `json:"tlm_top_level_module_name" yaml:"tlm_top_level_module_name" toml:"tlm_top_level_module_name"`

	// UnannotatedFields decides what happens to fields without a "<field>_dir"
	// annotation: "reject", "input", "output" or "exclude"
	UnannotatedFields string `json:"unannotated_fields,omitempty" yaml:"unannotated_fields,omitempty" toml:"unannotated_fields,omitempty"`
}

// FMIConfig is copied verbatim into the model description
type FMIConfig struct {
	Version           string            `json:"fmiVersion" yaml:"fmiVersion" toml:"fmiVersion"`
	CoSimulation      CoSimulation      `json:"CoSimulation" yaml:"CoSimulation" toml:"CoSimulation"`
	LogCategories     []LogCategory     `json:"LogCategories" yaml:"LogCategories" toml:"LogCategories"`
	DefaultExperiment DefaultExperiment `json:"DefaultExperiment" yaml:"DefaultExperiment" toml:"DefaultExperiment"`
}

// CoSimulation holds the capability flags of the co-simulation interface
type CoSimulation struct {
	CanGetAndSetFMUState                   bool     `json:"canGetAndSetFMUState" yaml:"canGetAndSetFMUState" toml:"canGetAndSetFMUState"`
	CanSerializeFMUState                   bool     `json:"canSerializeFMUState" yaml:"canSerializeFMUState" toml:"canSerializeFMUState"`
	CanHandleVariableCommunicationStepSize bool     `json:"canHandleVariableCommunicationStepSize" yaml:"canHandleVariableCommunicationStepSize" toml:"canHandleVariableCommunicationStepSize"`
	ProvidesIntermediateUpdate             bool     `json:"providesIntermediateUpdate" yaml:"providesIntermediateUpdate" toml:"providesIntermediateUpdate"`
	CanReturnEarlyAfterIntermediateUpdate  bool     `json:"canReturnEarlyAfterIntermediateUpdate" yaml:"canReturnEarlyAfterIntermediateUpdate" toml:"canReturnEarlyAfterIntermediateUpdate"`
	FixedInternalStepSize                  *float64 `json:"fixedInternalStepSize,omitempty" yaml:"fixedInternalStepSize,omitempty" toml:"fixedInternalStepSize,omitempty"`
	HasEventMode                           bool     `json:"hasEventMode" yaml:"hasEventMode" toml:"hasEventMode"`
}

// LogCategory is one entry of the LogCategories element
type LogCategory struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// DefaultExperiment is the suggested simulation interval
type DefaultExperiment struct {
	StartTime *float64 `json:"startTime,omitempty" yaml:"startTime,omitempty" toml:"startTime,omitempty"`
	StopTime  *float64 `json:"stopTime,omitempty" yaml:"stopTime,omitempty" toml:"stopTime,omitempty"`
	StepSize  *float64 `json:"stepSize,omitempty" yaml:"stepSize,omitempty" toml:"stepSize,omitempty"`
}

// FormatConfig controls clang-format post-processing
type FormatConfig struct {
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Command     string `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	Style       string `json:"style,omitempty" yaml:"style,omitempty" toml:"style,omitempty"`
	IndentWidth int    `json:"indent_width,omitempty" yaml:"indent_width,omitempty" toml:"indent_width,omitempty"`
	// Jobs limits concurrent formatter processes (0 = auto)
	Jobs int `json:"jobs,omitempty" yaml:"jobs,omitempty" toml:"jobs,omitempty"`
}

// CompileConfig selects the native build script flavour ("bash" or "cmake")
type CompileConfig struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
}

// DefaultConfig returns a configuration for an RTL module with every
// optional setting filled in. Module paths are left empty.
func DefaultConfig() *Config {
	cfg := &Config{
		Type: TypeRTL,
		FMI: FMIConfig{
			Version: "3.0",
			CoSimulation: CoSimulation{
				CanHandleVariableCommunicationStepSize: true,
			},
			LogCategories: []LogCategory{
				{Name: "logStatusError", Description: "Log error messages"},
			},
			DefaultExperiment: DefaultExperiment{
				StartTime: floatPtr(0),
				StopTime:  floatPtr(10),
				StepSize:  floatPtr(1),
			},
		},
		Compile: CompileConfig{Type: "cmake"},
	}
	cfg.applyDefaults()
	return cfg
}

func boolPtr(v bool) *bool {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./scfmu.yaml, ./scfmu.yml, ./scfmu.toml, ./scfmu.json (current working directory)
//  2. the same names under rootPath (if different from cwd)
//  3. ./config.yaml (layout used by older projects)
//
// Unlike a linter, generation cannot run on defaults, so a missing file is
// an InputError.
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	names := []string{"scfmu.yaml", "scfmu.yml", "scfmu.toml", "scfmu.json"}
	var searchPaths []string
	for _, name := range names {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range names {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}
	searchPaths = append(searchPaths, filepath.Join(cwd, "config.yaml"))

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return nil, generr.Input(rootPath, "", "no configuration file found (looked for "+strings.Join(names, ", ")+")", nil)
}

// LoadFile loads configuration from a specific file. The format is
// chosen by extension: .yaml/.yml, .toml or .json.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, generr.Input(path, "", "reading config file", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	case ".toml":
		var meta toml.MetaData
		meta, err = toml.Decode(string(data), &cfg)
		if err == nil {
			if undecoded := meta.Undecoded(); len(undecoded) > 0 {
				err = fmt.Errorf("unknown key %q", undecoded[0].String())
			}
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, generr.Input(path, "", "unsupported config format (want .yaml, .toml or .json)", nil)
	}
	if err != nil {
		return nil, generr.Input(path, "", "parsing config file", err)
	}

	cfg.path = path
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing optional configuration with defaults
func (c *Config) applyDefaults() {
	if c.XMLOutputFilePath == "" {
		c.XMLOutputFilePath = "modelDescription.xml"
	}
	if c.StructOutputFilePath == "" {
		c.StructOutputFilePath = filepath.Join("include", "struct.h")
	}
	if c.SrcOutputDir == "" {
		c.SrcOutputDir = "src"
	}
	if c.ManifestOutputFilePath == "" {
		c.ManifestOutputFilePath = "scfmu.manifest"
	}
	if c.TLM.UnannotatedFields == "" {
		c.TLM.UnannotatedFields = UnannotatedReject
	}
	if c.Format.Enabled == nil {
		c.Format.Enabled = boolPtr(true)
	}
	if c.Format.Command == "" {
		c.Format.Command = "clang-format"
	}
	if c.Format.Style == "" {
		c.Format.Style = "LLVM"
	}
	if c.Format.IndentWidth == 0 {
		c.Format.IndentWidth = 4
	}
}

// Save writes the configuration to a file, choosing the format by extension
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.path
}

// BaseDir is the directory relative paths in the configuration resolve against
func (c *Config) BaseDir() string {
	if c.path == "" {
		cwd, _ := os.Getwd()
		return cwd
	}
	return filepath.Dir(c.path)
}

// Resolve turns a configured path into one usable from the process cwd
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir(), path)
}

// FormatEnabled reports whether generated sources should be formatted
func (c *Config) FormatEnabled() bool {
	return c.Format.Enabled == nil || *c.Format.Enabled
}

// ModuleName returns the configured top-level module name for the adapter type
func (c *Config) ModuleName() string {
	if c.Type == TypeTLM {
		return c.TLM.ModuleName
	}
	return c.RTL.ModuleName
}

// HeaderFile returns the configured top-level header for the adapter type
func (c *Config) HeaderFile() string {
	if c.Type == TypeTLM {
		return c.TLM.HeaderFile
	}
	return c.RTL.HeaderFile
}

// ModulesFolder returns the configured module source folder for the adapter type
func (c *Config) ModulesFolder() string {
	if c.Type == TypeTLM {
		return c.TLM.ModulesFolder
	}
	return c.RTL.ModulesFolder
}

// Validate checks that every key required by the selected adapter is set
func (c *Config) Validate() error {
	switch c.Type {
	case TypeRTL:
		required := []struct {
			key, value string
		}{
			{"rtl.systemc_top_level_module_header_file_path", c.RTL.HeaderFile},
			{"rtl.systemc_top_level_module_name", c.RTL.ModuleName},
		}
		for _, r := range required {
			if strings.TrimSpace(r.value) == "" {
				return generr.MissingKey(c.path, r.key)
			}
		}
	case TypeTLM:
		required := []struct {
			key, value string
		}{
			{"tlm.tlm_top_level_module_payload_file_path", c.TLM.PayloadFile},
			{"tlm.tlm_top_level_module_payload_struct_name", c.TLM.PayloadStruct},
			{"tlm.tlm_top_level_module_header_file_path", c.TLM.HeaderFile},
			{"tlm.tlm_top_level_module_name", c.TLM.ModuleName},
		}
		for _, r := range required {
			if strings.TrimSpace(r.value) == "" {
				return generr.MissingKey(c.path, r.key)
			}
		}
		switch c.TLM.UnannotatedFields {
		case UnannotatedReject, UnannotatedInput, UnannotatedOutput, UnannotatedExclude:
		default:
			return generr.Input(c.path, "tlm.unannotated_fields",
				fmt.Sprintf("unknown policy %q (want reject, input, output or exclude)", c.TLM.UnannotatedFields), nil)
		}
	case "":
		return generr.MissingKey(c.path, "type")
	default:
		return generr.Input(c.path, "type", fmt.Sprintf("unknown adapter type %q (want rtl or tlm)", c.Type), nil)
	}

	if c.FMI.Version == "" {
		return generr.MissingKey(c.path, "fmi_config.fmiVersion")
	}
	return nil
}
