package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write a default configuration to path (default scfmu.yaml). The format
follows the extension: .yaml, .yml, .toml or .json.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scfmu.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(cmd, path, kind, force)
		},
	}
	cmd.Flags().StringVar(&kind, "type", config.TypeRTL, "adapter type (rtl|tlm)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func runInit(cmd *cobra.Command, path, kind string, force bool) error {
	if kind != config.TypeRTL && kind != config.TypeTLM {
		return fmt.Errorf("--type must be rtl or tlm, not %q", kind)
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	cfg := config.DefaultConfig()
	cfg.Type = kind
	if err := cfg.Save(path); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	status(w, okLabel, "ok", "created %s", path)
	fmt.Fprintln(w, "\nEdit this file to set:")
	if kind == config.TypeTLM {
		fmt.Fprintln(w, "  - tlm.tlm_top_level_module_payload_file_path and _struct_name")
		fmt.Fprintln(w, "  - tlm.tlm_top_level_module_header_file_path and _name")
	} else {
		fmt.Fprintln(w, "  - rtl.systemc_top_level_module_header_file_path")
		fmt.Fprintln(w, "  - rtl.systemc_top_level_module_name")
	}
	fmt.Fprintln(w, "  - fmi_config.DefaultExperiment")
	return nil
}
