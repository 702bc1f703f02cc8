package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/scfmu/internal/format"
	"github.com/robert-at-pretension-io/scfmu/internal/pipeline"
	"github.com/robert-at-pretension-io/scfmu/internal/policy"
)

type generateOptions struct {
	outDir   string
	noFormat bool
	timing   string
}

func newGenerateCmd(global *globalOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the co-simulation unit",
		Long: `Generate the model description, adapter record, FMI function sources and
manifest. Output paths in the configuration are relative to --out, which
defaults to the directory holding the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, global, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory")
	cmd.Flags().BoolVar(&opts.noFormat, "no-format", false, "skip clang-format")
	cmd.Flags().StringVar(&opts.timing, "timing", "", "write stage timings as JSON lines to this file")
	return cmd
}

func runGenerate(cmd *cobra.Command, global *globalOptions, opts *generateOptions) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}

	var pipeOpts []pipeline.Option
	if opts.noFormat {
		pipeOpts = append(pipeOpts, pipeline.WithFormatter(format.None{}))
	}
	if opts.timing != "" {
		pipeOpts = append(pipeOpts, pipeline.WithTimingPath(opts.timing))
	}

	set, err := pipeline.New(cfg, pipeOpts...).Run(cmd.Context())
	if err != nil {
		return err
	}

	out := outputDir(cfg.BaseDir(), opts.outDir)
	if err := pipeline.Write(cmd.Context(), set, out); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	reportPolicy(cmd, set.Policy)
	status(w, okLabel, "ok", "%s: %d ports, %d artifacts written to %s",
		set.Layout.Module.Name, len(set.Layout.Bindings), len(set.Artifacts), relPath(out))
	return nil
}

func reportPolicy(cmd *cobra.Command, r *policy.Result) {
	if r == nil {
		return
	}
	for _, v := range r.Violations {
		if v.Severity != policy.SeverityWarning {
			continue
		}
		status(cmd.ErrOrStderr(), warnLabel, "warn", "%s:%d %s (%s)", relPath(v.File), v.Line, v.Message, v.Rule)
	}
}

func outputDir(base, flag string) string {
	if flag != "" {
		return flag
	}
	return base
}

// relPath shortens path for display when it lies under the cwd
func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil || path == "" {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && len(rel) < len(path) {
		return rel
	}
	return path
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
