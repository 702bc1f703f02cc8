package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/scfmu/internal/facts"
	"github.com/robert-at-pretension-io/scfmu/internal/format"
	"github.com/robert-at-pretension-io/scfmu/internal/pipeline"
)

func newVerifyCmd(global *globalOptions) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the generated unit matches its inputs",
		Long: `Regenerate in memory and compare with the manifest of the last generate
run. Exits non-zero when a port changed its value reference or type, an
input or generated file changed, or a generated file is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, global, outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory generate wrote to")
	return cmd
}

func runVerify(cmd *cobra.Command, global *globalOptions, outDir string) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return err
	}
	out := outputDir(cfg.BaseDir(), outDir)

	manifestPath := artifactPath(out, cfg.ManifestOutputFilePath)
	prev, err := facts.Load(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no manifest at %s: run scfmu generate first", relPath(manifestPath))
	}
	if err != nil {
		return err
	}

	set, err := pipeline.New(cfg,
		pipeline.WithToken(prev.Token),
		pipeline.WithFormatter(format.None{}),
	).Run(cmd.Context())
	if err != nil {
		return err
	}
	next := set.Manifest

	var missing []string
	for _, a := range prev.Tables.Artifacts {
		if _, err := os.Stat(artifactPath(out, a.Path)); err != nil {
			missing = append(missing, a.Path)
		}
	}

	w := cmd.OutOrStdout()
	delta := facts.ComputeDelta(prev.Tables, next.Tables)
	if delta.Empty() && len(missing) == 0 && prev.Digest == next.Digest {
		status(w, okLabel, "ok", "%s is up to date (%s)", next.Model, plural(len(next.Tables.Variables)-1, "port"))
		return nil
	}

	reportDrift(w, facts.Drift(prev.Tables, next.Tables), delta, missing)
	return errDrift
}

func reportDrift(w io.Writer, changes []facts.Change, delta facts.Delta, missing []string) {
	for _, c := range changes {
		switch c.Kind {
		case "changed":
			status(w, failLabel, "drift", "%s: ref %d %s -> ref %d %s", c.Name, c.OldRef, c.OldTag, c.NewRef, c.NewTag)
		case "added":
			status(w, failLabel, "drift", "%s: new port at ref %d (%s)", c.Name, c.NewRef, c.NewTag)
		case "removed":
			status(w, failLabel, "drift", "%s: port removed (was ref %d)", c.Name, c.OldRef)
		}
	}
	for _, s := range delta.Added.Sources {
		status(w, warnLabel, "input", "%s changed", s.Path)
	}
	for _, s := range delta.Removed.Sources {
		if !hasSource(delta.Added.Sources, s.Path) {
			status(w, warnLabel, "input", "%s no longer read", s.Path)
		}
	}
	if n := len(delta.Added.Artifacts); n > 0 {
		status(w, warnLabel, "stale", "%s would change", plural(n, "generated file"))
	}
	for _, m := range missing {
		status(w, failLabel, "gone", "%s is missing", m)
	}
}

func hasSource(rows []facts.SourceRow, path string) bool {
	for _, r := range rows {
		if r.Path == path {
			return true
		}
	}
	return false
}

func artifactPath(dir, path string) string {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
