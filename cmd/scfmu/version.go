package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/scfmu/internal/facts"
)

// Build metadata, overridable with -ldflags "-X main.Version=..."
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	BuildDate = ""
)

type versionPayload struct {
	Tool           string `json:"tool"`
	Version        string `json:"version"`
	FMIVersion     string `json:"fmi_version"`
	ManifestSchema uint16 `json:"manifest_schema"`
	GitCommit      string `json:"git_commit,omitempty"`
	BuildDate      string `json:"build_date,omitempty"`
	Go             string `json:"go"`
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := versionPayload{
				Tool:           "scfmu",
				Version:        Version,
				FMIVersion:     "3.0",
				ManifestSchema: facts.SchemaVersion,
				GitCommit:      GitCommit,
				BuildDate:      BuildDate,
				Go:             runtime.Version(),
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			fmt.Fprintf(w, "%s %s (FMI %s, manifest schema %d, %s)\n",
				p.Tool, color.New(color.FgGreen, color.Bold).Sprint(p.Version), p.FMIVersion, p.ManifestSchema, p.Go)
			if p.GitCommit != "" {
				fmt.Fprintf(w, "commit %s\n", p.GitCommit)
			}
			if p.BuildDate != "" {
				fmt.Fprintf(w, "built  %s\n", p.BuildDate)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
