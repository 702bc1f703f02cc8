package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/scfmu/internal/model"
	"github.com/robert-at-pretension-io/scfmu/internal/pipeline"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func newPortsCmd(global *globalOptions) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Print the value-reference table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			l, err := pipeline.New(cfg).Layout(cmd.Context())
			if err != nil {
				return err
			}
			if dump {
				dumpConfig.Fdump(cmd.OutOrStdout(), l)
				return nil
			}
			return printPorts(cmd.OutOrStdout(), l)
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "dump the full layout structure")
	return cmd
}

func printPorts(w io.Writer, l *model.Layout) error {
	fmt.Fprintf(w, "%s (%s), record %s\n\n", l.Module.Name, l.Module.Kind, l.StructName)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REF\tNAME\tCAUSALITY\tTYPE\tNATIVE\tIDENT")
	t := model.TimeBinding()
	fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.Ref, t.Port.Name, "independent", t.Tag, t.Port.NativeType, t.Ident)
	for _, b := range l.Bindings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			b.Ref, b.Port.Name, b.Port.Direction.Causality(), b.Tag, b.Port.NativeType, b.Ident)
	}
	return tw.Flush()
}
