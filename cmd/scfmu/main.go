// =============================================================================
// scfmu - FMI 3.0 co-simulation unit generator
// =============================================================================
//
// Turns the interface of a SystemC design into the source of an FMI 3.0
// co-simulation unit.
//
// THE PIPELINE:
//   1. Configuration is loaded and checked against the CUE contract
//   2. The adapter parses the module ports (rtl) or payload fields (tlm)
//   3. Ports are numbered into a Layout (time is reference 0)
//   4. The layout contract and the OPA port rules are checked
//   5. Model description, adapter record and one source per FMI
//      function are projected from the layout, plus a manifest
//   6. Sources are formatted, then everything is written at once
//
// Nothing is written unless every step succeeds.
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
)

// errDrift marks a verify run that found differences; the report has
// already been printed
var errDrift = errors.New("generated unit is out of date")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errDrift) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		}
		os.Exit(1)
	}
}
