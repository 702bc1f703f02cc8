package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/robert-at-pretension-io/scfmu/internal/adapter"
	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/emit"
	"github.com/robert-at-pretension-io/scfmu/internal/extractor"
	"github.com/robert-at-pretension-io/scfmu/internal/format"
	"github.com/robert-at-pretension-io/scfmu/internal/pipeline"
	"github.com/robert-at-pretension-io/scfmu/internal/policy"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	color      string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "scfmu",
		Short: "Generate FMI 3.0 co-simulation units from SystemC designs",
		Long: `scfmu reads the interface of a SystemC module (rtl) or transaction-level
top (tlm) and generates the model description, adapter record and FMI 3.0
function sources of a co-simulation unit.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.color {
			case "on":
				color.NoColor = false
			case "off":
				color.NoColor = true
			case "auto":
				color.NoColor = !isTerminal(os.Stdout)
			default:
				return fmt.Errorf("--color must be auto, on or off, not %q", opts.color)
			}
			return setupLogging(opts.verbose)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: scfmu.yaml in the current directory)")
	root.PersistentFlags().StringVar(&opts.color, "color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every stage")

	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newInitCmd())
	root.AddCommand(newVerifyCmd(opts))
	root.AddCommand(newPortsCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads --config, or searches the current directory
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load(".")
}

// setupLogging installs one logger in every package that logs. Verbose
// runs get the development logger; otherwise only warnings reach stderr.
func setupLogging(verbose bool) error {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
		logger, err = cfg.Build()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	adapter.SetLogger(logger)
	emit.SetLogger(logger)
	extractor.SetLogger(logger)
	format.SetLogger(logger)
	pipeline.SetLogger(logger)
	policy.SetLogger(logger)
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

var (
	okLabel   = color.New(color.FgGreen, color.Bold)
	warnLabel = color.New(color.FgYellow, color.Bold)
	failLabel = color.New(color.FgRed, color.Bold)
)

func status(w io.Writer, label *color.Color, tag, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", label.Sprintf("%-5s", tag), fmt.Sprintf(format, args...))
}
