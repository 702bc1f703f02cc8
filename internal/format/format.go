// Package format runs generated C/C++ sources through an external
// formatter. Formatting is cosmetic: a formatter that is missing, fails or
// times out leaves the text exactly as generated.
package format

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/scfmu/internal/config"
	"github.com/robert-at-pretension-io/scfmu/internal/emit"
)

// DefaultTimeout bounds one formatter process
const DefaultTimeout = 30 * time.Second

// Formatter rewrites the formattable artifacts of a set. It never fails:
// an artifact it cannot format is returned unchanged.
type Formatter interface {
	Format(ctx context.Context, artifacts []emit.Artifact) []emit.Artifact
}

// None leaves every artifact untouched
type None struct{}

func (None) Format(_ context.Context, artifacts []emit.Artifact) []emit.Artifact {
	return artifacts
}

// ClangFormat pipes each formattable artifact through clang-format
type ClangFormat struct {
	Command     string
	Style       string
	IndentWidth int
	// Jobs bounds concurrent processes, 0 means GOMAXPROCS
	Jobs    int
	Timeout time.Duration
}

// FromConfig returns the formatter the configuration asks for
func FromConfig(cfg *config.Config) Formatter {
	if !cfg.FormatEnabled() {
		return None{}
	}
	return &ClangFormat{
		Command:     cfg.Format.Command,
		Style:       cfg.Format.Style,
		IndentWidth: cfg.Format.IndentWidth,
		Jobs:        cfg.Format.Jobs,
		Timeout:     DefaultTimeout,
	}
}

// StyleArg is the inline --style value: the base style with the
// configured indentation and no tabs
func (c *ClangFormat) StyleArg() string {
	style := c.Style
	if style == "" {
		style = "LLVM"
	}
	width := c.IndentWidth
	if width <= 0 {
		width = 4
	}
	return fmt.Sprintf("{BasedOnStyle: %s, IndentWidth: %d, TabWidth: %d, UseTab: Never}", style, width, width)
}

// Format formats artifacts concurrently. The result has the same order
// and paths as the input.
func (c *ClangFormat) Format(ctx context.Context, artifacts []emit.Artifact) []emit.Artifact {
	out := make([]emit.Artifact, len(artifacts))
	copy(out, artifacts)

	jobs := c.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(jobs)

	for i := range out {
		if !out[i].Formattable {
			continue
		}
		g.Go(func() error {
			formatted, err := c.Source(ctx, out[i].Path, out[i].Content)
			if err != nil {
				Logger().Warn("formatting skipped",
					zap.String("artifact", out[i].Path),
					zap.Error(err))
				return nil
			}
			// index i is owned by this goroutine
			out[i].Content = formatted
			return nil
		})
	}
	_ = g.Wait()

	Logger().Debug("format complete",
		zap.Int("artifacts", len(out)),
		zap.Int("jobs", jobs),
		zap.Duration("elapsed", time.Since(start)))
	return out
}

// Source formats one text. path only selects the language.
func (c *ClangFormat) Source(ctx context.Context, path, text string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := c.Command
	if command == "" {
		command = "clang-format"
	}
	cmd := exec.CommandContext(ctx, command, "--style="+c.StyleArg(), "--assume-filename="+path)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s: %w", command, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", command, err, msg)
		}
		return "", fmt.Errorf("%s: %w", command, err)
	}
	if stdout.Len() == 0 && text != "" {
		return "", fmt.Errorf("%s produced no output", command)
	}
	return stdout.String(), nil
}
