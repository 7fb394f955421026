// Package ui assembles the terminal output stack shared by every command:
// a leveled structured logger, colored cli.Ui writers, per-step prefixed
// output, and a spinner for reduced-output flows.
package ui

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/cli"
)

// Options selects output behavior for one invocation.
type Options struct {
	// Level is an hclog level name ("trace".."error"). Empty means info.
	Level string
	// Verbosity bumps the level down (towards trace) once per count when
	// Level itself was not given, the -v flag behavior.
	Verbosity int
	// NoColor disables all color and spinner output.
	NoColor bool
}

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (o Options) level() hclog.Level {
	if o.Level != "" {
		if l := hclog.LevelFromString(o.Level); l != hclog.NoLevel {
			return l
		}
	}
	switch {
	case o.Verbosity >= 2:
		return hclog.Trace
	case o.Verbosity == 1:
		return hclog.Debug
	default:
		return hclog.Info
	}
}

// NewLogger builds the root structured logger; components derive their own
// via logger.Named.
func NewLogger(name string, opts Options) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  opts.level(),
		Color:  colorOption(opts),
		Output: os.Stderr,
	})
}

func colorOption(opts Options) hclog.ColorOption {
	if opts.NoColor || !IsTTY(os.Stderr) {
		return hclog.ColorOff
	}
	return hclog.AutoColor
}

// BuildColoredUi wraps a BasicUi on the given streams with error/warn
// coloring, honoring NoColor.
func BuildColoredUi(opts Options, stdout, stderr io.Writer) cli.Ui {
	basic := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      stdout,
		ErrorWriter: stderr,
	}
	if opts.NoColor {
		return basic
	}
	return &cli.ColoredUi{
		Ui:          basic,
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		WarnColor:   cli.UiColorYellow,
		ErrorColor:  cli.UiColorRed,
	}
}

// PrefixedUi returns a Ui whose every line is prefixed with the step name,
// used when a sub-flow fans out so interleaved output stays attributable.
func PrefixedUi(base cli.Ui, stepName string, noColor bool) cli.Ui {
	prefix := stepName + ": "
	if !noColor {
		prefix = color.New(color.FgCyan).Sprint(stepName) + ": "
	}
	return &cli.PrefixedUi{
		Ui:           base,
		OutputPrefix: prefix,
		InfoPrefix:   prefix,
		WarnPrefix:   prefix,
		ErrorPrefix:  prefix,
	}
}

// Writer adapts a cli.Ui to io.Writer so subprocess output can be streamed
// through the same stack.
func Writer(base cli.Ui) io.Writer {
	return &cli.UiWriter{Ui: base}
}

// NewSpinner builds the progress spinner shown while a reduced-output step
// runs. The caller is responsible for Start/Stop; the spinner is nil when
// stdout is not a terminal or color is off, and callers must tolerate that.
func NewSpinner(stepName string, opts Options) *spinner.Spinner {
	if opts.NoColor || !IsTTY(os.Stdout) {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + strings.TrimSpace(stepName)
	return s
}
