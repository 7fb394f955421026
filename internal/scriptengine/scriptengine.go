// Package scriptengine dispatches a Task's Script field to the right
// external interpreter. It never implements a scripting language of its
// own: every backend here shells out via os/exec.
package scriptengine

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/pkg/errors"
)

// engineType tags the backend selected by selectEngine.
type engineType int

const (
	engineUnsupported engineType = iota
	engineDuckscript
	engineOS
	engineRust
	engineShell2Batch
	engineGeneric
	engineShebang
)

// Options carries execution context the backends need beyond the script
// text itself.
type Options struct {
	Cwd      string
	Stdout   io.Writer
	Stderr   io.Writer
	TaskArgs []string
}

// Run dispatches task's Script through the selection cascade and returns
// the subprocess exit code. Returns an error only for
// engine-setup failures (e.g. a temp file could not be written); a
// nonzero, successfully-observed exit code is reported via code, not err.
func Run(task *types.Task, opts Options) (code int, err error) {
	if task.Script == nil {
		return 0, fmt.Errorf("task has no script to dispatch")
	}
	lines := scriptLines(task.Script, opts.Cwd)

	switch selectEngine(task, lines) {
	case engineDuckscript:
		return runDuckscript(lines, opts)
	case engineRust:
		return runRustScript(lines, opts)
	case engineShell2Batch:
		return runShellToBatch(lines, opts)
	case engineGeneric:
		return runGeneric(lines, *task.ScriptRunner, *task.ScriptExtension, task.ScriptRunnerArgs, opts)
	case engineShebang:
		return runShebang(lines, opts)
	default:
		return runOS(lines, task.ScriptRunner, opts)
	}
}

// selectEngine is an ordered cascade: an outer duckscript/@rust/@shell
// runner-or-shebang pre-check, then script_runner with an extension means
// Generic, script_runner alone means OS with a custom runner, a plain
// shebang means the shebang backend, and anything else the OS default.
func selectEngine(task *types.Task, lines []string) engineType {
	runner := ""
	if task.ScriptRunner != nil {
		runner = *task.ScriptRunner
	}
	firstLine := ""
	if len(lines) > 0 {
		firstLine = lines[0]
	}

	if runner == "@duckscript" || strings.HasPrefix(firstLine, "#!@duckscript") {
		return engineDuckscript
	}
	if runner == "@rust" || strings.HasPrefix(firstLine, "#!@rust") {
		return engineRust
	}
	if runner == "@shell" || strings.HasPrefix(firstLine, "#!@shell") {
		return engineShell2Batch
	}
	if runner != "" {
		if task.ScriptExtension != nil && *task.ScriptExtension != "" {
			return engineGeneric
		}
		return engineOS
	}
	if isShebang(lines) {
		return engineShebang
	}
	return engineOS
}

func isShebang(lines []string) bool {
	return len(lines) > 0 && strings.HasPrefix(lines[0], "#!")
}

// scriptLines resolves the Script field to literal text lines, reading
// from disk when it names an external file.
func scriptLines(s *types.ScriptValue, cwd string) []string {
	if s.File != nil {
		path := s.File.Path
		if !filepath.IsAbs(path) && cwd != "" {
			path = filepath.Join(cwd, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return strings.Split(string(data), "\n")
	}
	if s.PreMainPost != nil {
		var out []string
		out = append(out, s.PreMainPost.Pre...)
		out = append(out, s.PreMainPost.Main...)
		out = append(out, s.PreMainPost.Post...)
		return out
	}
	return s.Lines
}

func argv(base []string, taskArgs []string) []string {
	return append(append([]string{}, base...), taskArgs...)
}

func stream(cmd *exec.Cmd, opts Options) (int, error) {
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}
	cmd.Dir = opts.Cwd

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// runOS is the platform-default-shell backend, also serving the
// non-Windows @shell fallthrough and the custom-runner case when a non-@
// runner is set without an extension.
func runOS(lines []string, customRunner *string, opts Options) (int, error) {
	script := strings.Join(lines, "\n")
	var cmd *exec.Cmd
	if customRunner != nil && *customRunner != "" {
		cmd = exec.Command(*customRunner, argv(nil, opts.TaskArgs)...)
		cmd.Stdin = strings.NewReader(script)
	} else if isWindowsShell() {
		cmd = exec.Command("cmd", argv([]string{"/C", script}, opts.TaskArgs)...)
	} else {
		// "sh" fills $0 so the task arguments start at $1
		cmd = exec.Command("sh", argv([]string{"-c", script, "sh"}, opts.TaskArgs)...)
	}
	return stream(cmd, opts)
}

// runShebang writes the script to a temp file honoring the file's own
// shebang interpreter directly.
func runShebang(lines []string, opts Options) (int, error) {
	path, cleanup, err := writeTempScript(lines, "")
	if err != nil {
		return -1, err
	}
	defer cleanup()
	if err := os.Chmod(path, 0755); err != nil {
		return -1, err
	}
	cmd := exec.Command(path, opts.TaskArgs...)
	return stream(cmd, opts)
}

// runGeneric writes the script to tmp.<extension> and invokes
// <runner> [runnerArgs...] tmp.<extension> [taskArgs...].
func runGeneric(lines []string, runner, extension string, runnerArgs []string, opts Options) (int, error) {
	path, cleanup, err := writeTempScript(lines, extension)
	if err != nil {
		return -1, err
	}
	defer cleanup()

	args := append(append([]string{}, runnerArgs...), path)
	args = append(args, opts.TaskArgs...)
	cmd := exec.Command(runner, args...)
	return stream(cmd, opts)
}

// runShellToBatch translates a POSIX shell fragment to CMD on Windows;
// elsewhere it is the native shell, identical to runOS with no custom
// runner.
func runShellToBatch(lines []string, opts Options) (int, error) {
	if !isWindowsShell() {
		return runOS(lines, nil, opts)
	}
	batch := shellToBatch(lines)
	path, cleanup, err := writeTempScript(batch, "bat")
	if err != nil {
		return -1, err
	}
	defer cleanup()
	cmd := exec.Command("cmd", argv([]string{"/C", path}, opts.TaskArgs)...)
	return stream(cmd, opts)
}

// shellToBatch performs a line-oriented best-effort translation of common
// POSIX shell constructs to CMD batch syntax. Scripts using constructs
// beyond simple commands, comments and variable references pass through
// unchanged and likely fail under cmd.exe; this is not a full shell
// implementation.
func shellToBatch(lines []string) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, "@echo off")
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#!") {
			continue
		}
		l = strings.ReplaceAll(l, "#", "::")
		l = varRefToPercent(l)
		out = append(out, l)
	}
	return out
}

func varRefToPercent(line string) string {
	var b strings.Builder
	i := 0
	for i < len(line) {
		if strings.HasPrefix(line[i:], "${") {
			end := strings.IndexByte(line[i+2:], '}')
			if end >= 0 {
				name := line[i+2 : i+2+end]
				b.WriteString("%" + name + "%")
				i += 2 + end + 1
				continue
			}
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String()
}

// runRustScript compiles the script text as a standalone Rust source file
// via `rustc` and runs the resulting binary.
func runRustScript(lines []string, opts Options) (int, error) {
	path, cleanup, err := writeTempScript(lines, "rs")
	if err != nil {
		return -1, err
	}
	defer cleanup()

	binPath := strings.TrimSuffix(path, ".rs")
	if isWindowsShell() {
		binPath += ".exe"
	}
	build := exec.Command("rustc", "-o", binPath, path)
	build.Dir = opts.Cwd
	if out, err := build.CombinedOutput(); err != nil {
		if opts.Stderr != nil {
			_, _ = opts.Stderr.Write(out)
		}
		return -1, fmt.Errorf("compiling rust script: %w", err)
	}
	defer os.Remove(binPath)

	cmd := exec.Command(binPath, opts.TaskArgs...)
	return stream(cmd, opts)
}

// runDuckscript shells out to an external `duckscript` CLI interpreter
// (sagiegurari/duckscript, a Rust-ecosystem tool with no Go-native
// counterpart in the retrieved pack). Consistent with the "no own
// scripting-language implementation" Non-goal, this backend never embeds
// an interpreter — it probes for the binary the same way install hooks
// probe for their target binary and fails fast if it is absent.
func runDuckscript(lines []string, opts Options) (int, error) {
	if _, err := exec.LookPath("duckscript"); err != nil {
		return -1, fmt.Errorf("duckscript backend requires the external `duckscript` CLI on PATH: %w", err)
	}
	path, cleanup, err := writeTempScript(lines, "ds")
	if err != nil {
		return -1, err
	}
	defer cleanup()
	cmd := exec.Command("duckscript", argv([]string{path}, opts.TaskArgs)...)
	return stream(cmd, opts)
}

func writeTempScript(lines []string, extension string) (path string, cleanup func(), err error) {
	name := "tmp"
	if extension != "" {
		name += "." + extension
	}
	f, err := os.CreateTemp("", "cargorun-*-"+name)
	if err != nil {
		return "", nil, errors.Wrap(err, "creating temp script file")
	}
	if _, err := f.WriteString(strings.Join(lines, "\n")); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, errors.Wrap(err, "writing temp script file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, errors.Wrap(err, "closing temp script file")
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func isWindowsShell() bool {
	return os.Getenv("COMSPEC") != "" && os.Getenv("SHELL") == ""
}

// ProbeBinary reports whether name is resolvable on PATH, the install-hook
// probe used by the runner before deciding whether install_script or
// install_crate must run.
func ProbeBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

