package core

import (
	"os"

	"github.com/cargorun/cargorun/internal/types"
)

// watchWrapped reports whether a task's Step should be replaced by the
// synthesized watch-wrapper Step: watch is enabled and this isn't itself
// the watcher's own re-invocation (CARGO_MAKE_DISABLE_WATCH breaks the
// loop).
func watchWrapped(t *types.Task) bool {
	return t.Watch != nil && t.Watch.Enabled && os.Getenv("CARGO_MAKE_DISABLE_WATCH") != "TRUE"
}

// synthesizeWatchTask builds the watch-wrapper Step: invoke an external
// `watchexec` file-watcher whose re-invoke action runs this same tool
// binary against taskName with CARGO_MAKE_DISABLE_WATCH=TRUE set, so the
// second invocation executes the real task instead of re-wrapping it.
func synthesizeWatchTask(taskName string, w *types.TaskWatchOptions) *types.Task {
	exe, err := os.Executable()
	if err != nil {
		exe = "cargorun"
	}

	args := []string{"--restart"}
	for _, ignore := range w.Ignore {
		args = append(args, "--ignore", ignore)
	}
	for _, postpone := range w.PostponeOn {
		args = append(args, "--watch", postpone)
	}
	args = append(args, "--", "env", "CARGO_MAKE_DISABLE_WATCH=TRUE", exe, taskName)

	cmd := "watchexec"
	return &types.Task{Command: &cmd, Args: args}
}
