package types

import (
	"fmt"
	"runtime"
)

// taskAlias returns the normalized task's effective alias target, platform
// alias winning over the generic one, or "" if the task has none.
func taskAlias(normalized *Task) string {
	switch normalizePlatform(runtime.GOOS) {
	case "linux":
		if normalized.LinuxAlias != nil {
			return *normalized.LinuxAlias
		}
	case "windows":
		if normalized.WindowsAlias != nil {
			return *normalized.WindowsAlias
		}
	case "mac":
		if normalized.MacAlias != nil {
			return *normalized.MacAlias
		}
	}
	if normalized.Alias != nil {
		return *normalized.Alias
	}
	return ""
}

// GetActualTaskName repeatedly resolves platform alias -> generic alias on
// the normalized task starting at name, returning the terminal non-alias
// task's name. Self-reference and cycles fail.
func GetActualTaskName(tasks *OrderedTasks, name string) (string, error) {
	visited := map[string]bool{}
	current := name
	for {
		if visited[current] {
			return "", fmt.Errorf("cyclic alias chain starting at %q", name)
		}
		visited[current] = true

		task, ok := tasks.Get(current)
		if !ok {
			return "", fmt.Errorf("alias chain from %q references missing task %q", name, current)
		}
		normalized := GetNormalizedTask(task)
		next := taskAlias(normalized)
		if next == "" {
			return current, nil
		}
		if next == current {
			return "", fmt.Errorf("task %q is a self-referencing alias", current)
		}
		current = next
	}
}
