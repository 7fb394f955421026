package types

import "runtime"

// Extend returns base merged with override: override's
// populated ("Some") fields win; its absent ("None") fields preserve base.
// If override.Clear is true, base is first replaced with an empty Task (the
// Clear flag itself still ends up set on the result, since it came from
// override and override always wins on its own field).
func Extend(base, override *Task) *Task {
	if override == nil {
		return cloneTask(base)
	}

	var result *Task
	if override.IsClear() {
		result = &Task{}
	} else {
		result = cloneTask(base)
	}
	if result == nil {
		result = &Task{}
	}

	o := override
	if o.Clear != nil {
		result.Clear = o.Clear
	}
	if o.Private != nil {
		result.Private = o.Private
	}
	if o.Disabled != nil {
		result.Disabled = o.Disabled
	}
	if o.Deprecated != nil {
		result.Deprecated = o.Deprecated
	}
	if o.Description != nil {
		result.Description = o.Description
	}
	if o.Category != nil {
		result.Category = o.Category
	}
	if o.Workspace != nil {
		result.Workspace = o.Workspace
	}
	if o.Plugin != nil {
		result.Plugin = o.Plugin
	}
	if o.Extend != nil {
		result.Extend = o.Extend
	}
	if o.Alias != nil {
		result.Alias = o.Alias
	}
	if o.LinuxAlias != nil {
		result.LinuxAlias = o.LinuxAlias
	}
	if o.WindowsAlias != nil {
		result.WindowsAlias = o.WindowsAlias
	}
	if o.MacAlias != nil {
		result.MacAlias = o.MacAlias
	}
	if o.Env != nil {
		result.Env = o.Env
	}
	if o.EnvFiles != nil {
		result.EnvFiles = o.EnvFiles
	}
	if o.Condition != nil {
		result.Condition = o.Condition
	}
	if o.ConditionScript != nil {
		result.ConditionScript = o.ConditionScript
	}
	if o.Command != nil {
		result.Command = o.Command
	}
	if o.Args != nil {
		result.Args = o.Args
	}
	if o.Script != nil {
		result.Script = o.Script
	}
	if o.RunTask != nil {
		result.RunTask = o.RunTask
	}
	if o.ScriptRunner != nil {
		result.ScriptRunner = o.ScriptRunner
	}
	if o.ScriptRunnerArgs != nil {
		result.ScriptRunnerArgs = o.ScriptRunnerArgs
	}
	if o.ConditionScriptRunnerArgs != nil {
		result.ConditionScriptRunnerArgs = o.ConditionScriptRunnerArgs
	}
	if o.ScriptExtension != nil {
		result.ScriptExtension = o.ScriptExtension
	}
	if o.InstallCrate != nil {
		result.InstallCrate = o.InstallCrate
	}
	if o.InstallCrateArgs != nil {
		result.InstallCrateArgs = o.InstallCrateArgs
	}
	if o.InstallScript != nil {
		result.InstallScript = o.InstallScript
	}
	if o.IgnoreErrors != nil {
		result.IgnoreErrors = o.IgnoreErrors
	}
	if o.Force != nil {
		result.Force = o.Force
	}
	if o.Cwd != nil {
		result.Cwd = o.Cwd
	}
	if o.Toolchain != nil {
		result.Toolchain = o.Toolchain
	}
	if o.Dependencies != nil {
		result.Dependencies = o.Dependencies
	}
	if o.Watch != nil {
		result.Watch = o.Watch
	}
	if o.Cache != nil {
		result.Cache = o.Cache
	}
	if o.CacheOutputs != nil {
		result.CacheOutputs = o.CacheOutputs
	}
	if o.Linux != nil {
		result.Linux = o.Linux
	}
	if o.Windows != nil {
		result.Windows = o.Windows
	}
	if o.Mac != nil {
		result.Mac = o.Mac
	}

	return result
}

func cloneTask(t *Task) *Task {
	if t == nil {
		return &Task{}
	}
	clone := *t
	return &clone
}

// currentPlatformOverride picks the Task's platform-specific override
// matching runtime.GOOS, or nil if none applies.
func currentPlatformOverride(t *Task) *Task {
	switch normalizePlatform(runtime.GOOS) {
	case "linux":
		return t.Linux
	case "windows":
		return t.Windows
	case "mac":
		return t.Mac
	default:
		return nil
	}
}

func normalizePlatform(goos string) string {
	switch goos {
	case "darwin":
		return "mac"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// GetNormalizedTask resolves platform overrides: if the
// platform override matching the current OS is set, its fields are merged
// atop base using the same clear-aware semantics as Extend; the returned
// task never has Linux/Windows/Mac populated.
func GetNormalizedTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	override := currentPlatformOverride(t)
	result := t
	if override != nil {
		result = Extend(t, override)
	} else {
		result = cloneTask(t)
	}
	result.Linux = nil
	result.Windows = nil
	result.Mac = nil
	return result
}
