// Package types defines the tagged-variant task model shared by the
// descriptor loader, the execution planner, the condition engine and the
// runner. Every optional field is a pointer or a nil-able slice/map so that
// Task.Extend can tell "absent" apart from "explicitly set to zero value",
// the same discipline TaskConfig.Merge uses for its pointer fields.
package types

import "fmt"

// DeprecationInfo is either a bare boolean or a message string in the
// descriptor. Exactly one of the two is populated after deserialization.
type DeprecationInfo struct {
	Bool    *bool
	Message *string
}

// IsDeprecated reports whether the task should be treated as deprecated.
func (d *DeprecationInfo) IsDeprecated() bool {
	if d == nil {
		return false
	}
	if d.Message != nil {
		return true
	}
	return d.Bool != nil && *d.Bool
}

// ToolchainSpecifier names a toolchain channel, optionally with a minimum
// version bound.
type ToolchainSpecifier struct {
	Channel    string
	MinVersion string
}

// InstallCrateKind tags the InstallCrate variant shape.
type InstallCrateKind int

const (
	// InstallCrateNone means the field was absent.
	InstallCrateNone InstallCrateKind = iota
	// InstallCrateEnabled is a bare boolean enabling/disabling the default installer.
	InstallCrateEnabled
	// InstallCrateName names a crate/tool to install by name only.
	InstallCrateName
	// InstallCrateInfoKind is the full {crate_name, binary, test_arg, ...} shape.
	InstallCrateInfoKind
)

// InstallCrate is the polymorphic install_crate field. Deserialization tries
// each variant in this order, the first matching shape wins: a bare bool, a
// bare string (the crate name), then the full Info struct (any table).
type InstallCrate struct {
	Kind InstallCrateKind
	Bool bool
	Name string
	Info InstallCrateInfo
}

// InstallCrateInfo is the full install-crate descriptor shape.
type InstallCrateInfo struct {
	CrateName   string
	Binary      string
	TestArg     []string
	MinVersion  string
	Version     string
	Force       bool
	InstallArgs []string
}

// ScriptValue is the polymorphic script field: either literal text lines, a
// single line, or a reference to an external file.
type ScriptValue struct {
	Lines []string
	File  *ScriptFileRef
	// PreMainPost holds the optional three-section form, where each section
	// is itself a list of lines. When non-nil it takes precedence over Lines.
	PreMainPost *ScriptSections
}

// ScriptFileRef points at an external script file on disk.
type ScriptFileRef struct {
	Path string
}

// ScriptSections is the pre/main/post script shape.
type ScriptSections struct {
	Pre  []string
	Main []string
	Post []string
}

// TaskWatchOptions is the expanded form of the watch field.
type TaskWatchOptions struct {
	Enabled    bool
	Version    string
	PostponeOn []string
	Ignore     []string
}

// RunTaskKind tags the RunTask variant shape.
type RunTaskKind int

const (
	// RunTaskNone means the field was absent.
	RunTaskNone RunTaskKind = iota
	// RunTaskSingle is a bare task-name string.
	RunTaskSingle
	// RunTaskDetailsKind is the {name, fork, parallel, cleanup_task} object, where
	// name may itself be a single name or a list of names.
	RunTaskDetailsKind
	// RunTaskRouting is an ordered list of conditional routing entries.
	RunTaskRouting
)

// RunTask is the polymorphic run_task field.
type RunTask struct {
	Kind    RunTaskKind
	Name    string
	Details *RunTaskDetails
	Routing []RunTaskRoute
}

// RunTaskDetails is the {name, fork, parallel, cleanup_task} shape. Name may
// resolve to one or many task names.
type RunTaskDetails struct {
	Names       []string
	Fork        bool
	Parallel    bool
	CleanupTask string
}

// RunTaskRoute is one entry of a run_task Routing list.
type RunTaskRoute struct {
	Name            string
	Fork            bool
	Parallel        bool
	CleanupTask     string
	Condition       *Condition
	ConditionScript *ConditionScriptValue
}

// ConditionScriptValue mirrors ScriptValue's SingleLine/Text duality for the
// condition_script field specifically.
type ConditionScriptValue struct {
	Lines []string
}

// EnvFileRef is one entry of the env_files list: a path, optionally scoped by
// a profile or base-path override.
type EnvFileRef struct {
	Path    string
	Profile string
	BasePath string
}

// Task is a polymorphic action unit: at most one of Command, Script, and
// RunTask may be populated.
type Task struct {
	// Identity & modifiers.
	Clear       *bool
	Private     *bool
	Disabled    *bool
	Deprecated  *DeprecationInfo
	Description *string
	Category    *string
	Workspace   *bool
	Plugin      *string

	// Inheritance.
	Extend *string

	// Alias family.
	Alias        *string
	LinuxAlias   *string
	WindowsAlias *string
	MacAlias     *string

	// Environment.
	Env      *OrderedEnv
	EnvFiles []EnvFileRef

	// Preconditions.
	Condition       *Condition
	ConditionScript *ConditionScriptValue

	// Action — exactly one of Command, Script, RunTask may be populated.
	Command *string
	Args    []string
	Script  *ScriptValue
	RunTask *RunTask

	// Script controls.
	ScriptRunner           *string
	ScriptRunnerArgs       []string
	ConditionScriptRunnerArgs []string
	ScriptExtension        *string

	// Install hooks.
	InstallCrate     *InstallCrate
	InstallCrateArgs []string
	InstallScript    []string

	// Execution attributes.
	IgnoreErrors *bool
	Force        *bool // legacy alias for IgnoreErrors
	Cwd          *string
	Toolchain    *ToolchainSpecifier

	// Structural.
	Dependencies []string
	Watch        *TaskWatchOptions

	// Output-cache opt-in. Strictly additive: nil Cache means "never
	// consult the cache".
	Cache        *bool
	CacheOutputs []string

	// Platform overrides. Cleared from the result of GetNormalizedTask.
	Linux   *Task
	Windows *Task
	Mac     *Task
}

// ShouldIgnoreErrors reports whether a failing step should be tolerated,
// honoring the legacy Force alias.
func (t *Task) ShouldIgnoreErrors() bool {
	if t == nil {
		return false
	}
	if t.IgnoreErrors != nil {
		return *t.IgnoreErrors
	}
	if t.Force != nil {
		return *t.Force
	}
	return false
}

// IsDisabled reports whether the task's action/hooks should be skipped while
// its dependencies are still walked.
func (t *Task) IsDisabled() bool {
	return t != nil && t.Disabled != nil && *t.Disabled
}

// IsPrivate reports whether direct invocation requires --allow-private.
func (t *Task) IsPrivate() bool {
	return t != nil && t.Private != nil && *t.Private
}

// IsClear reports whether the task requests a pre-wipe of its extend base.
func (t *Task) IsClear() bool {
	return t != nil && t.Clear != nil && *t.Clear
}

// HasAction reports whether any of {Command, Script, RunTask} is set;
// ValidateAction enforces the "at most one" invariant.
func (t *Task) HasAction() bool {
	if t == nil {
		return false
	}
	return t.Command != nil || t.Script != nil || t.RunTask != nil
}

// ValidateAction reports an error when more than one of {Command, Script,
// RunTask} is populated.
func (t *Task) ValidateAction() error {
	if t == nil {
		return nil
	}
	count := 0
	if t.Command != nil {
		count++
	}
	if t.Script != nil {
		count++
	}
	if t.RunTask != nil {
		count++
	}
	if count > 1 {
		return fmt.Errorf("task defines %d of command/script/run_task; at most one is allowed", count)
	}
	return nil
}

// IsActionable reports whether the task does anything at all when run: any
// of command/script/run_task, install hooks, non-empty env, non-empty
// env-files, non-empty dependencies, or an enabled watch mode.
func (t *Task) IsActionable() bool {
	if t == nil {
		return false
	}
	if t.HasAction() {
		return true
	}
	if t.InstallCrate != nil || len(t.InstallScript) > 0 {
		return true
	}
	if t.Env != nil && t.Env.Len() > 0 {
		return true
	}
	if len(t.EnvFiles) > 0 {
		return true
	}
	if len(t.Dependencies) > 0 {
		return true
	}
	if t.Watch != nil && t.Watch.Enabled {
		return true
	}
	return false
}

// IsNoOp reports whether the task contributes nothing but dependencies to an
// enclosing plan.
func (t *Task) IsNoOp() bool {
	return t.IsDisabled() || !t.IsActionable()
}
