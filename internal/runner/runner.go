// Package runner executes an ExecutionPlan's Steps sequentially. Each step
// goes through the same fixed sequence: env push, env_files/env overlay,
// condition gating, install-hook probing, action dispatch, exit-status
// interpretation, env pop.
package runner

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cargorun/cargorun/internal/condition"
	"github.com/cargorun/cargorun/internal/core"
	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/outputcache"
	"github.com/cargorun/cargorun/internal/runsummary"
	"github.com/cargorun/cargorun/internal/scriptengine"
	"github.com/cargorun/cargorun/internal/types"
)

// Config constructs a Runner.
type Config struct {
	Cfg            *types.Config
	Store          env.Store
	Stdout, Stderr io.Writer
	Profile        string
	Root           string
	TaskArgs       []string
	DisableOnError bool
	// Summary, when set, records per-step timing and outcomes.
	Summary *runsummary.RunState
	// Cache, when set, is consulted for steps whose task opts in via
	// cache=true; a step with cache unset never touches it.
	Cache *outputcache.Cache
}

// Runner walks one ExecutionPlan's Steps against the process environment
// (or an injected env.Store test seam).
type Runner struct {
	cfg            *types.Config
	store          env.Store
	stdout, stderr io.Writer
	profile        string
	root           string
	taskArgs       []string
	disableOnError bool
	scriptRunner   env.ScriptRunner
	summary        *runsummary.RunState
	cache          *outputcache.Cache
}

// New builds a Runner from cfg and the ambient flow parameters.
func New(c Config) *Runner {
	store := c.Store
	if store == nil {
		store = env.OSStore{}
	}
	stdout := c.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := c.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Runner{
		cfg:            c.Cfg,
		store:          store,
		stdout:         stdout,
		stderr:         stderr,
		profile:        c.Profile,
		root:           c.Root,
		taskArgs:       c.TaskArgs,
		disableOnError: c.DisableOnError,
		scriptRunner:   env.DefaultScriptRunner,
		summary:        c.Summary,
		cache:          c.Cache,
	}
}

// PublishAmbientEnv sets the flow-lifetime CARGO_MAKE* variables scripts
// and tasks may read, once per flow invocation before any Step runs.
func (r *Runner) PublishAmbientEnv(rootTaskName string) {
	_ = r.store.Set("CARGO_MAKE", "true")
	_ = r.store.Set("CARGO_MAKE_TASK", rootTaskName)
	_ = r.store.Set("CARGO_MAKE_TASK_ARGS", strings.Join(r.taskArgs, ";"))
	_ = r.store.Set("CARGO_MAKE_PROFILE", r.profile)
	_ = r.store.Set("CARGO_MAKE_WORKING_DIRECTORY", r.root)
	_, isCI := r.store.Get("CI")
	_ = r.store.Set("CARGO_MAKE_CI", strconv.FormatBool(isCI))
}

// RunPlan executes every Step of plan in order, stopping at the first
// unignored failure.
func (r *Runner) RunPlan(plan *core.Plan) error {
	for _, step := range plan.Steps {
		if err := r.runStep(step); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(step types.Step) error {
	task := step.Config

	finish := func(outcome runsummary.StepResultStatus, err error) {}
	if r.summary != nil {
		tracer, _ := r.summary.Run(step.Name)
		finish = tracer
	}

	if task.Deprecated.IsDeprecated() {
		msg := "is deprecated"
		if task.Deprecated.Message != nil {
			msg = "is deprecated: " + *task.Deprecated.Message
		}
		fmt.Fprintf(r.stderr, "task %q %s\n", step.Name, msg)
	}

	prevName, hadPrev := r.store.Get("CARGO_MAKE_CURRENT_TASK_NAME")
	_ = r.store.Set("CARGO_MAKE_CURRENT_TASK_NAME", step.Name)
	defer func() {
		if hadPrev {
			_ = r.store.Set("CARGO_MAKE_CURRENT_TASK_NAME", prevName)
		} else {
			_ = r.store.Unset("CARGO_MAKE_CURRENT_TASK_NAME")
		}
	}()

	taskEnv, err := r.loadTaskEnv(task)
	if err != nil {
		finish(runsummary.StepFailed, err)
		return types.NewFlowError(types.ErrConfigSemantic, step.Name, err)
	}
	if err := env.Overlay(r.store, taskEnv, r.profile, r.scriptRunner, r.taskArgs); err != nil {
		finish(runsummary.StepFailed, err)
		return types.NewFlowError(types.ErrConfigSemantic, step.Name, err)
	}

	ctx := r.conditionContext(task)
	result, err := condition.Evaluate(task.Condition, ctx)
	if err != nil {
		finish(runsummary.StepFailed, err)
		return types.NewFlowError(types.ErrConfigSemantic, step.Name, err)
	}
	if !result.Pass {
		if result.FailMessage != "" {
			fmt.Fprintln(r.stderr, result.FailMessage)
		}
		finish(runsummary.StepSkipped, nil)
		return nil
	}
	if task.ConditionScript != nil && condition.ShouldRunConditionScript(task.Condition, result.CriteriaPassed, result.AnyCriteriaPopulated) {
		passed, err := r.runConditionScript(task.ConditionScript)
		if err != nil {
			finish(runsummary.StepFailed, err)
			return types.NewFlowError(types.ErrConditionUnmet, step.Name, err)
		}
		if !passed {
			finish(runsummary.StepSkipped, nil)
			return nil
		}
	}

	if err := r.ensureInstalled(task); err != nil {
		finish(runsummary.StepFailed, err)
		return err
	}

	cacheKey, cached, err := r.tryCache(step, taskEnv)
	if err != nil {
		finish(runsummary.StepFailed, err)
		return types.NewFlowError(types.ErrStepExit, step.Name, err)
	}
	if cached {
		finish(runsummary.StepCached, nil)
		return nil
	}

	var captured *bytes.Buffer
	stdout := r.stdout
	if cacheKey != "" {
		captured = &bytes.Buffer{}
		stdout = io.MultiWriter(r.stdout, captured)
	}

	code, err := r.dispatchTo(task, stdout)
	if err != nil {
		finish(runsummary.StepFailed, err)
		return types.NewFlowError(types.ErrStepExit, step.Name, err)
	}
	if code == 0 {
		if cacheKey != "" && len(task.CacheOutputs) > 0 {
			log := ""
			if captured != nil {
				log = captured.String()
			}
			if putErr := r.cache.Put(outputcache.Key(cacheKey), r.taskCwd(task), task.CacheOutputs, log); putErr != nil {
				fmt.Fprintf(r.stderr, "caching outputs for task %q failed: %v\n", step.Name, putErr)
			}
		}
		finish(runsummary.StepSuccess, nil)
		return nil
	}

	if task.ShouldIgnoreErrors() {
		fmt.Fprintf(r.stderr, "task %q exited %d (ignored)\n", step.Name, code)
		finish(runsummary.StepSuccess, nil)
		return nil
	}

	if r.cfg.Config.OnErrorTask != nil && !r.disableOnError && !boolVal(r.cfg.Config.DisableOnError) {
		// a failure inside the on-error flow does not fire on_error_task again
		r.disableOnError = true
		if _, onErrorErr := r.runSubPlan(*r.cfg.Config.OnErrorTask); onErrorErr != nil {
			fmt.Fprintf(r.stderr, "on_error_task %q failed: %v\n", *r.cfg.Config.OnErrorTask, onErrorErr)
		}
		r.disableOnError = false
	}

	failure := types.NewFlowError(types.ErrStepExit, step.Name, fmt.Errorf("exit code %d", code))
	failure.ExitCode = code
	finish(runsummary.StepFailed, failure)
	return failure
}

// tryCache resolves the step's cache key and, on a hit, replays the stored
// log and restores the captured outputs. It returns the key (empty when
// the task does not opt in or no cache is attached) and whether dispatch
// can be skipped entirely.
func (r *Runner) tryCache(step types.Step, taskEnv *types.OrderedEnv) (key string, hit bool, err error) {
	task := step.Config
	if r.cache == nil || !boolVal(task.Cache) {
		return "", false, nil
	}
	if task.Command == nil && task.Script == nil {
		return "", false, nil
	}

	snapshot := env.VariableMap{}
	for _, name := range taskEnv.Keys() {
		if v, ok := r.store.Get(name); ok {
			snapshot[name] = v
		}
	}

	computed := outputcache.ComputeKey(step.Name, task, snapshot, nil)
	found, err := r.cache.Fetch(computed)
	if err != nil || !found {
		return string(computed), false, err
	}

	log, err := r.cache.ReplayLog(computed)
	if err != nil {
		return string(computed), false, err
	}
	if log != "" {
		fmt.Fprint(r.stdout, log)
	}
	if err := r.cache.Restore(computed, r.taskCwd(task)); err != nil {
		return string(computed), false, err
	}
	return string(computed), true, nil
}

func (r *Runner) conditionContext(task *types.Task) condition.Context {
	ctx := condition.DefaultContext()
	ctx.Profile = r.profile
	ctx.Cwd = r.taskCwd(task)
	ctx.Lookup = func(name string) (string, bool) { return r.store.Get(name) }
	return ctx
}

func (r *Runner) runConditionScript(cs *types.ConditionScriptValue) (bool, error) {
	code, err := scriptengine.Run(&types.Task{Script: &types.ScriptValue{Lines: cs.Lines}}, scriptengine.Options{
		Cwd: r.root, Stdout: r.stdout, Stderr: r.stderr, TaskArgs: r.taskArgs,
	})
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

func (r *Runner) dispatchTo(task *types.Task, stdout io.Writer) (int, error) {
	switch {
	case task.Plugin != nil:
		return r.runPlugin(task, stdout)
	case task.Command != nil:
		return r.runCommand(task, stdout)
	case task.Script != nil:
		return scriptengine.Run(task, scriptengine.Options{
			Cwd: r.taskCwd(task), Stdout: stdout, Stderr: r.stderr, TaskArgs: r.taskArgs,
		})
	case task.RunTask != nil:
		return r.runRunTask(task)
	default:
		return 0, nil
	}
}

func (r *Runner) runCommand(task *types.Task, stdout io.Writer) (int, error) {
	lookup := env.ArgsLookup(func(name string) (string, bool) { return r.store.Get(name) }, r.taskArgs)
	var args []string
	for _, a := range task.Args {
		args = append(args, env.ExpandArgs(a, lookup, r.taskArgs)...)
	}
	name := env.Expand(*task.Command, lookup)
	// a toolchain-scoped command runs under that channel
	if task.Toolchain != nil && task.Toolchain.Channel != "" {
		args = append([]string{"run", task.Toolchain.Channel, name}, args...)
		name = "rustup"
	}
	cmd := exec.Command(name, args...)
	return streamExternal(cmd, stdout, r.stderr, r.taskCwd(task))
}

// runPlugin dispatches to a named plugin's script, the plugin field's
// dispatch-by-name contract.
func (r *Runner) runPlugin(task *types.Task, stdout io.Writer) (int, error) {
	name := *task.Plugin
	plugin, ok := r.cfg.Plugins[name]
	if !ok {
		return -1, fmt.Errorf("task references unknown plugin %q", name)
	}
	return scriptengine.Run(&types.Task{Script: &types.ScriptValue{Lines: plugin.Script}}, scriptengine.Options{
		Cwd: r.taskCwd(task), Stdout: stdout, Stderr: r.stderr, TaskArgs: r.taskArgs,
	})
}

func (r *Runner) taskCwd(task *types.Task) string {
	if task != nil && task.Cwd != nil && *task.Cwd != "" {
		if filepath.IsAbs(*task.Cwd) {
			return *task.Cwd
		}
		return filepath.Join(r.root, *task.Cwd)
	}
	return r.root
}

func streamExternal(cmd *exec.Cmd, stdout, stderr io.Writer, dir string) (int, error) {
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Dir = dir
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func boolVal(b *bool) bool {
	return b != nil && *b
}
