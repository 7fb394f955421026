// Package core builds an ExecutionPlan from a resolved Config: a
// dependency graph built with github.com/pyr-sh/dag, walked depth-first to
// produce an ordered step list, then exportable via Dot.
package core

import (
	"fmt"
	"os"
	"regexp"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/cargorun/cargorun/internal/util"
	"github.com/cargorun/cargorun/internal/workspace"
	"github.com/pyr-sh/dag"
)

// Options controls one planner invocation, mirroring the CLI flags.
type Options struct {
	// Root is the filesystem directory the flow was invoked from, used for
	// workspace member discovery.
	Root string
	// DisableWorkspace corresponds to --no-workspace.
	DisableWorkspace bool
	// AllowPrivate corresponds to --allow-private.
	AllowPrivate bool
	// SkipInitEndTasks corresponds to --skip-init-end-tasks.
	SkipInitEndTasks bool
	// SkipTasksPattern corresponds to --skip-tasks REGEX.
	SkipTasksPattern string
	// SubFlow is true when this Build call constructs a nested sub-plan (a
	// run_task dispatch or an on_error_task), which never re-triggers
	// workspace fan-out regardless of DisableWorkspace.
	SubFlow bool
}

// Plan is an ExecutionPlan together with the dependency graph it was built
// from, kept for the dot-graph export.
type Plan struct {
	*types.ExecutionPlan
	graph *dag.AcyclicGraph
}

// Dot renders the plan's dependency graph in Graphviz dot format.
func (p *Plan) Dot() []byte {
	if p == nil || p.graph == nil {
		return nil
	}
	return p.graph.Dot(&dag.DotOpts{Verbose: true, DrawCycles: true})
}

// Planner builds plans against one resolved Config.
type Planner struct {
	cfg *types.Config
}

// NewPlanner wraps cfg for repeated Build calls against the same resolved
// descriptor (one per flow invocation; sub-flows build their own Planner
// over the same cfg).
func NewPlanner(cfg *types.Config) *Planner {
	return &Planner{cfg: cfg}
}

// Build constructs the ExecutionPlan for invoking root.
func (p *Planner) Build(root string, opts Options) (*Plan, error) {
	resolvedTasks, err := resolveAllExtends(p.cfg.Tasks)
	if err != nil {
		return nil, types.NewFlowError(types.ErrConfigSemantic, root, err)
	}

	if isWorkspaceFlow(p.cfg, resolvedTasks, root, opts) {
		return p.buildWorkspaceFanOut(resolvedTasks, root, opts)
	}

	var skipRe *regexp.Regexp
	if opts.SkipTasksPattern != "" {
		skipRe, err = regexp.Compile(opts.SkipTasksPattern)
		if err != nil {
			return nil, types.NewFlowError(types.ErrConfigSemantic, root, fmt.Errorf("compiling skip-tasks pattern: %w", err))
		}
	}

	b := &builder{
		tasks:   resolvedTasks,
		opts:    opts,
		skipRe:  skipRe,
		visited: util.NewSet(),
		onPath:  util.NewSet(),
		graph:   &dag.AcyclicGraph{},
	}

	if !opts.SkipInitEndTasks {
		if name := p.cfg.Config.InitTask; name != nil && *name != "" {
			if _, err := b.walk(*name, false); err != nil {
				return nil, err
			}
		}
	}

	if _, err := b.walk(root, false); err != nil {
		return nil, err
	}

	if !opts.SkipInitEndTasks {
		if name := p.cfg.Config.EndTask; name != nil && *name != "" {
			if _, err := b.walk(*name, false); err != nil {
				return nil, err
			}
		}
	}

	// Init, the root and end are independent vertices, so the graph may have
	// several roots; only cycles are rejected here.
	if cycles := b.graph.Cycles(); len(cycles) > 0 {
		return nil, types.NewFlowError(types.ErrConfigSemantic, root, fmt.Errorf("dependency cycle among %v", cycles[0]))
	}

	return &Plan{ExecutionPlan: &types.ExecutionPlan{Steps: b.steps}, graph: b.graph}, nil
}

// resolveAllExtends resolves every task's own Task.Extend chain (naming a
// different task to inherit fields from) into a flat table, distinct from
// and performed after the descriptor loader's per-name, same-task-name
// extend-chain config merge. Cycles fail with the same diagnostic shape as
// GetActualTaskName's alias-cycle detection.
func resolveAllExtends(tasks *types.OrderedTasks) (*types.OrderedTasks, error) {
	cache := map[string]*types.Task{}

	var resolve func(name string, visiting map[string]bool) (*types.Task, error)
	resolve = func(name string, visiting map[string]bool) (*types.Task, error) {
		if t, ok := cache[name]; ok {
			return t, nil
		}
		if visiting[name] {
			return nil, fmt.Errorf("cyclic task extend chain at %q", name)
		}
		visiting[name] = true

		task, ok := tasks.Get(name)
		if !ok {
			return nil, fmt.Errorf("extend references missing task %q", name)
		}
		if task.Extend == nil {
			cache[name] = task
			return task, nil
		}
		base, err := resolve(*task.Extend, visiting)
		if err != nil {
			return nil, err
		}
		merged := types.Extend(base, task)
		cache[name] = merged
		return merged, nil
	}

	resolved := types.NewOrderedTasks()
	for _, name := range tasks.Names() {
		t, err := resolve(name, map[string]bool{})
		if err != nil {
			return nil, err
		}
		resolved.Set(name, t)
	}
	return resolved, nil
}

// builder walks the dependency DAG from one root.
type builder struct {
	tasks   *types.OrderedTasks
	opts    Options
	skipRe  *regexp.Regexp
	visited util.Set
	onPath  util.Set
	steps   []types.Step
	graph   *dag.AcyclicGraph
}

// walk resolves name to its terminal alias target, emits its dependencies
// before itself (depth-first, insertion order preserved, no reordering),
// and returns the resolved name so callers can wire a dependency edge.
func (b *builder) walk(name string, asDependency bool) (string, error) {
	resolvedName, err := types.GetActualTaskName(b.tasks, name)
	if err != nil {
		return "", types.NewFlowError(types.ErrConfigSemantic, name, err)
	}

	if b.visited.Contains(resolvedName) {
		return resolvedName, nil
	}
	if b.onPath.Contains(resolvedName) {
		return "", types.NewFlowError(types.ErrConfigSemantic, resolvedName, fmt.Errorf("dependency cycle at task %q", resolvedName))
	}
	b.onPath.Add(resolvedName)
	defer b.onPath.Remove(resolvedName)

	b.graph.Add(resolvedName)

	if b.skipRe != nil && b.skipRe.MatchString(resolvedName) {
		b.visited.Add(resolvedName)
		return resolvedName, nil
	}

	task, _ := b.tasks.Get(resolvedName)
	normalized := types.GetNormalizedTask(task)
	if err := normalized.ValidateAction(); err != nil {
		return "", types.NewFlowError(types.ErrConfigSemantic, resolvedName, err)
	}

	for _, dep := range normalized.Dependencies {
		depName, err := b.walk(dep, true)
		if err != nil {
			return "", err
		}
		b.graph.Connect(dag.BasicEdge(depName, resolvedName))
	}

	b.visited.Add(resolvedName)

	if normalized.IsDisabled() {
		return resolvedName, nil
	}
	if normalized.IsPrivate() && !b.opts.AllowPrivate && !asDependency {
		return "", types.NewFlowError(types.ErrConfigSemantic, resolvedName, fmt.Errorf("task %q is private; pass --allow-private to invoke it directly", resolvedName))
	}

	stepConfig := normalized
	if watchWrapped(normalized) {
		stepConfig = synthesizeWatchTask(resolvedName, normalized.Watch)
	}
	b.steps = append(b.steps, types.Step{Name: resolvedName, Config: stepConfig})
	return resolvedName, nil
}

// isWorkspaceFlow reports whether this invocation fans out over workspace
// members instead of running the task directly.
func isWorkspaceFlow(cfg *types.Config, tasks *types.OrderedTasks, root string, opts Options) bool {
	if opts.DisableWorkspace || opts.SubFlow {
		return false
	}
	if cfg.Config.Workspace == nil || len(cfg.Config.Workspace.Members) == 0 {
		return false
	}
	resolvedName, err := types.GetActualTaskName(tasks, root)
	if err != nil {
		return false
	}
	task, ok := tasks.Get(resolvedName)
	if !ok {
		return false
	}
	normalized := types.GetNormalizedTask(task)
	if normalized.Workspace != nil && !*normalized.Workspace {
		return false
	}
	return true
}

// buildWorkspaceFanOut synthesizes a one-step plan whose script iterates
// workspace members, honoring the CARGO_MAKE_WORKSPACE_INCLUDE_MEMBERS and
// CARGO_MAKE_WORKSPACE_SKIP_MEMBERS env filters, and re-invokes this same
// tool binary once per included member.
func (p *Planner) buildWorkspaceFanOut(tasks *types.OrderedTasks, root string, opts Options) (*Plan, error) {
	resolvedName, err := types.GetActualTaskName(tasks, root)
	if err != nil {
		return nil, types.NewFlowError(types.ErrConfigSemantic, root, err)
	}

	members, err := workspace.Discover(opts.Root, p.cfg)
	if err != nil {
		return nil, types.NewFlowError(types.ErrWorkspaceFanOut, resolvedName, err)
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "cargorun"
	}

	// a memberless workspace still yields a one-step plan; its script body
	// is empty and the env overlay still applies
	var lines []string
	if len(members) > 0 {
		lines = fanOutScriptLines(exe, resolvedName, opts.Root, members)
	}
	task := &types.Task{Script: &types.ScriptValue{Lines: lines}}

	graph := &dag.AcyclicGraph{}
	stepName := resolvedName + "::workspace"
	graph.Add(stepName)

	plan := &types.ExecutionPlan{Steps: []types.Step{{Name: stepName, Config: task}}}
	return &Plan{ExecutionPlan: plan, graph: graph}, nil
}
