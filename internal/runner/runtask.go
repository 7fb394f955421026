package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/cargorun/cargorun/internal/condition"
	"github.com/cargorun/cargorun/internal/core"
	"github.com/cargorun/cargorun/internal/types"
	"golang.org/x/sync/errgroup"
)

// runRunTask executes a task's run_task action: resolve the
// polymorphic run_task field to a concrete set of target names, fork or
// recurse in-process per name, honoring parallel, and finally invoke
// cleanup_task regardless of outcome.
func (r *Runner) runRunTask(task *types.Task) (int, error) {
	names, fork, parallel, cleanup, err := resolveRunTask(task.RunTask, r.conditionContext(task))
	if err != nil {
		return -1, err
	}
	if cleanup != "" {
		defer func() { _, _ = r.runSubPlan(cleanup) }()
	}

	// parallel members each need their own process; a parallel request
	// without fork gets fork anyway, with a warning
	if parallel && !fork && len(names) > 1 {
		fmt.Fprintln(r.stderr, "run_task: parallel=true requires fork=true; forking implicitly")
		fork = true
	}

	invoke := func(name string) (int, error) {
		if fork {
			return r.forkInvoke(name)
		}
		return r.runSubPlan(name)
	}

	if len(names) <= 1 || !parallel {
		code := 0
		for _, name := range names {
			c, err := invoke(name)
			if err != nil {
				return -1, err
			}
			if c != 0 {
				code = c
			}
		}
		return code, nil
	}

	codes := make([]int, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			c, err := invoke(name)
			codes[i] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return -1, err
	}
	max := 0
	for _, c := range codes {
		if c > max {
			max = c
		}
	}
	return max, nil
}

// resolveRunTask resolves a RunTask's polymorphic shape to target names,
// first-match-wins for the Routing variant.
func resolveRunTask(rt *types.RunTask, ctx condition.Context) (names []string, fork, parallel bool, cleanup string, err error) {
	if rt == nil {
		return nil, false, false, "", fmt.Errorf("run_task has no action")
	}
	switch rt.Kind {
	case types.RunTaskSingle:
		return []string{rt.Name}, false, false, "", nil
	case types.RunTaskDetailsKind:
		return rt.Details.Names, rt.Details.Fork, rt.Details.Parallel, rt.Details.CleanupTask, nil
	case types.RunTaskRouting:
		for _, route := range rt.Routing {
			pass := true
			switch {
			case route.Condition != nil:
				res, err := condition.Evaluate(route.Condition, ctx)
				if err != nil {
					return nil, false, false, "", err
				}
				pass = res.Pass
			case route.ConditionScript != nil:
				pass, err = routeScriptPasses(route.ConditionScript, ctx.Cwd)
				if err != nil {
					return nil, false, false, "", err
				}
			}
			if pass {
				return []string{route.Name}, route.Fork, route.Parallel, route.CleanupTask, nil
			}
		}
		return nil, false, false, "", fmt.Errorf("no run_task route matched")
	default:
		return nil, false, false, "", fmt.Errorf("run_task has no action")
	}
}

func routeScriptPasses(cs *types.ConditionScriptValue, cwd string) (bool, error) {
	cmd := exec.Command("sh", "-c", joinLines(cs.Lines))
	cmd.Dir = cwd
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func joinLines(lines []string) string {
	s := ""
	for i, l := range lines {
		if i > 0 {
			s += "\n"
		}
		s += l
	}
	return s
}

// runSubPlan builds and runs a fresh sub-plan for name over the same Config,
// the in-process (non-fork) branch of run_task dispatch.
func (r *Runner) runSubPlan(name string) (int, error) {
	plan, err := core.NewPlanner(r.cfg).Build(name, core.Options{
		Root: r.root, SubFlow: true, AllowPrivate: true, DisableWorkspace: true,
	})
	if err != nil {
		return -1, err
	}
	if err := r.RunPlan(plan); err != nil {
		var flowErr *types.FlowError
		if errors.As(err, &flowErr) {
			return flowErr.ExitCode, err
		}
		return -1, err
	}
	return 0, nil
}

// forkInvoke spawns this same tool binary as a child process targeting
// name, the fork=true branch of run_task dispatch.
func (r *Runner) forkInvoke(name string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = "cargorun"
	}
	args := append([]string{"--cwd", r.root, "--no-workspace", name}, r.taskArgs...)
	return streamExternal(exec.Command(exe, args...), r.stdout, r.stderr, r.root)
}
