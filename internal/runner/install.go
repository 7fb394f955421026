package runner

import (
	"fmt"
	"os/exec"

	"github.com/cargorun/cargorun/internal/scriptengine"
	"github.com/cargorun/cargorun/internal/types"
)

// ensureInstalled probes the target binary and, when absent, runs
// install_script or hands off to the external installer collaborator named
// by install_crate.
func (r *Runner) ensureInstalled(task *types.Task) error {
	if task.InstallCrate == nil && len(task.InstallScript) == 0 {
		return nil
	}

	if binary := installProbeBinary(task.InstallCrate); binary != "" && scriptengine.ProbeBinary(binary) {
		return nil
	}

	if len(task.InstallScript) > 0 {
		code, err := scriptengine.Run(&types.Task{Script: &types.ScriptValue{Lines: task.InstallScript}}, scriptengine.Options{
			Cwd: r.root, Stdout: r.stdout, Stderr: r.stderr, TaskArgs: task.InstallCrateArgs,
		})
		if err != nil {
			return types.NewFlowError(types.ErrInstallFailure, "", err)
		}
		if code != 0 {
			return types.NewFlowError(types.ErrInstallFailure, "", fmt.Errorf("install_script exited %d", code))
		}
		return nil
	}

	if task.InstallCrate != nil {
		return r.invokeExternalInstaller(task.InstallCrate, task.InstallCrateArgs)
	}
	return nil
}

func installProbeBinary(ic *types.InstallCrate) string {
	if ic == nil {
		return ""
	}
	switch ic.Kind {
	case types.InstallCrateName:
		return ic.Name
	case types.InstallCrateInfoKind:
		if ic.Info.Binary != "" {
			return ic.Info.Binary
		}
		return ic.Info.CrateName
	default:
		return ""
	}
}

// invokeExternalInstaller shells to `cargo install`, the natural external
// installer collaborator for a crate/tool named by install_crate.
func (r *Runner) invokeExternalInstaller(ic *types.InstallCrate, extraArgs []string) error {
	var args []string
	switch ic.Kind {
	case types.InstallCrateEnabled:
		if !ic.Bool {
			return nil
		}
		return nil
	case types.InstallCrateName:
		args = []string{"install", ic.Name}
	case types.InstallCrateInfoKind:
		args = []string{"install", ic.Info.CrateName}
		if ic.Info.Version != "" {
			args = append(args, "--version", ic.Info.Version)
		}
		if ic.Info.Force {
			args = append(args, "--force")
		}
		args = append(args, ic.Info.InstallArgs...)
	default:
		return nil
	}
	args = append(args, extraArgs...)

	code, err := streamExternal(exec.Command("cargo", args...), r.stdout, r.stderr, r.root)
	if err != nil {
		return types.NewFlowError(types.ErrInstallFailure, "", err)
	}
	if code != 0 {
		return types.NewFlowError(types.ErrInstallFailure, "", fmt.Errorf("cargo install exited %d", code))
	}
	return nil
}
