package runner

import (
	"fmt"
	"path/filepath"

	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/types"
)

// loadTaskEnv resolves a Step's env_files (profile-scoped, in declaration
// order) merged with its inline env.
func (r *Runner) loadTaskEnv(task *types.Task) (*types.OrderedEnv, error) {
	merged, err := r.mergeEnvFileRefs(types.NewOrderedEnv(), task.EnvFiles)
	if err != nil {
		return nil, err
	}

	if task.Env != nil {
		merged, err = env.Merge(merged, task.Env)
		if err != nil {
			return nil, err
		}
	}

	return merged, nil
}

// mergeEnvFileRefs loads every profile-matching env file reference, in
// declaration order, on top of base.
func (r *Runner) mergeEnvFileRefs(base *types.OrderedEnv, refs []types.EnvFileRef) (*types.OrderedEnv, error) {
	merged := base
	for _, ref := range refs {
		if ref.Profile != "" && ref.Profile != r.profile {
			continue
		}
		path := ref.Path
		if !filepath.IsAbs(path) {
			dir := ref.BasePath
			if dir == "" {
				dir = r.root
			}
			path = filepath.Join(dir, path)
		}
		fileEnv, err := env.LoadEnvFile(path)
		if err != nil {
			return nil, err
		}
		merged, err = env.Merge(merged, fileEnv)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// ApplyFlowEnv materializes the config-level env_files, env table, and
// env_scripts once at flow start, before any Step runs. Step-level env is
// layered on top of this by runStep.
func (r *Runner) ApplyFlowEnv() error {
	merged, err := r.mergeEnvFileRefs(types.NewOrderedEnv(), r.cfg.EnvFiles)
	if err != nil {
		return types.NewFlowError(types.ErrConfigSemantic, "", err)
	}
	if r.cfg.Env != nil {
		merged, err = env.Merge(merged, r.cfg.Env)
		if err != nil {
			return types.NewFlowError(types.ErrConfigSemantic, "", err)
		}
	}
	if err := env.Overlay(r.store, merged, r.profile, r.scriptRunner, r.taskArgs); err != nil {
		return types.NewFlowError(types.ErrConfigSemantic, "", err)
	}

	for _, script := range r.cfg.EnvScripts {
		if _, err := r.scriptRunner([]string{script}); err != nil {
			return types.NewFlowError(types.ErrConfigSemantic, "", fmt.Errorf("env script failed: %w", err))
		}
	}
	return nil
}
