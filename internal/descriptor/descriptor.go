// Package descriptor loads a TOML task descriptor into a *types.Config,
// resolving its extend chain and merging env sections and tasks along the
// way.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/toolchain"
	"github.com/cargorun/cargorun/internal/types"
	"github.com/hashicorp/go-hclog"
)

// Load parses the TOML descriptor at path and resolves its extend chain.
// builtin is the external collaborator's built-in task catalogue (merged
// in first, outermost); pass nil when none applies. toolVersion is the
// running binary's own version, checked against the resolved
// [config].min_version.
func Load(path string, builtin *types.Config, toolVersion string, logger hclog.Logger) (*types.Config, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	cfg, err := loadChain(path, map[string]bool{}, builtin, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Config.MinVersion != nil && toolVersion != "" {
		ok, err := toolchain.SatisfiesMinVersion(toolVersion, *cfg.Config.MinVersion)
		if err != nil {
			return nil, types.NewFlowError(types.ErrConfigSemantic, "", err)
		}
		if !ok {
			return nil, types.NewFlowError(types.ErrMinVersion, "", fmt.Errorf("tool version %s is older than required min_version %s", toolVersion, *cfg.Config.MinVersion))
		}
	}
	return cfg, nil
}

func loadChain(path string, visiting map[string]bool, builtin *types.Config, logger hclog.Logger) (*types.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, types.NewFlowError(types.ErrConfigParse, "", fmt.Errorf("resolving path %q: %w", path, err))
	}
	if visiting[abs] {
		return nil, types.NewFlowError(types.ErrConfigSemantic, "", fmt.Errorf("cyclic extend chain at %q", abs))
	}
	visiting[abs] = true

	raw, err := decodeFile(abs, logger)
	if err != nil {
		return nil, types.NewFlowError(types.ErrConfigParse, "", err)
	}

	cfg, err := rawToConfig(raw, logger)
	if err != nil {
		return nil, types.NewFlowError(types.ErrConfigParse, "", err)
	}

	chain := []*types.Config{}
	if builtin != nil && !boolDeref(cfg.Config.SkipCoreTasks) {
		chain = append(chain, builtin)
	}

	if wsPath := workspaceMakefilePath(abs); wsPath != "" {
		parent, err := loadChain(wsPath, visiting, nil, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
	}

	if extendStr := raw.extend(); extendStr != "" {
		extendPath := extendStr
		if !filepath.IsAbs(extendPath) {
			extendPath = filepath.Join(filepath.Dir(abs), extendPath)
		}
		parent, err := loadChain(extendPath, visiting, nil, logger)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
	}

	// imported task sets are namespaced/privatized before the current
	// descriptor is overlaid
	if len(chain) > 0 && cfg.Config.ModifyCoreTasks != nil {
		imported, err := mergeChain(chain)
		if err != nil {
			return nil, err
		}
		chain = []*types.Config{applyModifyCoreTasks(imported, cfg.Config.ModifyCoreTasks)}
	}

	chain = append(chain, cfg)
	return mergeChain(chain)
}

// workspaceMakefilePath reports the workspace-level descriptor a member
// flow should layer underneath its own, published by the fan-out script
// when CARGO_MAKE_EXTEND_WORKSPACE_MAKEFILE=TRUE.
func workspaceMakefilePath(current string) string {
	if os.Getenv("CARGO_MAKE_EXTEND_WORKSPACE_MAKEFILE") != "TRUE" {
		return ""
	}
	wsPath := os.Getenv("CARGO_MAKE_WORKSPACE_MAKEFILE")
	if wsPath == "" {
		return ""
	}
	if abs, err := filepath.Abs(wsPath); err == nil {
		wsPath = abs
	}
	if wsPath == current {
		return ""
	}
	if _, err := os.Stat(wsPath); err != nil {
		return ""
	}
	return wsPath
}

func applyModifyCoreTasks(cfg *types.Config, modify *types.ModifyCoreTasksConfig) *types.Config {
	mc := types.ModifyConfig{}
	if modify.Private != nil {
		mc.Private = *modify.Private
	}
	if modify.Namespace != nil {
		mc.Namespace = *modify.Namespace
	}

	tasks := types.NewOrderedTasks()
	for _, name := range cfg.Tasks.Names() {
		t, _ := cfg.Tasks.Get(name)
		tasks.Set(qualifyTaskName(mc.Namespace, name), types.Apply(t, mc))
	}

	out := *cfg
	out.Tasks = tasks
	out.Config = types.ApplyConfigSection(cfg.Config, mc)
	return &out
}

func qualifyTaskName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	prefix := namespace + "::"
	if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
		return name
	}
	return prefix + name
}

func boolDeref(b *bool) bool {
	return b != nil && *b
}

var knownTopLevelKeys = map[string]bool{
	"extend": true, "config": true, "env_files": true, "env": true,
	"env_scripts": true, "tasks": true, "plugins": true,
}

func decodeFile(path string, logger hclog.Logger) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor %q: %w", path, err)
	}

	raw, err := unmarshalRaw(data)
	if err != nil {
		return nil, fmt.Errorf("parsing descriptor %q: %w", path, err)
	}

	for key := range raw.doc {
		if !knownTopLevelKeys[key] {
			logger.Warn("unknown descriptor key ignored", "key", key, "file", path)
		}
	}

	return raw, nil
}

// mergeChain merges Config entries outermost-first, then the user
// descriptor last: built-in defaults, extended chain (outermost last),
// user descriptor.
func mergeChain(chain []*types.Config) (*types.Config, error) {
	if len(chain) == 0 {
		return &types.Config{Tasks: types.NewOrderedTasks(), Env: types.NewOrderedEnv()}, nil
	}
	result := chain[0]
	for _, next := range chain[1:] {
		merged, err := mergeTwo(result, next)
		if err != nil {
			return nil, err
		}
		result = merged
	}
	return result, nil
}

func mergeTwo(base, override *types.Config) (*types.Config, error) {
	mergedEnv, err := env.Merge(base.Env, override.Env)
	if err != nil {
		return nil, types.NewFlowError(types.ErrConfigSemantic, "", err)
	}

	tasks := types.NewOrderedTasks()
	for _, name := range base.Tasks.Names() {
		t, _ := base.Tasks.Get(name)
		tasks.Set(name, t)
	}
	for _, name := range override.Tasks.Names() {
		overrideTask, _ := override.Tasks.Get(name)
		// Same-named tasks across a merge boundary (ancestor descriptor vs.
		// the one extending it) are combined via the same right-biased
		// field merge Task.extend uses. Distinct from the task's own
		// `extend` field, which names a *different* task to inherit from
		// and is resolved later, at plan time.
		if baseTask, ok := tasks.Get(name); ok {
			tasks.Set(name, types.Extend(baseTask, overrideTask))
			continue
		}
		tasks.Set(name, overrideTask)
	}

	cfgSection := override.Config
	if cfgSection.InitTask == nil {
		cfgSection.InitTask = base.Config.InitTask
	}
	if cfgSection.EndTask == nil {
		cfgSection.EndTask = base.Config.EndTask
	}
	if cfgSection.OnErrorTask == nil {
		cfgSection.OnErrorTask = base.Config.OnErrorTask
	}
	if cfgSection.LegacyMigrationTask == nil {
		cfgSection.LegacyMigrationTask = base.Config.LegacyMigrationTask
	}
	if cfgSection.MinVersion == nil {
		cfgSection.MinVersion = base.Config.MinVersion
	}
	if cfgSection.SkipCoreTasks == nil {
		cfgSection.SkipCoreTasks = base.Config.SkipCoreTasks
	}
	if cfgSection.ModifyCoreTasks == nil {
		cfgSection.ModifyCoreTasks = base.Config.ModifyCoreTasks
	}
	if cfgSection.DefaultToWorkspace == nil {
		cfgSection.DefaultToWorkspace = base.Config.DefaultToWorkspace
	}
	if cfgSection.ReduceOutput == nil {
		cfgSection.ReduceOutput = base.Config.ReduceOutput
	}
	if cfgSection.DisableOnError == nil {
		cfgSection.DisableOnError = base.Config.DisableOnError
	}
	if cfgSection.Workspace == nil {
		cfgSection.Workspace = base.Config.Workspace
	}
	cfgSection.AdditionalProfiles = append(append([]string{}, base.Config.AdditionalProfiles...), override.Config.AdditionalProfiles...)
	cfgSection.LoadScript = append(append([]string{}, base.Config.LoadScript...), override.Config.LoadScript...)

	plugins := map[string]types.PluginConfig{}
	for k, v := range base.Plugins {
		plugins[k] = v
	}
	for k, v := range override.Plugins {
		plugins[k] = v
	}

	return &types.Config{
		Config:     cfgSection,
		Env:        mergedEnv,
		// env_files/env_scripts concatenate, ancestor entries first: base
		// here is the ancestor/extended file merged earlier in the chain,
		// override is the more specific descriptor on top of it.
		EnvFiles:   append(append([]types.EnvFileRef{}, base.EnvFiles...), override.EnvFiles...),
		EnvScripts: append(append([]string{}, base.EnvScripts...), override.EnvScripts...),
		Tasks:      tasks,
		Plugins:    plugins,
	}, nil
}
