package descriptor

import (
	"fmt"

	"github.com/cargorun/cargorun/internal/types"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
)

type rawConfig struct {
	doc    rawDoc
	source []byte
}

func unmarshalRaw(data []byte) (*rawConfig, error) {
	var doc rawDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &rawConfig{doc: doc, source: data}, nil
}

func (r *rawConfig) extend() string {
	return getString(r.doc, "extend")
}

func rawToConfig(raw *rawConfig, logger interface{ Warn(string, ...interface{}) }) (*types.Config, error) {
	cfg := &types.Config{
		Tasks: types.NewOrderedTasks(),
		Env:   types.NewOrderedEnv(),
	}

	if extendStr, ok := asString(raw.doc["extend"]); ok {
		_ = extendStr // consumed by the loader, not the Config itself
	}

	cfg.Config = decodeConfigSection(getMap(raw.doc, "config"))

	cfg.EnvFiles = decodeEnvFiles(asSlice(raw.doc["env_files"]))
	cfg.EnvScripts = getStringSlice(raw.doc, "env_scripts")

	envOrder := envDeclarationOrder(raw.source)
	profileOrder, profileKeyOrder := envProfileDeclarationOrder(raw.source)
	envMap := getMap(raw.doc, "env")
	cfg.Env = decodeEnvTable(envMap, envOrder, profileOrder, profileKeyOrder)

	taskOrder := taskDeclarationOrder(raw.source)
	taskEnvOrders := envTableOrders(raw.source)
	tasksMap := getMap(raw.doc, "tasks")
	tasks := types.NewOrderedTasks()
	for _, name := range taskOrder {
		raw, ok := tasksMap[name]
		if !ok {
			continue
		}
		m := asMap(raw)
		if m == nil {
			continue
		}
		task, err := decodeTask(m, taskEnvOrders, "tasks."+name)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		tasks.Set(name, task)
	}
	// any task present in the map but missed by the header scan (e.g.
	// inline-table form) is still picked up, appended after the scanned
	// ones, so nothing is silently dropped.
	for name, raw := range tasksMap {
		if _, ok := tasks.Get(name); ok {
			continue
		}
		m := asMap(raw)
		if m == nil {
			continue
		}
		task, err := decodeTask(m, taskEnvOrders, "tasks."+name)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		tasks.Set(name, task)
	}
	cfg.Tasks = tasks

	pluginsMap := getMap(raw.doc, "plugins")
	if pluginsMap != nil {
		cfg.Plugins = map[string]types.PluginConfig{}
		for name, v := range pluginsMap {
			var pc types.PluginConfig
			if err := mapstructure.WeakDecode(asMap(v), &pc); err != nil {
				return nil, fmt.Errorf("plugin %q: %w", name, err)
			}
			cfg.Plugins[name] = pc
		}
	}

	return cfg, nil
}

func decodeConfigSection(m rawDoc) types.ConfigSection {
	if m == nil {
		return types.ConfigSection{}
	}
	cs := types.ConfigSection{
		InitTask:            getStringPtr(m, "init_task"),
		EndTask:             getStringPtr(m, "end_task"),
		OnErrorTask:         getStringPtr(m, "on_error_task"),
		LegacyMigrationTask: getStringPtr(m, "legacy_migration_task"),
		MinVersion:          getStringPtr(m, "min_version"),
		SkipCoreTasks:       getBoolPtr(m, "skip_core_tasks"),
		AdditionalProfiles:  getStringSlice(m, "additional_profiles"),
		DefaultToWorkspace:  getBoolPtr(m, "default_to_workspace"),
		ReduceOutput:        getBoolPtr(m, "reduce_output"),
		LoadScript:          getStringSlice(m, "load_script"),
		DisableOnError:      getBoolPtr(m, "disable_on_error"),
	}
	if modify := getMap(m, "modify_core_tasks"); modify != nil {
		cs.ModifyCoreTasks = &types.ModifyCoreTasksConfig{}
		_ = mapstructure.WeakDecode(modify, cs.ModifyCoreTasks)
	}
	if ws := getMap(m, "workspace"); ws != nil {
		cs.Workspace = &types.WorkspaceConfig{}
		_ = mapstructure.WeakDecode(ws, cs.Workspace)
	}
	return cs
}

func decodeEnvFiles(items []interface{}) []types.EnvFileRef {
	out := make([]types.EnvFileRef, 0, len(items))
	for _, item := range items {
		if s, ok := asString(item); ok {
			out = append(out, types.EnvFileRef{Path: s})
			continue
		}
		if m := asMap(item); m != nil {
			out = append(out, types.EnvFileRef{
				Path:     getString(m, "path"),
				Profile:  getString(m, "profile"),
				BasePath: getString(m, "base_path"),
			})
		}
	}
	return out
}
