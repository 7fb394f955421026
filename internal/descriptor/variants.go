package descriptor

import "github.com/cargorun/cargorun/internal/types"

// decodeEnvTable builds an *types.OrderedEnv from a decoded TOML table,
// applying declaredOrder (recovered from source text by envDeclarationOrder)
// so iteration matches the descriptor's written order. Profile sub-tables
// ([env.NAME]) are nested under their own key as Profile
// variant.
func decodeEnvTable(m rawDoc, declaredOrder []string, profileOrder []string, profileKeyOrder map[string][]string) *types.OrderedEnv {
	out := types.NewOrderedEnv()
	if m == nil {
		return out
	}

	seen := map[string]bool{}
	for _, key := range declaredOrder {
		v, ok := m[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out.Set(key, decodeEnvValue(v))
	}
	// anything present in the table but missed by the text scan (e.g.
	// non-standard formatting) is still appended so nothing is dropped.
	for key, v := range m {
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Set(key, decodeEnvValue(v))
	}

	for _, profile := range profileOrder {
		raw, ok := m[profile]
		if !ok {
			continue
		}
		pm := asMap(raw)
		if pm == nil {
			continue
		}
		nested := decodeEnvTable(pm, profileKeyOrder[profile], nil, nil)
		out.Set(profile, types.EnvValue{Kind: types.EnvValueProfile, Profile: nested})
	}

	return out
}

// decodeEnvValue decodes the tagged-variant env value shapes,
// matched by TOML's own native typing plus presence of characteristic
// fields for the table-shaped variants (script/decode/conditional/unset),
// in declared order; the first matching shape wins.
func decodeEnvValue(v interface{}) types.EnvValue {
	switch val := v.(type) {
	case string:
		return types.EnvValue{Kind: types.EnvValueLiteral, Literal: val}
	case bool:
		return types.EnvValue{Kind: types.EnvValueBool, Bool: val}
	case int64:
		return types.EnvValue{Kind: types.EnvValueInt, Int: val}
	case int:
		return types.EnvValue{Kind: types.EnvValueInt, Int: int64(val)}
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, it := range val {
			if s, ok := asString(it); ok {
				items = append(items, s)
			}
		}
		return types.EnvValue{Kind: types.EnvValueList, List: items}
	case rawDoc:
		return decodeEnvValueTable(val)
	}
	return types.EnvValue{Kind: types.EnvValueLiteral}
}

func decodeEnvValueTable(m rawDoc) types.EnvValue {
	if b, ok := m["unset"]; ok {
		if bv, ok := asBool(b); ok && bv {
			return types.EnvValue{Kind: types.EnvValueUnset}
		}
	}
	if _, ok := m["script"]; ok {
		lines := scriptLines(m["script"])
		multi, _ := asBool(m["multi_line"])
		return types.EnvValue{Kind: types.EnvValueScriptKind, Script: &types.EnvValueScript{Lines: lines, MultiLine: multi}}
	}
	if _, ok := m["source"]; ok {
		return types.EnvValue{Kind: types.EnvValueDecodeKind, Decode: &types.EnvValueDecode{
			Source:       getString(m, "source"),
			DefaultValue: getString(m, "default_value"),
			Mapping:      getStringMap(m, "mapping"),
		}}
	}
	if _, ok := m["condition"]; ok {
		return types.EnvValue{Kind: types.EnvValueConditionalKind, Conditional: &types.EnvValueConditional{
			Value:     getString(m, "value"),
			Condition: decodeCondition(getMap(m, "condition")),
		}}
	}
	if v, ok := m["value"]; ok {
		return decodeEnvValue(v)
	}
	return types.EnvValue{Kind: types.EnvValueLiteral}
}

func scriptLines(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, it := range val {
			if s, ok := asString(it); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func decodeCondition(m rawDoc) *types.Condition {
	if m == nil {
		return nil
	}
	c := &types.Condition{
		Profiles:    getStringSlice(m, "profiles"),
		Platforms:   getStringSlice(m, "platforms"),
		Channels:    getStringSlice(m, "channels"),
		OS:          getStringSlice(m, "os"),
		EnvSet:      getStringSlice(m, "env_set"),
		EnvNotSet:   getStringSlice(m, "env_not_set"),
		EnvTrue:     getStringSlice(m, "env_true"),
		EnvFalse:    getStringSlice(m, "env_false"),
		Env:         getStringMap(m, "env"),
		EnvContains: getStringMap(m, "env_contains"),
		FilesExist:     getStringSlice(m, "files_exist"),
		FilesNotExist:  getStringSlice(m, "files_not_exist"),
		FailMessage: getString(m, "fail_message"),
	}
	switch getString(m, "type") {
	case "or":
		c.Type = types.ConditionOr
	case "group_or":
		c.Type = types.ConditionGroupOr
	default:
		c.Type = types.ConditionAnd
	}
	if rv := getMap(m, "rust_version"); rv != nil {
		c.RustVersion = &types.RustVersionCondition{
			Min:   getString(rv, "min"),
			Max:   getString(rv, "max"),
			Equal: getString(rv, "equal"),
		}
	}
	if fm := getMap(m, "files_modified"); fm != nil {
		c.FilesModified = &types.FilesModifiedCondition{
			Input:  getStringSlice(fm, "input"),
			Output: getStringSlice(fm, "output"),
		}
	}
	return c
}

func decodeConditionScript(v interface{}) *types.ConditionScriptValue {
	if v == nil {
		return nil
	}
	lines := scriptLines(v)
	if lines == nil {
		return nil
	}
	return &types.ConditionScriptValue{Lines: lines}
}

// decodeInstallCrate tries bool, then string, then the full-info table.
func decodeInstallCrate(v interface{}) *types.InstallCrate {
	switch val := v.(type) {
	case bool:
		return &types.InstallCrate{Kind: types.InstallCrateEnabled, Bool: val}
	case string:
		return &types.InstallCrate{Kind: types.InstallCrateName, Name: val}
	case rawDoc:
		return &types.InstallCrate{Kind: types.InstallCrateInfoKind, Info: types.InstallCrateInfo{
			CrateName:   getString(val, "crate_name"),
			Binary:      getString(val, "binary"),
			TestArg:     getStringSlice(val, "test_arg"),
			MinVersion:  getString(val, "min_version"),
			Version:     getString(val, "version"),
			Force:       getBool(val, "force"),
			InstallArgs: getStringSlice(val, "install_args"),
		}}
	}
	return nil
}

// decodeScriptValue decodes the script shapes: lines/single-line
// text, an external-file reference, or the pre/main/post section form.
func decodeScriptValue(v interface{}) *types.ScriptValue {
	switch val := v.(type) {
	case string:
		return &types.ScriptValue{Lines: []string{val}}
	case []interface{}:
		lines := make([]string, 0, len(val))
		for _, it := range val {
			if s, ok := asString(it); ok {
				lines = append(lines, s)
			}
		}
		return &types.ScriptValue{Lines: lines}
	case rawDoc:
		if path, ok := asString(val["file"]); ok {
			return &types.ScriptValue{File: &types.ScriptFileRef{Path: path}}
		}
		if _, ok := val["pre"]; ok {
			return &types.ScriptValue{PreMainPost: &types.ScriptSections{
				Pre:  getStringSlice(val, "pre"),
				Main: getStringSlice(val, "main"),
				Post: getStringSlice(val, "post"),
			}}
		}
	}
	return nil
}

func decodeDeprecation(v interface{}) *types.DeprecationInfo {
	switch val := v.(type) {
	case bool:
		return &types.DeprecationInfo{Bool: &val}
	case string:
		return &types.DeprecationInfo{Message: &val}
	}
	return nil
}

func decodeToolchain(v interface{}) *types.ToolchainSpecifier {
	switch val := v.(type) {
	case string:
		return &types.ToolchainSpecifier{Channel: val}
	case rawDoc:
		return &types.ToolchainSpecifier{
			Channel:    getString(val, "channel"),
			MinVersion: getString(val, "min_version"),
		}
	}
	return nil
}

func decodeWatch(v interface{}) *types.TaskWatchOptions {
	switch val := v.(type) {
	case bool:
		return &types.TaskWatchOptions{Enabled: val}
	case rawDoc:
		return &types.TaskWatchOptions{
			Enabled:    true,
			Version:    getString(val, "version"),
			PostponeOn: getStringSlice(val, "postpone_on"),
			Ignore:     getStringSlice(val, "ignore"),
		}
	}
	return nil
}

// decodeRunTask decodes the RunTask variants: a bare name, a
// {name, fork, parallel, cleanup_task} details object (name itself may be a
// single string or a list), or an ordered routing list.
func decodeRunTask(v interface{}) *types.RunTask {
	switch val := v.(type) {
	case string:
		return &types.RunTask{Kind: types.RunTaskSingle, Name: val}
	case []interface{}:
		routes := make([]types.RunTaskRoute, 0, len(val))
		for _, item := range val {
			m := asMap(item)
			if m == nil {
				continue
			}
			routes = append(routes, types.RunTaskRoute{
				Name:            getString(m, "name"),
				Fork:            getBool(m, "fork"),
				Parallel:        getBool(m, "parallel"),
				CleanupTask:     getString(m, "cleanup_task"),
				Condition:       decodeCondition(getMap(m, "condition")),
				ConditionScript: decodeConditionScript(m["condition_script"]),
			})
		}
		return &types.RunTask{Kind: types.RunTaskRouting, Routing: routes}
	case rawDoc:
		names := getStringSlice(val, "name")
		if names == nil {
			if s, ok := asString(val["name"]); ok {
				names = []string{s}
			}
		}
		return &types.RunTask{Kind: types.RunTaskDetailsKind, Details: &types.RunTaskDetails{
			Names:       names,
			Fork:        getBool(val, "fork"),
			Parallel:    getBool(val, "parallel"),
			CleanupTask: getString(val, "cleanup_task"),
		}}
	}
	return nil
}

func getBool(m rawDoc, key string) bool {
	b, _ := asBool(m[key])
	return b
}

// decodeTask decodes one task table. envOrders/path recover the declared
// key order of the task's own env table (path + ".env"), including the
// nested platform-override tables; both may be zero values when no source
// text is available, in which case env keys fall back to table order.
func decodeTask(m rawDoc, envOrders map[string][]string, path string) (*types.Task, error) {
	t := &types.Task{
		Clear:       getBoolPtr(m, "clear"),
		Private:     getBoolPtr(m, "private"),
		Disabled:    getBoolPtr(m, "disabled"),
		Description: getStringPtr(m, "description"),
		Category:    getStringPtr(m, "category"),
		Workspace:   getBoolPtr(m, "workspace"),
		Plugin:      getStringPtr(m, "plugin"),
		Extend:      getStringPtr(m, "extend"),

		Alias:        getStringPtr(m, "alias"),
		LinuxAlias:   getStringPtr(m, "linux_alias"),
		WindowsAlias: getStringPtr(m, "windows_alias"),
		MacAlias:     getStringPtr(m, "mac_alias"),

		EnvFiles: decodeEnvFiles(asSlice(m["env_files"])),

		ConditionScript: decodeConditionScript(m["condition_script"]),

		Command: getStringPtr(m, "command"),
		Args:    getStringSlice(m, "args"),

		ScriptRunner:              getStringPtr(m, "script_runner"),
		ScriptRunnerArgs:          getStringSlice(m, "script_runner_args"),
		ConditionScriptRunnerArgs: getStringSlice(m, "condition_script_runner_args"),
		ScriptExtension:           getStringPtr(m, "script_extension"),

		InstallCrateArgs: getStringSlice(m, "install_crate_args"),
		InstallScript:    getStringSlice(m, "install_script"),

		IgnoreErrors: getBoolPtr(m, "ignore_errors"),
		Force:        getBoolPtr(m, "force"),
		Cwd:          getStringPtr(m, "cwd"),

		Dependencies: getStringSlice(m, "dependencies"),

		Cache:        getBoolPtr(m, "cache"),
		CacheOutputs: getStringSlice(m, "cache_outputs"),
	}

	if v, ok := m["env"]; ok {
		t.Env = decodeEnvTable(asMap(v), envOrders[path+".env"], nil, nil)
	}
	if v, ok := m["deprecated"]; ok {
		t.Deprecated = decodeDeprecation(v)
	}
	if v, ok := m["condition"]; ok {
		t.Condition = decodeCondition(asMap(v))
	}
	if v, ok := m["script"]; ok {
		t.Script = decodeScriptValue(v)
	}
	if v, ok := m["run_task"]; ok {
		t.RunTask = decodeRunTask(v)
	}
	if v, ok := m["install_crate"]; ok {
		t.InstallCrate = decodeInstallCrate(v)
	}
	if v, ok := m["toolchain"]; ok {
		t.Toolchain = decodeToolchain(v)
	}
	if v, ok := m["watch"]; ok {
		t.Watch = decodeWatch(v)
	}
	if v, ok := m["linux"]; ok {
		sub, err := decodeTask(asMap(v), envOrders, path+".linux")
		if err != nil {
			return nil, err
		}
		t.Linux = sub
	}
	if v, ok := m["windows"]; ok {
		sub, err := decodeTask(asMap(v), envOrders, path+".windows")
		if err != nil {
			return nil, err
		}
		t.Windows = sub
	}
	if v, ok := m["mac"]; ok {
		sub, err := decodeTask(asMap(v), envOrders, path+".mac")
		if err != nil {
			return nil, err
		}
		t.Mac = sub
	}

	return t, nil
}
