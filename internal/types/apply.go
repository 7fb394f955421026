package types

import "strings"

func namespacePrefix(namespace string) string {
	if namespace == "" {
		return ""
	}
	return namespace + "::"
}

// qualify prefixes name with namespace:: unless it is already qualified with
// that same prefix, so repeated Apply calls with the same ModifyConfig are
// idempotent: apply(apply(T, M), M) == apply(T, M).
func qualify(namespace, name string) string {
	if namespace == "" || name == "" {
		return name
	}
	prefix := namespacePrefix(namespace)
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

func qualifySlice(namespace string, names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = qualify(namespace, n)
	}
	return out
}

// Apply forces private=true when requested and rewrites every task-name
// reference (alias, platform aliases, run_task names in all forms,
// dependencies) by prefixing namespace::.
func Apply(t *Task, cfg ModifyConfig) *Task {
	if t == nil {
		return nil
	}
	result := cloneTask(t)

	if cfg.Private {
		private := true
		result.Private = &private
	}

	if result.Alias != nil {
		q := qualify(cfg.Namespace, *result.Alias)
		result.Alias = &q
	}
	if result.LinuxAlias != nil {
		q := qualify(cfg.Namespace, *result.LinuxAlias)
		result.LinuxAlias = &q
	}
	if result.WindowsAlias != nil {
		q := qualify(cfg.Namespace, *result.WindowsAlias)
		result.WindowsAlias = &q
	}
	if result.MacAlias != nil {
		q := qualify(cfg.Namespace, *result.MacAlias)
		result.MacAlias = &q
	}
	result.Dependencies = qualifySlice(cfg.Namespace, result.Dependencies)
	result.RunTask = applyRunTask(result.RunTask, cfg.Namespace)

	if result.Linux != nil {
		result.Linux = Apply(result.Linux, cfg)
	}
	if result.Windows != nil {
		result.Windows = Apply(result.Windows, cfg)
	}
	if result.Mac != nil {
		result.Mac = Apply(result.Mac, cfg)
	}

	return result
}

func applyRunTask(rt *RunTask, namespace string) *RunTask {
	if rt == nil {
		return nil
	}
	out := *rt
	switch out.Kind {
	case RunTaskSingle:
		out.Name = qualify(namespace, out.Name)
	case RunTaskDetailsKind:
		if out.Details != nil {
			details := *out.Details
			details.Names = qualifySlice(namespace, details.Names)
			if details.CleanupTask != "" {
				details.CleanupTask = qualify(namespace, details.CleanupTask)
			}
			out.Details = &details
		}
	case RunTaskRouting:
		routes := make([]RunTaskRoute, len(out.Routing))
		for i, r := range out.Routing {
			r.Name = qualify(namespace, r.Name)
			if r.CleanupTask != "" {
				r.CleanupTask = qualify(namespace, r.CleanupTask)
			}
			routes[i] = r
		}
		out.Routing = routes
	}
	return &out
}

// ApplyConfigSection rewrites the config-section's hook task names
// identically to Apply.
func ApplyConfigSection(cs ConfigSection, cfg ModifyConfig) ConfigSection {
	out := cs
	if out.InitTask != nil {
		q := qualify(cfg.Namespace, *out.InitTask)
		out.InitTask = &q
	}
	if out.EndTask != nil {
		q := qualify(cfg.Namespace, *out.EndTask)
		out.EndTask = &q
	}
	if out.OnErrorTask != nil {
		q := qualify(cfg.Namespace, *out.OnErrorTask)
		out.OnErrorTask = &q
	}
	if out.LegacyMigrationTask != nil {
		q := qualify(cfg.Namespace, *out.LegacyMigrationTask)
		out.LegacyMigrationTask = &q
	}
	return out
}
