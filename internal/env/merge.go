package env

import (
	"strings"

	"github.com/cargorun/cargorun/internal/types"
)

const currentTaskPrefix = "CARGO_MAKE_CURRENT_TASK_"

// scannableText extracts the substrings of an EnvValue that may contain
// ${IDENT} references, for dependency-graph construction.
// Kinds with no textual content (Bool, Int, Unset) contribute
// nothing; Profile is handled by recursive merge instead, not scanned here.
func scannableText(v types.EnvValue) string {
	switch v.Kind {
	case types.EnvValueLiteral:
		return v.Literal
	case types.EnvValueList:
		return strings.Join(v.List, " ")
	case types.EnvValueScriptKind:
		if v.Script != nil {
			return strings.Join(v.Script.Lines, " ")
		}
	case types.EnvValueDecodeKind:
		if v.Decode != nil {
			parts := []string{v.Decode.Source, v.Decode.DefaultValue}
			for _, m := range v.Decode.Mapping {
				parts = append(parts, m)
			}
			return strings.Join(parts, " ")
		}
	case types.EnvValueConditionalKind:
		if v.Conditional != nil {
			return v.Conditional.Value
		}
	}
	return ""
}

type envEntry struct {
	key   string
	value types.EnvValue
}

// mergeUnique builds the stable "keep latest declared value per key"
// list: walk the combined declaration sequence in reverse,
// keep the first (=last-declared) occurrence of each key, then reverse the
// kept set back into forward order so non-conflicting keys retain their
// original relative position.
func mergeUnique(base, ext *types.OrderedEnv) []envEntry {
	var seq []envEntry
	if base != nil {
		for _, k := range base.Keys() {
			v, _ := base.Get(k)
			seq = append(seq, envEntry{k, v})
		}
	}
	if ext != nil {
		for _, k := range ext.Keys() {
			v, _ := ext.Get(k)
			seq = append(seq, envEntry{k, v})
		}
	}

	seen := map[string]bool{}
	var keptReversed []envEntry
	for i := len(seq) - 1; i >= 0; i-- {
		e := seq[i]
		if seen[e.key] {
			continue
		}
		seen[e.key] = true
		keptReversed = append(keptReversed, e)
	}

	result := make([]envEntry, len(keptReversed))
	for i, e := range keptReversed {
		result[len(keptReversed)-1-i] = e
	}
	return result
}

// Merge combines base and ext: latest-declared value wins
// per key with stable ordering, Profile values on both sides merge
// recursively by the same algorithm, and any key prefixed
// CARGO_MAKE_CURRENT_TASK_ always retains base's value regardless of ext
// (these are per-task runtime markers the user may not overwrite). Returns
// a *CycleError if the resulting map's ${VAR} references form a cycle.
func Merge(base, ext *types.OrderedEnv) (*types.OrderedEnv, error) {
	merged := mergeUnique(base, ext)

	result := types.NewOrderedEnv()
	for _, e := range merged {
		value := e.value
		if strings.HasPrefix(e.key, currentTaskPrefix) {
			if base != nil {
				if baseValue, ok := base.Get(e.key); ok {
					value = baseValue
				}
			}
		} else if value.Kind == types.EnvValueProfile {
			if baseValue, ok := base.Get(e.key); ok && baseValue.Kind == types.EnvValueProfile {
				mergedProfile, err := Merge(baseValue.Profile, value.Profile)
				if err != nil {
					return nil, err
				}
				value = types.EnvValue{Kind: types.EnvValueProfile, Profile: mergedProfile}
			}
		}
		result.Set(e.key, value)
	}

	texts := make(map[string]string, result.Len())
	for _, k := range result.Keys() {
		v, _ := result.Get(k)
		texts[k] = scannableText(v)
	}
	if _, err := TopoSortKeys(result.Keys(), texts); err != nil {
		return nil, err
	}

	return result, nil
}
