package env

import "github.com/cargorun/cargorun/internal/types"

// flatten resolves Profile-kind entries against activeProfile: a Profile
// entry's nested table is spliced in (its own keys override any collision)
// when its key equals activeProfile; otherwise the entry is dropped
// entirely.
func flatten(merged *types.OrderedEnv, activeProfile string) *types.OrderedEnv {
	out := types.NewOrderedEnv()
	for _, k := range merged.Keys() {
		v, _ := merged.Get(k)
		if v.Kind == types.EnvValueProfile {
			if k != activeProfile || v.Profile == nil {
				continue
			}
			nested := flatten(v.Profile, activeProfile)
			for _, nk := range nested.Keys() {
				nv, _ := nested.Get(nk)
				out.Set(nk, nv)
			}
			continue
		}
		out.Set(k, v)
	}
	return out
}

// Overlay applies merged onto store in dependency order: Profile entries
// are flattened against activeProfile first, then every
// remaining key is resolved per variant and topologically
// ordered so that a key referencing ${OTHER} is applied after OTHER. Keys
// resolving to types.EnvValueUnset are removed from store instead of set.
// The dedicated ${@} marker inside a value expands to taskArgs joined on
// the platform list separator.
func Overlay(store Store, merged *types.OrderedEnv, activeProfile string, run ScriptRunner, taskArgs []string) error {
	flat := flatten(merged, activeProfile)

	resolved := map[string]string{}
	present := map[string]bool{}
	unset := map[string]bool{}

	order, err := topoOrderFor(flat)
	if err != nil {
		return err
	}

	lookup := ArgsLookup(func(name string) (string, bool) {
		if v, ok := resolved[name]; ok {
			return v, true
		}
		return store.Get(name)
	}, taskArgs)

	for _, k := range order {
		v, _ := flat.Get(k)
		value, ok, err := Resolve(k, v, lookup, run)
		if err != nil {
			return err
		}
		if !ok {
			unset[k] = true
			continue
		}
		resolved[k] = value
		present[k] = true
	}

	for _, k := range order {
		if unset[k] {
			if err := store.Unset(k); err != nil {
				return err
			}
			continue
		}
		if present[k] {
			if err := store.Set(k, resolved[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

func topoOrderFor(flat *types.OrderedEnv) ([]string, error) {
	texts := map[string]string{}
	for _, k := range flat.Keys() {
		v, _ := flat.Get(k)
		texts[k] = scannableText(v)
	}
	return TopoSortKeys(flat.Keys(), texts)
}
