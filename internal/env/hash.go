package env

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// VariableMap is a snapshot of resolved environment variables for one step,
// used as a cache-key input by the output cache.
type VariableMap map[string]string

// Merge overlays another map onto the receiver, later values winning.
func (vm VariableMap) Merge(other VariableMap) {
	for k, v := range other {
		vm[k] = v
	}
}

// Pairs is a deterministically sorted list of "KEY=VALUE" strings.
type Pairs []string

func (vm VariableMap) mapToPairs(transform func(k, v string) string) Pairs {
	pairs := make([]string, 0, len(vm))
	for k, v := range vm {
		pairs = append(pairs, transform(k, v))
	}
	sort.Strings(pairs)
	return pairs
}

// ToHashable returns the sorted KEY=VALUE pairs with plaintext values.
func (vm VariableMap) ToHashable() Pairs {
	return vm.mapToPairs(func(k, v string) string {
		return fmt.Sprintf("%s=%s", k, v)
	})
}

// ToSecretHashable returns the sorted pairs with each value replaced by its
// sha256 digest, so cache keys and diagnostic output never carry raw values
// that may hold credentials.
func (vm VariableMap) ToSecretHashable() Pairs {
	return vm.mapToPairs(func(k, v string) string {
		if v == "" {
			return fmt.Sprintf("%s=", k)
		}
		return fmt.Sprintf("%s=%x", k, sha256.Sum256([]byte(v)))
	})
}

// Names returns the sorted variable names.
func (vm VariableMap) Names() []string {
	names := make([]string, 0, len(vm))
	for k := range vm {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
