package env

import (
	"fmt"
	"regexp"
	"strings"
)

var varRefPattern = regexp.MustCompile(`\$\{(@|[A-Za-z_][A-Za-z0-9_]*)\}`)

// referencedKeys returns the set of ${IDENT} names referenced by value that
// are also present in scope, used to build the dependency graph edges.
func referencedKeys(value string, scope map[string]bool) []string {
	matches := varRefPattern.FindAllStringSubmatch(value, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		name := m[1]
		if name == "@" {
			continue
		}
		if !scope[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// CycleError reports a strongly-connected component found while
// topologically sorting an env dependency graph.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic env variable reference: %s", strings.Join(append(e.Cycle, e.Cycle[0]), " -> "))
}

// TopoSortKeys orders declaredOrder so that every key referenced by another
// key's value (scanned for ${IDENT} occurrences in values) comes first.
// Ties among independent keys are broken by declaredOrder. On a cycle,
// returns a *CycleError enumerating one strongly-connected component.
func TopoSortKeys(declaredOrder []string, values map[string]string) ([]string, error) {
	scope := make(map[string]bool, len(values))
	for k := range values {
		scope[k] = true
	}
	deps := make(map[string][]string, len(values))
	for k, v := range values {
		deps[k] = referencedKeys(v, scope)
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(values))
	var order []string
	var path []string

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == key {
					start = i
					break
				}
			}
			return &CycleError{Cycle: append([]string{}, path[start:]...)}
		}
		state[key] = visiting
		path = append(path, key)
		for _, dep := range deps[key] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[key] = done
		order = append(order, key)
		return nil
	}

	for _, k := range declaredOrder {
		if _, ok := values[k]; !ok {
			continue
		}
		if err := visit(k); err != nil {
			return nil, err
		}
	}
	return order, nil
}
