package util

import mapset "github.com/deckarep/golang-set"

// Set is the visited-set type used by the planner's dependency walk.
type Set = mapset.Set

// NewSet returns an empty Set.
func NewSet() Set {
	return mapset.NewSet()
}
