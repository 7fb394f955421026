package toolchain

import (
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/cargorun/cargorun/internal/types"
)

// CompileConstraint builds a semver constraint from text. Descriptor
// input is user-supplied, so a bad constraint is an error, not a panic.
func CompileConstraint(text string) (*semver.Constraints, error) {
	c, err := semver.NewConstraint(text)
	if err != nil {
		return nil, fmt.Errorf("invalid semver constraint %q: %w", text, err)
	}
	return c, nil
}

// SatisfiesMinVersion reports whether current >= min, used for the
// descriptor loader's top-level min_version check.
func SatisfiesMinVersion(current, min string) (bool, error) {
	if min == "" {
		return true, nil
	}
	c, err := CompileConstraint(">= " + min)
	if err != nil {
		return false, err
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", current, err)
	}
	return c.Check(v), nil
}

// SatisfiesRustVersion evaluates a Condition.RustVersion's min/max/equal
// semver bounds against the current toolchain version.
func SatisfiesRustVersion(current string, bound *types.RustVersionCondition) (bool, error) {
	if bound == nil {
		return true, nil
	}
	v, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid toolchain version %q: %w", current, err)
	}
	if bound.Equal != "" {
		eq, err := semver.NewVersion(bound.Equal)
		if err != nil {
			return false, fmt.Errorf("invalid rust_version.equal %q: %w", bound.Equal, err)
		}
		return v.Equal(eq), nil
	}
	if bound.Min != "" {
		ok, err := checkBound(v, ">= "+bound.Min)
		if err != nil || !ok {
			return ok, err
		}
	}
	if bound.Max != "" {
		ok, err := checkBound(v, "<= "+bound.Max)
		if err != nil || !ok {
			return ok, err
		}
	}
	return true, nil
}

func checkBound(v *semver.Version, constraint string) (bool, error) {
	c, err := CompileConstraint(constraint)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}
