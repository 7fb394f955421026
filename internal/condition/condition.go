package condition

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/cargorun/cargorun/internal/env"
	"github.com/cargorun/cargorun/internal/globby"
	"github.com/cargorun/cargorun/internal/toolchain"
	"github.com/cargorun/cargorun/internal/types"
)

// Context carries the ambient state a Condition is evaluated against.
type Context struct {
	Profile        string
	Platform       string // "linux", "windows", "mac"; an axis independent of OS
	OS             string // runtime.GOOS-derived, e.g. "CARGO_MAKE_RUST_TARGET_OS" axis
	Channel        string
	ToolchainVer   string
	Cwd            string
	Lookup         func(name string) (string, bool)
}

// DefaultContext fills Platform/OS from the running process when the
// caller has no override. Both default from the same runtime but stay
// independent axes; they are never collapsed into one check.
func DefaultContext() Context {
	return Context{
		Platform: normalizedPlatform(),
		OS:       runtime.GOOS,
		Lookup:   defaultLookup,
	}
}

func defaultLookup(name string) (string, bool) {
	return env.OSStore{}.Get(name)
}

func normalizedPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "mac"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// Result carries the pass/fail outcome plus an optional diagnostic message,
// so callers can surface Condition.FailMessage.
// CriteriaPassed/AnyCriteriaPopulated feed ShouldRunConditionScript so the
// runner can decide whether to also run an attached condition_script.
type Result struct {
	Pass                 bool
	FailMessage          string
	CriteriaPassed       bool
	AnyCriteriaPopulated bool
}

// Evaluate runs the full condition cascade: for a populated Condition, the
// criteria groups combine per c.GetConditionType(); files_modified is then
// checked unconditionally as a hard AND regardless of mode.
func Evaluate(c *types.Condition, ctx Context) (Result, error) {
	if c == nil {
		return Result{Pass: true, CriteriaPassed: true}, nil
	}

	groups := buildGroups(c, ctx)
	anyPopulated := false
	for _, g := range groups {
		if g.populated {
			anyPopulated = true
			break
		}
	}

	criteriaPassed, err := validateCriteriaGroups(c, groups, anyPopulated)
	if err != nil {
		return Result{}, err
	}

	pass := criteriaPassed
	if pass {
		filesModPass, err := validateFilesModified(c.FilesModified, ctx)
		if err != nil {
			return Result{}, err
		}
		if !filesModPass {
			pass = false
		}
	}

	if !pass {
		return Result{Pass: false, FailMessage: c.FailMessage, CriteriaPassed: criteriaPassed, AnyCriteriaPopulated: anyPopulated}, nil
	}
	return Result{Pass: true, CriteriaPassed: criteriaPassed, AnyCriteriaPopulated: anyPopulated}, nil
}

// group is one named criterion kind, populated iff len(members) > 0 (or, for
// single-valued criteria, iff the pointer is non-nil).
type group struct {
	populated bool
	allPass   func() (bool, error)
	anyPass   func() (bool, error)
}

func validateCriteriaGroups(c *types.Condition, groups []group, anyPopulated bool) (bool, error) {
	switch c.GetConditionType() {
	case types.ConditionOr:
		for _, g := range groups {
			if !g.populated {
				continue
			}
			ok, err := g.anyPass()
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return !anyPopulated, nil
	case types.ConditionGroupOr:
		for _, g := range groups {
			if !g.populated {
				continue
			}
			ok, err := g.allPass()
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return !anyPopulated, nil
	default: // And
		for _, g := range groups {
			if !g.populated {
				continue
			}
			ok, err := g.allPass()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func buildGroups(c *types.Condition, ctx Context) []group {
	return []group{
		memberGroup(c.Profiles, func(v string) bool { return v == ctx.Profile }),
		memberGroup(c.Platforms, func(v string) bool { return v == ctx.Platform }),
		memberGroup(c.Channels, func(v string) bool { return v == ctx.Channel }),
		memberGroup(c.OS, func(v string) bool { return v == ctx.OS }),
		memberGroup(c.EnvSet, func(name string) bool { _, ok := ctx.Lookup(name); return ok }),
		memberGroup(c.EnvNotSet, func(name string) bool { _, ok := ctx.Lookup(name); return !ok }),
		memberGroup(c.EnvTrue, func(name string) bool { return envBool(ctx, name, true) }),
		memberGroup(c.EnvFalse, func(name string) bool { return envBool(ctx, name, false) }),
		mapGroup(c.Env, func(name, expect string) bool {
			v, ok := ctx.Lookup(name)
			return ok && v == expect
		}),
		mapGroup(c.EnvContains, func(name, substr string) bool {
			v, ok := ctx.Lookup(name)
			return ok && strings.Contains(strings.ToLower(v), strings.ToLower(substr))
		}),
		{
			populated: c.RustVersion != nil,
			allPass: func() (bool, error) {
				return toolchain.SatisfiesRustVersion(ctx.ToolchainVer, c.RustVersion)
			},
			anyPass: func() (bool, error) {
				return toolchain.SatisfiesRustVersion(ctx.ToolchainVer, c.RustVersion)
			},
		},
		{
			populated: len(c.FilesExist) > 0,
			allPass:   func() (bool, error) { return globby.AllExist(ctx.Cwd, expandAll(c.FilesExist, ctx)) },
			anyPass:   func() (bool, error) { return globby.AnyExist(ctx.Cwd, expandAll(c.FilesExist, ctx)) },
		},
		{
			populated: len(c.FilesNotExist) > 0,
			allPass: func() (bool, error) {
				exist, err := globby.AnyExist(ctx.Cwd, expandAll(c.FilesNotExist, ctx))
				return !exist, err
			},
			anyPass: func() (bool, error) {
				exist, err := globby.AllExist(ctx.Cwd, expandAll(c.FilesNotExist, ctx))
				return !exist, err
			},
		},
	}
}

func expandAll(paths []string, ctx Context) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = env.Expand(p, ctx.Lookup)
	}
	return out
}

func envBool(ctx Context, name string, want bool) bool {
	v, ok := ctx.Lookup(name)
	if !ok {
		return false
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return parsed == want
}

func memberGroup(members []string, test func(string) bool) group {
	return group{
		populated: len(members) > 0,
		allPass: func() (bool, error) {
			for _, m := range members {
				if !test(m) {
					return false, nil
				}
			}
			return true, nil
		},
		anyPass: func() (bool, error) {
			for _, m := range members {
				if test(m) {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func mapGroup(members map[string]string, test func(k, v string) bool) group {
	return group{
		populated: len(members) > 0,
		allPass: func() (bool, error) {
			for k, v := range members {
				if !test(k, v) {
					return false, nil
				}
			}
			return true, nil
		},
		anyPass: func() (bool, error) {
			for k, v := range members {
				if test(k, v) {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

// validateFilesModified: passes if the newest matched input is newer than
// the newest matched output. An empty input list always passes, and an
// output list that matches nothing at all auto-passes too — a wholly-absent
// output set means there is nothing to be newer than.
func validateFilesModified(c *types.FilesModifiedCondition, ctx Context) (bool, error) {
	if c == nil {
		return true, nil
	}
	if len(c.Input) == 0 {
		return true, nil
	}
	if len(c.Output) == 0 {
		return true, nil
	}

	newestInput, inputFound, err := globby.NewestModTime(ctx.Cwd, expandAll(c.Input, ctx))
	if err != nil {
		return false, err
	}
	if !inputFound {
		return true, nil
	}

	newestOutput, outputFound, err := globby.NewestModTime(ctx.Cwd, expandAll(c.Output, ctx))
	if err != nil {
		return false, err
	}
	if !outputFound {
		return true, nil
	}

	return newestInput > newestOutput, nil
}

// ShouldRunConditionScript: the script runs when criteria passed under
// And, or when there were no criteria at all (regardless of mode) — but
// not when criteria failed under a non-And mode (that case is already an
// overall failure with nothing left to check).
func ShouldRunConditionScript(c *types.Condition, criteriaPassed, anyCriteriaPopulated bool) bool {
	if c == nil {
		return true
	}
	if c.GetConditionType() == types.ConditionAnd {
		return criteriaPassed
	}
	return !anyCriteriaPopulated
}
