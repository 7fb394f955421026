package core

import (
	"fmt"
	"path/filepath"
)

// fanOutScriptLines builds the POSIX-shell body of the synthetic workspace
// Step: a filter function honoring the CARGO_MAKE_WORKSPACE_INCLUDE_MEMBERS
// and CARGO_MAKE_WORKSPACE_SKIP_MEMBERS env filters, followed by one
// re-invocation of exe per included member directory, each scoped with
// --cwd and --no-workspace so a member flow never recurses into its own
// workspace fan-out. The active profile is forwarded unless
// CARGO_MAKE_USE_WORKSPACE_PROFILE is FALSE, and
// CARGO_MAKE_EXTEND_WORKSPACE_MAKEFILE=TRUE publishes the workspace
// descriptor path so each member's loader layers it underneath its own.
func fanOutScriptLines(exe, taskName, root string, members []string) []string {
	lines := []string{
		"set -e",
		`workspace_member_included() {`,
		`  member="$1"`,
		`  if [ -n "$CARGO_MAKE_WORKSPACE_INCLUDE_MEMBERS" ]; then`,
		`    case " $CARGO_MAKE_WORKSPACE_INCLUDE_MEMBERS " in`,
		`      *" $member "*) ;;`,
		`      *) return 1 ;;`,
		`    esac`,
		`  fi`,
		`  if [ -n "$CARGO_MAKE_WORKSPACE_SKIP_MEMBERS" ]; then`,
		`    case " $CARGO_MAKE_WORKSPACE_SKIP_MEMBERS " in`,
		`      *" $member "*) return 1 ;;`,
		`    esac`,
		`  fi`,
		`  return 0`,
		`}`,
		`profile_args=""`,
		`if [ "$CARGO_MAKE_USE_WORKSPACE_PROFILE" != "FALSE" ] && [ -n "$CARGO_MAKE_PROFILE" ]; then`,
		`  profile_args="--profile $CARGO_MAKE_PROFILE"`,
		`fi`,
		`if [ "$CARGO_MAKE_EXTEND_WORKSPACE_MAKEFILE" = "TRUE" ]; then`,
		fmt.Sprintf(`  export CARGO_MAKE_WORKSPACE_MAKEFILE=%q`, filepath.Join(root, "cargorun.toml")),
		`fi`,
	}

	for _, m := range members {
		rel, err := filepath.Rel(root, m)
		if err != nil {
			rel = m
		}
		rel = filepath.ToSlash(rel)
		lines = append(lines,
			fmt.Sprintf("if workspace_member_included %q; then", rel),
			fmt.Sprintf("  %q --cwd %q --no-workspace $profile_args %q \"$@\"", exe, rel, taskName),
			"fi",
		)
	}
	return lines
}
