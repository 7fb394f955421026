// Package workspace discovers the member directories of a multi-project
// descriptor tree.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cargorun/cargorun/internal/globby"
	"github.com/cargorun/cargorun/internal/types"
	ignore "github.com/sabhiram/go-gitignore"
)

// DescriptorFileName is the file a directory must contain to be recognized
// as a workspace member.
const DescriptorFileName = "cargorun.toml"

// Discover resolves the workspace members of cfg rooted at root:
// directories matched by config.workspace.members, minus the
// gitignore-syntax config.workspace.exclude entries, kept only when they
// hold a descriptor of their own. Returns absolute member directory paths,
// sorted for determinism.
func Discover(root string, cfg *types.Config) ([]string, error) {
	if cfg == nil || cfg.Config.Workspace == nil || len(cfg.Config.Workspace.Members) == 0 {
		if os.Getenv("CARGO_MAKE_WORKSPACE_EMULATION") == "TRUE" {
			return discoverEmulated(root)
		}
		return nil, nil
	}
	ws := cfg.Config.Workspace

	candidates, err := globby.MatchDirs(root, ws.Members)
	if err != nil {
		return nil, err
	}

	var excluder *ignore.GitIgnore
	if len(ws.Exclude) > 0 {
		excluder = ignore.CompileIgnoreLines(ws.Exclude...)
	}

	members := make([]string, 0, len(candidates))
	for _, dir := range candidates {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			rel = dir
		}
		if excluder != nil && excluder.MatchesPath(filepath.ToSlash(rel)) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, DescriptorFileName)); err != nil {
			continue
		}
		members = append(members, dir)
	}

	sort.Strings(members)
	return members, nil
}

// discoverEmulated treats every immediate subdirectory holding a
// descriptor as a member, the CARGO_MAKE_WORKSPACE_EMULATION=TRUE mode for
// projects that want fan-out without declaring workspace member globs.
func discoverEmulated(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var members []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, DescriptorFileName)); err != nil {
			continue
		}
		members = append(members, dir)
	}
	sort.Strings(members)
	return members, nil
}
