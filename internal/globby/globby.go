package globby

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cargorun/cargorun/internal/fs"
	"github.com/gobwas/glob"
)

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Match reports every file under root matching any of patterns. Patterns
// are matched against slash-separated root-relative paths.
func Match(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	var matches []string
	err = fs.Walk(root, func(path string, isDir bool) error {
		if isDir {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for _, g := range compiled {
			if g.Match(rel) {
				matches = append(matches, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// MatchDirs reports every directory under root matching any of patterns,
// the directory-walking counterpart to Match used by workspace member
// discovery, which globs against directories rather than files. Dot
// directories are pruned.
func MatchDirs(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}

	var matches []string
	err = fs.Walk(root, func(path string, isDir bool) error {
		if !isDir || path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(filepath.Base(rel), ".") {
			return filepath.SkipDir
		}
		for _, g := range compiled {
			if g.Match(rel) {
				matches = append(matches, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// AnyExist reports whether any absolute or root-relative path in paths
// exists, used by the files_exist/files_not_exist condition criteria
// which operate on literal ${VAR}-expanded paths, not globs.
func AnyExist(root string, paths []string) (bool, error) {
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(p) {
			full = filepath.Join(root, p)
		}
		if _, err := os.Stat(full); err == nil {
			return true, nil
		} else if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

// AllExist reports whether every path in paths exists.
func AllExist(root string, paths []string) (bool, error) {
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(p) {
			full = filepath.Join(root, p)
		}
		if _, err := os.Stat(full); err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
	}
	return true, nil
}

// NewestModTime returns the most recent modification time among every file
// matching any of patterns under root, and whether any file matched at all
// — used by the files_modified condition, where "no
// matches" has a distinct, caller-handled meaning from "matched but equal".
func NewestModTime(root string, patterns []string) (newest int64, found bool, err error) {
	matches, err := Match(root, patterns)
	if err != nil {
		return 0, false, err
	}
	for _, m := range matches {
		info, statErr := os.Stat(m)
		if statErr != nil {
			continue
		}
		mtime := info.ModTime().Unix()
		if !found || mtime > newest {
			newest = mtime
			found = true
		}
	}
	return newest, found, nil
}

// HasExtension reports whether name ends in one of the given extensions
// (each with or without a leading dot), used by the script engine's
// extension-based backend selection.
func HasExtension(name string, extensions ...string) bool {
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
