package fs

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func Test_WalkMissingRoot(t *testing.T) {
	err := Walk(filepath.Join(t.TempDir(), "nope"), func(name string, isDir bool) error {
		t.Fatalf("callback fired for missing root: %s", name)
		return nil
	})
	assert.ErrorContains(t, err, "no such file")
}

func Test_WalkVisitsFilesAndDirs(t *testing.T) {
	root := t.TempDir()
	assert.NilError(t, EnsureDir(filepath.Join(root, "sub")))
	assert.NilError(t, os.WriteFile(filepath.Join(root, "sub", "file.txt"), []byte("x"), 0o644))

	var files, dirs int
	err := Walk(root, func(name string, isDir bool) error {
		if isDir {
			dirs++
		} else {
			files++
		}
		return nil
	})
	assert.NilError(t, err)
	assert.Equal(t, files, 1)
	assert.Equal(t, dirs, 2)
}

func Test_WalkSkipDirPrunesSubtree(t *testing.T) {
	root := t.TempDir()
	assert.NilError(t, EnsureDir(filepath.Join(root, "skipped")))
	assert.NilError(t, os.WriteFile(filepath.Join(root, "skipped", "hidden.txt"), []byte("x"), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(root, "seen.txt"), []byte("x"), 0o644))

	var seen []string
	err := Walk(root, func(name string, isDir bool) error {
		if isDir && filepath.Base(name) == "skipped" {
			return filepath.SkipDir
		}
		if !isDir {
			seen = append(seen, filepath.Base(name))
		}
		return nil
	})
	assert.NilError(t, err)
	assert.DeepEqual(t, seen, []string{"seen.txt"})
}
