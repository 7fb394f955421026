// Adapted from https://github.com/thought-machine/please
// Copyright Thought Machine, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0
package fs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
)

// DirPermissions is the mode for directories this package creates.
const DirPermissions = os.FileMode(0o755)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, DirPermissions)
}

// Walk implements an equivalent to filepath.Walk.
// It's implemented over github.com/karrick/godirwalk but the provided
// interface doesn't expose that to make it a little easier to handle.
// A callback returning filepath.SkipDir skips the entry's subtree.
func Walk(rootPath string, callback func(name string, isDir bool) error) error {
	return WalkMode(rootPath, func(name string, isDir bool, mode os.FileMode) error {
		return callback(name, isDir)
	})
}

// WalkMode is like Walk but the callback receives an additional type
// specifying the file mode type. N.B. This only includes the bits of the
// mode that determine the mode type, not the permissions.
func WalkMode(rootPath string, callback func(name string, isDir bool, mode os.FileMode) error) error {
	return godirwalk.Walk(rootPath, &godirwalk.Options{
		Callback: func(name string, info *godirwalk.Dirent) error {
			// Symlinked files are visited, symlinked directories are
			// reported but not followed.
			isDir, err := info.IsDirOrSymlinkToDir()
			if err != nil {
				pathErr := &os.PathError{}
				if errors.As(err, &pathErr) {
					// Broken link, skip this entry.
					return godirwalk.SkipThis
				}
				return err
			}
			if cbErr := callback(name, isDir, info.ModeType()); cbErr != nil {
				if cbErr == filepath.SkipDir {
					return godirwalk.SkipThis
				}
				return cbErr
			}
			return nil
		},
		ErrorCallback: func(pathname string, err error) godirwalk.ErrorAction {
			pathErr := &os.PathError{}
			if errors.As(err, &pathErr) {
				return godirwalk.SkipNode
			}
			return godirwalk.Halt
		},
		Unsorted:            false,
		AllowNonDirectory:   true,
		FollowSymbolicLinks: false,
	})
}
