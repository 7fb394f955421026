// Package outputcache is a content-addressed local cache for task output
// files: gzipped tar blobs keyed by a sha512 digest of everything that
// should invalidate them.
//
// Strictly additive: nothing in internal/core or internal/condition
// consults this package. Only internal/runner does, and only for a Step
// whose Task.Cache is true.
package outputcache

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/cargorun/cargorun/internal/fs"
	"github.com/cargorun/cargorun/internal/globby"
	"github.com/nightlyone/lockfile"
)

// Cache is a local filesystem output cache rooted at one directory.
type Cache struct {
	dir string
}

// Open returns a Cache rooted at dir, creating it if necessary.
func Open(dir string) (*Cache, error) {
	if err := fs.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// DefaultDir resolves the cache directory under the XDG cache home.
func DefaultDir(toolName string) (string, error) {
	dir := filepath.Join(xdg.CacheHome, toolName, "outputs")
	if err := fs.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Cache) blobPath(key Key) string { return filepath.Join(c.dir, string(key)+".tar.gz") }
func (c *Cache) logPath(key Key) string  { return filepath.Join(c.dir, string(key)+".log") }

// Fetch reports whether key has a cached blob, without extracting it.
func (c *Cache) Fetch(key Key) (bool, error) {
	_, err := os.Stat(c.blobPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ReplayLog returns the captured stdout/stderr text stored alongside key's
// blob, or "" if none was captured.
func (c *Cache) ReplayLog(key Key) (string, error) {
	b, err := os.ReadFile(c.logPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

// Restore extracts key's cached blob into destRoot.
func (c *Cache) Restore(key Key, destRoot string) error {
	f, err := os.Open(c.blobPath(key))
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(destRoot, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fs.EnsureDir(target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := fs.EnsureDir(filepath.Dir(target)); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		case tar.TypeSymlink:
			_ = os.Symlink(hdr.Linkname, target)
		}
	}
}

// Put captures the files under root matched by outputGlobs into a blob
// keyed by key, single-writer-locked with nightlyone/lockfile since a
// parallel run_task fan-out could otherwise race two writers on the same
// key.
func (c *Cache) Put(key Key, root string, outputGlobs []string, capturedLog string) error {
	lock, err := lockfile.New(filepath.Join(c.dir, ".outputcache.lock"))
	if err != nil {
		return err
	}
	if err := lock.TryLock(); err != nil {
		return fmt.Errorf("acquiring output cache lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	matches, err := globby.Match(root, outputGlobs)
	if err != nil {
		return err
	}

	f, err := os.Create(c.blobPath(key))
	if err != nil {
		return err
	}
	defer f.Close()

	gzw := gzip.NewWriter(f)
	tw := tar.NewWriter(gzw)

	for _, file := range matches {
		if err := addFile(tw, root, file); err != nil {
			_ = tw.Close()
			_ = gzw.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gzw.Close(); err != nil {
		return err
	}

	if capturedLog != "" {
		if err := os.WriteFile(c.logPath(key), []byte(capturedLog), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// addFile writes one matched file into the tar stream, the same header
// normalization (zeroed uid/gid/mtime, explicit symlink target) as
// cacheitem/create.go's addFile.
func addFile(tw *tar.Writer, root, file string) error {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return err
	}
	info, err := os.Lstat(file)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		link, err = os.Readlink(file)
		if err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Uid, hdr.Gid = 0, 0
	hdr.ModTime = time.Unix(0, 0)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if info.Mode().IsRegular() {
		sf, err := os.Open(file)
		if err != nil {
			return err
		}
		defer sf.Close()
		if _, err := io.Copy(tw, sf); err != nil {
			return err
		}
	}
	return nil
}
