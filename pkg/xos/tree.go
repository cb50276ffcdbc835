package xos

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyFile copies a file atomically, keeping the source permission bits.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteReader(dst, f, info.Mode().Perm())
}

// CopyTree copies src to dst. Files are copied atomically one by one,
// directories are created as needed and symlinks are recreated verbatim.
func CopyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return copyEntry(src, dst, info)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return copyEntry(path, target, info)
	})
}

// ReplaceTree makes dst an exact copy of src. A directory is staged next to
// dst and swapped in once complete, so a failed copy leaves the previous
// dst untouched.
func ReplaceTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if !info.IsDir() {
		if existing, err := os.Lstat(dst); err == nil && existing.IsDir() {
			if err := os.RemoveAll(dst); err != nil {
				return err
			}
		}
		return copyEntry(src, dst, info)
	}

	stage, err := os.MkdirTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	success := false
	defer func() {
		if !success {
			os.RemoveAll(stage)
		}
	}()

	if err := CopyTree(src, stage); err != nil {
		return err
	}
	if err := os.Chmod(stage, info.Mode().Perm()|0o700); err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("failed to remove previous %s: %w", dst, err)
	}
	if err := os.Rename(stage, dst); err != nil {
		return err
	}
	success = true
	return nil
}

func copyEntry(src, dst string, info fs.FileInfo) error {
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return Symlink(link, dst)
	case info.Mode().IsRegular():
		return CopyFile(src, dst)
	default:
		return fmt.Errorf("cannot copy %s: unsupported file type %s", src, info.Mode().Type())
	}
}
