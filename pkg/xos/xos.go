//go:build !windows
// +build !windows

// Package xos provides atomic file operations used to publish build outputs.
// Every write goes through a temp file and a rename so readers never observe
// a partially written bundle, manifest or cache stamp.
package xos

import (
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// WriteFile writes data to the named file atomically using rename.
// If the file does not exist, WriteFile creates it with permissions perm;
// otherwise the previous contents are replaced in one step.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(filename, data, perm)
}

// WriteReader writes data from a reader to the named file atomically.
func WriteReader(filename string, r io.Reader, perm os.FileMode) error {
	t, err := renameio.TempFile("", filename)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if _, err := io.Copy(t, r); err != nil {
		return err
	}

	if err := t.Chmod(perm); err != nil {
		return err
	}

	return t.CloseAtomicallyReplace()
}

// Symlink creates a symbolic link atomically.
func Symlink(oldname, newname string) error {
	return renameio.Symlink(oldname, newname)
}
