//go:build windows
// +build windows

// Package xos provides atomic file operations used to publish build outputs.
// On Windows, we use a temp file in the target directory followed by a
// rename since renameio does not support the platform.
package xos

import (
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes data to the named file.
// On Windows, this uses a temp file + rename approach within the same directory.
func WriteFile(filename string, data []byte, perm os.FileMode) error {
	return writeTemp(filename, perm, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// WriteReader writes data from a reader to the named file.
func WriteReader(filename string, r io.Reader, perm os.FileMode) error {
	return writeTemp(filename, perm, func(f *os.File) error {
		_, err := io.Copy(f, r)
		return err
	})
}

// Symlink creates a symbolic link, replacing newname if it exists.
func Symlink(oldname, newname string) error {
	if _, err := os.Lstat(newname); err == nil {
		if err := os.Remove(newname); err != nil {
			return err
		}
	}
	return os.Symlink(oldname, newname)
}

func writeTemp(filename string, perm os.FileMode, fill func(*os.File) error) error {
	dir := filepath.Dir(filename)
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tempName)
		}
	}()

	if err := fill(tempFile); err != nil {
		tempFile.Close()
		return err
	}

	// Sync to ensure data is on disk
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return err
	}

	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tempName, perm); err != nil {
		return err
	}

	// On Windows, we need to remove the target first if it exists
	if _, err := os.Stat(filename); err == nil {
		if err := os.Remove(filename); err != nil {
			return err
		}
	}

	if err := os.Rename(tempName, filename); err != nil {
		return err
	}

	success = true
	return nil
}
