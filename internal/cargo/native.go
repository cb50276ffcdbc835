package cargo

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dosanma1/clapforge/internal/plugin"
)

const nativeFlag = "-L native="

// NativeSearchDirs extracts the "-L native=" directories passed to rustc
// for target from cargo's verbose output.
func NativeSearchDirs(output []byte, target string) []string {
	marker := "--crate-name " + CrateIdent(target)
	seen := map[string]bool{}
	var dirs []string

	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	inTarget := false
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, marker+" ") || strings.HasSuffix(line, marker) {
			inTarget = true
		}
		if !inTarget || !strings.Contains(line, nativeFlag) {
			continue
		}
		for _, part := range strings.Split(line, nativeFlag)[1:] {
			end := strings.IndexFunc(part, func(r rune) bool {
				return r == ' ' || r == '\t' || r == '`'
			})
			if end >= 0 {
				part = part[:end]
			}
			dir := strings.Trim(part, `"'`)
			if dir != "" && !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// NativeLibraries lists the library files inside dirs that the native
// link step must add. Missing directories are skipped.
func NativeLibraries(dirs []string, platform plugin.Platform) []string {
	var libs []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !isLinkable(e.Name(), platform) {
				continue
			}
			libs = append(libs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(libs)
	return libs
}

func isLinkable(name string, platform plugin.Platform) bool {
	ext := filepath.Ext(name)
	if platform.IsWindows() {
		return ext == ".lib" || ext == ".dll"
	}
	return ext == ".a" || ext == ".so" || strings.Contains(name, ".dylib")
}
