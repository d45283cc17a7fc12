package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CanonicalPath returns the absolute, symlink-resolved path with the case the
// filesystem actually uses. Hooks, shells and tmux report the same directory
// with different spellings on macOS; routing compares canonical paths only.
// A path that does not exist is returned cleaned and absolute.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if !caseInsensitiveFS() {
		return abs, nil
	}
	return fixCase(abs), nil
}

func caseInsensitiveFS() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows"
}

// fixCase walks abs from the root and replaces each component with the
// spelling found in its parent directory. EvalSymlinks keeps the caller's
// case on macOS.
func fixCase(abs string) string {
	vol := filepath.VolumeName(abs)
	result := vol + string(filepath.Separator)
	for _, part := range strings.Split(strings.TrimPrefix(abs, vol), string(filepath.Separator)) {
		if part == "" {
			continue
		}
		result = filepath.Join(result, matchEntry(result, part))
	}
	return result
}

func matchEntry(dir, name string) string {
	if _, err := os.Lstat(filepath.Join(dir, name)); err != nil {
		return name
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return name
	}
	for _, e := range entries {
		if e.Name() == name {
			return name
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return e.Name()
		}
	}
	return name
}
