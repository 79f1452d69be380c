package core

import (
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// SplitCSV splits a comma-separated query value, dropping blank entries.
func SplitCSV(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = CleanString(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

// ProjectRoot returns the closest parent directory of the working directory holding a go.mod.
// go test runs inside the package directory, hence the walk up.
// Falls back to the working directory itself.
func ProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
