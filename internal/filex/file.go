// Package filex holds small filesystem helpers.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory that will hold path, so SQLite and
// the log rotator can create their files on first run. Paths without a
// directory part, and SQLite ":memory:" style DSNs, need nothing.
func EnsureParentDir(path string) error {
	if path == "" || path[0] == ':' {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
