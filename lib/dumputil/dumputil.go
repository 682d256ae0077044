// Package dumputil writes raw pages to disk so selectors can be debugged
// against what the portal actually rendered.
package dumputil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

type Output interface {
	Write(id string, contents string)
}

type FilesystemOutput struct {
	directory string
	counter   *uint64
}

// NewFilesystemOutput empties dir and writes every dump into it.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	var counter uint64
	return FilesystemOutput{directory: dir, counter: &counter}, nil
}

// sanitize keeps ids usable as file names.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
}

// Write stores contents as "<n>-<id>.html", n keeps dumps in the order they
// were taken.
func (o FilesystemOutput) Write(id string, contents string) {
	n := atomic.AddUint64(o.counter, 1)
	name := fmt.Sprintf("%03d-%s.html", n, sanitize(id))
	err := os.WriteFile(filepath.Join(o.directory, name), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write page dump", "id", id, "err", err)
	}
}
