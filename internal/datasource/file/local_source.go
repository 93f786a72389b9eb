// Package file opens survey spreadsheets and load manifests from the local
// disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrIsDir is returned by Local.Open when the locator names a directory.
var ErrIsDir = errors.New("is a directory")

// Local is one spreadsheet on disk.
type Local struct{ path string }

// NewLocal binds a Local to path. A leading "~/" expands to the user's home
// directory.
func NewLocal(path string) *Local { return &Local{path: expandHome(path)} }

// Open returns the file for reading. A canceled ctx fails before the disk is
// touched; filesystem errors keep their cause for errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("file: open %s: %w", l.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("file: stat %s: %w", l.path, err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("file: %s: %w", l.path, ErrIsDir)
	}
	return f, nil
}

// Name returns the resolved path; the reader dispatches on its extension.
func (l *Local) Name() string { return l.path }

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
