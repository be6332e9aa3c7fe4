// Package fsutil reads workflow and prompt files.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MaxFileSize bounds workflow and prompt files.
const MaxFileSize = 4 << 20

// ErrTooLarge is returned for files over the read limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// ReadFile reads path through an os.Root opened at its directory, so the
// read cannot escape that directory through symlinks. Files larger than
// limit bytes fail with ErrTooLarge; limit <= 0 means MaxFileSize.
// Missing files fail with an error matching os.ErrNotExist.
func ReadFile(path string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxFileSize
	}
	cleaned := filepath.Clean(path)
	dir, base := filepath.Dir(cleaned), filepath.Base(cleaned)
	if path == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, ErrTooLarge, limit)
	}
	return data, nil
}
