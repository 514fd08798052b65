package rootfs

import (
	"os"
	"path/filepath"
)

// mkdirTarget prepares a mount point: a directory tree for directory
// sources, or an empty regular file (with its parent directory) for bind
// mounts whose source is a single file.
func mkdirTarget(path string, file bool) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if !file {
		return os.MkdirAll(path, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
