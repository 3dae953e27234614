package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"minimize/internal/mir"
	"minimize/internal/project"
)

// LoadCrate reads a msgpack-encoded crate. The digest covers the file bytes
// and keys the lowering cache.
func LoadCrate(path string) (*mir.Crate, project.Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, project.Digest{}, err
	}
	c, err := mir.ReadCrate(bytes.NewReader(data))
	if err != nil {
		return nil, project.Digest{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, project.HashBytes(data), nil
}

// SaveCrate writes c to path, replacing the file atomically.
func SaveCrate(path string, c *mir.Crate) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".crate-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if err = mir.WriteCrate(f, c); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
