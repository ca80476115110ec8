package output

import (
	"fmt"
	"os"
	"path/filepath"

	"ipsniffer/port"
)

// WriteAtomic replaces path with data. The bytes go to a temp file in the same
// directory which is synced and then renamed over path, so readers see either
// the previous content or the new one.
func WriteAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp -> final: %w", err)
	}
	return nil
}

// WriteReport renders rep and stores it at path.
func WriteReport(path string, rep port.Report) error {
	if err := WriteAtomic(path, RenderReport(rep)); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
