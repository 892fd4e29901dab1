package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes the registry in the node_exporter textfile format.
// The parent directory is created if needed.
func WriteTextfile(reg *prom.Registry, path string) error {
	if reg == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
