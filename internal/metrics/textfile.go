package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes every metric of the default registry to path in the
// text exposition format, for the node-exporter textfile collector.
// The file is replaced atomically.
func WriteTextfile(path string) error {
	return writeTextfile(path, prometheus.DefaultGatherer)
}

func writeTextfile(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
