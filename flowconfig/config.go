// Package flowconfig loads the engine's configuration options from YAML,
// grounded on the pack's general use of gopkg.in/yaml.v2 for config structs.
package flowconfig

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds the options the engine recognizes: which driver to run
// under, whether to emit debug diagnostics, and where to serve metrics.
type Config struct {
	// Multiprocess selects the process-per-block driver when true. Default
	// true.
	Multiprocess bool `yaml:"multiprocess"`
	// Threaded selects the thread-based portable fallback driver over the
	// cooperative round-robin driver when Multiprocess is false. Ignored
	// when Multiprocess is true.
	Threaded bool `yaml:"threaded"`
	// Debug raises flowlog to debug level for the duration of the run.
	Debug bool `yaml:"debug"`
	// MetricsAddr, if non-empty, is the address a /metrics Prometheus
	// HTTP handler is served on for the duration of Run/Start.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the engine's default configuration: process-per-block,
// no debug output, no metrics server.
func Default() Config {
	return Config{Multiprocess: true}
}

// Load reads and parses a YAML config file, starting from Default so an
// omitted key keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
