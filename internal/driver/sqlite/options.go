package sqlite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options controls how the SQLite driver opens its backing file. This
// is driver configuration — how to open the file — distinct from the
// per-workspace key/value metadata exposed through ConfigStore.
type Options struct {
	Path            string `yaml:"path"`
	BusyTimeoutMS   int    `yaml:"busyTimeoutMs"`
	SynchronousMode string `yaml:"synchronousMode"`
	CacheSizeKB     int    `yaml:"cacheSizeKb"`
}

// DefaultOptions returns the pragma set this driver applies: WAL
// journal mode (set unconditionally, not exposed as a knob — see Open),
// NORMAL synchronous, a 5 second busy timeout.
func DefaultOptions(path string) Options {
	return Options{
		Path:            path,
		BusyTimeoutMS:   5000,
		SynchronousMode: "NORMAL",
	}
}

// LoadOptions reads driver options from a small YAML file, falling back
// to DefaultOptions for any field the file leaves zero-valued.
func LoadOptions(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("load sqlite options: %w", err)
	}
	opts := Options{BusyTimeoutMS: 5000, SynchronousMode: "NORMAL"}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("load sqlite options: parse %s: %w", path, err)
	}
	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = 5000
	}
	if opts.SynchronousMode == "" {
		opts.SynchronousMode = "NORMAL"
	}
	return opts, nil
}
