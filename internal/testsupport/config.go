package testsupport

import (
	"path/filepath"
	"testing"

	"radiex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "results")
	cfg.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Extractor.Command = "test-extractor"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMode sets the extraction mode on the test config.
func WithMode(mode config.Mode) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Run.Mode = string(mode)
	}
}

// WithWorkers overrides the worker setting on the test config.
func WithWorkers(workers string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Run.Workers = workers
	}
}

// NewRunConfig resolves a test config into an immutable RunConfig.
func NewRunConfig(t testing.TB, opts ...ConfigOption) *config.RunConfig {
	t.Helper()

	rc, err := config.Resolve(NewConfig(t, opts...), config.Overrides{})
	if err != nil {
		t.Fatalf("config.Resolve: %v", err)
	}
	return rc
}
