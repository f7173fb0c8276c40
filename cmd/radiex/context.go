package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"radiex/internal/config"
	"radiex/internal/logging"
	"radiex/internal/runstore"
)

// commandContext shares lazily loaded configuration between commands.
type commandContext struct {
	configFlag *string

	cfg        *config.Config
	configPath string
	exists     bool
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.configPath = resolvedPath
	c.exists = exists
	return cfg, nil
}

func (c *commandContext) newLogger(cfg *config.Config, rc *config.RunConfig) (*slog.Logger, error) {
	outputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "radiex.log"))
	}
	return logging.New(logging.Options{
		Level:       runLogLevel(cfg, rc),
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}

// runLogLevel selects the log level for a run. The resolved report
// verbosity drives it ("all" through "none" map straight onto levels);
// outside a run the configured logging level applies.
func runLogLevel(cfg *config.Config, rc *config.RunConfig) string {
	if rc != nil && rc.Verbosity != "" {
		return string(rc.Verbosity)
	}
	return cfg.Logging.Level
}

func (c *commandContext) openStore(cfg *config.Config) (*runstore.Store, error) {
	return runstore.Open(cfg.Paths.LogDir)
}
