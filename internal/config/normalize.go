package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRun()
	c.normalizeExtractor()
	c.normalizeHandcrafted()
	c.normalizeDeep()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRun() {
	c.Run.Mode = strings.ToLower(strings.TrimSpace(c.Run.Mode))
	switch c.Run.Mode {
	case "handcrafted_feature":
		c.Run.Mode = string(ModeHandcrafted)
	case "deep_feature":
		c.Run.Mode = string(ModeDeep)
	}

	c.Run.Workers = strings.ToLower(strings.TrimSpace(c.Run.Workers))
	if c.Run.Workers == "" {
		c.Run.Workers = defaultWorkers
	}

	c.Run.ROISelection = strings.ToLower(strings.TrimSpace(c.Run.ROISelection))
	switch c.Run.ROISelection {
	case "per_img", "perimage":
		c.Run.ROISelection = string(ROIPerImage)
	case "perregion":
		c.Run.ROISelection = string(ROIPerRegion)
	}

	c.Run.Verbosity = strings.ToLower(strings.TrimSpace(c.Run.Verbosity))
	if c.Run.Verbosity == "" {
		c.Run.Verbosity = string(VerbosityAll)
	}

	c.Run.Modality = strings.ToLower(strings.TrimSpace(c.Run.Modality))
	if c.Run.Modality == "" {
		c.Run.Modality = string(ModalityOther)
	}

	c.Run.Categories = normalizeSelection(c.Run.Categories)
	c.Run.Dimensions = normalizeSelection(c.Run.Dimensions)
}

func (c *Config) normalizeExtractor() {
	c.Extractor.Command = strings.TrimSpace(c.Extractor.Command)
	if c.Extractor.Command == "" {
		if value, ok := os.LookupEnv("RADIEX_EXTRACTOR"); ok {
			c.Extractor.Command = strings.TrimSpace(value)
		}
	}
	if c.Extractor.TimeoutSeconds <= 0 {
		c.Extractor.TimeoutSeconds = defaultExtractorTimeout
	}
	if c.Extractor.CancelGraceSeconds <= 0 {
		c.Extractor.CancelGraceSeconds = defaultCancelGraceSeconds
	}
	if c.Extractor.ScratchSweepHours <= 0 {
		c.Extractor.ScratchSweepHours = defaultScratchSweepHours
	}
	if c.Extractor.ResourceErrorLimit <= 0 {
		c.Extractor.ResourceErrorLimit = defaultResourceErrorLimit
	}
}

func (c *Config) normalizeHandcrafted() {
	hc := &c.Handcrafted
	hc.Discretization = strings.ToLower(strings.TrimSpace(hc.Discretization))
	hc.Quantization = strings.ToLower(strings.TrimSpace(hc.Quantization))
	if hc.Quantization == "lloydmax" || hc.Quantization == "lloyd_max" {
		hc.Quantization = string(QuantizationLloydMax)
	}
	hc.VoxelInterp = strings.ToLower(strings.TrimSpace(hc.VoxelInterp))
	hc.ROIInterp = strings.ToLower(strings.TrimSpace(hc.ROIInterp))
	hc.FeatureValues = strings.ToLower(strings.TrimSpace(hc.FeatureValues))
	switch hc.FeatureValues {
	case "real_value":
		hc.FeatureValues = string(FeatureValuesReal)
	case "approximate_value":
		hc.FeatureValues = string(FeatureValuesApproximate)
	}
}

func (c *Config) normalizeDeep() {
	c.Deep.Backbone = strings.ToLower(strings.TrimSpace(c.Deep.Backbone))
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeSelection canonicalizes comma-separated category/dimension
// filters: trimmed, lowercased, deduplicated, "all" when empty.
func normalizeSelection(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" || trimmed == "all" {
		return "all"
	}
	parts := strings.Split(trimmed, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	if len(out) == 0 {
		return "all"
	}
	return strings.Join(out, ",")
}
