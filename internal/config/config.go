package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Run contains options common to both extraction modes.
type Run struct {
	Mode             string  `toml:"mode"`
	Workers          string  `toml:"workers"`
	WorkerCap        int     `toml:"worker_cap"`
	Parallel         bool    `toml:"parallel"`
	Preprocessing    bool    `toml:"preprocessing"`
	MinROIVolume     float64 `toml:"min_roi_volume"`
	ROISelection     string  `toml:"roi_selection"`
	AggregateLesions bool    `toml:"aggregate_lesions"`
	Verbosity        string  `toml:"report_verbosity"`
	Modality         string  `toml:"modality"`
	Categories       string  `toml:"categories"`
	Dimensions       string  `toml:"dimensions"`
}

// Extractor contains settings for the external feature-extraction tool.
type Extractor struct {
	Command            string `toml:"command"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	CancelGraceSeconds int    `toml:"cancel_grace_seconds"`
	ScratchSweepHours  int    `toml:"scratch_sweep_hours"`
	ResourceErrorLimit int    `toml:"resource_error_limit"`
}

// Handcrafted contains options consulted only in handcrafted mode.
type Handcrafted struct {
	Discretization       string  `toml:"discretization"`
	BinSize              float64 `toml:"bin_size"`
	Quantization         string  `toml:"quantization"`
	Resample             bool    `toml:"resample"`
	VoxelInterp          string  `toml:"voxel_interp"`
	ROIInterp            string  `toml:"roi_interp"`
	IsotropicVoxelSize   float64 `toml:"isotropic_voxel_size"`
	IsotropicVoxelSize2D float64 `toml:"isotropic_voxel_size_2d"`
	Isotropic2D          bool    `toml:"isotropic_2d"`
	Resegment            bool    `toml:"resegment"`
	ResegmentMin         float64 `toml:"resegment_min"`
	ResegmentMax         float64 `toml:"resegment_max"`
	IntensityRounding    bool    `toml:"intensity_rounding"`
	OutlierRemoval       bool    `toml:"outlier_removal"`
	ROIPartialVolume     float64 `toml:"roi_partial_volume"`
	IVHType              int     `toml:"ivh_type"`
	IVHDiscCont          int     `toml:"ivh_disc_cont"`
	IVHBinSize           float64 `toml:"ivh_bin_size"`
	FeatureValues        string  `toml:"feature_values"`
}

// Deep contains options consulted only in deep mode.
type Deep struct {
	Backbone string `toml:"backbone"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the file-shaped configuration before run resolution.
type Config struct {
	Run         Run         `toml:"run"`
	Paths       Paths       `toml:"paths"`
	Extractor   Extractor   `toml:"extractor"`
	Handcrafted Handcrafted `toml:"handcrafted"`
	Deep        Deep        `toml:"deep"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/radiex/config.toml")
}

// Load locates and parses a configuration file on top of the built-in
// defaults. The returned config is normalized but not yet validated; Resolve
// performs validation once overrides are applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("radiex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
