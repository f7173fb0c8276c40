package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Mode selects the extraction pipeline.
type Mode string

const (
	ModeHandcrafted Mode = "handcrafted"
	ModeDeep        Mode = "deep"
)

// ROISelection controls whether features are extracted per image or per
// labelled region.
type ROISelection string

const (
	ROIPerImage  ROISelection = "per_image"
	ROIPerRegion ROISelection = "per_region"
)

// Verbosity is the run report verbosity knob.
type Verbosity string

const (
	VerbosityAll     Verbosity = "all"
	VerbosityInfo    Verbosity = "info"
	VerbosityWarning Verbosity = "warning"
	VerbosityError   Verbosity = "error"
	VerbosityNone    Verbosity = "none"
)

// Modality tags the run's imaging modality for the extractor.
type Modality string

const (
	ModalityCT    Modality = "ct"
	ModalityMR    Modality = "mr"
	ModalityPET   Modality = "pet"
	ModalityOther Modality = "other"
)

// Discretization selects fixed-bin-size or fixed-bin-number discretization.
type Discretization string

const (
	DiscretizationFBS Discretization = "fbs"
	DiscretizationFBN Discretization = "fbn"
)

// Quantization selects the gray-level quantization algorithm.
type Quantization string

const (
	QuantizationUniform  Quantization = "uniform"
	QuantizationLloydMax Quantization = "lloyd-max"
)

// Interp names an interpolation method for resampling.
type Interp string

const (
	InterpNearest   Interp = "nearest"
	InterpLinear    Interp = "linear"
	InterpBilinear  Interp = "bilinear"
	InterpTrilinear Interp = "trilinear"
	InterpTricubic  Interp = "tricubic-spline"
	InterpCubic     Interp = "cubic"
	InterpBSpline   Interp = "bspline"
	InterpNone      Interp = "none"
)

// FeatureValueMode controls whether undefined feature values are reported as
// undefined or numerically approximated.
type FeatureValueMode string

const (
	FeatureValuesReal        FeatureValueMode = "real"
	FeatureValuesApproximate FeatureValueMode = "approximate"
)

// Backbone identifies a deep feature-extraction model.
type Backbone string

const (
	BackboneResNet50    Backbone = "resnet50"
	BackboneVGG16       Backbone = "vgg16"
	BackboneDenseNet121 Backbone = "densenet121"
)

// HandcraftedParams is the handcrafted-mode option payload.
type HandcraftedParams struct {
	Discretization       Discretization
	BinSize              float64
	Quantization         Quantization
	Resample             bool
	VoxelInterp          Interp
	ROIInterp            Interp
	IsotropicVoxelSize   float64
	IsotropicVoxelSize2D float64
	Isotropic2D          bool
	Resegment            bool
	ResegmentMin         float64
	ResegmentMax         float64
	IntensityRounding    bool
	OutlierRemoval       bool
	ROIPartialVolume     float64
	IVHType              int
	IVHDiscCont          int
	IVHBinSize           float64
	FeatureValues        FeatureValueMode
}

// DeepParams is the deep-mode option payload.
type DeepParams struct {
	Backbone Backbone
}

// RunConfig is the immutable resolved configuration for one run. Exactly one
// of Handcrafted or Deep is non-nil, selected by Mode; options from the
// inactive payload never reach the extractor.
type RunConfig struct {
	Mode             Mode
	Workers          int
	Parallel         bool
	Preprocessing    bool
	MinROIVolume     float64
	ROISelection     ROISelection
	AggregateLesions bool
	Verbosity        Verbosity
	Modality         Modality
	Categories       string
	Dimensions       string

	OutputDir  string
	ScratchDir string

	ExtractorCommand   string
	ExtractorTimeout   time.Duration
	CancelGrace        time.Duration
	ScratchSweepAge    time.Duration
	ResourceErrorLimit int

	Handcrafted *HandcraftedParams
	Deep        *DeepParams
}

// Overrides carries explicit run-time settings that take precedence over the
// configuration file. Zero values (or nil pointers) leave the file value in
// place.
type Overrides struct {
	Mode             string
	Workers          string
	Parallel         *bool
	Preprocessing    *bool
	MinROIVolume     *float64
	ROISelection     string
	AggregateLesions *bool
	Verbosity        string
	Modality         string
	Categories       string
	Dimensions       string
	OutputDir        string
	ScratchDir       string
	ExtractorCommand string
	Backbone         string
}

func (o Overrides) apply(cfg *Config) {
	if o.Mode != "" {
		cfg.Run.Mode = o.Mode
	}
	if o.Workers != "" {
		cfg.Run.Workers = o.Workers
	}
	if o.Parallel != nil {
		cfg.Run.Parallel = *o.Parallel
	}
	if o.Preprocessing != nil {
		cfg.Run.Preprocessing = *o.Preprocessing
	}
	if o.MinROIVolume != nil {
		cfg.Run.MinROIVolume = *o.MinROIVolume
	}
	if o.ROISelection != "" {
		cfg.Run.ROISelection = o.ROISelection
	}
	if o.AggregateLesions != nil {
		cfg.Run.AggregateLesions = *o.AggregateLesions
	}
	if o.Verbosity != "" {
		cfg.Run.Verbosity = o.Verbosity
	}
	if o.Modality != "" {
		cfg.Run.Modality = o.Modality
	}
	if o.Categories != "" {
		cfg.Run.Categories = o.Categories
	}
	if o.Dimensions != "" {
		cfg.Run.Dimensions = o.Dimensions
	}
	if o.OutputDir != "" {
		cfg.Paths.OutputDir = o.OutputDir
	}
	if o.ScratchDir != "" {
		cfg.Paths.ScratchDir = o.ScratchDir
	}
	if o.ExtractorCommand != "" {
		cfg.Extractor.Command = o.ExtractorCommand
	}
	if o.Backbone != "" {
		cfg.Deep.Backbone = o.Backbone
	}
}

// Resolve merges overrides onto cfg and produces the immutable RunConfig.
// Validation is exhaustive: the returned error lists every invalid option.
func Resolve(cfg *Config, overrides Overrides) (*RunConfig, error) {
	merged := *cfg
	overrides.apply(&merged)
	if err := merged.normalize(); err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	workers := resolveWorkers(merged.Run.Workers, merged.Run.WorkerCap, merged.Run.Parallel)

	rc := &RunConfig{
		Mode:             Mode(merged.Run.Mode),
		Workers:          workers,
		Parallel:         merged.Run.Parallel,
		Preprocessing:    merged.Run.Preprocessing,
		MinROIVolume:     merged.Run.MinROIVolume,
		ROISelection:     ROISelection(merged.Run.ROISelection),
		AggregateLesions: merged.Run.AggregateLesions,
		Verbosity:        Verbosity(merged.Run.Verbosity),
		Modality:         Modality(merged.Run.Modality),
		Categories:       merged.Run.Categories,
		Dimensions:       merged.Run.Dimensions,

		OutputDir:  merged.Paths.OutputDir,
		ScratchDir: merged.Paths.ScratchDir,

		ExtractorCommand:   merged.Extractor.Command,
		ExtractorTimeout:   time.Duration(merged.Extractor.TimeoutSeconds) * time.Second,
		CancelGrace:        time.Duration(merged.Extractor.CancelGraceSeconds) * time.Second,
		ScratchSweepAge:    time.Duration(merged.Extractor.ScratchSweepHours) * time.Hour,
		ResourceErrorLimit: merged.Extractor.ResourceErrorLimit,
	}

	switch rc.Mode {
	case ModeHandcrafted:
		hc := merged.Handcrafted
		rc.Handcrafted = &HandcraftedParams{
			Discretization:       Discretization(hc.Discretization),
			BinSize:              hc.BinSize,
			Quantization:         Quantization(hc.Quantization),
			Resample:             hc.Resample,
			VoxelInterp:          Interp(hc.VoxelInterp),
			ROIInterp:            Interp(hc.ROIInterp),
			IsotropicVoxelSize:   hc.IsotropicVoxelSize,
			IsotropicVoxelSize2D: hc.IsotropicVoxelSize2D,
			Isotropic2D:          hc.Isotropic2D,
			Resegment:            hc.Resegment,
			ResegmentMin:         hc.ResegmentMin,
			ResegmentMax:         hc.ResegmentMax,
			IntensityRounding:    hc.IntensityRounding,
			OutlierRemoval:       hc.OutlierRemoval,
			ROIPartialVolume:     hc.ROIPartialVolume,
			IVHType:              hc.IVHType,
			IVHDiscCont:          hc.IVHDiscCont,
			IVHBinSize:           hc.IVHBinSize,
			FeatureValues:        FeatureValueMode(hc.FeatureValues),
		}
	case ModeDeep:
		rc.Deep = &DeepParams{Backbone: Backbone(merged.Deep.Backbone)}
	}

	return rc, nil
}

// resolveWorkers turns the "auto"/numeric setting into a concrete positive
// worker count. Disabled parallelism always yields a single worker.
func resolveWorkers(workers string, cap int, parallel bool) int {
	if !parallel {
		return 1
	}
	available := runtime.NumCPU()
	limit := cap
	if limit <= 0 || limit > available {
		limit = available
	}
	if strings.EqualFold(strings.TrimSpace(workers), "auto") {
		return limit
	}
	n, err := strconv.Atoi(strings.TrimSpace(workers))
	if err != nil || n <= 0 {
		return limit
	}
	if n > limit {
		return limit
	}
	return n
}

// KV is one entry of the flattened parameter listing.
type KV struct {
	Key   string
	Value string
}

// Flatten renders the resolved configuration as an ordered key/value listing
// for the run report. Only the active mode payload appears.
func (rc *RunConfig) Flatten() []KV {
	out := []KV{
		{"mode", string(rc.Mode)},
		{"workers", strconv.Itoa(rc.Workers)},
		{"parallel", strconv.FormatBool(rc.Parallel)},
		{"preprocessing", strconv.FormatBool(rc.Preprocessing)},
		{"min_roi_volume", formatFloat(rc.MinROIVolume)},
		{"roi_selection", string(rc.ROISelection)},
		{"aggregate_lesions", strconv.FormatBool(rc.AggregateLesions)},
		{"report_verbosity", string(rc.Verbosity)},
		{"modality", string(rc.Modality)},
		{"categories", rc.Categories},
		{"dimensions", rc.Dimensions},
	}

	if hc := rc.Handcrafted; hc != nil {
		out = append(out,
			KV{"handcrafted.discretization", string(hc.Discretization)},
			KV{"handcrafted.bin_size", formatFloat(hc.BinSize)},
			KV{"handcrafted.quantization", string(hc.Quantization)},
			KV{"handcrafted.resample", strconv.FormatBool(hc.Resample)},
			KV{"handcrafted.voxel_interp", string(hc.VoxelInterp)},
			KV{"handcrafted.roi_interp", string(hc.ROIInterp)},
			KV{"handcrafted.isotropic_voxel_size", formatFloat(hc.IsotropicVoxelSize)},
			KV{"handcrafted.isotropic_voxel_size_2d", formatFloat(hc.IsotropicVoxelSize2D)},
			KV{"handcrafted.isotropic_2d", strconv.FormatBool(hc.Isotropic2D)},
			KV{"handcrafted.resegment", strconv.FormatBool(hc.Resegment)},
			KV{"handcrafted.resegment_min", formatFloat(hc.ResegmentMin)},
			KV{"handcrafted.resegment_max", formatFloat(hc.ResegmentMax)},
			KV{"handcrafted.intensity_rounding", strconv.FormatBool(hc.IntensityRounding)},
			KV{"handcrafted.outlier_removal", strconv.FormatBool(hc.OutlierRemoval)},
			KV{"handcrafted.roi_partial_volume", formatFloat(hc.ROIPartialVolume)},
			KV{"handcrafted.ivh_type", strconv.Itoa(hc.IVHType)},
			KV{"handcrafted.ivh_disc_cont", strconv.Itoa(hc.IVHDiscCont)},
			KV{"handcrafted.ivh_bin_size", formatFloat(hc.IVHBinSize)},
			KV{"handcrafted.feature_values", string(hc.FeatureValues)},
		)
	}
	if dp := rc.Deep; dp != nil {
		out = append(out, KV{"deep.backbone", string(dp.Backbone)})
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (rc *RunConfig) String() string {
	return fmt.Sprintf("RunConfig(mode=%s workers=%d)", rc.Mode, rc.Workers)
}
