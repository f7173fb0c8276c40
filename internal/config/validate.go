package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConfig tags configuration validation failures for errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError aggregates every configuration problem found in one pass so
// a user can fix a whole batch file in one edit instead of replaying the run
// per mistake.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration:")
	for _, problem := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(problem)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate checks the merged configuration and reports every problem found.
func (c *Config) Validate() error {
	var problems []string

	problems = append(problems, c.validateRun()...)
	problems = append(problems, c.validateExtractor()...)

	switch Mode(c.Run.Mode) {
	case ModeHandcrafted:
		problems = append(problems, c.validateHandcrafted()...)
	case ModeDeep:
		problems = append(problems, c.validateDeep()...)
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

func (c *Config) validateRun() []string {
	var problems []string

	switch Mode(c.Run.Mode) {
	case ModeHandcrafted, ModeDeep:
	default:
		problems = append(problems, fmt.Sprintf("run.mode: unknown value %q (expected handcrafted or deep)", c.Run.Mode))
	}

	if !strings.EqualFold(c.Run.Workers, "auto") {
		if n, err := strconv.Atoi(c.Run.Workers); err != nil || n <= 0 {
			problems = append(problems, fmt.Sprintf("run.workers: must be a positive integer or \"auto\", got %q", c.Run.Workers))
		}
	}
	if c.Run.WorkerCap < 0 {
		problems = append(problems, "run.worker_cap: must be >= 0 (0 means available cores)")
	}
	if c.Run.MinROIVolume < 0 {
		problems = append(problems, "run.min_roi_volume: must be >= 0")
	}

	switch ROISelection(c.Run.ROISelection) {
	case ROIPerImage, ROIPerRegion:
	default:
		problems = append(problems, fmt.Sprintf("run.roi_selection: unknown value %q (expected per_image or per_region)", c.Run.ROISelection))
	}

	switch Verbosity(c.Run.Verbosity) {
	case VerbosityAll, VerbosityInfo, VerbosityWarning, VerbosityError, VerbosityNone:
	default:
		problems = append(problems, fmt.Sprintf("run.report_verbosity: unknown value %q", c.Run.Verbosity))
	}

	switch Modality(c.Run.Modality) {
	case ModalityCT, ModalityMR, ModalityPET, ModalityOther:
	default:
		problems = append(problems, fmt.Sprintf("run.modality: unknown value %q (expected ct, mr, pet, or other)", c.Run.Modality))
	}

	if c.Run.AggregateLesions && ROISelection(c.Run.ROISelection) != ROIPerRegion {
		problems = append(problems, "run.aggregate_lesions: requires run.roi_selection = per_region")
	}

	return problems
}

func (c *Config) validateExtractor() []string {
	var problems []string
	if strings.TrimSpace(c.Extractor.Command) == "" {
		problems = append(problems, "extractor.command: must be set (or export RADIEX_EXTRACTOR)")
	}
	return problems
}

func (c *Config) validateHandcrafted() []string {
	var problems []string
	hc := c.Handcrafted

	switch Discretization(hc.Discretization) {
	case DiscretizationFBS, DiscretizationFBN:
	default:
		problems = append(problems, fmt.Sprintf("handcrafted.discretization: unknown value %q (expected fbs or fbn)", hc.Discretization))
	}
	if hc.BinSize <= 0 {
		problems = append(problems, "handcrafted.bin_size: must be positive")
	}
	switch Quantization(hc.Quantization) {
	case QuantizationUniform, QuantizationLloydMax:
	default:
		problems = append(problems, fmt.Sprintf("handcrafted.quantization: unknown value %q (expected uniform or lloyd-max)", hc.Quantization))
	}
	if !validInterp(Interp(hc.VoxelInterp)) {
		problems = append(problems, fmt.Sprintf("handcrafted.voxel_interp: unknown value %q", hc.VoxelInterp))
	}
	if !validInterp(Interp(hc.ROIInterp)) {
		problems = append(problems, fmt.Sprintf("handcrafted.roi_interp: unknown value %q", hc.ROIInterp))
	}
	if hc.Resample && hc.IsotropicVoxelSize <= 0 {
		problems = append(problems, "handcrafted.isotropic_voxel_size: must be positive when resampling is enabled")
	}
	if hc.Isotropic2D && hc.IsotropicVoxelSize2D <= 0 {
		problems = append(problems, "handcrafted.isotropic_voxel_size_2d: must be positive when isotropic_2d is enabled")
	}
	if hc.Resegment && hc.ResegmentMin >= hc.ResegmentMax {
		problems = append(problems, "handcrafted.resegment_min: must be below handcrafted.resegment_max")
	}
	if hc.ROIPartialVolume < 0 || hc.ROIPartialVolume > 1 {
		problems = append(problems, "handcrafted.roi_partial_volume: must be between 0 and 1")
	}
	if hc.IVHType < 0 {
		problems = append(problems, "handcrafted.ivh_type: must be >= 0")
	}
	if hc.IVHDiscCont < 0 {
		problems = append(problems, "handcrafted.ivh_disc_cont: must be >= 0")
	}
	if hc.IVHBinSize <= 0 {
		problems = append(problems, "handcrafted.ivh_bin_size: must be positive")
	}
	switch FeatureValueMode(hc.FeatureValues) {
	case FeatureValuesReal, FeatureValuesApproximate:
	default:
		problems = append(problems, fmt.Sprintf("handcrafted.feature_values: unknown value %q (expected real or approximate)", hc.FeatureValues))
	}

	return problems
}

func (c *Config) validateDeep() []string {
	var problems []string
	switch Backbone(c.Deep.Backbone) {
	case BackboneResNet50, BackboneVGG16, BackboneDenseNet121:
	default:
		problems = append(problems, fmt.Sprintf("deep.backbone: unknown value %q (expected resnet50, vgg16, or densenet121)", c.Deep.Backbone))
	}
	return problems
}

func validInterp(value Interp) bool {
	switch value {
	case InterpNearest, InterpLinear, InterpBilinear, InterpTrilinear,
		InterpTricubic, InterpCubic, InterpBSpline, InterpNone:
		return true
	}
	return false
}
