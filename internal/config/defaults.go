package config

const (
	defaultOutputDir  = "~/.local/share/radiex/results"
	defaultScratchDir = "~/.cache/radiex/scratch"
	defaultLogDir     = "~/.local/share/radiex/logs"

	defaultWorkers      = "auto"
	defaultMinROIVolume = 10.0

	defaultExtractorTimeout   = 1800
	defaultCancelGraceSeconds = 30
	defaultScratchSweepHours  = 48
	defaultResourceErrorLimit = 3

	defaultBinSize              = 25.0
	defaultIsotropicVoxelSize   = 2.0
	defaultIsotropicVoxelSize2D = 2.0
	defaultResegmentMin         = -1000.0
	defaultResegmentMax         = 400.0
	defaultROIPartialVolume     = 0.5
	defaultIVHType              = 3
	defaultIVHDiscCont          = 1
	defaultIVHBinSize           = 2.0

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Run: Run{
			Mode:         string(ModeHandcrafted),
			Workers:      defaultWorkers,
			Parallel:     true,
			MinROIVolume: defaultMinROIVolume,
			ROISelection: string(ROIPerImage),
			Verbosity:    string(VerbosityAll),
			Modality:     string(ModalityOther),
			Categories:   "all",
			Dimensions:   "all",
		},
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Extractor: Extractor{
			TimeoutSeconds:     defaultExtractorTimeout,
			CancelGraceSeconds: defaultCancelGraceSeconds,
			ScratchSweepHours:  defaultScratchSweepHours,
			ResourceErrorLimit: defaultResourceErrorLimit,
		},
		Handcrafted: Handcrafted{
			Discretization:       string(DiscretizationFBS),
			BinSize:              defaultBinSize,
			Quantization:         string(QuantizationUniform),
			VoxelInterp:          string(InterpNearest),
			ROIInterp:            string(InterpNearest),
			IsotropicVoxelSize:   defaultIsotropicVoxelSize,
			IsotropicVoxelSize2D: defaultIsotropicVoxelSize2D,
			ResegmentMin:         defaultResegmentMin,
			ResegmentMax:         defaultResegmentMax,
			ROIPartialVolume:     defaultROIPartialVolume,
			IVHType:              defaultIVHType,
			IVHDiscCont:          defaultIVHDiscCont,
			IVHBinSize:           defaultIVHBinSize,
			FeatureValues:        string(FeatureValuesReal),
		},
		Deep: Deep{
			Backbone: string(BackboneResNet50),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
