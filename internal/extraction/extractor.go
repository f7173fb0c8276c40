package extraction

import (
	"context"

	"radiex/internal/cases"
	"radiex/internal/config"
)

// Extractor is the interface to the external feature-computation tool. It
// must be safe for concurrent use given disjoint scratch directories.
type Extractor interface {
	// Extract computes the feature record for one case. The scratch
	// directory is reserved for this job and discarded with the run.
	Extract(ctx context.Context, c cases.Case, rc *config.RunConfig, scratchDir string) (*Record, error)

	// MaskVolume reports the effective ROI volume of a mask in mm^3,
	// consulted before extraction for minimum-volume filtering.
	MaskVolume(ctx context.Context, maskPath string) (float64, error)
}
