// Package extraction runs feature-extraction jobs. The feature math lives
// in an external tool addressed through the Extractor interface; this
// package owns the worker pool around it: bounded concurrency, per-case
// fault isolation, minimum-ROI-volume filtering, and cooperative
// cancellation with a bounded grace period.
package extraction
