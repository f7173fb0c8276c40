// Package report serializes a finished run: the feature table as CSV, the
// resolved parameters as a flat listing, and the warnings/failures table.
// All files are written atomically so a crash mid-write never leaves a
// truncated report at the destination.
package report
