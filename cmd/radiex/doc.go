// Command radiex extracts quantitative imaging features from paired
// image/mask datasets, for single cases or mirrored-folder batches.
package main
