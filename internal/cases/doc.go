// Package cases discovers image/mask pairs for extraction runs. A single
// run unit pairs one image file with one mask file; batch discovery walks
// an image tree and requires a mask at the identical relative path under
// the mask tree. Discovery order is lexicographic by relative path so
// reruns schedule and report cases identically.
package cases
