// Package scratch manages the per-run conversion cache. Each run owns one
// directory under the configured scratch root, created lazily and removed
// when the run ends. Jobs get disjoint subdirectories so concurrent
// workers never share a path. A lock file held for the lifetime of the run
// lets a later startup sweep stale directories left by crashed runs
// without touching live ones.
package scratch
