// Package runner drives a complete extraction run: case discovery, scratch
// setup, the worker pool, aggregation, report writing, and run history
// persistence. It holds no process-wide state, so a CLI, a GUI, or a test
// can drive it the same way: hand it a resolved configuration and a
// context, get back a report.
package runner
