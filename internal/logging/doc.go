// Package logging builds the slog loggers used across radiex.
//
// Two output formats are supported: a console handler that renders
// "timestamp LEVEL component: message key=value" lines, and a JSON handler
// for machine consumption. The run-level report verbosity setting
// (all/info/warning/error/none) maps onto slog levels so a quiet run stays
// quiet without a second switch.
package logging
