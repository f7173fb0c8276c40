// Package config loads, normalizes, and validates radiex configuration data
// and resolves it into the immutable per-run configuration.
//
// Settings merge in increasing priority: built-in defaults, the TOML
// configuration file, then explicit command-line overrides. Resolve validates
// the merged result exhaustively (every invalid option is reported, not just
// the first) and produces a RunConfig in which exactly one of the
// handcrafted or deep option payloads is populated, selected by the
// extraction mode. Downstream components treat the RunConfig as read-only.
package config
