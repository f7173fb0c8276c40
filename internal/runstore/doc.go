// Package runstore persists run history in SQLite. Each completed run is
// saved with its counts, resolved parameters, and per-case outcomes, which
// is what makes `radiex runs` listings and failed-subset retries possible.
package runstore
