package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"radiex/internal/aggregate"
	"radiex/internal/config"
	"radiex/internal/extraction"
	"radiex/internal/fileutil"
)

const (
	FeaturesFileName   = "features.csv"
	ParametersFileName = "parameters.txt"
	FailuresFileName   = "failures.csv"
)

// undefinedMarker is the cell value for features the extractor declared
// undefined, distinct from the empty cell of a feature never observed for
// that row.
const undefinedMarker = "NA"

// Warning is one non-fatal per-case message for the failures table.
type Warning struct {
	CaseID  string
	Message string
}

// Write serializes the full run report into dir, creating it if needed.
// Verbosity filters the warnings/failures table only; the feature table
// and parameters listing are always written in full.
func Write(dir string, table aggregate.Table, failures []aggregate.Failure, warnings []Warning, rc *config.RunConfig) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := writeFeatures(filepath.Join(dir, FeaturesFileName), table); err != nil {
		return err
	}
	if err := writeParameters(filepath.Join(dir, ParametersFileName), rc); err != nil {
		return err
	}
	return writeFailures(filepath.Join(dir, FailuresFileName), failures, warnings, rc.Verbosity)
}

// writeFeatures renders the feature table. Row and column order come in
// already deterministic; undefined values become the NA marker and
// features a row never defined stay empty.
func writeFeatures(path string, table aggregate.Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"case_id", "status"}, table.Columns...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write feature header: %w", err)
	}

	for _, row := range table.Rows {
		line := make([]string, 0, len(header))
		line = append(line, row.ID, string(row.Status))
		for _, column := range table.Columns {
			line = append(line, formatCell(row, column))
		}
		if err := w.Write(line); err != nil {
			return fmt.Errorf("write feature row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode feature table: %w", err)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func formatCell(row aggregate.Row, column string) string {
	value, ok := row.Values[column]
	if !ok {
		return ""
	}
	if value.Undefined {
		return undefinedMarker
	}
	return strconv.FormatFloat(value.Value, 'g', -1, 64)
}

func writeParameters(path string, rc *config.RunConfig) error {
	var buf bytes.Buffer
	for _, kv := range rc.Flatten() {
		fmt.Fprintf(&buf, "%s = %s\n", kv.Key, kv.Value)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// writeFailures renders the warnings/failures table. Verbosity gates what
// appears: "none" yields a header-only file, "error" drops warnings, and
// the rest include both.
func writeFailures(path string, failures []aggregate.Failure, warnings []Warning, verbosity config.Verbosity) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"case_id", "kind", "message"}); err != nil {
		return fmt.Errorf("write failures header: %w", err)
	}

	if verbosity != config.VerbosityNone {
		for _, f := range failures {
			if err := w.Write([]string{f.CaseID, string(f.Kind), f.Message}); err != nil {
				return fmt.Errorf("write failure row: %w", err)
			}
		}
		if verbosity != config.VerbosityError {
			for _, warning := range warnings {
				if err := w.Write([]string{warning.CaseID, "warning", warning.Message}); err != nil {
					return fmt.Errorf("write warning row: %w", err)
				}
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode failures table: %w", err)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// CollectWarnings pulls per-case warnings out of the ordered outcome
// snapshot for the failures table.
func CollectWarnings(outcomes []extraction.Outcome) []Warning {
	var out []Warning
	for _, o := range outcomes {
		if o.Record == nil {
			continue
		}
		for _, message := range o.Record.Warnings {
			out = append(out, Warning{CaseID: o.CaseID, Message: message})
		}
	}
	return out
}
