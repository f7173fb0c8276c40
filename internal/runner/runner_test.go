package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"radiex/internal/cases"
	"radiex/internal/config"
	"radiex/internal/extraction"
	"radiex/internal/report"
	"radiex/internal/runstore"
	"radiex/internal/testsupport"
)

func newRunner(t *testing.T, stub *extraction.StubExtractor, opts ...testsupport.ConfigOption) *Runner {
	t.Helper()
	return &Runner{
		Config:    testsupport.NewRunConfig(t, opts...),
		Extractor: stub,
	}
}

func TestRunBatchWithMissingMask(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz", "b.nii.gz")
	testsupport.WriteFile(t, filepath.Join(imageRoot, "c.nii.gz"))

	stub := &extraction.StubExtractor{}
	r := newRunner(t, stub, testsupport.WithWorkers("2"))

	rep, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rep.Submitted != 2 || rep.Succeeded != 2 || rep.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 2 submitted, 2 succeeded", rep.Submitted, rep.Succeeded, rep.Failed)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("got %d failures, want 1: %+v", len(rep.Failures), rep.Failures)
	}
	f := rep.Failures[0]
	if f.CaseID != "c" || f.Kind != extraction.KindMatch {
		t.Errorf("failure = %+v, want case c with match kind", f)
	}
	if !rep.CompletedWithErrors {
		t.Error("unmatched entry should mark the run completed-with-errors")
	}
	for _, name := range []string{report.FeaturesFileName, report.ParametersFileName, report.FailuresFileName} {
		if _, err := os.Stat(filepath.Join(rep.OutputDir, name)); err != nil {
			t.Errorf("report file %s missing: %v", name, err)
		}
	}
}

func TestRunSingleCaseBelowMinimumVolume(t *testing.T) {
	base := t.TempDir()
	image := filepath.Join(base, "tiny.nii.gz")
	mask := filepath.Join(base, "tiny_mask.nii.gz")
	testsupport.WriteFile(t, image)
	testsupport.WriteFile(t, mask)

	stub := &extraction.StubExtractor{Volumes: map[string]float64{mask: 3}}
	r := newRunner(t, stub)

	rep, err := r.Run(context.Background(), Input{ImagePath: image, MaskPath: mask})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rep.Skipped != 1 || rep.Succeeded != 0 || rep.Failed != 0 {
		t.Errorf("counts = %+v", rep)
	}
	if rep.CompletedWithErrors {
		t.Error("a skipped case is not an error state")
	}
	if len(rep.Table.Rows) != 1 || rep.Table.Rows[0].Status != extraction.StatusSkipped {
		t.Errorf("table rows = %+v, want one skip marker", rep.Table.Rows)
	}
	if len(stub.Calls()) != 0 {
		t.Errorf("extractor invoked for a skipped case: %v", stub.Calls())
	}
}

func TestRunCompletedWithErrorsIsNotAnError(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz")

	stub := &extraction.StubExtractor{
		Errors: map[string]error{"a": fmt.Errorf("%w: corrupt mask", extraction.ErrExtraction)},
	}
	r := newRunner(t, stub)

	rep, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot})
	if err != nil {
		t.Fatalf("zero successes must still complete: %v", err)
	}
	if !rep.CompletedWithErrors || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunNoCasesIsFatal(t *testing.T) {
	r := newRunner(t, &extraction.StubExtractor{})
	_, err := r.Run(context.Background(), Input{ImageDir: t.TempDir(), MaskDir: t.TempDir()})
	if !errors.Is(err, cases.ErrNoCasesFound) {
		t.Fatalf("error = %v, want ErrNoCasesFound", err)
	}
}

func TestRunPersistsHistory(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz", "b.nii.gz")
	testsupport.WriteFile(t, filepath.Join(imageRoot, "c.nii.gz"))

	store, err := runstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	stub := &extraction.StubExtractor{
		Errors: map[string]error{"b": fmt.Errorf("%w: bad geometry", extraction.ErrExtraction)},
	}
	r := newRunner(t, stub)
	r.Store = store

	rep, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	saved, err := store.GetRun(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if saved.Succeeded != 1 || saved.Failed != 1 || !saved.CompletedWithErrors {
		t.Errorf("saved run = %+v", saved)
	}

	failed, err := store.FailedCaseIDs(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("FailedCaseIDs returned error: %v", err)
	}
	// b failed in extraction, c never matched.
	if len(failed) != 2 || failed[0] != "b" || failed[1] != "c" {
		t.Errorf("failed ids = %v, want [b c]", failed)
	}
}

func TestRunPersistsDuplicateStemAsRelPath(t *testing.T) {
	base := t.TempDir()
	// a.nii.gz matches a mask; a.nrrd collapses to the same id and ends up
	// unmatched. Both must land in run history without colliding.
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz")
	testsupport.WriteFile(t, filepath.Join(imageRoot, "a.nrrd"))

	store, err := runstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := newRunner(t, &extraction.StubExtractor{})
	r.Store = store

	rep, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	saved, err := store.GetRun(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("run history was not saved: %v", err)
	}
	if saved.Succeeded != 1 || !saved.CompletedWithErrors {
		t.Errorf("saved run = %+v", saved)
	}

	rows, err := store.RunOutcomes(context.Background(), rep.RunID)
	if err != nil {
		t.Fatalf("RunOutcomes returned error: %v", err)
	}
	byID := make(map[string]runstore.CaseOutcome, len(rows))
	for _, row := range rows {
		byID[row.CaseID] = row
	}
	if out, ok := byID["a"]; !ok || out.Status != string(extraction.StatusSuccess) {
		t.Errorf("matched case row = %+v", byID["a"])
	}
	if out, ok := byID["a.nrrd"]; !ok || out.Kind != string(extraction.KindMatch) {
		t.Errorf("unmatched row = %+v, want match-kind row keyed by relative path", byID["a.nrrd"])
	}
}

func TestRunOnlyCasesFilter(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz", "b.nii.gz", "c.nii.gz")

	stub := &extraction.StubExtractor{}
	r := newRunner(t, stub)

	rep, err := r.Run(context.Background(), Input{
		ImageDir:  imageRoot,
		MaskDir:   maskRoot,
		OnlyCases: []string{"b"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rep.Submitted != 1 || rep.Outcomes[0].CaseID != "b" {
		t.Errorf("report = %+v, want only case b", rep)
	}

	// History stores unmatched entries by relative path; retries hand those
	// back through OnlyCases and they must still resolve to the case.
	rep, err = r.Run(context.Background(), Input{
		ImageDir:  imageRoot,
		MaskDir:   maskRoot,
		OnlyCases: []string{"c.nii.gz"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if rep.Submitted != 1 || rep.Outcomes[0].CaseID != "c" {
		t.Errorf("report = %+v, want only case c", rep)
	}
}

func TestRunCleansScratch(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz")

	r := newRunner(t, &extraction.StubExtractor{})
	if _, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	entries, err := os.ReadDir(r.Config.ScratchDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch directory not cleaned: %v", entries)
	}
}

func TestRunFeatureTablesAreReproducible(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base, "a.nii.gz", "b.nii.gz", "c.nii.gz")

	build := func(workers string) []byte {
		stub := &extraction.StubExtractor{
			Features: map[string][]extraction.FeatureValue{
				"a": {{Name: "stat_mean", Value: 1}, {Name: "stat_max", Value: 2}},
				"b": {{Name: "stat_mean", Value: 3}},
				"c": {{Name: "glcm_contrast", Value: 4}},
			},
		}
		r := newRunner(t, stub, testsupport.WithWorkers(workers))
		rep, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot})
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(rep.OutputDir, report.FeaturesFileName))
		if err != nil {
			t.Fatalf("read features: %v", err)
		}
		return data
	}

	sequential := build("1")
	parallel := build("4")
	if string(sequential) != string(parallel) {
		t.Errorf("feature tables differ between worker counts:\n%s\nvs\n%s", sequential, parallel)
	}
}

func TestRunLesionAggregation(t *testing.T) {
	base := t.TempDir()
	imageRoot, maskRoot := testsupport.WriteDataset(t, base,
		"patient7_lesion1.nii.gz", "patient7_lesion2.nii.gz")

	stub := &extraction.StubExtractor{
		Volumes: map[string]float64{
			filepath.Join(maskRoot, "patient7_lesion1.nii.gz"): 30,
			filepath.Join(maskRoot, "patient7_lesion2.nii.gz"): 10,
		},
		Features: map[string][]extraction.FeatureValue{
			"patient7_lesion1": {{Name: "stat_mean", Value: 10}},
			"patient7_lesion2": {{Name: "stat_mean", Value: 50}},
		},
	}
	r := newRunner(t, stub)
	r.Config.ROISelection = config.ROIPerRegion
	r.Config.AggregateLesions = true

	rep, err := r.Run(context.Background(), Input{ImageDir: imageRoot, MaskDir: maskRoot})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(rep.Table.Rows) != 1 || rep.Table.Rows[0].ID != "patient7" {
		t.Fatalf("rows = %+v, want one patient7 group row", rep.Table.Rows)
	}
	got := rep.Table.Rows[0].Values["stat_mean"].Value
	if got != 20 {
		t.Errorf("aggregated stat_mean = %v, want volume-weighted 20", got)
	}
}
