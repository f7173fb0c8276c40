package runstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, started time.Time) Run {
	return Run{
		ID:                  id,
		Mode:                "handcrafted",
		StartedAt:           started,
		FinishedAt:          started.Add(5 * time.Minute),
		Submitted:           3,
		Succeeded:           1,
		Skipped:             1,
		Failed:              1,
		ImageInput:          "/data/images",
		MaskInput:           "/data/masks",
		OutputDir:           "/results/" + id,
		ParamsJSON:          `{"mode":"handcrafted"}`,
		CompletedWithErrors: true,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := openStore(t)
	started := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	outcomes := []CaseOutcome{
		{CaseID: "a", Status: "success", DurationMS: 1200},
		{CaseID: "b", Status: "skipped", Message: "below minimum"},
		{CaseID: "c", Status: "failed", Kind: "match", Message: "no mask at c.nii.gz"},
	}
	if err := store.SaveRun(context.Background(), sampleRun("run-1", started), outcomes); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	run, err := store.GetRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if run.Mode != "handcrafted" || run.Submitted != 3 || !run.CompletedWithErrors {
		t.Errorf("run = %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", run.StartedAt, started)
	}

	loaded, err := store.RunOutcomes(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("RunOutcomes returned error: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(loaded))
	}
	if loaded[2].Kind != "match" || loaded[2].Message == "" {
		t.Errorf("failed outcome = %+v", loaded[2])
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.GetRun(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-old", "run-mid", "run-new"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Hour))
		if err := store.SaveRun(context.Background(), run, nil); err != nil {
			t.Fatalf("SaveRun(%s) returned error: %v", id, err)
		}
	}

	runs, err := store.ListRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "run-new" || runs[1].ID != "run-mid" {
		t.Errorf("order = %s, %s; want run-new, run-mid", runs[0].ID, runs[1].ID)
	}

	all, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d runs, want 3", len(all))
	}
}

func TestFailedCaseIDs(t *testing.T) {
	store := openStore(t)
	outcomes := []CaseOutcome{
		{CaseID: "z", Status: "failed", Kind: "extraction"},
		{CaseID: "a", Status: "failed", Kind: "timeout"},
		{CaseID: "b", Status: "success"},
	}
	run := sampleRun("run-1", time.Now())
	if err := store.SaveRun(context.Background(), run, outcomes); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	ids, err := store.FailedCaseIDs(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("FailedCaseIDs returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "z" {
		t.Errorf("ids = %v, want [a z]", ids)
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store := openStore(t)
	run := sampleRun("run-1", time.Now())
	if err := store.SaveRun(context.Background(), run, nil); err != nil {
		t.Fatalf("first SaveRun returned error: %v", err)
	}
	if err := store.SaveRun(context.Background(), run, nil); err == nil {
		t.Fatal("duplicate run id accepted")
	}
}
