package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunDirLazyAndStable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	cache := New(root)

	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatal("scratch root created before first use")
	}

	first, err := cache.RunDir()
	if err != nil {
		t.Fatalf("RunDir returned error: %v", err)
	}
	second, err := cache.RunDir()
	if err != nil {
		t.Fatalf("RunDir returned error: %v", err)
	}
	if first != second {
		t.Errorf("run dir changed between calls: %q vs %q", first, second)
	}
	if !strings.HasPrefix(filepath.Base(first), runDirPrefix) {
		t.Errorf("run dir %q missing %q prefix", first, runDirPrefix)
	}
}

func TestJobDirsAreDisjoint(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "scratch"))
	t.Cleanup(func() { cache.Cleanup() })

	a, err := cache.JobDir("site1/patient7")
	if err != nil {
		t.Fatalf("JobDir returned error: %v", err)
	}
	b, err := cache.JobDir("site1__patient8")
	if err != nil {
		t.Fatalf("JobDir returned error: %v", err)
	}
	if a == b {
		t.Fatalf("distinct cases share a job dir: %q", a)
	}
	for _, dir := range []string{a, b} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("job dir %q not created: %v", dir, err)
		}
	}
}

func TestCleanupRemovesRunDir(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "scratch"))
	dir, err := cache.JobDir("patient7")
	if err != nil {
		t.Fatalf("JobDir returned error: %v", err)
	}
	if err := cache.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("job dir still present after cleanup: %v", err)
	}
	// Second cleanup is a no-op.
	if err := cache.Cleanup(); err != nil {
		t.Fatalf("second Cleanup returned error: %v", err)
	}
}

func TestCleanupWithoutUseIsNoop(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "scratch"))
	if err := cache.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
}

func TestRunDirFailsWhenRootNotWritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not bind for root")
	}
	root := t.TempDir()
	if err := os.Chmod(root, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(root, 0o755) })

	cache := New(filepath.Join(root, "scratch"))
	if _, err := cache.RunDir(); err == nil {
		t.Fatal("expected error for unwritable scratch root")
	}
}

func TestSweepStale(t *testing.T) {
	root := t.TempDir()

	stale := filepath.Join(root, runDirPrefix+"stale")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	fresh := filepath.Join(root, runDirPrefix+"fresh")
	if err := os.MkdirAll(fresh, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	unrelated := filepath.Join(root, "keepme")
	if err := os.MkdirAll(unrelated, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Chtimes(unrelated, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := SweepStale(root, 48*time.Hour)
	if err != nil {
		t.Fatalf("SweepStale returned error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale run dir not removed")
	}
	for _, dir := range []string{fresh, unrelated} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s should survive the sweep: %v", dir, err)
		}
	}
}

func TestSweepStaleSkipsLockedRun(t *testing.T) {
	root := t.TempDir()
	cache := New(root)
	dir, err := cache.RunDir()
	if err != nil {
		t.Fatalf("RunDir returned error: %v", err)
	}
	t.Cleanup(func() { cache.Cleanup() })

	old := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := SweepStale(root, 48*time.Hour)
	if err != nil {
		t.Fatalf("SweepStale returned error: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0 while lock is held", removed)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("live run dir removed: %v", err)
	}
}

func TestSweepStaleMissingRoot(t *testing.T) {
	removed, err := SweepStale(filepath.Join(t.TempDir(), "absent"), time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("SweepStale = (%d, %v), want (0, nil)", removed, err)
	}
}
