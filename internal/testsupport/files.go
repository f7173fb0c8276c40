package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates the target path with placeholder content, creating
// parent directories as needed.
func WriteFile(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteDataset lays out mirrored image and mask trees under base and
// returns the two roots. Every relative path gets a file on both sides.
func WriteDataset(t testing.TB, base string, relPaths ...string) (imageRoot, maskRoot string) {
	t.Helper()

	imageRoot = filepath.Join(base, "images")
	maskRoot = filepath.Join(base, "masks")
	for _, rel := range relPaths {
		WriteFile(t, filepath.Join(imageRoot, filepath.FromSlash(rel)))
		WriteFile(t, filepath.Join(maskRoot, filepath.FromSlash(rel)))
	}
	return imageRoot, maskRoot
}
