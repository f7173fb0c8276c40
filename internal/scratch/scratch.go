package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	runDirPrefix = "run-"
	lockFileName = ".lock"
)

// Cache owns the scratch directory for one run.
type Cache struct {
	root string

	mu     sync.Mutex
	runDir string
	lock   *flock.Flock
}

// New returns a Cache rooted at the configured scratch directory. Nothing
// is created until the first job asks for space.
func New(root string) *Cache {
	return &Cache{root: root}
}

// RunDir returns the run-scoped directory, creating and locking it on
// first use.
func (c *Cache) RunDir() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runDirLocked()
}

func (c *Cache) runDirLocked() (string, error) {
	if c.runDir != "" {
		return c.runDir, nil
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", fmt.Errorf("create scratch root: %w", err)
	}

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	runDir := filepath.Join(c.root, runDirPrefix+nonce)
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run scratch directory: %w", err)
	}

	lock := flock.New(filepath.Join(runDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		os.RemoveAll(runDir)
		if err == nil {
			err = fmt.Errorf("already locked")
		}
		return "", fmt.Errorf("lock run scratch directory: %w", err)
	}

	c.runDir = runDir
	c.lock = lock
	return runDir, nil
}

// JobDir returns a directory reserved for one case, unique within the run.
// Path separators in the case id are flattened so nested ids stay one
// level deep.
func (c *Cache) JobDir(caseID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	runDir, err := c.runDirLocked()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(runDir, sanitize(caseID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job scratch directory: %w", err)
	}
	return dir, nil
}

// Cleanup releases the run lock and removes the run directory. Safe to
// call when nothing was ever created, and safe to call more than once.
func (c *Cache) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runDir == "" {
		return nil
	}
	if c.lock != nil {
		if err := c.lock.Unlock(); err != nil {
			return fmt.Errorf("unlock run scratch directory: %w", err)
		}
		c.lock = nil
	}
	if err := os.RemoveAll(c.runDir); err != nil {
		return fmt.Errorf("remove run scratch directory: %w", err)
	}
	c.runDir = ""
	return nil
}

// SweepStale removes run directories under root older than olderThan whose
// lock can be acquired, meaning the owning process is gone. Returns the
// number of directories removed.
func SweepStale(root string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch root: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		lock := flock.New(filepath.Join(dir, lockFileName))
		locked, err := lock.TryLock()
		if err != nil || !locked {
			// Held lock means a live run still owns the directory.
			continue
		}
		lock.Unlock()

		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("remove stale scratch directory %s: %w", dir, err)
		}
		removed++
	}
	return removed, nil
}

func sanitize(caseID string) string {
	replacer := strings.NewReplacer("/", "__", "\\", "__", string(filepath.Separator), "__")
	cleaned := replacer.Replace(caseID)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		cleaned = "case"
	}
	return cleaned
}
