package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrInput marks a missing or unreadable input path.
var ErrInput = errors.New("bad input path")

// ErrNoCasesFound is returned when batch discovery matches zero pairs.
var ErrNoCasesFound = errors.New("no cases found")

// Case is one extraction unit: a resolved image/mask pair.
type Case struct {
	ID          string
	ImagePath   string
	MaskPath    string
	LesionGroup string
}

// Unmatched records an image file that had no mask at the same relative
// path. Unmatched entries are reported per case and never abort the batch.
type Unmatched struct {
	ID      string
	RelPath string
	Reason  string
}

// Single builds the one-case list for an explicit image/mask pair.
func Single(imagePath, maskPath string) ([]Case, error) {
	for _, p := range []string{imagePath, maskPath} {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInput, p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory, expected a file", ErrInput, p)
		}
	}
	id := stripExtensions(filepath.Base(imagePath))
	return []Case{{
		ID:          id,
		ImagePath:   imagePath,
		MaskPath:    maskPath,
		LesionGroup: lesionGroup(id),
	}}, nil
}

// Resolve walks imageRoot and pairs every image file with the mask at the
// same relative path under maskRoot. Files present only under maskRoot are
// ignored. The returned cases are ordered lexicographically by relative
// path and carry unique ids; images without a counterpart come back as
// Unmatched entries. When nothing pairs at all the error is ErrNoCasesFound.
func Resolve(imageRoot, maskRoot string) ([]Case, []Unmatched, error) {
	for _, root := range []string{imageRoot, maskRoot} {
		info, err := os.Stat(root)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrInput, root, err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("%w: %s is not a directory", ErrInput, root)
		}
	}

	relPaths, err := listFiles(imageRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("walk image root: %w", err)
	}
	if len(relPaths) == 0 {
		return nil, nil, fmt.Errorf("%w: no image files under %s", ErrNoCasesFound, imageRoot)
	}
	sort.Strings(relPaths)

	var (
		matched   []Case
		unmatched []Unmatched
		seen      = make(map[string]string, len(relPaths))
	)
	for _, rel := range relPaths {
		id := stripExtensions(rel)
		if prior, dup := seen[id]; dup {
			unmatched = append(unmatched, Unmatched{
				ID:      id,
				RelPath: rel,
				Reason:  fmt.Sprintf("case id collides with %s", prior),
			})
			continue
		}
		seen[id] = rel

		maskPath := filepath.Join(maskRoot, filepath.FromSlash(rel))
		info, err := os.Stat(maskPath)
		if err != nil || info.IsDir() {
			unmatched = append(unmatched, Unmatched{
				ID:      id,
				RelPath: rel,
				Reason:  fmt.Sprintf("no mask at %s", rel),
			})
			continue
		}

		matched = append(matched, Case{
			ID:          id,
			ImagePath:   filepath.Join(imageRoot, filepath.FromSlash(rel)),
			MaskPath:    maskPath,
			LesionGroup: lesionGroup(id),
		})
	}

	if len(matched) == 0 {
		return nil, unmatched, fmt.Errorf("%w: %d image files, none with a matching mask", ErrNoCasesFound, len(relPaths))
	}
	return matched, unmatched, nil
}

// listFiles returns slash-separated relative paths of all regular files
// under root. Hidden files and directories are skipped.
func listFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// imageExtensions lists compound suffixes stripped before the generic
// single-extension fallback. Keeps "patient7.nii.gz" and "patient7.nrrd"
// mapping to the same id.
var imageExtensions = []string{
	".nii.gz", ".nrrd.gz", ".img.gz",
	".nii", ".nrrd", ".dcm", ".img", ".hdr", ".mha", ".mhd",
}

func stripExtensions(rel string) string {
	lower := strings.ToLower(rel)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return rel[:len(rel)-len(ext)]
		}
	}
	if ext := filepath.Ext(rel); ext != "" {
		return rel[:len(rel)-len(ext)]
	}
	return rel
}

// IDFor maps an image path relative to its root to the case id used in
// reports and run history.
func IDFor(rel string) string {
	return stripExtensions(filepath.ToSlash(rel))
}

// lesionGroupPattern captures the shared prefix of per-lesion mask naming
// such as "patient7_lesion1" or "patient7_roi-2".
var lesionGroupPattern = regexp.MustCompile(`(?i)^(.+?)[_-](?:lesion|roi)[_-]?\d+$`)

// lesionGroup derives the aggregation group for a case id. Ids without a
// per-lesion suffix form their own group.
func lesionGroup(id string) string {
	base := filepath.ToSlash(id)
	if m := lesionGroupPattern.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	return base
}
