package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hpungsan/casetrack/internal/config"
	"github.com/hpungsan/casetrack/internal/errors"
)

// Mode indicates whether a path check is for reading or writing.
type Mode int

const (
	ModeRead  Mode = iota // restore (read file)
	ModeWrite             // backup/export (write file)
)

// Extensions accepted by ValidatePath.
const (
	ExtCSV  = ".csv"
	ExtJSON = ".json"
)

// ValidatePath checks a user-supplied backup or export path:
//  1. no ".." components
//  2. the required extension
//  3. the file sits directly in exportsDir or an allowed_paths entry
//  4. neither the parent directory nor the file is a symlink
//
// allowed_paths entries may be doublestar glob patterns ("/data/**/exports").
// AllowUnsafePaths skips the directory rule but never the symlink rule.
func ValidatePath(path string, mode Mode, ext, exportsDir string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !strings.EqualFold(filepath.Ext(cleaned), ext) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension", ext))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		parent := filepath.Dir(absPath)
		allowed, err := allowedDirs(exportsDir, cfg)
		if err != nil {
			return err
		}
		if !isAllowedDir(parent, allowed) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory; allowed: %v", allowed))
		}
		if info, err := os.Lstat(parent); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if mode == ModeRead {
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			return errors.NewFileNotFound(path)
		}
	}
	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// allowedDirs returns exportsDir plus every absolute allowed_paths entry.
// Literal entries that are symlinks are resolved; glob patterns are kept as-is.
func allowedDirs(exportsDir string, cfg *config.Config) ([]string, error) {
	dirs := []string{exportsDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, p)
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if isGlob(d) {
			result = append(result, filepath.ToSlash(filepath.Clean(d)))
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

// isAllowedDir reports whether parent equals an allowed directory or matches
// an allowed glob pattern.
func isAllowedDir(parent string, allowed []string) bool {
	parent = filepath.Clean(parent)
	for _, dir := range allowed {
		if isGlob(dir) {
			if ok, err := doublestar.PathMatch(filepath.FromSlash(dir), parent); err == nil && ok {
				return true
			}
			continue
		}
		if parent == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	}) {
		if part == ".." {
			return true
		}
	}
	return false
}
