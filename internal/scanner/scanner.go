package scanner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/models"
)

// AccessError indicates the scan root is missing, unreadable or not a directory.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return "cannot access " + e.Path + ": " + e.Err.Error()
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// ErrNotDirectory is wrapped by AccessError when the root is a regular file.
var ErrNotDirectory = errors.New("not a directory")

// Scanner finds source files in a directory.
type Scanner struct {
	config   *config.Config
	matchers []gitignore.Matcher
	warnings []models.Warning
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Warnings returns the non-fatal problems met during the last scan, such as
// subdirectories that could not be read.
func (s *Scanner) Warnings() []models.Warning {
	return s.warnings
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns loads exclusion patterns from both config and .gitignore files.
// Config patterns are parsed as gitignore patterns and combined with .gitignore files.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matchers = nil
	var patterns []gitignore.Pattern

	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}

	// .gitignore rules are expressed relative to the repository root, so they
	// get their own matcher fed with repo-relative paths.
	if s.config.Exclude.Gitignore {
		gitRoot := findGitRoot(root)
		if gitRoot == "" {
			return
		}
		if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil && len(gitPatterns) > 0 {
			s.matchers = append(s.matchers, &repoMatcher{
				root:     gitRoot,
				scanRoot: root,
				matcher:  gitignore.NewMatcher(gitPatterns),
			})
		}
	}
}

// repoMatcher applies .gitignore rules to paths under the scan root by
// re-expressing them relative to the repository root.
type repoMatcher struct {
	root     string
	scanRoot string
	matcher  gitignore.Matcher
}

func (m *repoMatcher) Match(path []string, isDir bool) bool {
	abs := filepath.Join(append([]string{m.scanRoot}, path...)...)
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return m.matcher.Match(strings.Split(rel, string(filepath.Separator)), isDir)
}

// isExcluded checks if a path matches any exclusion pattern.
func (s *Scanner) isExcluded(path string, isDir bool) bool {
	if len(s.matchers) == 0 {
		return false
	}

	pathParts := strings.Split(path, string(filepath.Separator))
	for _, m := range s.matchers {
		if m.Match(pathParts, isDir) {
			return true
		}
	}
	return false
}

// ScanDir recursively scans a directory for source files, depth first and in
// lexical order within each directory. Directories whose base name matches an
// excluded name (ignoring case) are not descended into. Unreadable
// subdirectories are skipped and recorded as warnings.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	s.warnings = nil

	info, err := os.Stat(root)
	if err != nil {
		return nil, &AccessError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &AccessError{Path: root, Err: ErrNotDirectory}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &AccessError{Path: root, Err: err}
	}
	// Resolve any symlinks in the root path
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, &AccessError{Path: root, Err: err}
	}

	s.loadExcludePatterns(absRoot)

	// The walk runs over the resolved root so a symlinked project directory is
	// descended into. Returned paths stay under the root as given.
	files := make([]string, 0, 256)
	walkErr := filepath.WalkDir(realRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == realRoot {
				return &AccessError{Path: root, Err: err}
			}
			s.warn(realRoot, path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == realRoot {
			return nil
		}

		relPath, _ := filepath.Rel(realRoot, path)

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, realRoot) {
				return nil
			}
			target, err := os.Stat(resolved)
			if err != nil || target.IsDir() {
				// Symlinked directories are not followed
				return nil
			}
		}

		if d.IsDir() {
			if s.config.IsExcludedDir(d.Name()) || s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(relPath, false) || !s.config.HasExtension(path) {
			return nil
		}
		files = append(files, filepath.Join(absRoot, relPath))
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return files, nil
}

func (s *Scanner) warn(root, path string, err error) {
	rel, relErr := filepath.Rel(root, path)
	if relErr != nil {
		rel = path
	}
	s.warnings = append(s.warnings, models.Warning{
		Path:    filepath.ToSlash(rel),
		Message: "skipped unreadable entry: " + err.Error(),
	})
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// FilterBySize filters files that exceed the configured maximum size.
// Returns the filtered list and the paths that were skipped.
// If maxSize is 0, returns the original list unchanged.
func FilterBySize(files []string, maxSize int64) ([]string, []string) {
	if maxSize <= 0 {
		return files, nil
	}

	filtered := make([]string, 0, len(files))
	var skipped []string

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.Size() > maxSize {
			skipped = append(skipped, f)
			continue
		}
		filtered = append(filtered, f)
	}

	return filtered, skipped
}
