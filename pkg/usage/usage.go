// Package usage determines which imported bindings a file never references
// and which relative imports do not resolve to a file on disk.
package usage

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/panbanda/depaudit/pkg/imports"
	"github.com/panbanda/depaudit/pkg/models"
)

// DefaultResolveExtensions is the order in which extensions are appended when
// resolving a relative import. Module sources come before typed sources.
var DefaultResolveExtensions = []string{".js", ".ts", ".jsx", ".tsx"}

// StatFunc reports file information for a path. It matches os.Stat.
type StatFunc func(path string) (os.FileInfo, error)

// Analyzer checks bindings and relative paths for a single file.
type Analyzer struct {
	extensions []string
	stat       StatFunc
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithResolveExtensions sets the extensions tried, in order, for relative imports.
func WithResolveExtensions(exts []string) Option {
	return func(a *Analyzer) {
		if len(exts) > 0 {
			a.extensions = exts
		}
	}
}

// WithStat replaces the existence check (for testing).
func WithStat(fn StatFunc) Option {
	return func(a *Analyzer) {
		a.stat = fn
	}
}

// New creates a usage analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		extensions: DefaultResolveExtensions,
		stat:       os.Stat,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces the FileAnalysis for a file. absPath locates the file on
// disk for relative resolution; reportPath is the path recorded in the result.
func (a *Analyzer) Analyze(absPath, reportPath, text string, decls []imports.Declaration) models.FileAnalysis {
	result := models.NewFileAnalysis(reportPath)
	result.ImportPaths = append(result.ImportPaths, imports.Paths(decls)...)

	body := CodeBody(text, decls)
	dir := filepath.Dir(absPath)

	for _, d := range decls {
		if unused := UnusedBindings(body, d.Bindings); len(unused) > 0 {
			result.UnusedImports = append(result.UnusedImports, models.UnusedImport{
				ModulePath:         d.ModulePath,
				UnusedBindingNames: unused,
			})
		}
		if d.IsRelative() && !a.Resolves(dir, d.ModulePath) {
			result.UnresolvedRelativeImports = append(result.UnresolvedRelativeImports, d.ModulePath)
		}
	}
	return result
}

// Resolves reports whether a relative module path exists under dir, either
// literally or with one of the configured extensions appended.
func (a *Analyzer) Resolves(dir, modulePath string) bool {
	target := filepath.Join(dir, filepath.FromSlash(modulePath))
	if a.exists(target) {
		return true
	}
	for _, ext := range a.extensions {
		if a.exists(target + ext) {
			return true
		}
	}
	return false
}

func (a *Analyzer) exists(path string) bool {
	_, err := a.stat(path)
	return err == nil
}

// CodeBody returns text with every declaration span blanked out, so a binding
// is never matched only inside its own import statement. Newlines are kept.
func CodeBody(text string, decls []imports.Declaration) string {
	if len(decls) == 0 {
		return text
	}
	buf := []byte(text)
	for _, d := range decls {
		start, end := max(d.Start, 0), min(d.End, len(buf))
		for i := start; i < end; i++ {
			if buf[i] != '\n' {
				buf[i] = ' '
			}
		}
	}
	return string(buf)
}

// UnusedBindings returns the bindings that never occur in body as whole words,
// preserving their order. It returns nil when every binding is used.
func UnusedBindings(body string, bindings []string) []string {
	var unused []string
	for _, name := range bindings {
		if !ContainsWord(body, name) {
			unused = append(unused, name)
		}
	}
	return unused
}

// ContainsWord reports whether word occurs in s delimited by non-identifier
// characters. "Foo" matches in "Foo(" and "<Foo " but not in "FooBar".
func ContainsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		idx := strings.Index(s[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !imports.IsIdentRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !imports.IsIdentRune(r)
}
