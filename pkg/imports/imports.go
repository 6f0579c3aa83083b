// Package imports extracts import and require declarations from JavaScript and
// TypeScript source text without building a syntax tree.
package imports

// Kind describes the syntactic form a declaration was found in.
type Kind string

// String implements fmt.Stringer for toon serialization.
func (k Kind) String() string {
	return string(k)
}

const (
	KindStatic   Kind = "static"   // import ... from "x", import "x", import x = require("x")
	KindCall     Kind = "call"     // require("x"), import("x")
	KindReexport Kind = "reexport" // export ... from "x"
)

// Declaration is one import statement found in a file.
type Declaration struct {
	ModulePath string   `json:"module_path" toon:"module_path" yaml:"module_path"`
	Bindings   []string `json:"bindings" toon:"bindings" yaml:"bindings"`
	Kind       Kind     `json:"kind" toon:"kind" yaml:"kind"`
	Start      int      `json:"start" toon:"start" yaml:"start"`
	End        int      `json:"end" toon:"end" yaml:"end"`
}

// IsRelative reports whether the module path is relative to the importing file.
func (d Declaration) IsRelative() bool {
	return IsRelativePath(d.ModulePath)
}

// IsRelativePath reports whether a module specifier starts with a relative marker.
func IsRelativePath(modulePath string) bool {
	return len(modulePath) > 0 && modulePath[0] == '.'
}

// Extract returns every import declaration recognised in text, in source order.
// It never fails: constructs it cannot make sense of produce no declaration.
func Extract(text string) []Declaration {
	p := &statementParser{toks: newTokenizer(text).tokenize()}
	return p.parse()
}

// Paths returns the module paths of decls in order.
func Paths(decls []Declaration) []string {
	paths := make([]string, 0, len(decls))
	for _, d := range decls {
		paths = append(paths, d.ModulePath)
	}
	return paths
}
