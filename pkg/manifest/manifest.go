// Package manifest reads a project's declared dependencies from package.json.
package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// FileName is the manifest file looked up at the project root.
const FileName = "package.json"

// Group is a dependency declaration group.
type Group string

// String implements fmt.Stringer for toon serialization.
func (g Group) String() string {
	return string(g)
}

const (
	GroupRuntime     Group = "runtime"
	GroupDevelopment Group = "development"
)

// Dependency is one manifest entry.
type Dependency struct {
	Name        string `json:"name" toon:"name"`
	Group       Group  `json:"group" toon:"group"`
	VersionSpec string `json:"version_spec" toon:"version_spec"`
}

// Manifest holds the declared dependencies, partitioned by group.
// A name may appear in both groups with different specs.
type Manifest struct {
	Path    string
	Name    string
	Version string
	Runtime map[string]string
	Dev     map[string]string
}

// Dependencies returns every declared entry, runtime group first, each group
// sorted by name.
func (m *Manifest) Dependencies() []Dependency {
	deps := make([]Dependency, 0, len(m.Runtime)+len(m.Dev))
	deps = appendGroup(deps, GroupRuntime, m.Runtime)
	deps = appendGroup(deps, GroupDevelopment, m.Dev)
	return deps
}

// DeclaredNames returns the sorted union of names across both groups.
func (m *Manifest) DeclaredNames() []string {
	seen := make(map[string]struct{}, len(m.Runtime)+len(m.Dev))
	for name := range m.Runtime {
		seen[name] = struct{}{}
	}
	for name := range m.Dev {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func appendGroup(deps []Dependency, group Group, m map[string]string) []Dependency {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		deps = append(deps, Dependency{Name: name, Group: group, VersionSpec: m[name]})
	}
	return deps
}

// Load reads root/package.json.
// It returns *NotFoundError when the file is absent and *ParseError when the
// document is not valid JSON or its dependency sections are not string maps.
func Load(root string) (*Manifest, error) {
	return LoadFile(filepath.Join(root, FileName))
}

// LoadFile reads the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	if err := validateDocument(doc.raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return &Manifest{
		Path:    path,
		Name:    stringField(doc.fields, "name"),
		Version: stringField(doc.fields, "version"),
		Runtime: stringMap(doc.fields, "dependencies"),
		Dev:     stringMap(doc.fields, "devDependencies"),
	}, nil
}

type document struct {
	raw    []byte
	fields map[string]interface{}
}

func readDocument(path string) (*document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, &NotFoundError{Path: path}
	}

	raw, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fields, err := json.Parser().Unmarshal(raw)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &document{raw: raw, fields: fields}, nil
}

//go:embed schema.json
var schemaSource []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaSource))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("manifest.schema.json")
	})
	return schema, schemaErr
}

func validateDocument(raw []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

func stringMap(fields map[string]interface{}, key string) map[string]string {
	out := make(map[string]string)
	section, ok := fields[key].(map[string]interface{})
	if !ok {
		return out
	}
	for name, v := range section {
		if s, ok := v.(string); ok {
			out[name] = s
		}
	}
	return out
}
