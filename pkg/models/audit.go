package models

import (
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MismatchKind identifies how a version mismatch was detected.
type MismatchKind string

const (
	// MismatchGroup means the runtime and development groups declare different specs.
	MismatchGroup MismatchKind = "group"
	// MismatchInstalled means the installed version differs from the declared spec.
	MismatchInstalled MismatchKind = "installed"
)

// String implements fmt.Stringer for toon serialization.
func (k MismatchKind) String() string { return string(k) }

// UnusedImport is an import whose bindings are partly or wholly unreferenced.
type UnusedImport struct {
	ModulePath         string   `json:"module_path" toon:"module_path" yaml:"module_path"`
	UnusedBindingNames []string `json:"unused_binding_names" toon:"unused_binding_names" yaml:"unused_binding_names"`
}

// FileAnalysis is the audit result for one source file.
type FileAnalysis struct {
	Path                      string         `json:"path" toon:"path" yaml:"path"`
	ImportPaths               []string       `json:"import_paths" toon:"import_paths" yaml:"import_paths"`
	UnusedImports             []UnusedImport `json:"unused_imports" toon:"unused_imports" yaml:"unused_imports"`
	UnresolvedRelativeImports []string       `json:"unresolved_relative_imports" toon:"unresolved_relative_imports" yaml:"unresolved_relative_imports"`
}

// NewFileAnalysis creates a FileAnalysis with every list initialized.
func NewFileAnalysis(path string) FileAnalysis {
	return FileAnalysis{
		Path:                      path,
		ImportPaths:               []string{},
		UnusedImports:             []UnusedImport{},
		UnresolvedRelativeImports: []string{},
	}
}

// HasIssues reports whether the file has unused imports or unresolved paths.
func (f FileAnalysis) HasIssues() bool {
	return len(f.UnusedImports) > 0 || len(f.UnresolvedRelativeImports) > 0
}

// Mismatch is a dependency whose declared versions disagree.
// Group mismatches fill the runtime/dev fields; installed mismatches fill
// the declared/installed fields.
type Mismatch struct {
	Name                   string       `json:"name" toon:"name" yaml:"name"`
	Kind                   MismatchKind `json:"kind" toon:"kind" yaml:"kind"`
	DeclaredRuntimeVersion string       `json:"declared_runtime_version,omitempty" toon:"declared_runtime_version,omitempty" yaml:"declared_runtime_version,omitempty"`
	DeclaredDevVersion     string       `json:"declared_dev_version,omitempty" toon:"declared_dev_version,omitempty" yaml:"declared_dev_version,omitempty"`
	DeclaredVersion        string       `json:"declared_version,omitempty" toon:"declared_version,omitempty" yaml:"declared_version,omitempty"`
	InstalledVersion       string       `json:"installed_version,omitempty" toon:"installed_version,omitempty" yaml:"installed_version,omitempty"`
}

// Warning is a non-fatal condition met while scanning, such as an unreadable file.
type Warning struct {
	Path    string `json:"path" toon:"path" yaml:"path"`
	Message string `json:"message" toon:"message" yaml:"message"`
}

// AuditSummary provides aggregate counts for a ProjectReport.
type AuditSummary struct {
	FilesScanned         int `json:"files_scanned" toon:"files_scanned" yaml:"files_scanned"`
	FilesWithIssues      int `json:"files_with_issues" toon:"files_with_issues" yaml:"files_with_issues"`
	DeclaredDependencies int `json:"declared_dependencies" toon:"declared_dependencies" yaml:"declared_dependencies"`
	UsedPackages         int `json:"used_packages" toon:"used_packages" yaml:"used_packages"`
	UnusedImports        int `json:"unused_imports" toon:"unused_imports" yaml:"unused_imports"`
	UnresolvedImports    int `json:"unresolved_imports" toon:"unresolved_imports" yaml:"unresolved_imports"`
}

// ProjectReport is the full dependency audit result. Every list is non-nil so
// renderers can iterate without nil checks.
type ProjectReport struct {
	Root                   string         `json:"root" toon:"root" yaml:"root"`
	PerFile                []FileAnalysis `json:"per_file" toon:"per_file" yaml:"per_file"`
	UnusedDependencies     []string       `json:"unused_dependencies" toon:"unused_dependencies" yaml:"unused_dependencies"`
	MissingDependencies    []string       `json:"missing_dependencies" toon:"missing_dependencies" yaml:"missing_dependencies"`
	MismatchedDependencies []Mismatch     `json:"mismatched_dependencies" toon:"mismatched_dependencies" yaml:"mismatched_dependencies"`
	Warnings               []Warning      `json:"warnings" toon:"warnings" yaml:"warnings"`
	Summary                AuditSummary   `json:"summary" toon:"summary" yaml:"summary"`
	Fingerprint            string         `json:"fingerprint" toon:"fingerprint" yaml:"fingerprint"`
}

// NewProjectReport creates an empty report for root.
func NewProjectReport(root string) *ProjectReport {
	return &ProjectReport{
		Root:                   root,
		PerFile:                []FileAnalysis{},
		UnusedDependencies:     []string{},
		MissingDependencies:    []string{},
		MismatchedDependencies: []Mismatch{},
		Warnings:               []Warning{},
	}
}

// HasFindings reports whether any file or project level issue was found.
func (r *ProjectReport) HasFindings() bool {
	return r.Summary.FilesWithIssues > 0 ||
		len(r.UnusedDependencies) > 0 ||
		len(r.MissingDependencies) > 0 ||
		len(r.MismatchedDependencies) > 0
}

// Summarize recomputes the summary counts from the report contents.
// declared and used are the sizes of the declared and used package sets.
func (r *ProjectReport) Summarize(declared, used int) {
	s := AuditSummary{
		FilesScanned:         len(r.PerFile),
		DeclaredDependencies: declared,
		UsedPackages:         used,
	}
	for _, f := range r.PerFile {
		if f.HasIssues() {
			s.FilesWithIssues++
		}
		s.UnusedImports += len(f.UnusedImports)
		s.UnresolvedImports += len(f.UnresolvedRelativeImports)
	}
	r.Summary = s
}

// ComputeFingerprint returns an xxhash digest of the report contents,
// excluding the fingerprint itself. Identical audits produce identical digests.
func (r *ProjectReport) ComputeFingerprint() string {
	clone := *r
	clone.Fingerprint = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
