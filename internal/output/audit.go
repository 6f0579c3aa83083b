package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/depaudit/pkg/models"
)

// AuditOptions controls which parts of an audit report are rendered for
// people. Structured formats always carry the full report.
type AuditOptions struct {
	// Verbose lists every scanned file and the scan warnings; otherwise only
	// files with issues are listed.
	Verbose bool
}

// NewAuditReport builds the renderable view of a dependency audit.
func NewAuditReport(r *models.ProjectReport, opts AuditOptions) *Report {
	rep := &Report{
		Title: "Dependency Audit",
		Data:  r,
	}

	rep.Sections = append(rep.Sections, filesTable(r, opts.Verbose))

	if len(r.UnusedDependencies) > 0 {
		rep.Sections = append(rep.Sections, &Section{
			Title: "Unused Dependencies",
			Items: r.UnusedDependencies,
			Attr:  []color.Attribute{color.FgYellow},
		})
	}
	if len(r.MissingDependencies) > 0 {
		rep.Sections = append(rep.Sections, &Section{
			Title: "Missing Dependencies",
			Items: r.MissingDependencies,
			Attr:  []color.Attribute{color.FgRed},
		})
	}
	if len(r.MismatchedDependencies) > 0 {
		rep.Sections = append(rep.Sections, mismatchTable(r.MismatchedDependencies))
	}
	if opts.Verbose && len(r.Warnings) > 0 {
		items := make([]string, len(r.Warnings))
		for i, w := range r.Warnings {
			items[i] = w.Path + ": " + w.Message
		}
		rep.Sections = append(rep.Sections, &Section{
			Title: "Warnings",
			Items: items,
			Attr:  []color.Attribute{color.FgHiBlack},
		})
	}

	rep.Sections = append(rep.Sections, summarySection(r))
	return rep
}

func filesTable(r *models.ProjectReport, verbose bool) *Table {
	rows := make([][]string, 0, len(r.PerFile))
	for _, f := range r.PerFile {
		if !verbose && !f.HasIssues() {
			continue
		}
		imports := "(none)"
		if len(f.ImportPaths) > 0 {
			imports = strings.Join(f.ImportPaths, ", ")
		}
		rows = append(rows, []string{f.Path, imports, FileIssues(f)})
	}

	title := "Files With Issues"
	if verbose {
		title = "Scanned Files"
	}
	return NewTable(title, []string{"Path", "Imports", "Issues"}, rows, nil, r.PerFile)
}

// FileIssues describes a file's problems on one line, or "-" when it has none.
func FileIssues(f models.FileAnalysis) string {
	var parts []string
	for _, u := range f.UnusedImports {
		parts = append(parts, fmt.Sprintf("unused %s (%s)", u.ModulePath, strings.Join(u.UnusedBindingNames, ", ")))
	}
	if len(f.UnresolvedRelativeImports) > 0 {
		parts = append(parts, "unresolved "+strings.Join(f.UnresolvedRelativeImports, ", "))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}

func mismatchTable(ms []models.Mismatch) *Table {
	rows := make([][]string, len(ms))
	for i, m := range ms {
		switch m.Kind {
		case models.MismatchInstalled:
			rows[i] = []string{m.Name, m.Kind.String(), m.DeclaredVersion, m.InstalledVersion}
		default:
			rows[i] = []string{m.Name, m.Kind.String(), m.DeclaredRuntimeVersion, m.DeclaredDevVersion}
		}
	}
	return NewTable("Mismatched Versions", []string{"Package", "Kind", "Declared", "Other"}, rows, nil, ms)
}

func summarySection(r *models.ProjectReport) *Section {
	s := r.Summary
	status := "No issues found."
	if r.HasFindings() {
		status = "Issues found."
	}
	return &Section{
		Title: "Summary",
		Items: []string{
			"Files scanned: " + strconv.Itoa(s.FilesScanned),
			"Files with issues: " + strconv.Itoa(s.FilesWithIssues),
			"Declared dependencies: " + strconv.Itoa(s.DeclaredDependencies),
			"Used packages: " + strconv.Itoa(s.UsedPackages),
			"Unused dependencies: " + strconv.Itoa(len(r.UnusedDependencies)),
			"Missing dependencies: " + strconv.Itoa(len(r.MissingDependencies)),
			"Mismatched versions: " + strconv.Itoa(len(r.MismatchedDependencies)),
		},
		Content: status,
		Data:    s,
	}
}
