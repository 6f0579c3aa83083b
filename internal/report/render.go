package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"github.com/panbanda/depaudit/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed template.html
var templateFS embed.FS

// Renderer handles HTML report generation.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"lower":        strings.ToLower,
		"title":        cases.Title(language.English).String,
		"truncatePath": truncatePath,
		"percent":      percent,
		"num":          num,
		"join":         strings.Join,
		"limit": func(items interface{}, n int) interface{} {
			switch v := items.(type) {
			case []models.FileAnalysis:
				if len(v) > n {
					return v[:n]
				}
				return v
			case []string:
				if len(v) > n {
					return v[:n]
				}
				return v
			default:
				return items
			}
		},
		"json": func(v interface{}) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the HTML page for an audit report.
func (r *Renderer) Render(report *models.ProjectReport, meta Metadata, w io.Writer) error {
	return r.tmpl.Execute(w, BuildData(report, meta))
}

// RenderFile renders a report previously saved with --format json.
func (r *Renderer) RenderFile(reportPath string, meta Metadata, w io.Writer) error {
	var report models.ProjectReport
	if err := loadJSON(reportPath, &report); err != nil {
		return fmt.Errorf("load report %s: %w", reportPath, err)
	}
	if meta.Root == "" {
		meta.Root = report.Root
	}
	return r.Render(&report, meta, w)
}

// RenderToFile generates HTML and writes it to a file.
func (r *Renderer) RenderToFile(report *models.ProjectReport, meta Metadata, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return r.Render(report, meta, f)
}

// BuildData flattens a report into what the template displays.
func BuildData(report *models.ProjectReport, meta Metadata) *RenderData {
	if meta.Root == "" {
		meta.Root = report.Root
	}
	if meta.Fingerprint == "" {
		meta.Fingerprint = report.Fingerprint
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	data := &RenderData{
		Metadata:    meta,
		Summary:     report.Summary,
		HealthClass: healthClass(report),
		Files:       []models.FileAnalysis{},
		Unused:      report.UnusedDependencies,
		Missing:     report.MissingDependencies,
		Mismatches:  report.MismatchedDependencies,
	}
	for _, f := range report.PerFile {
		if f.HasIssues() {
			data.Files = append(data.Files, f)
		}
	}
	for _, w := range report.Warnings {
		data.Warnings = append(data.Warnings, w.Path+": "+w.Message)
	}
	data.Recommendations = recommend(report)
	return data
}

// healthClass maps findings to a badge: missing packages break at runtime,
// everything else is cleanup.
func healthClass(report *models.ProjectReport) string {
	switch {
	case len(report.MissingDependencies) > 0:
		return "danger"
	case report.HasFindings():
		return "warning"
	default:
		return "good"
	}
}

func recommend(report *models.ProjectReport) Recommendations {
	var recs Recommendations

	if n := len(report.MissingDependencies); n > 0 {
		recs.HighPriority = append(recs.HighPriority, Recommendation{
			Title:       fmt.Sprintf("Declare %d missing package(s)", n),
			Description: "These packages are imported but not listed in package.json and only resolve through hoisting or a global install.",
			Packages:    report.MissingDependencies,
		})
	}
	if report.Summary.UnresolvedImports > 0 {
		recs.HighPriority = append(recs.HighPriority, Recommendation{
			Title:       fmt.Sprintf("Fix %d unresolved relative import(s)", report.Summary.UnresolvedImports),
			Description: "Relative imports that point at no file fail at bundle or run time.",
		})
	}

	var group, installed []string
	for _, m := range report.MismatchedDependencies {
		if m.Kind == models.MismatchInstalled {
			installed = append(installed, m.Name)
		} else {
			group = append(group, m.Name)
		}
	}
	if len(installed) > 0 {
		recs.MediumPriority = append(recs.MediumPriority, Recommendation{
			Title:       "Reinstall packages that drifted from package.json",
			Description: "node_modules holds versions other than the declared ones.",
			Packages:    installed,
		})
	}
	if len(group) > 0 {
		recs.MediumPriority = append(recs.MediumPriority, Recommendation{
			Title:       "Align versions declared in both dependency groups",
			Description: "dependencies and devDependencies declare different specs for the same package.",
			Packages:    group,
		})
	}

	if n := len(report.UnusedDependencies); n > 0 {
		recs.LowPriority = append(recs.LowPriority, Recommendation{
			Title:       fmt.Sprintf("Remove %d unused dependenc(ies)", n),
			Description: "No scanned file imports these packages. Check scripts and config files before removing.",
			Packages:    report.UnusedDependencies,
		})
	}
	if report.Summary.UnusedImports > 0 {
		recs.LowPriority = append(recs.LowPriority, Recommendation{
			Title:       fmt.Sprintf("Drop %d unused import binding group(s)", report.Summary.UnusedImports),
			Description: "Imported names that are never referenced in their file.",
		})
	}
	return recs
}

func truncatePath(s string, n int) string {
	if len(s) <= n {
		return s
	}
	parts := strings.Split(s, "/")
	if len(parts) <= 2 {
		return s[:n-3] + "..."
	}
	filename := parts[len(parts)-1]
	if len(filename) >= n-3 {
		return "..." + filename[len(filename)-n+3:]
	}
	remaining := n - len(filename) - len(".../") - 1
	if remaining < 0 {
		remaining = 0
	}
	prefix := strings.Join(parts[:len(parts)-1], "/")
	if len(prefix) > remaining {
		prefix = prefix[len(prefix)-remaining:]
	}
	return ".../" + prefix + "/" + filename
}

func percent(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b) * 100
}

func num(n interface{}) string {
	p := message.NewPrinter(language.English)
	switch v := n.(type) {
	case int:
		return p.Sprintf("%d", v)
	case int64:
		return p.Sprintf("%d", v)
	case float64:
		return p.Sprintf("%d", int64(v))
	default:
		return "0"
	}
}

func loadJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewDecoder(f).Decode(v)
}
