package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"toon", FormatTOON},
		{"TOON", FormatTOON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{"", FormatText},
		{"invalid", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseFormat(tt.input)
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatIsStructured(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatTOON, FormatYAML} {
		if !f.IsStructured() {
			t.Errorf("%s should be structured", f)
		}
	}
	for _, f := range []Format{FormatText, FormatMarkdown} {
		if f.IsStructured() {
			t.Errorf("%s should not be structured", f)
		}
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "report.json")

	f, err := NewFormatter(FormatJSON, outputPath, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.Colored() {
		t.Error("color should be disabled when writing to a file")
	}
	if err := f.Output(map[string]int{"files": 3}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, data)
	}
	if got["files"] != 3 {
		t.Errorf("files = %d, want 3", got["files"])
	}
}

func TestNewFormatterInvalidPath(t *testing.T) {
	_, err := NewFormatter(FormatText, filepath.Join(t.TempDir(), "missing", "dir", "out.txt"), false)
	if err == nil {
		t.Error("NewFormatter() should fail for an uncreatable path")
	}
}

func TestFormatterGetters(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatMarkdown, &buf, true)

	if f.Format() != FormatMarkdown {
		t.Errorf("Format() = %q, want %q", f.Format(), FormatMarkdown)
	}
	if f.Writer() != &buf {
		t.Error("Writer() should return the provided writer")
	}
	if !f.Colored() {
		t.Error("Colored() should be true")
	}
	if err := f.Close(); err != nil {
		t.Errorf("Close() on writer formatter should not error: %v", err)
	}
}

func TestTableRenderText(t *testing.T) {
	table := NewTable(
		"Scanned Files",
		[]string{"Path", "Imports"},
		[][]string{
			{"src/a.js", "react"},
			{"src/b.ts", "(none)"},
		},
		[]string{"Total", "2"},
		nil,
	)

	var buf bytes.Buffer
	if err := table.RenderText(&buf, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"Scanned Files", "PATH", "IMPORTS", "src/a.js", "react", "(none)", "Total"} {
		if !strings.Contains(output, want) {
			t.Errorf("RenderText() missing %q in output:\n%s", want, output)
		}
	}
}

func TestTableRenderMarkdown(t *testing.T) {
	table := NewTable("Mismatched Versions", []string{"Package", "Declared"},
		[][]string{{"lodash", "^4.17.0 || ^3"}}, nil, nil)

	var buf bytes.Buffer
	if err := table.RenderMarkdown(&buf); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}

	want := "## Mismatched Versions\n\n| Package | Declared |\n| --- | --- |\n| lodash | ^4.17.0 \\|\\| ^3 |\n\n"
	if buf.String() != want {
		t.Errorf("RenderMarkdown() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestTableRenderData(t *testing.T) {
	table := NewTable("", []string{"A", "B"}, [][]string{{"1", "2"}, {"3"}}, nil, nil)

	got, ok := table.RenderData().([]map[string]string)
	if !ok {
		t.Fatalf("RenderData() type = %T", table.RenderData())
	}
	if len(got) != 2 || got[0]["A"] != "1" || got[0]["B"] != "2" || got[1]["A"] != "3" {
		t.Errorf("RenderData() = %v", got)
	}
	if _, exists := got[1]["B"]; exists {
		t.Error("short rows should not produce missing columns")
	}

	withData := NewTable("", nil, nil, nil, []int{1, 2})
	if d, ok := withData.RenderData().([]int); !ok || len(d) != 2 {
		t.Errorf("RenderData() should return wrapped data, got %v", withData.RenderData())
	}
}

func TestSectionRender(t *testing.T) {
	s := &Section{
		Title:   "Unused Dependencies",
		Content: "Declared but never imported:",
		Items:   []string{"left-pad", "moment"},
	}

	var text bytes.Buffer
	if err := s.RenderText(&text, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	wantText := "Unused Dependencies\n-------------------\n\nDeclared but never imported:\n  - left-pad\n  - moment\n\n"
	if text.String() != wantText {
		t.Errorf("RenderText() =\n%q\nwant\n%q", text.String(), wantText)
	}

	var md bytes.Buffer
	if err := s.RenderMarkdown(&md); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	wantMD := "## Unused Dependencies\n\nDeclared but never imported:\n\n- left-pad\n- moment\n\n"
	if md.String() != wantMD {
		t.Errorf("RenderMarkdown() =\n%q\nwant\n%q", md.String(), wantMD)
	}

	if s.RenderData() != s {
		t.Error("RenderData() without Data should return the section")
	}
}

func TestReportRender(t *testing.T) {
	r := &Report{
		Title: "Audit",
		Sections: []Renderable{
			&Section{Title: "One", Items: []string{"a"}},
			NewTable("Two", []string{"X"}, [][]string{{"y"}}, nil, nil),
		},
	}

	var text bytes.Buffer
	if err := r.RenderText(&text, false); err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	out := text.String()
	if !strings.HasPrefix(out, "Audit\n=====\n\n") {
		t.Errorf("RenderText() should start with the title, got:\n%s", out)
	}
	if strings.Index(out, "One") > strings.Index(out, "Two") {
		t.Error("sections should render in order")
	}

	var md bytes.Buffer
	if err := r.RenderMarkdown(&md); err != nil {
		t.Fatalf("RenderMarkdown() error: %v", err)
	}
	if !strings.HasPrefix(md.String(), "# Audit\n\n## One\n") {
		t.Errorf("RenderMarkdown() = %q", md.String())
	}

	data, ok := r.RenderData().(map[string]any)
	if !ok || data["title"] != "Audit" {
		t.Fatalf("RenderData() = %v", r.RenderData())
	}
	if parts := data["sections"].([]any); len(parts) != 2 {
		t.Errorf("RenderData() sections = %d, want 2", len(parts))
	}
}

type sample struct {
	Name  string   `json:"name" yaml:"name" toon:"name"`
	Items []string `json:"items" yaml:"items" toon:"items"`
}

func TestFormatterOutputStructured(t *testing.T) {
	data := sample{Name: "app", Items: []string{"left-pad", "axios"}}
	r := &Report{Title: "ignored", Data: data}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriterFormatter(FormatJSON, &buf, false).Output(r); err != nil {
			t.Fatalf("Output() error: %v", err)
		}
		var got sample
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Name != "app" || len(got.Items) != 2 {
			t.Errorf("decoded = %+v", got)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriterFormatter(FormatYAML, &buf, false).Output(r); err != nil {
			t.Fatalf("Output() error: %v", err)
		}
		var got sample
		if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid YAML: %v", err)
		}
		if got.Name != "app" || got.Items[1] != "axios" {
			t.Errorf("decoded = %+v", got)
		}
	})

	t.Run("toon", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewWriterFormatter(FormatTOON, &buf, false).Output(r); err != nil {
			t.Fatalf("Output() error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "name: app") || !strings.Contains(out, "left-pad") {
			t.Errorf("TOON output = %q", out)
		}
		if strings.Contains(out, "ignored") {
			t.Error("TOON output should serialize Data, not the title")
		}
	})
}

func TestFormatterOutputRaw(t *testing.T) {
	data := map[string]string{"key": "value"}

	var text bytes.Buffer
	if err := NewWriterFormatter(FormatText, &text, false).Output(data); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if !strings.Contains(text.String(), `"key": "value"`) {
		t.Errorf("text output of raw data should fall back to JSON, got %q", text.String())
	}

	var md bytes.Buffer
	if err := NewWriterFormatter(FormatMarkdown, &md, false).Output(data); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if !strings.HasPrefix(md.String(), "```json\n") || !strings.HasSuffix(md.String(), "```\n") {
		t.Errorf("markdown output of raw data should be fenced, got %q", md.String())
	}
}

func TestFormatterMessageMethods(t *testing.T) {
	tests := []struct {
		name   string
		method func(*Formatter, string, ...any)
		format string
		args   []any
		want   string
	}{
		{"success", (*Formatter).Success, "No issues found", nil, "No issues found\n"},
		{"warning", (*Formatter).Warning, "%d files skipped", []any{2}, "WARNING: 2 files skipped\n"},
		{"error", (*Formatter).Error, "manifest missing", nil, "ERROR: manifest missing\n"},
		{"info", (*Formatter).Info, "Scanning %s", []any{"."}, "Scanning .\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewWriterFormatter(FormatText, &buf, false)
			tt.method(f, tt.format, tt.args...)
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestMarshal(t *testing.T) {
	data := sample{Name: "x", Items: []string{}}
	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOON} {
		out, err := Marshal(f, data)
		if err != nil {
			t.Errorf("Marshal(%s) error: %v", f, err)
		}
		if !strings.Contains(out, "x") {
			t.Errorf("Marshal(%s) = %q", f, out)
		}
	}
}
