package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/depaudit/internal/output"
	"github.com/panbanda/depaudit/internal/testutil"
	"github.com/panbanda/depaudit/pkg/models"
)

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteManifest(t, root, testutil.Manifest{
		Name:         "app",
		Dependencies: map[string]string{"pkg": "^1.0.0", "left-pad": "^1.3.0"},
	})
	testutil.CreateFileTree(t, root, map[string]string{
		"src/index.js": "import { used, unused } from \"pkg\";\nimport axios from \"axios\";\nused();\naxios.get('/');\n",
		"src/clean.ts": "import pkg from 'pkg';\nexport default pkg;\n",
	})
	return root
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("nil tool result")
	}
	if len(result.Content) != 1 {
		t.Fatalf("content items = %d, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want *mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestServerCreation(t *testing.T) {
	server := NewServer("1.0.0-test")
	if server == nil || server.server == nil {
		t.Fatal("NewServer() returned an incomplete server")
	}
	if NewServer("") == nil {
		t.Fatal("NewServer(\"\") returned nil")
	}
}

func TestToolDescriptions(t *testing.T) {
	for name, fn := range map[string]func() string{
		"audit":       describeAudit,
		"fileImports": describeFileImports,
	} {
		desc := fn()
		for _, section := range []string{"USE WHEN:", "INTERPRETING RESULTS:", "METRICS RETURNED:"} {
			if !strings.Contains(desc, section) {
				t.Errorf("%s description missing %s section", name, section)
			}
		}
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		format string
		want   output.Format
	}{
		{"", output.FormatTOON},
		{"toon", output.FormatTOON},
		{"json", output.FormatJSON},
		{"yaml", output.FormatYAML},
		{"yml", output.FormatYAML},
		{"markdown", output.FormatMarkdown},
		{"md", output.FormatMarkdown},
		{"unknown", output.FormatTOON},
	}
	for _, tt := range tests {
		if got := getFormat(tt.format); got != tt.want {
			t.Errorf("getFormat(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormatOutput(t *testing.T) {
	data := map[string][]string{"missing_dependencies": {"axios"}}

	md, err := formatOutput(data, output.FormatMarkdown)
	if err != nil {
		t.Fatalf("formatOutput(markdown) error: %v", err)
	}
	if !strings.HasPrefix(md, "```\n") || !strings.HasSuffix(md, "\n```") {
		t.Errorf("markdown output should be fenced, got %q", md)
	}

	js, err := formatOutput(data, output.FormatJSON)
	if err != nil {
		t.Fatalf("formatOutput(json) error: %v", err)
	}
	var decoded map[string][]string
	if err := json.Unmarshal([]byte(js), &decoded); err != nil {
		t.Fatalf("json output invalid: %v", err)
	}
}

func TestHandleAuditDependencies(t *testing.T) {
	root := newProject(t)

	result, _, err := handleAuditDependencies(context.Background(), nil, AuditInput{Path: root, Format: "json"})
	if err != nil {
		t.Fatalf("handleAuditDependencies() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}

	var report models.ProjectReport
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(report.UnusedDependencies) != 1 || report.UnusedDependencies[0] != "left-pad" {
		t.Errorf("unused = %v, want [left-pad]", report.UnusedDependencies)
	}
	if len(report.MissingDependencies) != 1 || report.MissingDependencies[0] != "axios" {
		t.Errorf("missing = %v, want [axios]", report.MissingDependencies)
	}
	if len(report.PerFile) != 2 {
		t.Errorf("per_file = %d entries, want 2", len(report.PerFile))
	}
}

func TestHandleAuditDependencies_IssuesOnly(t *testing.T) {
	root := newProject(t)

	result, _, err := handleAuditDependencies(context.Background(), nil, AuditInput{Path: root, Format: "json", IssuesOnly: true})
	if err != nil {
		t.Fatalf("handleAuditDependencies() error: %v", err)
	}

	var report models.ProjectReport
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(report.PerFile) != 1 || report.PerFile[0].Path != "src/index.js" {
		t.Errorf("per_file = %+v, want only src/index.js", report.PerFile)
	}
	if report.Summary.FilesScanned != 2 {
		t.Errorf("summary should still count every file, got %d", report.Summary.FilesScanned)
	}
}

func TestHandleAuditDependencies_ExcludeDirs(t *testing.T) {
	root := newProject(t)

	result, _, err := handleAuditDependencies(context.Background(), nil, AuditInput{
		Path:        root,
		Format:      "json",
		ExcludeDirs: []string{"src"},
	})
	if err != nil {
		t.Fatalf("handleAuditDependencies() error: %v", err)
	}

	var report models.ProjectReport
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(report.PerFile) != 0 {
		t.Errorf("excluded files were scanned: %+v", report.PerFile)
	}
	if len(report.UnusedDependencies) != 2 {
		t.Errorf("every dependency should be unused, got %v", report.UnusedDependencies)
	}
}

func TestHandleAuditDependencies_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing root", filepath.Join(t.TempDir(), "missing"), "cannot read project root"},
		{"no manifest", t.TempDir(), "no package.json found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := handleAuditDependencies(context.Background(), nil, AuditInput{Path: tt.path})
			if err != nil {
				t.Fatalf("handleAuditDependencies() error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected a tool error result")
			}
			if text := resultText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("error text = %q, want it to contain %q", text, tt.want)
			}
		})
	}

	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "package.json"), "{not json")
	result, _, _ := handleAuditDependencies(context.Background(), nil, AuditInput{Path: root})
	if !result.IsError || !strings.Contains(resultText(t, result), "malformed") {
		t.Errorf("malformed manifest should be reported, got %q", resultText(t, result))
	}
}

func TestHandleAnalyzeFileImports(t *testing.T) {
	root := newProject(t)

	result, _, err := handleAnalyzeFileImports(context.Background(), nil, FileImportsInput{
		Path:   filepath.Join(root, "src", "index.js"),
		Format: "json",
	})
	if err != nil {
		t.Fatalf("handleAnalyzeFileImports() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}

	var got struct {
		Analysis     models.FileAnalysis `json:"analysis"`
		Declarations []struct {
			ModulePath string   `json:"module_path"`
			Bindings   []string `json:"bindings"`
		} `json:"declarations"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got.Declarations) != 2 || got.Declarations[0].ModulePath != "pkg" {
		t.Fatalf("declarations = %+v", got.Declarations)
	}
	if len(got.Analysis.UnusedImports) != 1 || got.Analysis.UnusedImports[0].UnusedBindingNames[0] != "unused" {
		t.Errorf("unused imports = %+v", got.Analysis.UnusedImports)
	}
}

func TestHandleAnalyzeFileImports_Errors(t *testing.T) {
	result, _, _ := handleAnalyzeFileImports(context.Background(), nil, FileImportsInput{})
	if !result.IsError {
		t.Error("empty path should be a tool error")
	}

	result, _, _ = handleAnalyzeFileImports(context.Background(), nil, FileImportsInput{Path: filepath.Join(t.TempDir(), "nope.js")})
	if !result.IsError {
		t.Error("missing file should be a tool error")
	}
}

func TestParseFrontmatter(t *testing.T) {
	desc, body := parseFrontmatter([]byte("---\ndescription: Audit it\n---\nRun {{path}}\n"))
	if desc != "Audit it" || body != "Run {{path}}\n" {
		t.Errorf("parseFrontmatter() = %q, %q", desc, body)
	}

	desc, body = parseFrontmatter([]byte("no frontmatter"))
	if desc != "" || body != "no frontmatter" {
		t.Errorf("parseFrontmatter() without frontmatter = %q, %q", desc, body)
	}

	if got := renderPrompt("audit {{path}}", nil); got != "audit ." {
		t.Errorf("renderPrompt() default = %q", got)
	}
	if got := renderPrompt("audit {{path}}", map[string]string{"path": "web"}); got != "audit web" {
		t.Errorf("renderPrompt() = %q", got)
	}
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	if err != nil {
		t.Fatalf("GenerateManifest() error: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
	if m.Name != "io.github.panbanda/depaudit" || m.Version != "1.2.3" {
		t.Errorf("manifest = %+v", m)
	}
	if len(m.Packages) != 1 || m.Packages[0].Identifier != "ghcr.io/panbanda/depaudit:1.2.3" {
		t.Errorf("packages = %+v", m.Packages)
	}
	if NewManifest("dev").Version != "0.0.0" {
		t.Error("dev builds should publish version 0.0.0")
	}
}

// TestServerSession exercises the registered tools and prompts over an
// in-memory transport.
func TestServerSession(t *testing.T) {
	ctx := context.Background()
	root := newProject(t)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := NewServer("test").server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect() error: %v", err)
	}
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error: %v", err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools() error: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	if !names["audit_dependencies"] || !names["analyze_file_imports"] {
		t.Errorf("registered tools = %v", names)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "audit_dependencies",
		Arguments: map[string]any{"path": root},
	})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	text := resultText(t, res)
	for _, want := range []string{"missing_dependencies", "axios", "left-pad"} {
		if !strings.Contains(text, want) {
			t.Errorf("TOON result missing %q:\n%s", want, text)
		}
	}

	prompt, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "dependency-cleanup",
		Arguments: map[string]string{"path": root},
	})
	if err != nil {
		t.Fatalf("GetPrompt() error: %v", err)
	}
	if len(prompt.Messages) != 1 {
		t.Fatalf("prompt messages = %d, want 1", len(prompt.Messages))
	}
	if msg, ok := prompt.Messages[0].Content.(*mcp.TextContent); !ok || !strings.Contains(msg.Text, root) {
		t.Errorf("prompt should mention the project path, got %+v", prompt.Messages[0].Content)
	}
}
