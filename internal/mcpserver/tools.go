package mcpserver

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/depaudit/internal/output"
	"github.com/panbanda/depaudit/internal/scanner"
	"github.com/panbanda/depaudit/pkg/audit"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/imports"
	"github.com/panbanda/depaudit/pkg/manifest"
	"github.com/panbanda/depaudit/pkg/models"
	"github.com/panbanda/depaudit/pkg/usage"
)

// AuditInput is the input of the audit_dependencies tool.
type AuditInput struct {
	Path        string   `json:"path,omitempty" jsonschema:"Project root containing package.json. Defaults to the current directory."`
	Format      string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
	Installed   bool     `json:"installed,omitempty" jsonschema:"Compare declared versions with installed node_modules versions instead of across dependency groups."`
	ExcludeDirs []string `json:"exclude_dirs,omitempty" jsonschema:"Additional directory names to skip."`
	IssuesOnly  bool     `json:"issues_only,omitempty" jsonschema:"Omit files without issues from per_file."`
}

// FileImportsInput is the input of the analyze_file_imports tool.
type FileImportsInput struct {
	Path   string `json:"path" jsonschema:"Path of the JavaScript or TypeScript file to analyze."`
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
}

func getFormat(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "yaml", "yml":
		return output.FormatYAML
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

// formatOutput serializes data for a tool result. Markdown wraps TOON in a
// fenced block.
func formatOutput(data any, format output.Format) (string, error) {
	if format == output.FormatMarkdown {
		out, err := output.Marshal(output.FormatTOON, data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	}
	return output.Marshal(format, data)
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// describeError turns fatal audit errors into messages an assistant can act on.
func describeError(err error) string {
	var access *scanner.AccessError
	var notFound *manifest.NotFoundError
	var parse *manifest.ParseError
	switch {
	case errors.As(err, &access):
		return "cannot read project root: " + err.Error()
	case errors.As(err, &notFound):
		return "no package.json found; pass the project root as path"
	case errors.As(err, &parse):
		return "package.json is malformed: " + err.Error()
	default:
		return err.Error()
	}
}

func handleAuditDependencies(ctx context.Context, req *mcp.CallToolRequest, input AuditInput) (*mcp.CallToolResult, any, error) {
	root := input.Path
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return toolError(err.Error())
	}

	cfg, err := loadConfig(absRoot)
	if err != nil {
		return toolError(err.Error())
	}
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, input.ExcludeDirs...)
	if input.Installed {
		cfg.Audit.InstalledVersions = true
	}

	report, err := audit.Validate(ctx, absRoot, audit.WithConfig(cfg))
	if err != nil {
		return toolError(describeError(err))
	}

	if input.IssuesOnly {
		files := []models.FileAnalysis{}
		for _, f := range report.PerFile {
			if f.HasIssues() {
				files = append(files, f)
			}
		}
		report.PerFile = files
	}

	return toolResult(report, getFormat(input.Format))
}

func handleAnalyzeFileImports(ctx context.Context, req *mcp.CallToolRequest, input FileImportsInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		return toolError("path is required")
	}
	absPath, err := filepath.Abs(input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return toolError(err.Error())
	}

	cfg, err := loadConfig(filepath.Dir(absPath))
	if err != nil {
		return toolError(err.Error())
	}

	text := string(data)
	decls := imports.Extract(text)
	analyzer := usage.New(usage.WithResolveExtensions(cfg.Audit.ResolveExtensions))
	result := struct {
		Analysis     models.FileAnalysis   `json:"analysis" toon:"analysis" yaml:"analysis"`
		Declarations []imports.Declaration `json:"declarations" toon:"declarations" yaml:"declarations"`
	}{
		Analysis:     analyzer.Analyze(absPath, filepath.ToSlash(input.Path), text, decls),
		Declarations: decls,
	}
	if result.Declarations == nil {
		result.Declarations = []imports.Declaration{}
	}

	return toolResult(result, getFormat(input.Format))
}

func loadConfig(dir string) (*config.Config, error) {
	result, err := config.LoadConfig(config.WithSearchDir(dir))
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}
