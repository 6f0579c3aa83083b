package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptFrontmatter is parsed from YAML frontmatter in prompt files.
type promptFrontmatter struct {
	Description string `yaml:"description"`
}

// promptPathArg is substituted for {{path}} in prompt bodies.
const promptPathArg = "path"

// registerPrompts registers every embedded markdown prompt. Each takes an
// optional project path argument.
func (s *Server) registerPrompts() {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			continue
		}

		description, body := parseFrontmatter(content)
		s.server.AddPrompt(&mcp.Prompt{
			Name:        strings.TrimSuffix(entry.Name(), ".md"),
			Description: description,
			Arguments: []*mcp.PromptArgument{{
				Name:        promptPathArg,
				Description: "Project root containing package.json. Defaults to the current directory.",
			}},
		}, makePromptHandler(description, body))
	}
}

// parseFrontmatter splits YAML frontmatter from the prompt body.
func parseFrontmatter(content []byte) (description string, body string) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return "", string(content)
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return "", string(content)
	}

	var fm promptFrontmatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return "", string(content)
	}

	body = strings.TrimPrefix(string(rest[end+5:]), "\n")
	return fm.Description, body
}

func renderPrompt(body string, args map[string]string) string {
	root := args[promptPathArg]
	if root == "" {
		root = "."
	}
	return strings.ReplaceAll(body, "{{path}}", root)
}

func makePromptHandler(description, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: renderPrompt(body, args)},
				},
			},
		}, nil
	}
}
