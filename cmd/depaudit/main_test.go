package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/depaudit/internal/cache"
	"github.com/panbanda/depaudit/internal/testutil"
	"github.com/panbanda/depaudit/pkg/config"
	"github.com/panbanda/depaudit/pkg/manifest"
	"github.com/panbanda/depaudit/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteManifest(t, root, testutil.Manifest{
		Name:            "app",
		Dependencies:    map[string]string{"pkg": "^1.0.0", "left-pad": "^1.3.0", "lodash": "^4.17.0"},
		DevDependencies: map[string]string{"lodash": "^4.16.0"},
	})
	testutil.CreateFileTree(t, root, map[string]string{
		"src/index.js": "import { used, unused } from \"pkg\";\nimport axios from \"axios\";\nimport _ from 'lodash';\nused(_, axios);\n",
		"src/util.ts":  "export const x = 1;\n",
		"lib/app.mjs":  "import chalk from 'chalk';\nchalk();\n",
	})
	return root
}

func newCleanProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteManifest(t, root, testutil.Manifest{
		Name:         "clean",
		Dependencies: map[string]string{"react": "^18.0.0"},
	})
	testutil.CreateFileTree(t, root, map[string]string{
		"index.jsx": "import React from 'react';\nReact.render();\n",
	})
	return root
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"depaudit", "--no-color"}, args...))
	return stdout.String(), err
}

func decodeReport(t *testing.T, out string) models.ProjectReport {
	t.Helper()
	var r models.ProjectReport
	require.NoError(t, json.Unmarshal([]byte(out), &r), out)
	return r
}

func TestAuditDefaultCommand_Text(t *testing.T) {
	root := newProject(t)

	out, err := run(t, root)
	require.NoError(t, err)

	for _, want := range []string{
		"Dependency Audit",
		"Files With Issues",
		"src/index.js",
		"unused pkg (unused)",
		"Unused Dependencies",
		"left-pad",
		"Missing Dependencies",
		"axios",
		"Mismatched Versions",
		"Issues found.",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "lib/app.mjs", ".mjs is not scanned by default")
}

func TestAuditDefaultCommand_JSON(t *testing.T) {
	root := newProject(t)

	out, err := run(t, "--format", "json", root)
	require.NoError(t, err)

	r := decodeReport(t, out)
	assert.Equal(t, []string{"left-pad"}, r.UnusedDependencies)
	assert.Equal(t, []string{"axios"}, r.MissingDependencies)
	require.Len(t, r.MismatchedDependencies, 1)
	assert.Equal(t, "lodash", r.MismatchedDependencies[0].Name)
	assert.Equal(t, 2, r.Summary.FilesScanned)
	assert.NotEmpty(t, r.Fingerprint)
}

func TestAuditSubcommandFlags(t *testing.T) {
	root := newProject(t)

	// Flags after the subcommand name.
	out, err := run(t, "audit", "-f", "json", root)
	require.NoError(t, err)
	after := decodeReport(t, out)

	// Global flags before the subcommand name.
	out, err = run(t, "--format", "json", "audit", root)
	require.NoError(t, err)
	before := decodeReport(t, out)

	assert.Equal(t, after.Fingerprint, before.Fingerprint)
}

func TestAuditStructuredFormats(t *testing.T) {
	root := newProject(t)

	for _, format := range []string{"yaml", "toon"} {
		out, err := run(t, "--format", format, root)
		require.NoError(t, err, format)
		assert.Contains(t, out, "missing_dependencies", format)
		assert.Contains(t, out, "axios", format)
	}

	out, err := run(t, "--format", "markdown", root)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Dependency Audit\n"), out)
}

func TestAuditExtAndExcludeDirFlags(t *testing.T) {
	root := newProject(t)

	out, err := run(t, "--format", "json", "--ext", "mjs", "--ext", ".js", root)
	require.NoError(t, err)
	r := decodeReport(t, out)
	assert.Equal(t, 2, r.Summary.FilesScanned)
	assert.Contains(t, r.MissingDependencies, "chalk")

	out, err = run(t, "--format", "json", "--exclude-dir", "src", root)
	require.NoError(t, err)
	r = decodeReport(t, out)
	assert.Empty(t, r.PerFile)
	assert.Empty(t, r.MissingDependencies)
}

func TestAuditInstalledFlag(t *testing.T) {
	root := newProject(t)
	testutil.WriteInstalled(t, root, "pkg", "2.0.0")

	out, err := run(t, "--format", "json", "--installed", root)
	require.NoError(t, err)
	r := decodeReport(t, out)

	var kinds []models.MismatchKind
	for _, m := range r.MismatchedDependencies {
		if m.Name == "pkg" {
			kinds = append(kinds, m.Kind)
		}
	}
	assert.Equal(t, []models.MismatchKind{models.MismatchInstalled}, kinds)
}

func TestAuditFailOnIssues(t *testing.T) {
	_, err := run(t, "--fail-on-issues", newProject(t))
	assert.ErrorIs(t, err, errIssuesFound)

	out, err := run(t, "--fail-on-issues", newCleanProject(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No issues found.")
}

func TestAuditFailOnIssuesFromConfig(t *testing.T) {
	root := newProject(t)
	testutil.WriteFile(t, filepath.Join(root, "depaudit.toml"), "[audit]\nfail_on_issues = true\n")

	_, err := run(t, root)
	assert.ErrorIs(t, err, errIssuesFound)
}

func TestAuditErrors(t *testing.T) {
	_, err := run(t, t.TempDir())
	var notFound *manifest.NotFoundError
	assert.True(t, errors.As(err, &notFound), "got %v", err)

	_, err = run(t, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = run(t, "a", "b")
	assert.ErrorContains(t, err, "at most one path")

	_, err = run(t, "--format", "xml", newProject(t))
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestAuditOutputFile(t *testing.T) {
	root := newProject(t)
	outPath := filepath.Join(t.TempDir(), "report.json")

	stdout, err := run(t, "--format", "json", "--output", outPath, root)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	r := decodeReport(t, string(data))
	assert.Equal(t, []string{"axios"}, r.MissingDependencies)
}

func TestAuditExplicitConfig(t *testing.T) {
	root := newProject(t)
	cfgPath := filepath.Join(t.TempDir(), "custom.yaml")
	testutil.WriteFile(t, cfgPath, "audit:\n  ignore:\n    - axios\n    - left-pad\n")

	out, err := run(t, "--format", "json", "--config", cfgPath, root)
	require.NoError(t, err)
	r := decodeReport(t, out)
	assert.Empty(t, r.MissingDependencies)
	assert.Empty(t, r.UnusedDependencies)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), root)
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	root := t.TempDir()

	out, err := run(t, "config", "validate", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Default configuration is valid")

	out, err = run(t, "config", "show", root)
	require.NoError(t, err)
	assert.Contains(t, out, "# Default configuration")
	assert.Contains(t, out, "[scan]")
	assert.Contains(t, out, "node_modules")

	good := filepath.Join(root, "depaudit.toml")
	testutil.WriteFile(t, good, "[scan]\nworkers = 4\n")
	out, err = run(t, "config", "validate", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid: "+good)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	testutil.WriteFile(t, bad, "[scan]\nworkers = -1\n")
	_, err = run(t, "config", "validate", "-c", bad)
	assert.ErrorContains(t, err, "scan.workers")
}

func TestInitCommand(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), ".depaudit", "depaudit.toml")

	out, err := run(t, "init", "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+outPath)

	cfg, err := config.Load(outPath)
	require.NoError(t, err)
	defaults := config.DefaultConfig()
	assert.Equal(t, defaults.Scan.Extensions, cfg.Scan.Extensions)
	assert.Equal(t, defaults.Exclude.Dirs, cfg.Exclude.Dirs)
	assert.Equal(t, defaults.Cache, cfg.Cache)
	assert.NoError(t, cfg.Validate())

	_, err = run(t, "init", "-o", outPath)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "init", "-o", outPath, "--force")
	assert.NoError(t, err)
}

func TestMCPManifestCommand(t *testing.T) {
	out, err := run(t, "mcp", "manifest")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "io.github.panbanda/depaudit", m["name"])
}

func TestNormalizeExtensions(t *testing.T) {
	assert.Equal(t, []string{".ts", ".js"}, normalizeExtensions([]string{"ts", "", ".js"}))
}

func TestReportGenerateCommand(t *testing.T) {
	root := newProject(t)
	outPath := filepath.Join(t.TempDir(), "report.html")

	_, err := run(t, "report", "generate", "-o", outPath, root)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	html := string(data)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "axios")
	assert.Contains(t, html, "left-pad")
	assert.Contains(t, html, `class="badge danger"`)

	out, err := run(t, "report", "generate", "-o", "-", newCleanProject(t))
	require.NoError(t, err)
	assert.Contains(t, out, `class="badge good"`)
}

func TestReportRenderCommand(t *testing.T) {
	root := newProject(t)
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "report.json")
	htmlPath := filepath.Join(dir, "report.html")

	_, err := run(t, "--format", "json", "--output", jsonPath, root)
	require.NoError(t, err)

	_, err = run(t, "report", "render", "-o", htmlPath, jsonPath)
	require.NoError(t, err)
	data, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lodash")

	_, err = run(t, "report", "render")
	assert.ErrorContains(t, err, "expected one JSON report path")
}

func TestCacheCommands(t *testing.T) {
	root := newProject(t)
	testutil.WriteFile(t, filepath.Join(root, "depaudit.toml"), "[cache]\nenabled = true\n")

	_, err := run(t, root)
	require.NoError(t, err)

	out, err := run(t, "cache", "stats", "--json", root)
	require.NoError(t, err)
	var stats struct {
		Dir     string `json:"dir"`
		Entries int    `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, filepath.Join(root, ".depaudit", "cache"), stats.Dir)

	out, err = run(t, "cache", "clear", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 2 cache entries")

	out, err = run(t, "cache", "stats", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries:         0")
}

func TestWatchRunnerDropsRemovedFiles(t *testing.T) {
	root := newProject(t)
	ch, err := cache.New(filepath.Join(t.TempDir(), "cache"), 24, true)
	require.NoError(t, err)

	gone := []byte("import a from 'a';\n")
	kept, err := os.ReadFile(filepath.Join(root, "src", "util.ts"))
	require.NoError(t, err)
	ch.Extract("src/gone.js", gone)
	ch.Extract("src/util.ts", kept)

	r := &watchRunner{root: root, cache: ch}
	r.dropRemoved([]string{"src/gone.js", "src/util.ts"})

	_, ok := ch.Lookup("src/gone.js", gone)
	assert.False(t, ok, "entry for a deleted file is invalidated")
	_, ok = ch.Lookup("src/util.ts", kept)
	assert.True(t, ok, "entry for an existing file is kept")
}
