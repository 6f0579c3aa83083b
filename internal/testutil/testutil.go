// Package testutil provides fixture helpers for building throwaway projects in tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}
}

// Manifest describes the dependency sections of a package.json fixture.
type Manifest struct {
	Name            string            `json:"name,omitempty"`
	Version         string            `json:"version,omitempty"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

// WriteManifest writes m as root/package.json.
func WriteManifest(t *testing.T, root string, m Manifest) {
	t.Helper()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatalf("Marshal manifest error: %v", err)
	}
	WriteFile(t, filepath.Join(root, "package.json"), string(data))
}

// WriteInstalled writes root/node_modules/<name>/package.json with the given version.
func WriteInstalled(t *testing.T, root, name, version string) {
	t.Helper()
	data, err := json.Marshal(map[string]string{"name": name, "version": version})
	if err != nil {
		t.Fatalf("Marshal installed manifest error: %v", err)
	}
	WriteFile(t, filepath.Join(root, "node_modules", filepath.FromSlash(name), "package.json"), string(data))
}
