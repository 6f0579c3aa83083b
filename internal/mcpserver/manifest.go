package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	serverName     = "io.github.panbanda/depaudit"
	imageRepo      = "ghcr.io/panbanda/depaudit"
)

// Manifest is the MCP registry server.json document.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository contains source repository information.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
}

// Package describes how to install and run the server.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	PackageArguments []Argument `json:"packageArguments,omitempty"`
	Transport        Transport  `json:"transport"`
}

// Argument is a command-line argument passed to the package.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Transport describes the communication method.
type Transport struct {
	Type string `json:"type"`
}

// NewManifest describes the stdio server for the given release version.
func NewManifest(version string) Manifest {
	if version == "" || version == "dev" {
		version = "0.0.0"
	}
	return Manifest{
		Schema:      manifestSchema,
		Name:        serverName,
		Description: "Audit JavaScript/TypeScript imports against package.json: unused, missing and mismatched dependencies",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/depaudit",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType: "oci",
				Identifier:   imageRepo + ":" + version,
				PackageArguments: []Argument{
					{Type: "positional", Value: "mcp"},
				},
				Transport: Transport{Type: "stdio"},
			},
		},
	}
}

// GenerateManifest returns the indented server.json for version.
func GenerateManifest(version string) ([]byte, error) {
	return json.MarshalIndent(NewManifest(version), "", "  ")
}
