package manifest

import (
	"path/filepath"
)

// InstallDir is the directory holding installed packages under the project root.
const InstallDir = "node_modules"

// VersionResolver returns the installed version of a package, or false when
// it cannot be determined.
type VersionResolver func(name string) (string, bool)

// InstalledResolver returns a resolver that reads the version field of
// root/node_modules/<name>/package.json. Missing or unreadable manifests
// resolve to absent.
func InstalledResolver(root string) VersionResolver {
	return func(name string) (string, bool) {
		if name == "" {
			return "", false
		}
		path := filepath.Join(root, InstallDir, filepath.FromSlash(name), FileName)
		doc, err := readDocument(path)
		if err != nil {
			return "", false
		}
		version := stringField(doc.fields, "version")
		return version, version != ""
	}
}
