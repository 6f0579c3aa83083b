package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAudit() string {
	return `Audits a JavaScript/TypeScript project's imports against its package.json.

USE WHEN:
- Cleaning up package.json before a release
- Checking whether a change introduced an undeclared dependency
- Finding imports whose bindings are never referenced
- Spotting relative imports that point at files that no longer exist

INTERPRETING RESULTS:
- unused_dependencies: declared in dependencies or devDependencies but never imported; candidates for removal
- missing_dependencies: imported packages that are not declared; the build relies on hoisting or a transitive install
- mismatched_dependencies with kind "group": declared in both groups with different version specs
- mismatched_dependencies with kind "installed": node_modules holds a different version than declared (only with installed=true)
- per_file[].unused_imports: bindings imported but never referenced in the file body
- per_file[].unresolved_relative_imports: relative paths with no matching file or directory
- Node built-ins (fs, path, node:*) count as packages and show up in missing_dependencies unless audit.skip_builtins is set
- Usage detection is textual: a binding mentioned only in a string or comment still counts as used

METRICS RETURNED:
- per_file: path, import_paths, unused_imports, unresolved_relative_imports
- Project: unused_dependencies, missing_dependencies, mismatched_dependencies, warnings
- Summary: files_scanned, files_with_issues, declared_dependencies, used_packages
- fingerprint: stable digest; equal fingerprints mean identical audit results`
}

func describeFileImports() string {
	return `Extracts the import declarations of a single JavaScript/TypeScript file and checks their usage.

USE WHEN:
- Reviewing one file's imports without auditing the whole project
- Verifying which bindings an import statement introduces
- Checking that relative imports in a file resolve

INTERPRETING RESULTS:
- declarations: every import, require, dynamic import and re-export in source order
- kind "static": import statements; "call": require() or import(); "reexport": export ... from
- analysis.unused_imports: bindings never referenced outside import statements
- analysis.unresolved_relative_imports: relative paths with no matching file

METRICS RETURNED:
- declarations: module_path, bindings, kind, start and end byte offsets
- analysis: path, import_paths, unused_imports, unresolved_relative_imports`
}
