package reconcile

import (
	"strings"

	"github.com/panbanda/depaudit/pkg/imports"
)

// nodeBuiltins lists the core modules shipped with the Node.js runtime.
// They never appear in a manifest.
var nodeBuiltins = map[string]bool{
	"assert": true, "async_hooks": true, "buffer": true, "child_process": true,
	"cluster": true, "console": true, "constants": true, "crypto": true,
	"dgram": true, "diagnostics_channel": true, "dns": true, "domain": true,
	"events": true, "fs": true, "http": true, "http2": true, "https": true,
	"inspector": true, "module": true, "net": true, "os": true, "path": true,
	"perf_hooks": true, "process": true, "punycode": true, "querystring": true,
	"readline": true, "repl": true, "stream": true, "string_decoder": true,
	"sys": true, "timers": true, "tls": true, "trace_events": true, "tty": true,
	"url": true, "util": true, "v8": true, "vm": true, "wasi": true,
	"worker_threads": true, "zlib": true,
}

// PackageName returns the top-level installable package for a module path.
// Scoped paths keep their scope and first segment ("@scope/pkg/sub" gives
// "@scope/pkg"); bare paths keep their first segment ("lodash/fp" gives
// "lodash"). Relative paths and empty strings yield "".
func PackageName(modulePath string) string {
	if modulePath == "" || imports.IsRelativePath(modulePath) {
		return ""
	}
	parts := strings.Split(modulePath, "/")
	if strings.HasPrefix(modulePath, "@") {
		if len(parts) < 2 {
			return modulePath
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// IsBuiltin reports whether name refers to a runtime core module rather than
// an installable package. Names with the node: scheme are always builtins.
func IsBuiltin(name string) bool {
	if strings.HasPrefix(name, "node:") {
		return true
	}
	return nodeBuiltins[name]
}

// StripRange removes a leading range operator and "v" prefix from a version
// spec, so "^4.17.0" and "v4.17.0" both compare as "4.17.0".
func StripRange(spec string) string {
	s := strings.TrimSpace(spec)
	s = strings.TrimLeft(s, "^~><= ")
	s = strings.TrimPrefix(s, "v")
	return s
}
