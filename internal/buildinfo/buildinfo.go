// Package buildinfo reports the versions of interpreter modules linked into
// the running binary.
package buildinfo

import "runtime/debug"

// Version returns the version of module path as recorded in the binary's
// build info, or "unknown" when it is not available (for example in tests).
func Version(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return "unknown"
}
