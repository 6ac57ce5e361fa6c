// Package version exposes the build-time injected release version.
package version

// version is set via -ldflags at build time; see the magefile.
var version string

// Value returns the injected version string, empty when the binary was
// built without ldflags.
func Value() string {
	return version
}
