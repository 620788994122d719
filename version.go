// Package toolhost provides the version information for toolhost.
package toolhost

// Version is the current version of toolhost.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
