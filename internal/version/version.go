// Package version provides build and version information for scened.
package version

// Version is the current release version of scened.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/SentientScenes/internal/version.Version=x.y.z"
var Version = "0.1.0"

// Commit is the source revision, set at build time like Version.
var Commit = "unknown"

// String returns "version (commit)".
func String() string {
	return Version + " (" + Commit + ")"
}
