// Package misc keeps build time information.
package misc

// Set by the linker (-X) at build time.
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "annmerge"

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
