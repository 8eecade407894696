package version

// Version contains the docmake release version.
// Set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/docmake/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return "docmake " + Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
