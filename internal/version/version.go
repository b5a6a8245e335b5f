package version

// Build metadata for the pyrite CLI. Each variable is a plain literal
// so the linker can replace it:
//
//	go build -ldflags "-X pyrite/internal/version.Version=0.2.0"
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// GitMessage is an optional git commit message.
	GitMessage = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)
