package config

// Linker-injected build metadata variables. These are set at compile time via
// -ldflags, for example:
//
//	go build -ldflags "-X buildalert/internal/config.version=1.2.3 \
//	    -X buildalert/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X buildalert/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String renders the build metadata for `buildalert version` and the
// outbound User-Agent suffix.
func (b BuildInfo) String() string {
	return b.Version + " (" + b.Commit + ", " + b.BuildTime + ")"
}
