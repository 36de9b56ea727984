package config

// Build metadata, set with -ldflags "-X github.com/edirooss/camrec/internal/config.Version=...".
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)
