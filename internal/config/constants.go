package config

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./mailfeed.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultSyncPageSize     = 200 // Most-recent message ids requested per sync run
	DefaultFetchConcurrency = 8   // In-flight full-message fetches during fan-out
	DefaultFetchTimeoutSec  = 30  // Per-message fetch timeout in seconds
	DefaultInterval         = 0   // Minutes between sync runs, 0 for one-shot mode

	DefaultLogLevel = "debug"
)
