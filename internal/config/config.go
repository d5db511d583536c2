package config

import "time"

// Config holds process-level runtime settings for the penflow data layer.
//
// User-facing preferences (sync enabled, conflict resolution policy) live in
// the local settings store instead, because they travel with the database,
// not with the process.
type Config struct {
	// DatabasePath is the SQLite file backing the local entity store.
	DatabasePath string

	// RemoteEndpoint is the base URL of the remote document store
	// (e.g. "https://sync.example.com"). Empty means the remote backend
	// is not configured and the sync engine stays offline.
	RemoteEndpoint string

	// SyncDebounce is the quiet window after the last local edit before
	// pending changes are drained to the remote store.
	SyncDebounce time.Duration

	// FullSyncInterval is the period of the background safety-net drain.
	FullSyncInterval time.Duration

	// OnlineCheckInterval is how often connectivity to the remote is probed.
	OnlineCheckInterval time.Duration

	// S3 settings for the backup service (MinIO-compatible).
	S3BaseEndpoint string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "penflow.db"
	c.RemoteEndpoint = ""
	c.SyncDebounce = 3 * time.Second
	c.FullSyncInterval = 5 * time.Minute
	c.OnlineCheckInterval = 30 * time.Second
	c.S3Region = "us-east-1"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
