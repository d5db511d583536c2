// Package config loads runtime configuration for the penflow data layer.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path to the local SQLite database
//	-r string   base URL of the remote document store
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "database_path": "penflow.db",
//	  "remote_endpoint": "https://sync.example.com",
//	  "sync_debounce": "3s",
//	  "full_sync_interval": "5m",
//	  "online_check_interval": "30s"
//	}
//
// Primary API
//
//   - type Config                     — process-level settings
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables; use the JSON file
// or flags to configure values.
package config
