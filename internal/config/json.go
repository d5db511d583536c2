package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/tmorishita/penflow/internal/flagx"
	"github.com/tmorishita/penflow/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	DatabasePath        string         `json:"database_path"`
	RemoteEndpoint      string         `json:"remote_endpoint"`
	SyncDebounce        timex.Duration `json:"sync_debounce"`
	FullSyncInterval    timex.Duration `json:"full_sync_interval"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3Region            string         `json:"s3_region"`
	S3Bucket            string         `json:"s3_bucket"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
}

// parseJson overlays cfg with values loaded from a JSON file selected via
// the -c or -config flags. Empty JSON fields leave the existing value in
// place, so the file only needs to name what it changes. Read or unmarshal
// errors panic; the intended order is defaults -> parseJson -> parseFlags.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RemoteEndpoint != "" {
		cfg.RemoteEndpoint = jc.RemoteEndpoint
	}
	if jc.SyncDebounce.Duration != 0 {
		cfg.SyncDebounce = time.Duration(jc.SyncDebounce.Duration)
	}
	if jc.FullSyncInterval.Duration != 0 {
		cfg.FullSyncInterval = time.Duration(jc.FullSyncInterval.Duration)
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.S3BaseEndpoint != "" {
		cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
}
