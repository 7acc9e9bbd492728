package config

import "strings"

// ApplyDefaults fills unspecified configuration fields with defaults.
//
// Zero values are replaced; explicit values are preserved. Server defaults
// (port 8080, host 127.0.0.1, 10 workers, queue of 50) live on
// server.Config itself and are applied when the server is constructed, so
// they are not duplicated here.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Type == "filesystem" {
		if cfg.Filesystem == nil {
			cfg.Filesystem = map[string]any{}
		}
		if cfg.Filesystem["path"] == nil || cfg.Filesystem["path"] == "" {
			cfg.Filesystem["path"] = "resources"
		}
	}
}
