package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000/api"
	}
	if cfg.Backend.CompilePath == "" {
		cfg.Backend.CompilePath = "/compile"
	}
	if cfg.Backend.ChatPath == "" {
		cfg.Backend.ChatPath = "/chat"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = time.Hour
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = 10 * time.Minute
	}
	if cfg.Session.Sequencing == "" {
		cfg.Session.Sequencing = "latest"
	}
	if cfg.Session.AttachmentExtensions == nil {
		cfg.Session.AttachmentExtensions = []string{".md", ".txt", ".mp3"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vibetex/data/db/compiles.db"
	}
	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 10
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 5
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = 30
		}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	// AutoCompile defaults to true when unset (nil).
	if len(cfg.Watch.Files) > 0 && cfg.Watch.AutoCompile == nil {
		t := true
		cfg.Watch.AutoCompile = &t
	}
	if cfg.Completion.MaxResults == 0 {
		cfg.Completion.MaxResults = 50
	}
	if cfg.Completion.FuzzyDistance == 0 {
		cfg.Completion.FuzzyDistance = 1
	}
}
