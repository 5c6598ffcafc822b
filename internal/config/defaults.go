package config

import "time"

const (
	defaultSrc        = "src"
	defaultDest       = "dest"
	defaultManifest   = "db.json"
	defaultReports    = "reports"
	defaultConfigFile = "config.json"
	defaultSubject    = "cranebuilder.reports"
	defaultDebounce   = 300 * time.Millisecond
	defaultBackoff    = 500 * time.Millisecond
	defaultRetries    = 3
)

func applyDefaults(cfg *Config) {
	if cfg.Paths.Src == "" {
		cfg.Paths.Src = defaultSrc
	}
	if cfg.Paths.Dest == "" {
		cfg.Paths.Dest = defaultDest
	}
	if cfg.Paths.Manifest == "" {
		cfg.Paths.Manifest = defaultManifest
	}
	if cfg.Paths.Reports == "" {
		cfg.Paths.Reports = defaultReports
	}
	if cfg.Paths.ConfigFile == "" {
		cfg.Paths.ConfigFile = defaultConfigFile
	}

	if cfg.Build.Concurrency < 0 {
		cfg.Build.Concurrency = 0
	}
	if cfg.Build.Timeout < 0 {
		cfg.Build.Timeout = 0
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Notify.MaxRetries <= 0 {
		cfg.Notify.MaxRetries = defaultRetries
	}
	if cfg.Notify.Backoff <= 0 {
		cfg.Notify.Backoff = defaultBackoff
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = defaultDebounce
	}
}
