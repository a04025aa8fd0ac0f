package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagAddr     = flag.String("addr", "", "HTTP listen address")
	flagCacheDir = flag.String("cache-dir", "", "Raw tile cache directory")
	flagWorkers  = flag.Int("workers", -1, "Prefetch worker count")
	flagLogFile  = flag.String("log-file", "", "Write logs to this file as well")
	flagSave     = flag.Bool("save-config", false, "Write the effective config to the user config directory and exit")
)

// ParseFlags parses command-line flags. Call it early in main.
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the path given with -config
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether -save-config was given
func SaveRequested() bool {
	return *flagSave
}

// applyFlags applies command-line overrides
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagAddr != "" {
		cfg.Server.Addr = *flagAddr
	}
	if *flagCacheDir != "" {
		cfg.Source.CacheDir = *flagCacheDir
	}
	if *flagWorkers >= 0 {
		cfg.Source.Workers = *flagWorkers
	}
	if *flagLogFile != "" {
		cfg.Logging.File = *flagLogFile
	}
}
