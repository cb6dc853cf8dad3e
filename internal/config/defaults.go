package config

// Default returns the baseline configuration before file and environment
// overrides are applied.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  "~/.local/share/redact",
			ReviewDir: "~/.local/share/redact/review",
			LogDir:    "~/.local/share/redact/logs",
		},
		Detector: Detector{
			Backends:          []string{"rules"},
			TimeoutSeconds:    30,
			MinConfidence:     0.5,
			Language:          "de",
			RequestsPerSecond: 4,
			CacheTTLSeconds:   300,
			CacheSweepSeconds: 600,
		},
		LLM: LLM{
			TimeoutSeconds: 60,
		},
		Matcher: Matcher{
			Strategy: "exact",
		},
		Workflow: Workflow{
			PollIntervalSeconds: 5,
			ScanConcurrency:     2,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
	}
}
