package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

var knownBackends = map[string]struct{}{
	"rules":   {},
	"sidecar": {},
	"llm":     {},
}

var knownMatchers = map[string]struct{}{
	"exact":        {},
	"person-names": {},
}

// Validate checks configuration consistency. Path fields must already be
// normalized.
func (c *Config) Validate() error {
	if len(c.Detector.Backends) == 0 {
		return fmt.Errorf("detector.backends: at least one backend is required")
	}
	for _, backend := range c.Detector.Backends {
		if _, ok := knownBackends[backend]; !ok {
			return fmt.Errorf("detector.backends: unknown backend %q", backend)
		}
		switch backend {
		case "sidecar":
			if c.Detector.SidecarURL == "" {
				return fmt.Errorf("detector.sidecar_url: required when the sidecar backend is enabled")
			}
		case "llm":
			if strings.TrimSpace(c.LLM.Model) == "" {
				return fmt.Errorf("llm.model: required when the llm backend is enabled")
			}
		}
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence: %v is outside [0,1]", c.Detector.MinConfidence)
	}
	if c.Detector.TimeoutSeconds <= 0 {
		return fmt.Errorf("detector.timeout_seconds: must be positive")
	}
	if c.Detector.Language != "" {
		if _, err := language.Parse(c.Detector.Language); err != nil {
			return fmt.Errorf("detector.language: invalid BCP-47 tag %q: %w", c.Detector.Language, err)
		}
	}
	if _, ok := knownMatchers[c.Matcher.Strategy]; !ok {
		return fmt.Errorf("matcher.strategy: unknown strategy %q", c.Matcher.Strategy)
	}
	if c.Workflow.PollIntervalSeconds <= 0 {
		return fmt.Errorf("workflow.poll_interval_seconds: must be positive")
	}
	if c.Workflow.ScanConcurrency <= 0 {
		return fmt.Errorf("workflow.scan_concurrency: must be positive")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
