package detect

import (
	"fmt"
	"time"

	"redact/internal/config"
)

// NewFromConfig assembles the configured detection backends. A single backend
// is returned directly; multiple backends are combined into a MultiDetector.
func NewFromConfig(cfg *config.Config) (Detector, error) {
	var backends []Detector
	for _, name := range cfg.Detector.Backends {
		switch name {
		case "rules":
			backends = append(backends, NewRulesDetector())
		case "sidecar":
			backends = append(backends, NewSidecarDetector(SidecarOptions{
				BaseURL:           cfg.Detector.SidecarURL,
				Timeout:           time.Duration(cfg.Detector.TimeoutSeconds) * time.Second,
				RequestsPerSecond: cfg.Detector.RequestsPerSecond,
				CacheTTL:          time.Duration(cfg.Detector.CacheTTLSeconds) * time.Second,
				CacheSweep:        time.Duration(cfg.Detector.CacheSweepSeconds) * time.Second,
			}))
		case "llm":
			detector, err := NewLLMDetector(LLMOptions{
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
				Model:   cfg.LLM.Model,
				Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
			})
			if err != nil {
				return nil, err
			}
			backends = append(backends, detector)
		default:
			return nil, fmt.Errorf("unknown detector backend %q", name)
		}
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no detector backends configured")
	}
	if len(backends) == 1 {
		return backends[0], nil
	}
	return NewMultiDetector(backends...), nil
}
