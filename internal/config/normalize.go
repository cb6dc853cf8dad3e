package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return err
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	backends := make([]string, 0, len(c.Detector.Backends))
	for _, backend := range c.Detector.Backends {
		trimmed := strings.ToLower(strings.TrimSpace(backend))
		if trimmed != "" {
			backends = append(backends, trimmed)
		}
	}
	c.Detector.Backends = backends
	c.Detector.SidecarURL = strings.TrimRight(strings.TrimSpace(c.Detector.SidecarURL), "/")
	c.Detector.Language = strings.TrimSpace(c.Detector.Language)
	c.Matcher.Strategy = strings.ToLower(strings.TrimSpace(c.Matcher.Strategy))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}
