// Package config loads and validates the TOML configuration shared by the
// redact CLI and daemon.
package config
