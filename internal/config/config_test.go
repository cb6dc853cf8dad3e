package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if got := cfg.Detector.Language; got != "de" {
		t.Fatalf("default language = %q, want de", got)
	}
	if len(cfg.Detector.Backends) != 1 || cfg.Detector.Backends[0] != "rules" {
		t.Fatalf("default backends = %v", cfg.Detector.Backends)
	}
	if !filepath.IsAbs(cfg.Paths.StateDir) {
		t.Fatalf("state dir not expanded: %q", cfg.Paths.StateDir)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
[detector]
backends = [" Rules ", "sidecar"]
sidecar_url = "http://localhost:8001/"
language = "en"

[matcher]
strategy = "Person-Names"
`)
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected existing config file")
	}
	if cfg.Detector.SidecarURL != "http://localhost:8001" {
		t.Fatalf("sidecar url = %q", cfg.Detector.SidecarURL)
	}
	if got := cfg.Detector.Backends; got[0] != "rules" || got[1] != "sidecar" {
		t.Fatalf("backends = %v", got)
	}
	if cfg.Matcher.Strategy != "person-names" {
		t.Fatalf("matcher strategy = %q", cfg.Matcher.Strategy)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown backend",
			content: "[detector]\nbackends = [\"presidio\"]\n",
			wantErr: "unknown backend",
		},
		{
			name:    "sidecar without url",
			content: "[detector]\nbackends = [\"sidecar\"]\n",
			wantErr: "sidecar_url",
		},
		{
			name:    "llm without model",
			content: "[detector]\nbackends = [\"llm\"]\n",
			wantErr: "llm.model",
		},
		{
			name:    "confidence out of range",
			content: "[detector]\nbackends = [\"rules\"]\nmin_confidence = 1.5\n",
			wantErr: "min_confidence",
		},
		{
			name:    "bad language",
			content: "[detector]\nbackends = [\"rules\"]\nlanguage = \"not a tag\"\n",
			wantErr: "language",
		},
		{
			name:    "bad matcher",
			content: "[matcher]\nstrategy = \"fuzzy\"\n",
			wantErr: "matcher.strategy",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, _, _, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load error = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REDACT_LLM_API_KEY", "secret-from-env")
	path := writeConfig(t, "[llm]\napi_key = \"from-file\"\nmodel = \"test\"\n")
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "secret-from-env" {
		t.Fatalf("api key = %q, want env override", cfg.LLM.APIKey)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}
