package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailsorter.toml")
	body := `
[server]
addr = ":8080"

[classifier]
kind = "keyword"
keywords = ["lottery", "prize"]

[pipeline]
max_results = 25
move_threshold = 60.5

[poll]
enabled = true
interval = "90s"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Classifier.Kind != "keyword" || len(cfg.Classifier.Keywords) != 2 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Pipeline.MaxResults != 25 || cfg.Pipeline.MoveThreshold != 60.5 {
		t.Fatalf("pipeline values not applied: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Label != "Filtered-Unwanted" {
		t.Fatalf("default label lost: %q", cfg.Pipeline.Label)
	}
	if !cfg.Poll.Enabled || cfg.Poll.Interval.Duration != 90*time.Second {
		t.Fatalf("poll values not applied: %+v", cfg.Poll)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MAILSORTER_CLIENT_ID":     "id",
		"MAILSORTER_CLIENT_SECRET": "secret",
		"PORT":                     "7000",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.OAuth.ClientID != "id" || cfg.OAuth.ClientSecret != "secret" || cfg.Server.Addr != ":7000" {
		t.Fatalf("env not applied: %+v", cfg)
	}

	env["PORT"] = "abc"
	if err := cfg.applyEnv(lookup); err == nil {
		t.Fatalf("expected error for invalid PORT")
	}
}

func TestRequireOAuthClient(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireOAuthClient(); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	cfg.OAuth.CredentialsFile = "credentials.json"
	if err := cfg.RequireOAuthClient(); err != nil {
		t.Fatalf("credentials file should satisfy requirement: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Classifier.Kind = "bayes"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown classifier kind")
	}
	cfg = Default()
	cfg.Pipeline.MoveThreshold = 150
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for threshold above 100")
	}
}
