package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"CHARTLOOM_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY",
		"CHARTLOOM_MODEL", "CHARTLOOM_PROVIDER", "CHARTLOOM_SAMPLE_ROWS",
	} {
		t.Setenv(k, "")
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Provider != "openai" || c.Model != "gpt-4o" || c.MaxTokens != 2048 || c.Temperature != 1.0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.SampleRows != 100 || c.HTTPTimeoutSec != 60 || c.LogLevel != "info" || c.APIKey != "" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	yml := "provider: openrouter\nmodel: openai/gpt-4o-mini\nsample_rows: 250\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHARTLOOM_MODEL", "anthropic/claude-3.5-sonnet")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Provider != "openrouter" {
		t.Fatalf("provider from file = %q", c.Provider)
	}
	if c.Model != "anthropic/claude-3.5-sonnet" {
		t.Fatalf("env should override file, model = %q", c.Model)
	}
	if c.APIKey != "or-key" {
		t.Fatalf("api key = %q", c.APIKey)
	}
	if c.SampleRows != 100 {
		t.Fatalf("sample rows should be capped, got %d", c.SampleRows)
	}

	t.Setenv("CHARTLOOM_API_KEY", "cl-key")
	c, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.APIKey != "cl-key" {
		t.Fatalf("CHARTLOOM_API_KEY should win, got %q", c.APIKey)
	}
}

func TestSaveAndReload(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load missing explicit file: %v", err)
	}
	if err := c.Set("model", "gpt-4o-mini"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("sample_rows", "25"); err != nil {
		t.Fatal(err)
	}
	if err := Save(c, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("config perms = %v", info.Mode().Perm())
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Model != "gpt-4o-mini" || again.SampleRows != 25 {
		t.Fatalf("reloaded = %+v", again)
	}
}

func TestSetValidation(t *testing.T) {
	c := &Global{}
	cases := []struct {
		key, value string
		ok         bool
	}{
		{"temperature", "0.2", true},
		{"temperature", "hot", false},
		{"max_tokens", "0", false},
		{"sample_rows", "101", false},
		{"http_timeout_sec", "30", true},
		{"Provider", "Anthropic", true},
		{"colour", "blue", false},
	}
	for _, tc := range cases {
		err := c.Set(tc.key, tc.value)
		if (err == nil) != tc.ok {
			t.Fatalf("Set(%q, %q) err = %v", tc.key, tc.value, err)
		}
	}
	if c.Provider != "anthropic" || c.Temperature != 0.2 || c.HTTPTimeoutSec != 30 {
		t.Fatalf("unexpected config after Set: %+v", c)
	}
	c.APIKey = "sk-abcdef123456"
	if v, _ := c.Get("api_key"); v != "****3456" || strings.Contains(v, "abcdef") {
		t.Fatalf("masked key = %q", v)
	}
	if _, err := c.Get("nope"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}
