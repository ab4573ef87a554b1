package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  providers:
    claude:
      api_key: test-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.DefaultProvider != "claude" {
		t.Fatalf("default provider: %q", cfg.LLM.DefaultProvider)
	}
	if cfg.Backend.Mode != "remote" {
		t.Fatalf("backend mode: %q", cfg.Backend.Mode)
	}
	if cfg.Backend.Parallelism != 4 {
		t.Fatalf("parallelism: %d", cfg.Backend.Parallelism)
	}
	if cfg.Backend.LocalPortBase != 8000 {
		t.Fatalf("local port base: %d", cfg.Backend.LocalPortBase)
	}
	if cfg.Eval.DatasetRoot != "datasets" {
		t.Fatalf("dataset root: %q", cfg.Eval.DatasetRoot)
	}
	if cfg.Eval.Calibration != "pooled" {
		t.Fatalf("calibration: %q", cfg.Eval.Calibration)
	}
	if cfg.Eval.LabelThreshold != 0.5 {
		t.Fatalf("label threshold: %v", cfg.Eval.LabelThreshold)
	}
	if cfg.Eval.ParseRetries != 2 {
		t.Fatalf("parse retries: %d", cfg.Eval.ParseRetries)
	}
	if cfg.Storage.Path != "checkrank.db" {
		t.Fatalf("storage path: %q", cfg.Storage.Path)
	}
}

func TestLoad_ExplicitValuesSurviveDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    openai:
      api_key: k
      model: gpt-4o
backend:
  mode: local
  parallelism: 8
  devices: [0, 1]
  local_port_base: 9000
eval:
  dataset_root: /data/sets
  calibration: per_prompt
  label_threshold: 0.75
storage:
  path: /tmp/eval.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.DefaultProvider != "openai" {
		t.Fatalf("default provider: %q", cfg.LLM.DefaultProvider)
	}
	if cfg.Backend.Mode != "local" || cfg.Backend.Parallelism != 8 {
		t.Fatalf("backend: %+v", cfg.Backend)
	}
	if len(cfg.Backend.Devices) != 2 || cfg.Backend.Devices[0] != 0 || cfg.Backend.Devices[1] != 1 {
		t.Fatalf("devices: %v", cfg.Backend.Devices)
	}
	if cfg.Backend.LocalPortBase != 9000 {
		t.Fatalf("local port base: %d", cfg.Backend.LocalPortBase)
	}
	if cfg.Eval.Calibration != "per_prompt" || cfg.Eval.LabelThreshold != 0.75 {
		t.Fatalf("eval: %+v", cfg.Eval)
	}
	if cfg.Storage.Path != "/tmp/eval.db" {
		t.Fatalf("storage path: %q", cfg.Storage.Path)
	}
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("OPENAI_API_KEY", "env-openai-key")

	path := writeConfig(t, `
llm:
  providers:
    claude:
      api_key: file-key
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Providers["claude"].APIKey != "env-key" {
		t.Fatalf("claude key: %q", cfg.LLM.Providers["claude"].APIKey)
	}
	if cfg.LLM.Providers["openai"].APIKey != "env-openai-key" {
		t.Fatalf("openai key: %q", cfg.LLM.Providers["openai"].APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
