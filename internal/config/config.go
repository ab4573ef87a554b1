package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Backend BackendConfig `yaml:"backend"`
	Eval    EvalConfig    `yaml:"eval"`
	Storage StorageConfig `yaml:"storage"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// BackendConfig selects and tunes the execution backend. Mode is "remote"
// or "local"; the two regimes are never mixed within one run.
type BackendConfig struct {
	Mode        string        `yaml:"mode,omitempty"`
	Parallelism int           `yaml:"parallelism,omitempty"`
	MaxRetries  int           `yaml:"max_retries,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`

	// Local regime: one inference worker per device id, each served by an
	// OpenAI-compatible endpoint at 127.0.0.1:(local_port_base + device).
	Devices       []int `yaml:"devices,omitempty"`
	LocalPortBase int   `yaml:"local_port_base,omitempty"`
}

type EvalConfig struct {
	DatasetRoot    string  `yaml:"dataset_root,omitempty"`
	GeneratorModel string  `yaml:"generator_model,omitempty"`
	JudgeModel     string  `yaml:"judge_model,omitempty"`
	LabelerModel   string  `yaml:"labeler_model,omitempty"`
	Calibration    string  `yaml:"calibration,omitempty"` // "pooled" or "per_prompt"
	LabelThreshold float64 `yaml:"label_threshold,omitempty"`
	ParseRetries   int     `yaml:"parse_retries,omitempty"`
}

type StorageConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite file path
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "claude"
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	if strings.TrimSpace(cfg.Backend.Mode) == "" {
		cfg.Backend.Mode = "remote"
	}
	if cfg.Backend.Parallelism <= 0 {
		cfg.Backend.Parallelism = 4
	}
	if cfg.Backend.MaxRetries < 0 {
		cfg.Backend.MaxRetries = 0
	}
	if cfg.Backend.LocalPortBase <= 0 {
		cfg.Backend.LocalPortBase = 8000
	}

	if strings.TrimSpace(cfg.Eval.DatasetRoot) == "" {
		cfg.Eval.DatasetRoot = "datasets"
	}
	if strings.TrimSpace(cfg.Eval.Calibration) == "" {
		cfg.Eval.Calibration = "pooled"
	}
	if cfg.Eval.LabelThreshold <= 0 || cfg.Eval.LabelThreshold > 1 {
		cfg.Eval.LabelThreshold = 0.5
	}
	if cfg.Eval.ParseRetries <= 0 {
		cfg.Eval.ParseRetries = 2
	}

	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = "checkrank.db"
	}
}
