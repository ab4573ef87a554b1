package main

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/checkrank/internal/backend"
	"github.com/stellarlinkco/checkrank/internal/config"
	"github.com/stellarlinkco/checkrank/internal/llm"
)

// newBackend builds the execution backend for one model role. The regime
// (remote vs local) is fixed by config for the whole run.
func newBackend(cfg *config.Config, model string) (backend.Backend, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Backend.Mode))
	switch mode {
	case "", "remote":
		provider, err := llm.NewProviderFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return backend.NewRemote(provider, model,
			backend.WithParallelism(cfg.Backend.Parallelism),
			backend.WithMaxRetries(cfg.Backend.MaxRetries),
			backend.WithRequestTimeout(cfg.Backend.Timeout),
		), nil
	case "local":
		return backend.NewLocal(cfg.Backend.Devices, func(device int) (backend.Engine, error) {
			baseURL := fmt.Sprintf("http://127.0.0.1:%d/v1", cfg.Backend.LocalPortBase+device)
			return &backend.ProviderEngine{
				Provider: llm.NewOpenAIProvider("local", baseURL, model),
				Model:    model,
			}, nil
		})
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}
