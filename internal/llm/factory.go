package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/checkrank/internal/config"
)

// NewProviderFromConfig resolves the configured default provider.
func NewProviderFromConfig(cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	providers := make(map[string]Provider, len(cfg.LLM.Providers))
	for name, pcfg := range cfg.LLM.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "":
			continue
		case "claude", "anthropic":
			providers["claude"] = NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model)
		case "openai":
			providers["openai"] = NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model)
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	name := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if name == "anthropic" {
		name = "claude"
	}
	if p, ok := providers[name]; ok {
		return p, nil
	}
	if len(providers) == 1 {
		for _, p := range providers {
			return p, nil
		}
	}

	available := make([]string, 0, len(providers))
	for k := range providers {
		available = append(available, k)
	}
	sort.Strings(available)
	return nil, fmt.Errorf("llm: provider %q not configured (available: %s)",
		name, strings.Join(available, ", "))
}
