package llms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coworkai/coworker/pkg/config"
	"github.com/coworkai/coworker/pkg/protocol"
)

// Gateway dispatches generate calls by provider id, reading the live
// provider document. A stale provider reference falls back to any configured
// provider rather than failing the turn; the substitution is logged.
type Gateway struct {
	store *config.ProviderStore
}

func NewGateway(store *config.ProviderStore) *Gateway {
	return &Gateway{store: store}
}

// Invoke runs one generate call against the named provider. An empty model
// uses the provider's first configured model.
func (g *Gateway) Invoke(ctx context.Context, providerID, model string, messages []protocol.Message, tools []ToolDefinition) (*Result, error) {
	cfg, ok := g.store.Get(providerID)
	if !ok {
		fallback, found := g.store.First()
		if !found {
			return nil, &ProviderError{Provider: providerID, Kind: ErrProviderUnavailable,
				Detail: "no providers configured"}
		}
		slog.Warn("provider not found, using fallback",
			"requested", providerID, "fallback", fallback.ID)
		cfg = fallback
	}

	if model == "" {
		if len(cfg.Models) == 0 {
			return nil, &ProviderError{Provider: cfg.ID, Kind: ErrProtocol,
				Detail: "no model given and none configured"}
		}
		model = cfg.Models[0]
	}

	provider, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return provider.Generate(ctx, model, messages, tools)
}

// build constructs a provider for its document entry. Providers hold no
// connections, so fresh construction per call keeps hot-reloaded config
// changes visible immediately.
func build(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case config.ProviderTypeOpenAI, config.ProviderTypeOpenAICompatible:
		return NewOpenAIProvider(cfg), nil
	case config.ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg), nil
	case config.ProviderTypeGemini:
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("llms: unsupported provider type %q", cfg.Type)
	}
}
