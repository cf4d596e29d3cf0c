package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/fileindex/internal/config"
)

// New builds the embedder selected by cfg, wrapped in a CachedEmbedder
// when cfg.CacheSize is positive. There is no silent fallback: an
// unavailable Ollama is an error so vectors never land in an unexpected
// space.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder
	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderStatic:
		inner = NewStaticEmbedder()
	case config.ProviderOllama:
		ocfg := DefaultOllamaConfig()
		ocfg.Host = cfg.OllamaHost
		ocfg.Model = cfg.Model
		ocfg.Dimensions = cfg.Dimensions
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			ocfg.Timeout = d
		}
		o, err := NewOllamaEmbedder(ctx, ocfg)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w", err)
		}
		inner = o
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}

	slog.Info("embedder selected",
		slog.String("space", inner.Space()),
		slog.Int("dimensions", inner.Dimensions()),
		slog.Int("cache_size", cfg.CacheSize))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
