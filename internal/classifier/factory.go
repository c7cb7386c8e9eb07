package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paleon-app/paleon-backend/internal/config"
)

// New builds the configured Classifier. For the openai provider the
// classification spec is resolved first, which may call out to the retrieval
// service; failures there are startup failures.
func New(ctx context.Context, cfg config.ClassifierConfig, logger *slog.Logger) (Classifier, error) {
	switch cfg.Provider {
	case "openai":
		source, err := newPromptSource(cfg, logger)
		if err != nil {
			return nil, err
		}
		spec, err := source.Extract(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve classification spec: %w", err)
		}
		return NewVisionClassifier(cfg.OpenAI, spec, cfg.RequestTimeout, logger), nil
	case "mock":
		return &MockClassifier{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", cfg.Provider)
	}
}

func newPromptSource(cfg config.ClassifierConfig, logger *slog.Logger) (PromptSource, error) {
	switch cfg.PromptSource {
	case "retrieval":
		return NewRetrievalExtractor(cfg.OpenAI, cfg.RequestTimeout, logger), nil
	case "file":
		return &FileSource{Path: cfg.PromptFile}, nil
	default:
		return nil, fmt.Errorf("unknown prompt source: %s", cfg.PromptSource)
	}
}
