package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrNoJudge is returned by the unavailable judge
var ErrNoJudge = errors.New("no judge provider configured")

// NewProvider creates a judge provider based on configuration. An empty
// provider name yields the unavailable judge.
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return Unavailable{}, nil

	default:
		return nil, fmt.Errorf("unknown judge provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the judge and HTTP sections of the run config
func ConfigFromModel(judge model.JudgeConfig, http model.HTTPConfig) Config {
	return Config{
		Provider:   judge.Provider,
		Model:      judge.Model,
		APIKey:     judge.APIKey,
		BaseURL:    judge.BaseURL,
		Timeout:    judge.Timeout,
		MaxTokens:  judge.MaxTokens,
		HTTPProxy:  http.HTTPProxy,
		HTTPSProxy: http.HTTPSProxy,
		NoProxy:    http.NoProxy,
	}
}

// Unavailable is the judge used when no provider is configured. Every
// judgment fails, so judged relationships end INSUFFICIENT_LOGIC.
type Unavailable struct{}

// Name returns "none"
func (Unavailable) Name() string {
	return "none"
}

// Judge always fails with ErrNoJudge
func (Unavailable) Judge(ctx context.Context, req model.JudgeRequest) (*model.Judgment, error) {
	return nil, ErrNoJudge
}

// Ping always fails with ErrNoJudge
func (Unavailable) Ping(ctx context.Context) error {
	return ErrNoJudge
}
