package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/moleary1107/etownz-grants-sub007/internal/config"
	"github.com/moleary1107/etownz-grants-sub007/internal/llm"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// BuildLLMClient wires Bedrock as the primary completion provider and Gemini
// as the fallback. Either may be used alone. It returns nil without error when
// neither is configured, which disables AI recommendations.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var primary, fallback llm.Client
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		primary = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		fallback = gemini
	}

	switch {
	case primary != nil && fallback != nil:
		logger.Info("using bedrock with gemini fallback", "model", cfg.BedrockModelID)
		return llm.NewFallbackClient(primary, fallback, logger), nil
	case primary != nil:
		logger.Info("using bedrock", "model", cfg.BedrockModelID)
		return primary, nil
	case fallback != nil:
		logger.Info("using gemini", "model", cfg.GeminiModelID)
		return fallback, nil
	default:
		logger.Warn("no LLM provider configured; AI recommendations disabled")
		return nil, nil
	}
}

// BuildGenerator returns the recommendation generator for client, or nil
// when client is nil.
func BuildGenerator(client llm.Client, cfg *appconfig.Config, logger *logging.Logger) recommendations.Generator {
	if client == nil || cfg == nil {
		return nil
	}
	model := cfg.BedrockModelID
	if strings.TrimSpace(model) == "" {
		model = cfg.GeminiModelID
	}
	return recommendations.NewLLMGenerator(client, recommendations.GeneratorConfig{
		Model:       model,
		MaxTokens:   int32(cfg.RecommendationMaxTokens),
		Temperature: 0.2,
	}, logger)
}
