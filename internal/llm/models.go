package llm

// DefaultModel is used whenever a caller doesn't pin a specific model ID.
const DefaultModel = "alibaba/tongyi-deepresearch-30b-a3b"

// ModelConfig holds model-specific generation settings.
type ModelConfig struct {
	ID          string
	MaxTokens   int
	Temperature float64
}

// DefaultModelConfig returns the generation settings used when a caller
// doesn't override them.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ID:          DefaultModel,
		MaxTokens:   8192,
		Temperature: 0.7,
	}
}

// ModelPricing holds per-token pricing, in cost per 1M tokens (USD).
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// pricingTable lists known OpenRouter model prices. A model not listed here
// falls back to unknownModelPricing.
var pricingTable = map[string]ModelPricing{
	"alibaba/tongyi-deepresearch-30b-a3b": {InputPer1M: 0.50, OutputPer1M: 0.50},
	"openai/gpt-4o":                       {InputPer1M: 2.50, OutputPer1M: 10.00},
	"openai/gpt-4o-mini":                  {InputPer1M: 0.15, OutputPer1M: 0.60},
	"anthropic/claude-3.5-sonnet":         {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic/claude-3-haiku":            {InputPer1M: 0.25, OutputPer1M: 1.25},
	"google/gemini-pro-1.5":               {InputPer1M: 1.25, OutputPer1M: 5.00},
}

var unknownModelPricing = ModelPricing{InputPer1M: 1.00, OutputPer1M: 2.00}

// GetPricing returns the pricing for modelID, or a conservative default if
// the model isn't in the table.
func GetPricing(modelID string) ModelPricing {
	if pricing, ok := pricingTable[modelID]; ok {
		return pricing
	}
	return unknownModelPricing
}

// CalculateCost computes input/output/total USD cost for a completion given
// its token counts.
func CalculateCost(modelID string, inputTokens, outputTokens int) (inputCost, outputCost, totalCost float64) {
	pricing := GetPricing(modelID)
	inputCost = float64(inputTokens) * pricing.InputPer1M / 1_000_000
	outputCost = float64(outputTokens) * pricing.OutputPer1M / 1_000_000
	totalCost = inputCost + outputCost
	return
}
