// Package session holds types shared across agents for tracking LLM spend.
// The session/worker state itself is owned by the event-sourced aggregate
// in internal/core/domain/aggregate; this package only carries the
// cost-accounting value type every agent reports through.
package session

import (
	"deepresearch/internal/llm"
)

// CostBreakdown tracks token usage and costs for a single LLM call or a
// running total across many.
type CostBreakdown struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// Add adds another cost breakdown to this one.
func (c *CostBreakdown) Add(other CostBreakdown) {
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.TotalTokens += other.TotalTokens
	c.InputCost += other.InputCost
	c.OutputCost += other.OutputCost
	c.TotalCost += other.TotalCost
}

// NewCostBreakdown constructs a cost breakdown from token usage.
func NewCostBreakdown(model string, inputTokens, outputTokens, totalTokens int) CostBreakdown {
	if totalTokens == 0 {
		totalTokens = inputTokens + outputTokens
	}

	inputCost, outputCost, totalCost := llm.CalculateCost(model, inputTokens, outputTokens)

	return CostBreakdown{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    totalCost,
	}
}
