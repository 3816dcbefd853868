package tools

import "deepresearch/internal/llm"

// NewSubResearcherRegistry builds the tool set available to a sub-researcher
// ReAct loop: search (optionally summarized), fetch, document reading, CSV
// analysis, and think. Pass a chat client to enable LLM-generated summaries
// of fetched search results; omit it to keep raw snippets.
func NewSubResearcherRegistry(braveAPIKey string, client ...llm.ChatClient) *Registry {
	registry := NewEmptyRegistry()

	searchTool := NewSearchTool(braveAPIKey)
	if len(client) > 0 && client[0] != nil {
		searchTool.SetSummarizer(NewContentSummarizer(client[0]))
	}
	registry.Register(searchTool)

	registry.Register(NewFetchTool())
	registry.Register(NewDocumentReadTool())
	registry.Register(NewCSVAnalysisTool())
	registry.Register(&ThinkTool{})

	return registry
}
