package tools

import (
	"context"
	"fmt"

	"github.com/careloop/careloop/internal/search"
)

func (r *Registry) registerWebSearchTools() {
	r.Register(&Tool{
		Name:        "search_web",
		Description: "Search the web for news, weather, or facts from the outside world.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (default 3)",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleSearchWeb,
	})
}

func (r *Registry) handleSearchWeb(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := stringArg(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	max := intArg(args, "max_results", 3)

	if r.search == nil || !r.search.Configured() {
		return map[string]any{"error": "Web search is not available right now"}, nil
	}

	results, err := r.search.Search(ctx, query, search.Options{Count: max})
	if err != nil {
		r.logger.Warn("web search failed", "query", query, "error", err)
		return map[string]any{
			"error": "I had a technical issue searching the web. Let's try again in a moment.",
		}, nil
	}

	return map[string]any{
		"status":  "ok",
		"summary": search.FormatResults(results, max),
	}, nil
}
