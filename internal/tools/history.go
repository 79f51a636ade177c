package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// familyHistory is a small fixed memory bank keyed by topic. A future
// version should source this from caregiver-curated documents instead.
var familyHistory = map[string]string{
	"wedding":   "You got married in a small church by the sea. It rained in the morning and cleared just in time for the photos.",
	"garden":    "You kept a rose garden for many years. Your yellow roses won a prize at the village fair.",
	"children":  "You have two children who visit as often as they can. They loved the pancakes you made on Sunday mornings.",
	"work":      "You worked as a school teacher for over thirty years. Former pupils still remember your reading hour.",
	"holidays":  "The family spent summers at the lake house. You taught everyone to fish off the old wooden dock.",
	"christmas": "Christmas was always at your house. You baked cinnamon stars and the whole street could smell them.",
}

func (r *Registry) registerHistoryTools() {
	r.Register(&Tool{
		Name:        "search_family_history",
		Description: "Look up a cherished family memory by keyword. Use when the patient asks about their past or seems anxious about a memory gap.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keyword": map[string]any{
					"type":        "string",
					"description": "Topic to look up (e.g. 'wedding', 'garden', 'children')",
				},
			},
			"required": []string{"keyword"},
		},
		Handler: r.handleSearchFamilyHistory,
	})
}

func (r *Registry) handleSearchFamilyHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	keyword := strings.ToLower(strings.TrimSpace(stringArg(args, "keyword", "")))
	if keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}

	// Sorted keys so a keyword matching several topics always answers
	// with the same memory.
	topics := make([]string, 0, len(familyHistory))
	for topic := range familyHistory {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	for _, topic := range topics {
		if strings.Contains(topic, keyword) || strings.Contains(keyword, topic) {
			return map[string]any{"status": "found", "memory": familyHistory[topic]}, nil
		}
	}

	return map[string]any{
		"status":  "not_found",
		"message": fmt.Sprintf("I don't have a memory about %q yet. Would you like to tell me about it?", keyword),
	}, nil
}
