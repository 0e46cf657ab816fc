// internal/workers/scrape-planning/summarize-session/models.go
package summarizesession

import "scrape-planner/internal/nlu/conversation"

type Input struct {
	SessionID string `json:"sessionId"`
}

// Output always carries a summary; summary.error is set for unknown or
// unreadable sessions so the process can branch on it.
type Output struct {
	Summary conversation.Summary `json:"summary"`
	Found   bool                 `json:"found"`
}

const InputSchema = `{
	"type": "object",
	"required": ["sessionId"],
	"properties": {
		"sessionId": {"type": "string", "minLength": 1, "maxLength": 256}
	}
}`
