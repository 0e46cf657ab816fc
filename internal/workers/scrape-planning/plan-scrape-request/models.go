// internal/workers/scrape-planning/plan-scrape-request/models.go
package planscraperequest

import "scrape-planner/internal/models"

type Input struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type Output struct {
	Intent            *models.Intent            `json:"intent"`
	Entities          []models.Entity           `json:"entities"`
	ConditionAnalysis *models.ConditionAnalysis `json:"conditionAnalysis"`
	ExecutionPlan     *models.ExecutionPlan     `json:"executionPlan"`
	Degraded          bool                      `json:"degraded"`
	DegradedReasons   []string                  `json:"degradedReasons,omitempty"`
}

// InputSchema is also published to the activity registry.
const InputSchema = `{
	"type": "object",
	"required": ["sessionId", "text"],
	"properties": {
		"sessionId": {"type": "string", "minLength": 1, "maxLength": 256},
		"text": {"type": "string", "maxLength": 10000}
	}
}`
