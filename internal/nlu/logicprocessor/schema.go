package logicprocessor

import (
	"fmt"
	"strings"

	"scrape-planner/internal/common/validation"
	"scrape-planner/internal/models"
)

var conditionalSchema = validation.MustCompile("conditional_analysis", `{
  "type": "object",
  "required": ["conditions"],
  "properties": {
    "conditions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["condition", "action"],
        "properties": {
          "type": {"type": "string"},
          "condition": {"type": "string", "minLength": 1},
          "action": {"type": "string", "minLength": 1},
          "else_action": {"type": "string"}
        }
      }
    }
  }
}`)

type conditionalPayload struct {
	Conditions []models.ConditionalStatement `json:"conditions"`
}

func buildConditionalPrompt(text string, intent *models.Intent) string {
	var goal, targets string
	if intent != nil {
		goal = string(intent.Type)
		targets = strings.Join(intent.TargetData, ", ")
	}
	return fmt.Sprintf(`Identify the conditional logic in this web data collection request.

Request: %q
Goal: %s
Targets: %s

Respond with a single JSON object and nothing else:
{
  "conditions": [
    {"type": "if|when|unless", "condition": "...", "action": "...", "else_action": "..."}
  ]
}`, text, goal, targets)
}
