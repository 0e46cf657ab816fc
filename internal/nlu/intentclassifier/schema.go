package intentclassifier

import (
	"fmt"
	"strings"

	"scrape-planner/internal/common/validation"
	"scrape-planner/internal/models"
)

var intentSchema = validation.MustCompile("intent_classification", `{
  "type": "object",
  "required": ["intent_type", "confidence"],
  "properties": {
    "intent_type": {
      "type": "string",
      "enum": ["extract_data", "filter_content", "navigate_site", "analyze_content", "compare_data", "monitor_changes"]
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "target_data": {"type": "array", "items": {"type": "string"}},
    "filters": {"type": "object"},
    "conditions": {"type": "array", "items": {"type": "string"}},
    "output_format": {"type": "string"}
  }
}`)

type modelIntent struct {
	IntentType   string                 `json:"intent_type"`
	Confidence   float64                `json:"confidence"`
	TargetData   []string               `json:"target_data"`
	Filters      map[string]interface{} `json:"filters"`
	Conditions   []string               `json:"conditions"`
	OutputFormat string                 `json:"output_format"`
}

func (m modelIntent) toIntent() *models.Intent {
	in := models.NewIntent(models.IntentType(m.IntentType), m.Confidence)
	for _, t := range m.TargetData {
		in.AddTarget(strings.ToLower(strings.TrimSpace(t)))
	}
	for k, v := range m.Filters {
		in.SetFilter(k, v)
	}
	for _, c := range m.Conditions {
		in.AddCondition(c)
	}
	if m.OutputFormat != "" {
		in.OutputFormat = m.OutputFormat
	}
	in.EnsureDefaults()
	return in
}

func buildPrompt(text string) string {
	types := make([]string, len(models.IntentTypes))
	for i, t := range models.IntentTypes {
		types[i] = string(t)
	}
	return fmt.Sprintf(`Classify the following web data collection request.

Request: %q

Respond with a single JSON object and nothing else:
{
  "intent_type": one of [%s],
  "confidence": number between 0 and 1,
  "target_data": list of the kinds of data to collect,
  "filters": object of filter name to value,
  "conditions": list of detected condition tags,
  "output_format": "json"
}`, text, strings.Join(types, ", "))
}
