// internal/workers/scrape-planning/cleanup-sessions/models.go
package cleanupsessions

type Input struct {
	MaxAgeHours *float64 `json:"maxAgeHours,omitempty"`
}

type Output struct {
	Cleaned     int     `json:"cleaned"`
	Kept        int     `json:"kept"`
	MaxAgeHours float64 `json:"maxAgeHours"`
	Error       string  `json:"cleanupError,omitempty"`
}

const InputSchema = `{
	"type": "object",
	"properties": {
		"maxAgeHours": {"type": ["number", "null"], "exclusiveMinimum": 0}
	}
}`
