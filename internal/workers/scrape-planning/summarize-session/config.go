// internal/workers/scrape-planning/summarize-session/config.go
package summarizesession

import (
	"time"

	"scrape-planner/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}

func ConfigFrom(app *config.Config) *Config {
	cfg := LoadConfig()
	if app == nil {
		return cfg
	}
	if wcfg, ok := app.Workers[TaskType]; ok && wcfg.Timeout > 0 {
		cfg.Timeout = time.Duration(wcfg.Timeout) * time.Millisecond
	}
	return cfg
}
