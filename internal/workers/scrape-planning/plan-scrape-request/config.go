// internal/workers/scrape-planning/plan-scrape-request/config.go
package planscraperequest

import (
	"time"

	"scrape-planner/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

// ConfigFrom reads the worker's entry from the application config.
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
