// internal/workers/scrape-planning/cleanup-sessions/config.go
package cleanupsessions

import (
	"time"

	"scrape-planner/internal/common/config"
)

type Config struct {
	Timeout            time.Duration
	DefaultMaxAgeHours float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            60 * time.Second,
		DefaultMaxAgeHours: 24,
	}
}

// ConfigFrom takes the timeout from the worker entry and the default age
// from the session section.
func ConfigFrom(app *config.Config) *Config {
	cfg := LoadConfig()
	if app == nil {
		return cfg
	}
	if wcfg, ok := app.Workers[TaskType]; ok && wcfg.Timeout > 0 {
		cfg.Timeout = time.Duration(wcfg.Timeout) * time.Millisecond
	}
	if app.Session.MaxAgeHours > 0 {
		cfg.DefaultMaxAgeHours = app.Session.MaxAgeHours
	}
	return cfg
}
