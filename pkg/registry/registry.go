// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scrape-planner/internal/common/validation"
)

const DefaultPath = "configs/activity-registry.json"

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

func SaveRegistry(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Upsert replaces the activity with the same ID or appends it. It reports
// whether anything changed.
func (r *ActivityRegistry) Upsert(activity Activity, now time.Time) bool {
	for i := range r.Activities {
		if r.Activities[i].ID != activity.ID {
			continue
		}
		if sameActivity(r.Activities[i], activity) {
			return false
		}
		r.Activities[i] = activity
		r.LastUpdated = now.UTC().Format(time.RFC3339)
		return true
	}
	r.Activities = append(r.Activities, activity)
	r.LastUpdated = now.UTC().Format(time.RFC3339)
	return true
}

func (r *ActivityRegistry) Find(id string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// Validate checks required fields, uniqueness of IDs and task types, and
// that every published input schema compiles.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.Timeout != "" {
			if _, err := time.ParseDuration(activity.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q", activity.ID, activity.Timeout)
			}
		}
		if activity.InputSchema != nil {
			raw, err := json.Marshal(activity.InputSchema)
			if err != nil {
				return fmt.Errorf("activity %s: %w", activity.ID, err)
			}
			if _, err := validation.Compile(activity.ID, string(raw)); err != nil {
				return err
			}
		}
	}
	return nil
}

func sameActivity(a, b Activity) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(left) == string(right)
}
