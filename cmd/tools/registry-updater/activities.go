// cmd/tools/registry-updater/activities.go
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"scrape-planner/internal/common/errors"
	"scrape-planner/pkg/registry"

	cs "scrape-planner/internal/workers/scrape-planning/cleanup-sessions"
	psr "scrape-planner/internal/workers/scrape-planning/plan-scrape-request"
	ss "scrape-planner/internal/workers/scrape-planning/summarize-session"
)

const category = "scrape-planning"

type compiled struct {
	taskType    string
	displayName string
	description string
	inputSchema string
	timeout     time.Duration
	errorCodes  []errors.ErrorCode
	tags        []string
}

var workers = []compiled{
	{
		taskType:    psr.TaskType,
		displayName: "Plan Scrape Request",
		description: "Turns one natural-language request into an intent, entities, condition analysis and an execution plan, using the session's history.",
		inputSchema: psr.InputSchema,
		timeout:     psr.LoadConfig().Timeout,
		errorCodes:  []errors.ErrorCode{errors.ErrCodeInvalidInput, errors.ErrCodePlanningFailed},
		tags:        []string{"nlu", "planner"},
	},
	{
		taskType:    ss.TaskType,
		displayName: "Summarize Session",
		description: "Reports turn count, topic, focus and confidence trend for a conversation session.",
		inputSchema: ss.InputSchema,
		timeout:     ss.LoadConfig().Timeout,
		errorCodes:  []errors.ErrorCode{errors.ErrCodeInvalidInput, errors.ErrCodeSessionStoreFailed},
		tags:        []string{"session"},
	},
	{
		taskType:    cs.TaskType,
		displayName: "Cleanup Sessions",
		description: "Removes sessions idle for longer than the configured age.",
		inputSchema: cs.InputSchema,
		timeout:     cs.LoadConfig().Timeout,
		errorCodes:  []errors.ErrorCode{errors.ErrCodeInvalidInput, errors.ErrCodeCleanupFailed},
		tags:        []string{"session", "maintenance"},
	},
}

func compiledActivities() ([]registry.Activity, error) {
	out := make([]registry.Activity, 0, len(workers))
	for _, w := range workers {
		var schema map[string]interface{}
		if err := json.Unmarshal([]byte(w.inputSchema), &schema); err != nil {
			return nil, fmt.Errorf("%s input schema: %w", w.taskType, err)
		}
		codes := make([]string, len(w.errorCodes))
		retries := 0
		for i, code := range w.errorCodes {
			codes[i] = string(code)
			if n := errors.GetRetryCount(code); n > retries {
				retries = n
			}
		}
		out = append(out, registry.Activity{
			ID:          w.taskType,
			DisplayName: w.displayName,
			Description: w.description,
			Category:    category,
			Version:     "1.0.0",
			TaskType:    w.taskType,
			InputSchema: schema,
			ErrorCodes:  codes,
			Timeout:     w.timeout.String(),
			Retries:     retries,
			Tags:        w.tags,
		})
	}
	return out, nil
}

// checkDrift fails when a compiled worker is missing from the registry or its
// published schema no longer matches the one the worker validates with.
func checkDrift(reg *registry.ActivityRegistry) error {
	activities, err := compiledActivities()
	if err != nil {
		return err
	}
	for _, want := range activities {
		got, ok := reg.Find(want.ID)
		if !ok {
			return fmt.Errorf("activity %s is not registered; run sync", want.ID)
		}
		left, _ := json.Marshal(got.InputSchema)
		right, _ := json.Marshal(want.InputSchema)
		if string(left) != string(right) {
			return fmt.Errorf("activity %s input schema is stale; run sync", want.ID)
		}
	}
	return nil
}
