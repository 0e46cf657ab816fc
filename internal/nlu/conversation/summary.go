package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/models"
)

const (
	summaryRecentInputs  = 3
	recurringOccurrences = 2
)

// Summary describes one session. Error is set, and the rest left empty,
// when the session cannot be read; Err keeps the cause for callers.
type Summary struct {
	SessionID            string         `json:"session_id"`
	TurnCount            int            `json:"turn_count"`
	Topic                string         `json:"topic"`
	Focus                string         `json:"focus"`
	ConfidenceTrend      []float64      `json:"confidence_trend"`
	IntentDistribution   map[string]int `json:"intent_distribution"`
	RecentInputs         []string       `json:"recent_inputs"`
	RecurringEntityTypes []string       `json:"recurring_entity_types"`
	CreatedAt            time.Time      `json:"created_at"`
	LastUpdated          time.Time      `json:"last_updated"`
	Error                string         `json:"error,omitempty"`
	Err                  error          `json:"-"`
}

func (m *Manager) Summarize(ctx context.Context, sessionID string) (summary Summary) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session summary panicked", map[string]interface{}{
				"sessionId": sessionID,
				"panic":     fmt.Sprint(r),
			})
			err := fmt.Errorf("summarize %s: internal error: %v", sessionID, r)
			summary = Summary{SessionID: sessionID, Error: err.Error(), Err: err}
		}
	}()

	sc, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("session summary failed", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err,
			})
		}
		return Summary{SessionID: sessionID, Error: err.Error(), Err: err}
	}

	summary = Summary{
		SessionID:            sessionID,
		TurnCount:            len(sc.ConversationHistory),
		Topic:                sc.Topic,
		Focus:                Focus(sc),
		ConfidenceTrend:      ConfidenceTrend(sc),
		IntentDistribution:   make(map[string]int),
		RecentInputs:         []string{},
		RecurringEntityTypes: []string{},
		CreatedAt:            sc.CreatedAt,
		LastUpdated:          sc.LastUpdated,
	}
	for _, turn := range sc.ConversationHistory {
		summary.IntentDistribution[string(turn.Intent.Type)]++
	}
	for _, turn := range models.KeepLast(sc.ConversationHistory, summaryRecentInputs) {
		summary.RecentInputs = append(summary.RecentInputs, turn.UserInput)
	}
	for _, t := range repeatedTypes(sc.PreviousEntities, recurringOccurrences) {
		summary.RecurringEntityTypes = append(summary.RecurringEntityTypes, string(t))
	}
	return summary
}

// CleanupResult reports one sweep. Error carries the first store failure;
// the sweep continues past individual session failures.
type CleanupResult struct {
	Cleaned int    `json:"cleaned"`
	Kept    int    `json:"kept"`
	Error   string `json:"error,omitempty"`
}

// Cleanup removes sessions whose last update is missing, unreadable or
// older than maxAgeHours.
// A fault mid-sweep returns the counts so far with Error set.
func (m *Manager) Cleanup(ctx context.Context, maxAgeHours float64) (result CleanupResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session cleanup panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			result.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	ids, err := m.store.List(ctx)
	if err != nil {
		m.logger.Error("listing sessions failed", map[string]interface{}{"error": err})
		result.Error = err.Error()
		return result
	}

	now := m.clock.Now()
	maxAge := time.Duration(maxAgeHours * float64(time.Hour))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			break
		}

		sc, err := m.store.Get(ctx, id)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			continue
		case errors.Is(err, ErrCorruptSession):
			// undecodable, so its age is unknown: remove it
		case err != nil:
			if result.Error == "" {
				result.Error = err.Error()
			}
			result.Kept++
			continue
		case !sc.LastUpdated.IsZero() && now.Sub(sc.LastUpdated) <= maxAge:
			result.Kept++
			continue
		}

		if err := m.store.Delete(ctx, id); err != nil {
			if result.Error == "" {
				result.Error = err.Error()
			}
			result.Kept++
			continue
		}
		result.Cleaned++
	}

	metrics.SessionsCleaned.Add(float64(result.Cleaned))
	metrics.SessionsActive.Set(float64(result.Kept))

	m.logger.Info("session cleanup finished", map[string]interface{}{
		"cleaned":     result.Cleaned,
		"kept":        result.Kept,
		"maxAgeHours": maxAgeHours,
	})
	return result
}
