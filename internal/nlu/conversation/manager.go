// Package conversation owns per-session memory: it folds prior turns into a
// freshly classified intent, records each turn, summarizes sessions and
// sweeps out stale ones.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/models"

	"github.com/benbjohnson/clock"
)

// Session focus labels.
const (
	FocusFocused     = "focused"
	FocusConverging  = "converging"
	FocusExploratory = "exploratory"
)

const (
	focusBoost        = 0.15
	focusCeiling      = 0.95
	focusMinTrend     = 3
	focusMeanRequired = 0.7

	connectorThreshold  = 0.6
	additiveBoost       = 0.3
	additiveCeiling     = 0.9
	contrastiveBoost    = 0.25
	contrastiveCeiling  = 0.85
	topicWindow         = 3
	topicMinOccurrences = 2
	filterThreshold     = 0.7
	filterWindow        = 2
	filterBoost         = 0.2
	filterCeiling       = 0.9
	criteriaWindow      = 5
	criteriaOccurrences = 2
	staleAfter          = time.Hour
	freshWithin         = time.Minute
	temporalDelta       = 0.1
	staleFloor          = 0.1
	freshCeiling        = 0.95
)

var (
	additiveConnectors    = map[string]bool{"also": true, "and": true, "too": true, "additionally": true, "plus": true}
	contrastiveConnectors = map[string]bool{"but": true, "however": true, "instead": true, "rather": true}
)

type Manager struct {
	store  Store
	clock  clock.Clock
	logger logger.Logger
}

func NewManager(store Store, clk clock.Clock, log logger.Logger) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		store:  store,
		clock:  clk,
		logger: log.With(map[string]interface{}{"component": "conversation"}),
	}
}

// Session loads a session, creating an unsaved one when none exists. On a
// store failure it still returns a fresh context alongside the error, so
// callers can plan without history but must not persist it.
func (m *Manager) Session(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	sc, err := m.store.Get(ctx, sessionID)
	switch {
	case err == nil:
		return sc, nil
	case errors.Is(err, ErrSessionNotFound):
		return models.NewSessionContext(sessionID, m.clock.Now()), nil
	default:
		return models.NewSessionContext(sessionID, m.clock.Now()), err
	}
}

// ApplyContext adjusts intent in place using the session's history and
// returns it. Confidence stays within [0,1] after every step. A fault
// leaves the intent as it was passed in.
func (m *Manager) ApplyContext(intent *models.Intent, sc *models.SessionContext, text string) (out *models.Intent) {
	if intent == nil || sc == nil {
		return intent
	}
	original := intent.Clone()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("context application panicked", map[string]interface{}{
				"sessionId": sc.SessionID,
				"panic":     fmt.Sprint(r),
			})
			metrics.DegradedResults.WithLabelValues("conversation").Inc()
			*intent = *original
			out = intent
		}
	}()

	lower := strings.ToLower(text)
	tokens := tokenSet(lower)

	if len(sc.ConversationHistory) > 0 {
		trend := ConfidenceTrend(sc)
		if Focus(sc) == FocusFocused && len(trend) >= focusMinTrend && mean(trend[len(trend)-focusMinTrend:]) > focusMeanRequired {
			intent.Confidence = models.Boost(intent.Confidence, focusBoost, focusCeiling)
		}
	}

	if intent.Confidence < connectorThreshold && len(sc.PreviousIntents) > 0 {
		previous := sc.PreviousIntents[len(sc.PreviousIntents)-1]
		switch {
		case containsAny(tokens, additiveConnectors):
			intent.Type = previous.Type
			intent.Confidence = models.Boost(intent.Confidence, additiveBoost, additiveCeiling)
		case containsAny(tokens, contrastiveConnectors):
			intent.Type = previous.Type
			intent.Confidence = models.Boost(intent.Confidence, contrastiveBoost, contrastiveCeiling)
		}
	}

	if sc.Topic != "" && strings.Contains(lower, strings.ToLower(sc.Topic)) {
		counts, order := countTargets(models.KeepLast(sc.PreviousIntents, topicWindow))
		for _, target := range order {
			if counts[target] >= topicMinOccurrences {
				intent.AddTarget(target)
			}
		}
	}

	if intent.Confidence < filterThreshold {
		recent := models.KeepLast(sc.PreviousIntents, filterWindow)
		for i := len(recent) - 1; i >= 0; i-- {
			if len(recent[i].Filters) == 0 {
				continue
			}
			for k, v := range recent[i].Filters {
				if _, exists := intent.Filters[k]; !exists {
					intent.SetFilter(k, v)
				}
			}
			intent.Confidence = models.Boost(intent.Confidence, filterBoost, filterCeiling)
			break
		}
	}

	if len(sc.PreviousEntities) > 0 {
		// one tag per qualifying type, duplicates included
		for range repeatedTypes(models.KeepLast(sc.PreviousEntities, criteriaWindow), criteriaOccurrences) {
			intent.Conditions = append(intent.Conditions, models.ConditionPreviousCriteria)
		}
	}

	if last, ok := sc.LastTurn(); ok {
		age := m.clock.Now().Sub(last.Timestamp)
		switch {
		case age > staleAfter:
			intent.Confidence = models.Decay(intent.Confidence, temporalDelta, staleFloor)
		case age < freshWithin:
			intent.Confidence = models.Boost(intent.Confidence, temporalDelta, freshCeiling)
		}
	}

	intent.EnsureDefaults()
	return intent
}

// UpdateMemory records one turn and persists the session. A corrupt stored
// session is replaced; any other read failure is returned without writing,
// so a transient store error never overwrites history.
func (m *Manager) UpdateMemory(ctx context.Context, sessionID, text string, intent *models.Intent, entities []models.Entity) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("memory update panicked", map[string]interface{}{
				"sessionId": sessionID,
				"panic":     fmt.Sprint(r),
			})
			err = fmt.Errorf("update memory %s: internal error: %v", sessionID, r)
		}
	}()

	sc, err := m.Session(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, ErrCorruptSession):
		m.logger.Warn("replacing corrupt session", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err,
		})
	default:
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	now := m.clock.Now()
	turn := models.Turn{
		UserInput: text,
		Entities:  append([]models.Entity{}, entities...),
		Timestamp: now,
	}
	if intent != nil {
		turn.Intent = *intent.Clone()
	}
	sc.Remember(turn)
	sc.Topic = mostFrequent(turn.Intent.TargetData)
	sc.LastUpdated = now

	return m.store.Save(ctx, sc)
}

// Focus labels how consistently a session has asked for one kind of thing.
func Focus(sc *models.SessionContext) string {
	history := sc.ConversationHistory
	if len(history) == 0 {
		return FocusExploratory
	}

	first := history[0].Intent.Type
	single := true
	for _, t := range history[1:] {
		if t.Intent.Type != first {
			single = false
			break
		}
	}
	if single {
		return FocusFocused
	}

	if len(history) >= 3 {
		last := history[len(history)-3:]
		if last[0].Intent.Type == last[1].Intent.Type && last[1].Intent.Type == last[2].Intent.Type {
			return FocusConverging
		}
	}
	return FocusExploratory
}

// ConfidenceTrend is the sequence of past intent confidences, oldest first.
func ConfidenceTrend(sc *models.SessionContext) []float64 {
	trend := make([]float64, len(sc.ConversationHistory))
	for i, t := range sc.ConversationHistory {
		trend[i] = t.Intent.Confidence
	}
	return trend
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		set[w] = true
	}
	return set
}

func containsAny(tokens, words map[string]bool) bool {
	for w := range words {
		if tokens[w] {
			return true
		}
	}
	return false
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func countTargets(intents []models.Intent) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, in := range intents {
		for _, t := range in.TargetData {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	return counts, order
}

// repeatedTypes lists, in first-seen order, entity types occurring at least
// min times.
func repeatedTypes(entities []models.Entity, min int) []models.EntityType {
	counts := make(map[models.EntityType]int)
	var order []models.EntityType
	for _, e := range entities {
		if counts[e.Type] == 0 {
			order = append(order, e.Type)
		}
		counts[e.Type]++
	}
	var out []models.EntityType
	for _, t := range order {
		if counts[t] >= min {
			out = append(out, t)
		}
	}
	return out
}

// mostFrequent returns the most common string, the earliest one on ties.
func mostFrequent(items []string) string {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it]++
	}
	best, bestCount := "", 0
	for _, it := range items {
		if counts[it] > bestCount {
			best, bestCount = it, counts[it]
		}
	}
	return best
}
