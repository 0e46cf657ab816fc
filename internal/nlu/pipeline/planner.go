// Package pipeline runs the planning components for one conversational turn.
package pipeline

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/observability"
	"scrape-planner/internal/models"
	"scrape-planner/internal/nlu/conversation"
	"scrape-planner/internal/nlu/entityextractor"
	"scrape-planner/internal/nlu/intentclassifier"
	"scrape-planner/internal/nlu/logicprocessor"

	"github.com/sourcegraph/conc"
)

// Stage names reported to the stage duration histogram.
const (
	StageUnderstand = "understand"
	StageContext    = "apply_context"
	StageConditions = "parse_conditions"
	StagePlan       = "build_config"
	StageMemory     = "update_memory"
)

const lockStripes = 64

// Result is everything produced for one turn. Degraded is set when any
// component fell back to its default; Reasons lists why.
type Result struct {
	SessionID         string                    `json:"session_id"`
	Intent            *models.Intent            `json:"intent"`
	IntentStage       intentclassifier.Stage    `json:"intent_stage"`
	Entities          []models.Entity           `json:"entities"`
	ConditionAnalysis *models.ConditionAnalysis `json:"condition_analysis"`
	ExecutionPlan     *models.ExecutionPlan     `json:"execution_plan"`
	Degraded          bool                      `json:"degraded"`
	Reasons           []string                  `json:"reasons,omitempty"`
}

func (r *Result) degrade(reason string) {
	r.Degraded = true
	r.Reasons = append(r.Reasons, reason)
}

type Planner struct {
	extractor    *entityextractor.Extractor
	classifier   *intentclassifier.Classifier
	processor    *logicprocessor.Processor
	conversation *conversation.Manager
	obs          *observability.Observability
	logger       logger.Logger

	// Turns of the same session are serialized; different sessions only
	// contend when they hash to the same stripe.
	locks [lockStripes]sync.Mutex
}

func NewPlanner(
	extractor *entityextractor.Extractor,
	classifier *intentclassifier.Classifier,
	processor *logicprocessor.Processor,
	manager *conversation.Manager,
	obs *observability.Observability,
	log logger.Logger,
) *Planner {
	return &Planner{
		extractor:    extractor,
		classifier:   classifier,
		processor:    processor,
		conversation: manager,
		obs:          obs,
		logger:       log.With(map[string]interface{}{"component": "planner"}),
	}
}

func (p *Planner) Conversation() *conversation.Manager {
	return p.conversation
}

func (p *Planner) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &p.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Plan turns one user utterance into a structured execution plan and
// records the turn in the session. It always returns a result.
func (p *Planner) Plan(ctx context.Context, sessionID, text string) *Result {
	unlock := p.lock(sessionID)
	defer unlock()

	result := &Result{SessionID: sessionID}

	start := time.Now()
	var (
		entities       []models.Entity
		classification intentclassifier.Classification
	)
	var wg conc.WaitGroup
	wg.Go(func() { entities = p.extractor.Extract(text) })
	wg.Go(func() { classification = p.classifier.Parse(ctx, text) })
	if recovered := wg.WaitAndRecover(); recovered != nil {
		p.logger.Error("understanding stage panicked", map[string]interface{}{
			"sessionId": sessionID,
			"panic":     recovered.String(),
		})
		result.degrade("understanding stage panicked")
	}
	if entities == nil {
		entities = []models.Entity{}
	}
	if classification.Intent == nil {
		classification = intentclassifier.Classification{
			Intent:   models.FallbackIntent(intentclassifier.MinimalScore),
			Stage:    intentclassifier.StageMinimal,
			Degraded: true,
		}
	}
	if classification.Degraded {
		result.degrade("intent: " + classification.Reason)
	}
	p.obs.RecordStage(ctx, StageUnderstand, time.Since(start), classification.Degraded)

	start = time.Now()
	session, err := p.conversation.Session(ctx, sessionID)
	if err != nil {
		p.logger.Warn("session unavailable, planning without history", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err,
		})
		result.degrade("session: " + err.Error())
	}
	intent := p.conversation.ApplyContext(classification.Intent, session, text)
	p.obs.RecordStage(ctx, StageContext, time.Since(start), err != nil)

	start = time.Now()
	analysis := p.processor.ParseConditions(ctx, text, intent)
	if analysis.Degraded {
		result.degrade("conditions: " + analysis.Reason)
	}
	p.obs.RecordStage(ctx, StageConditions, time.Since(start), analysis.Degraded)

	start = time.Now()
	plan := p.processor.BuildConfig(intent, entities, analysis)
	p.obs.RecordStage(ctx, StagePlan, time.Since(start), plan.ExecutionMetadata.Degraded)

	start = time.Now()
	if err := p.conversation.UpdateMemory(ctx, sessionID, text, intent, entities); err != nil {
		p.logger.Error("failed to record turn", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err,
		})
		result.degrade("memory: " + err.Error())
	}
	p.obs.RecordStage(ctx, StageMemory, time.Since(start), false)

	result.Intent = intent
	result.IntentStage = classification.Stage
	result.Entities = entities
	result.ConditionAnalysis = analysis
	result.ExecutionPlan = plan

	p.logger.Info("turn planned", map[string]interface{}{
		"sessionId":     sessionID,
		"intentType":    intent.Type,
		"confidence":    intent.Confidence,
		"intentStage":   classification.Stage,
		"entities":      len(entities),
		"steps":         len(plan.Steps),
		"executionMode": plan.ExecutionMode,
		"degraded":      result.Degraded,
	})
	return result
}
