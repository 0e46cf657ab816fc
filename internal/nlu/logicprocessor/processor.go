// Package logicprocessor structures the conditional, sequential and
// fallback language of a request and assembles the execution plan.
package logicprocessor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"scrape-planner/internal/common/genai"
	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/models"

	"github.com/benbjohnson/clock"
)

const TaskConditionalAnalysis = "conditional_analysis"

type Config struct {
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{Temperature: 0.1, MaxTokens: 800}
}

type Processor struct {
	completer genai.Completer
	config    Config
	clock     clock.Clock
	logger    logger.Logger
}

func New(completer genai.Completer, config Config, clk clock.Clock, log logger.Logger) *Processor {
	if clk == nil {
		clk = clock.New()
	}
	return &Processor{
		completer: completer,
		config:    config,
		clock:     clk,
		logger:    log.With(map[string]interface{}{"component": "logic_processor"}),
	}
}

// ParseConditions never fails; on an internal error it returns an empty,
// degraded analysis.
func (p *Processor) ParseConditions(ctx context.Context, text string, intent *models.Intent) (analysis *models.ConditionAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("condition parsing panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			metrics.DegradedResults.WithLabelValues("logic_processor").Inc()
			analysis = models.EmptyAnalysis(fmt.Sprintf("internal error: %v", r))
		}
	}()

	lower := strings.ToLower(text)
	analysis = &models.ConditionAnalysis{
		Conditions:       []models.ConditionalStatement{},
		MultiStepActions: []models.ActionStep{},
		FallbackActions:  []models.FallbackAction{},
	}

	var score float64

	if conditionalKeywords.MatchString(lower) {
		score += conditionalWeight
		conditions, reason := p.analyzeConditions(ctx, text, intent)
		analysis.Conditions = conditions
		if reason != "" {
			metrics.DegradedResults.WithLabelValues("logic_processor").Inc()
			analysis.Degraded = true
			analysis.Reason = reason
		}
	}

	if sequencingKeywords.MatchString(lower) {
		score += sequencingWeight
		analysis.MultiStepActions = ParseMultiStep(lower)
	}

	if fallbackKeywords.MatchString(lower) {
		score += fallbackWeight
		analysis.FallbackActions = ParseFallbacks(lower)
	}

	if comparisonKeywords.MatchString(lower) {
		score += comparisonWeight
		analysis.RequiresComparison = true
	}

	analysis.HasConditions = len(analysis.Conditions) > 0
	analysis.HasMultiStep = len(analysis.MultiStepActions) > 0
	analysis.HasFallbacks = len(analysis.FallbackActions) > 0
	analysis.ComplexityScore = math.Round(models.Clamp(score)*100) / 100

	p.logger.Debug("conditions parsed", map[string]interface{}{
		"complexity": analysis.ComplexityScore,
		"conditions": len(analysis.Conditions),
		"steps":      len(analysis.MultiStepActions),
		"fallbacks":  len(analysis.FallbackActions),
	})
	return analysis
}

func (p *Processor) analyzeConditions(ctx context.Context, text string, intent *models.Intent) ([]models.ConditionalStatement, string) {
	empty := []models.ConditionalStatement{}
	if p.completer == nil {
		return empty, "no language model configured"
	}

	raw, err := p.completer.Complete(ctx, buildConditionalPrompt(text, intent), TaskConditionalAnalysis, genai.CompletionOptions{
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues(TaskConditionalAnalysis, metrics.LLMStatusTransportError).Inc()
		p.logger.Warn("conditional analysis call failed", map[string]interface{}{"error": err})
		return empty, "model call failed: " + err.Error()
	}

	var payload conditionalPayload
	if err := conditionalSchema.DecodeValidated([]byte(genai.ExtractJSON(raw)), &payload); err != nil {
		metrics.LLMCalls.WithLabelValues(TaskConditionalAnalysis, metrics.LLMStatusInvalidResponse).Inc()
		p.logger.Warn("conditional analysis response rejected", map[string]interface{}{"error": err})
		return empty, "invalid model response: " + err.Error()
	}

	metrics.LLMCalls.WithLabelValues(TaskConditionalAnalysis, metrics.LLMStatusOK).Inc()
	for i := range payload.Conditions {
		if payload.Conditions[i].Type == "" {
			payload.Conditions[i].Type = "if"
		}
	}
	if payload.Conditions == nil {
		return empty, ""
	}
	return payload.Conditions, ""
}

// ParseMultiStep captures the span after each step marker up to the next
// marker, and orders the steps by marker rank rather than position.
func ParseMultiStep(text string) []models.ActionStep {
	steps := []models.ActionStep{}
	for _, m := range stepMarkers {
		match := m.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		desc := cleanSpan(match[1])
		// "first 10 products" is a quantity, not a marker
		if desc == "" || (m.order == 1 && desc[0] >= '0' && desc[0] <= '9') {
			continue
		}
		steps = append(steps, models.ActionStep{
			Order:       m.order,
			Marker:      m.word,
			StepType:    classify(desc, stepClasses, StepGeneral),
			Description: desc,
		})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

func ParseFallbacks(text string) []models.FallbackAction {
	fallbacks := []models.FallbackAction{}
	for _, fp := range fallbackPatterns {
		for _, m := range fp.re.FindAllStringSubmatch(text, -1) {
			fb := models.FallbackAction{Condition: DefaultFallbackCondition, Pattern: fp.name}
			if fp.hasCondition {
				fb.Condition = cleanSpan(m[1])
				fb.Action = cleanSpan(m[2])
			} else {
				fb.Action = cleanSpan(m[1])
			}
			if fb.Action == "" {
				continue
			}
			fallbacks = append(fallbacks, fb)
		}
	}
	return fallbacks
}

func cleanSpan(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",.;:!? ")
	s = strings.TrimSuffix(s, " and")
	return strings.TrimSpace(s)
}

func classify(text string, classes []keywordClass, fallback string) string {
	for _, c := range classes {
		if c.re.MatchString(text) {
			return c.name
		}
	}
	return fallback
}
