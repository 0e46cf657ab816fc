// Package intentclassifier resolves the high-level goal of a scrape request.
// A deterministic pattern pass answers unambiguous requests on its own; the
// rest are enriched by one language-model call and merged.
package intentclassifier

import (
	"context"
	"fmt"
	"strings"

	"scrape-planner/internal/common/genai"
	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/models"
)

const (
	TaskIntentClassification = "intent_classification"

	FastPathThreshold  = 0.8
	ModelFallbackScore = 0.4
	MinimalScore       = 0.3

	baseWeight       = 0.7
	supplementWeight = 0.3
)

// Stage reports which path produced a classification.
type Stage string

const (
	StagePattern Stage = "pattern"
	StageMerged  Stage = "merged"
	StageMinimal Stage = "minimal"
)

type Config struct {
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{Temperature: 0.1, MaxTokens: 500}
}

// Classification is the result of Parse. Degraded is set when the model
// stage fell back or the classifier recovered from an internal fault.
type Classification struct {
	Intent   *models.Intent `json:"intent"`
	Stage    Stage          `json:"stage"`
	Degraded bool           `json:"degraded"`
	Reason   string         `json:"reason,omitempty"`
}

type Classifier struct {
	completer genai.Completer
	config    Config
	logger    logger.Logger
}

func New(completer genai.Completer, config Config, log logger.Logger) *Classifier {
	return &Classifier{
		completer: completer,
		config:    config,
		logger:    log.With(map[string]interface{}{"component": "intent_classifier"}),
	}
}

// Parse always returns a usable intent.
func (c *Classifier) Parse(ctx context.Context, text string) (result Classification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("intent classification panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			metrics.DegradedResults.WithLabelValues("intent_classifier").Inc()
			result = Classification{
				Intent:   models.FallbackIntent(MinimalScore),
				Stage:    StageMinimal,
				Degraded: true,
				Reason:   fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	pattern := c.PatternStage(text)
	if pattern.Confidence > FastPathThreshold {
		metrics.FastPathHits.Inc()
		c.logger.Debug("intent resolved by patterns", map[string]interface{}{
			"type":       pattern.Type,
			"confidence": pattern.Confidence,
		})
		return Classification{Intent: pattern, Stage: StagePattern}
	}

	model, reason := c.modelStage(ctx, text)
	merged := Merge(pattern, model)

	result = Classification{Intent: merged, Stage: StageMerged}
	if reason != "" {
		metrics.DegradedResults.WithLabelValues("intent_classifier").Inc()
		result.Degraded = true
		result.Reason = reason
	}
	return result
}

// PatternStage scores text against the keyword and structural tables.
func (c *Classifier) PatternStage(text string) *models.Intent {
	lower := strings.ToLower(text)

	var (
		total     float64
		best      = models.IntentExtractData
		bestScore float64
		targets   []string
	)

	for _, g := range groups {
		var score float64
		for _, kw := range g.keywords {
			if kw.MatchString(lower) {
				score += keywordWeight
			}
		}
		for _, re := range g.structural {
			m := re.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			score += structuralWeight
			if len(m) > 1 && !targetStopwords[m[1]] {
				targets = append(targets, m[1])
			}
		}
		total += score
		if score > bestScore {
			best, bestScore = g.intent, score
		}
	}

	in := models.NewIntent(best, 0)
	for _, t := range targets {
		in.AddTarget(t)
	}

	if priceWords.MatchString(lower) {
		total += priceWeight
		in.SetFilter(models.FilterHasPriceFilter, true)
	}
	if ratingWords.MatchString(lower) {
		total += ratingWeight
		in.SetFilter(models.FilterHasRatingFilter, true)
	}
	if conditionalWords.MatchString(lower) {
		total += conditionWeight
		in.AddCondition(models.ConditionConditionalLogic)
	}

	in.Confidence = models.Clamp(total)
	in.EnsureDefaults()
	return in
}

// modelStage returns the model's intent, or the fixed fallback together
// with a non-empty reason.
func (c *Classifier) modelStage(ctx context.Context, text string) (*models.Intent, string) {
	if c.completer == nil {
		return models.FallbackIntent(ModelFallbackScore), "no language model configured"
	}

	raw, err := c.completer.Complete(ctx, buildPrompt(text), TaskIntentClassification, genai.CompletionOptions{
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues(TaskIntentClassification, metrics.LLMStatusTransportError).Inc()
		c.logger.Warn("intent model call failed", map[string]interface{}{"error": err})
		return models.FallbackIntent(ModelFallbackScore), "model call failed: " + err.Error()
	}

	var decoded modelIntent
	if err := intentSchema.DecodeValidated([]byte(genai.ExtractJSON(raw)), &decoded); err != nil {
		metrics.LLMCalls.WithLabelValues(TaskIntentClassification, metrics.LLMStatusInvalidResponse).Inc()
		c.logger.Warn("intent model response rejected", map[string]interface{}{"error": err})
		return models.FallbackIntent(ModelFallbackScore), "invalid model response: " + err.Error()
	}

	metrics.LLMCalls.WithLabelValues(TaskIntentClassification, metrics.LLMStatusOK).Inc()
	return decoded.toIntent(), ""
}

// Merge folds two candidate intents. The pattern result is the base only
// when strictly more confident; equal scores favour the model. Targets are
// unioned, except that the "content" placeholder is dropped from the union
// whenever a real target is present.
func Merge(pattern, model *models.Intent) *models.Intent {
	base, supplement := model, pattern
	if pattern.Confidence > model.Confidence {
		base, supplement = pattern, model
	}

	out := base.Clone()
	for _, t := range supplement.TargetData {
		out.AddTarget(t)
	}
	for k, v := range supplement.Filters {
		if _, exists := out.Filters[k]; !exists {
			out.SetFilter(k, v)
		}
	}
	for _, cond := range supplement.Conditions {
		out.AddCondition(cond)
	}
	out.TargetData = dropPlaceholder(out.TargetData)
	out.Confidence = base.Confidence*baseWeight + supplement.Confidence*supplementWeight
	out.EnsureDefaults()
	return out
}

// dropPlaceholder removes the generic "content" target once a real target
// is known.
func dropPlaceholder(targets []string) []string {
	if len(targets) < 2 {
		return targets
	}
	out := targets[:0]
	for _, t := range targets {
		if t != models.DefaultTarget {
			out = append(out, t)
		}
	}
	return out
}
