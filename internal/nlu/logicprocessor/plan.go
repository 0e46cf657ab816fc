package logicprocessor

import (
	"fmt"
	"strings"

	"scrape-planner/internal/common/metrics"
	"scrape-planner/internal/models"

	"github.com/google/uuid"
)

const (
	primaryExtractionRef = "primary_extraction"

	baseExecutionSeconds = 5.0
	complexitySeconds    = 10.0
	multiStepSeconds     = 3.0
	conditionalSeconds   = 2.0

	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// BuildConfig assembles the execution plan. It never fails; an internal
// error yields the simple single-step plan.
func (p *Processor) BuildConfig(intent *models.Intent, entities []models.Entity, analysis *models.ConditionAnalysis) (plan *models.ExecutionPlan) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("plan assembly panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			metrics.DegradedResults.WithLabelValues("plan_builder").Inc()
			plan = p.simplePlan(intent, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if intent == nil {
		intent = models.FallbackIntent(0)
	}
	if analysis == nil {
		analysis = models.EmptyAnalysis("no analysis")
	}

	steps := assembleSteps(analysis)
	if len(steps) == 0 {
		steps = []models.PlanStep{defaultStep(intent, models.StrategyAuto)}
	}

	plan = &models.ExecutionPlan{
		ExecutionMode:   executionMode(analysis),
		PrimaryStrategy: primaryStrategy(intent, entities),
		Steps:           steps,
		TargetData:      append([]string{}, intent.TargetData...),
		Filters:         intent.Clone().Filters,
		OutputFormat:    intent.OutputFormat,
		PriceFilters:    []models.PriceValue{},
		RatingFilters:   []models.RatingValue{},
		DateFilters:     []models.DateValue{},
	}

	for _, e := range entities {
		switch v := e.Value.(type) {
		case models.PriceValue:
			plan.PriceFilters = append(plan.PriceFilters, v)
		case models.RatingValue:
			plan.RatingFilters = append(plan.RatingFilters, v)
		case models.DateValue:
			plan.DateFilters = append(plan.DateFilters, v)
		}
	}

	plan.ExecutionMetadata = models.ExecutionMetadata{
		PlanID:                 uuid.NewString(),
		ComplexityScore:        analysis.ComplexityScore,
		EstimatedExecutionTime: EstimateSeconds(analysis),
		RiskLevel:              RiskLevel(analysis.ComplexityScore),
		RequiresComparison:     analysis.RequiresComparison,
		IntentType:             string(intent.Type),
		IntentConfidence:       intent.Confidence,
		EntityCount:            len(entities),
		CreatedAt:              p.clock.Now(),
		Degraded:               analysis.Degraded,
		Reason:                 analysis.Reason,
	}
	return plan
}

func assembleSteps(analysis *models.ConditionAnalysis) []models.PlanStep {
	var steps []models.PlanStep
	nextID := func() string { return fmt.Sprintf("step_%d", len(steps)+1) }

	order := 0
	var previous string
	for _, a := range analysis.MultiStepActions {
		step := models.PlanStep{
			StepID:      nextID(),
			ActionType:  models.ActionMultiStep,
			Strategy:    ChooseStrategy(a.Description),
			Description: a.Description,
			StepType:    a.StepType,
			Order:       a.Order,
		}
		if previous != "" {
			step.DependsOn = []string{previous}
		}
		previous = step.StepID
		if a.Order > order {
			order = a.Order
		}
		steps = append(steps, step)
	}

	for _, c := range analysis.Conditions {
		order++
		steps = append(steps, models.PlanStep{
			StepID:      nextID(),
			ActionType:  models.ActionConditional,
			Strategy:    ChooseStrategy(c.Action),
			Description: c.Action,
			StepType:    "conditional",
			Order:       order,
			Condition:   c.Condition,
			ElseAction:  c.ElseAction,
		})
	}

	primary := primaryExtractionRef
	if len(steps) > 0 {
		primary = steps[0].StepID
	}
	for _, f := range analysis.FallbackActions {
		order++
		steps = append(steps, models.PlanStep{
			StepID:      nextID(),
			ActionType:  models.ActionFallback,
			Strategy:    ChooseStrategy(f.Action),
			Description: f.Action,
			StepType:    "fallback",
			Order:       order,
			Condition:   f.Condition,
			FallbackFor: primary,
		})
	}

	return steps
}

func defaultStep(intent *models.Intent, strategy string) models.PlanStep {
	return models.PlanStep{
		StepID:      "step_1",
		ActionType:  models.ActionExtraction,
		Strategy:    strategy,
		Description: "extract " + strings.Join(intent.TargetData, ", "),
		StepType:    StepExtraction,
		Order:       1,
	}
}

func (p *Processor) simplePlan(intent *models.Intent, reason string) *models.ExecutionPlan {
	if intent == nil {
		intent = models.FallbackIntent(0)
	}
	in := intent.Clone()
	in.EnsureDefaults()

	return &models.ExecutionPlan{
		ExecutionMode:   models.ModeSimple,
		PrimaryStrategy: models.PrimaryTargeted,
		Steps:           []models.PlanStep{defaultStep(in, models.StrategyAuto)},
		TargetData:      in.TargetData,
		Filters:         in.Filters,
		OutputFormat:    in.OutputFormat,
		PriceFilters:    []models.PriceValue{},
		RatingFilters:   []models.RatingValue{},
		DateFilters:     []models.DateValue{},
		ExecutionMetadata: models.ExecutionMetadata{
			PlanID:                 uuid.NewString(),
			EstimatedExecutionTime: int(baseExecutionSeconds),
			RiskLevel:              RiskLow,
			IntentType:             string(in.Type),
			IntentConfidence:       in.Confidence,
			CreatedAt:              p.clock.Now(),
			Degraded:               true,
			Reason:                 reason,
		},
	}
}

func executionMode(analysis *models.ConditionAnalysis) string {
	switch {
	case len(analysis.Conditions) > 0 || len(analysis.FallbackActions) > 0:
		return models.ModeConditional
	case len(analysis.MultiStepActions) > 0:
		return models.ModeMultiStep
	default:
		return models.ModeSimple
	}
}

func primaryStrategy(intent *models.Intent, entities []models.Entity) string {
	for _, e := range entities {
		if e.Type == models.EntityPrice || e.Type == models.EntityRating {
			return models.PrimaryStructuredData
		}
	}
	switch {
	case intent.Type == models.IntentAnalyzeContent:
		return models.PrimaryLLMAnalysis
	case len(intent.TargetData) > 3:
		return models.PrimaryComprehensive
	default:
		return models.PrimaryTargeted
	}
}

// ChooseStrategy picks an execution strategy from the wording of one step.
func ChooseStrategy(text string) string {
	return classify(strings.ToLower(text), strategyClasses, models.StrategyAuto)
}

// EstimateSeconds is 5s plus 10s per unit of complexity, 3s per step and 2s
// per conditional, truncated to whole seconds.
func EstimateSeconds(analysis *models.ConditionAnalysis) int {
	seconds := baseExecutionSeconds +
		complexitySeconds*analysis.ComplexityScore +
		multiStepSeconds*float64(len(analysis.MultiStepActions)) +
		conditionalSeconds*float64(len(analysis.Conditions))
	// absorb representation error so 0.7*10 truncates to 7, not 6
	return int(seconds + 1e-9)
}

func RiskLevel(complexity float64) string {
	switch {
	case complexity < 0.3:
		return RiskLow
	case complexity < 0.7:
		return RiskMedium
	default:
		return RiskHigh
	}
}
