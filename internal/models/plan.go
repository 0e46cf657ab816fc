// internal/models/plan.go
package models

import "time"

// ConditionalStatement is one if/when/unless clause found in a request.
type ConditionalStatement struct {
	Type       string `json:"type"`
	Condition  string `json:"condition"`
	Action     string `json:"action"`
	ElseAction string `json:"else_action,omitempty"`
}

// ActionStep is one marker-delimited step of a multi-step request.
type ActionStep struct {
	Order       int    `json:"order"`
	Marker      string `json:"marker"`
	StepType    string `json:"step_type"`
	Description string `json:"description"`
}

// FallbackAction is an alternate action for when a primary condition fails.
type FallbackAction struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Pattern   string `json:"pattern"`
}

// ConditionAnalysis describes the conditional, sequential and fallback
// structure detected in a request.
type ConditionAnalysis struct {
	HasConditions      bool                   `json:"has_conditions"`
	HasMultiStep       bool                   `json:"has_multi_step"`
	HasFallbacks       bool                   `json:"has_fallbacks"`
	RequiresComparison bool                   `json:"requires_comparison"`
	ComplexityScore    float64                `json:"complexity_score"`
	Conditions         []ConditionalStatement `json:"conditions"`
	MultiStepActions   []ActionStep           `json:"multi_step_actions"`
	FallbackActions    []FallbackAction       `json:"fallback_actions"`
	Degraded           bool                   `json:"degraded"`
	Reason             string                 `json:"reason,omitempty"`
}

// EmptyAnalysis is the conservative analysis used when parsing fails.
func EmptyAnalysis(reason string) *ConditionAnalysis {
	return &ConditionAnalysis{
		Conditions:       []ConditionalStatement{},
		MultiStepActions: []ActionStep{},
		FallbackActions:  []FallbackAction{},
		Degraded:         true,
		Reason:           reason,
	}
}

// Plan step action types.
const (
	ActionExtraction  = "extraction"
	ActionMultiStep   = "multi_step_action"
	ActionConditional = "conditional_execution"
	ActionFallback    = "fallback_execution"
)

// Execution strategies.
const (
	StrategyBrowserAutomation = "browser_automation"
	StrategyLLMAnalysis       = "llm_analysis"
	StrategyCSSSelector       = "css_selector"
	StrategyAuto              = "auto"
)

// Primary strategies for a whole plan.
const (
	PrimaryStructuredData = "structured_data_extraction"
	PrimaryLLMAnalysis    = "llm_analysis"
	PrimaryComprehensive  = "comprehensive_extraction"
	PrimaryTargeted       = "targeted_extraction"
)

// Execution modes.
const (
	ModeSimple      = "simple"
	ModeMultiStep   = "multi_step"
	ModeConditional = "conditional"
)

// PlanStep is one entry of execution_plan handed to the scraping engine.
type PlanStep struct {
	StepID      string   `json:"step_id"`
	ActionType  string   `json:"action_type"`
	Strategy    string   `json:"strategy"`
	Description string   `json:"description"`
	StepType    string   `json:"step_type,omitempty"`
	Order       int      `json:"order"`
	Condition   string   `json:"condition,omitempty"`
	ElseAction  string   `json:"else_action,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	FallbackFor string   `json:"fallback_for,omitempty"`
}

// ExecutionMetadata summarizes how the plan was produced.
type ExecutionMetadata struct {
	PlanID                 string    `json:"plan_id"`
	ComplexityScore        float64   `json:"complexity_score"`
	EstimatedExecutionTime int       `json:"estimated_execution_time"`
	RiskLevel              string    `json:"risk_level"`
	RequiresComparison     bool      `json:"requires_comparison"`
	IntentType             string    `json:"intent_type"`
	IntentConfidence       float64   `json:"intent_confidence"`
	EntityCount            int       `json:"entity_count"`
	CreatedAt              time.Time `json:"created_at"`
	Degraded               bool      `json:"degraded"`
	Reason                 string    `json:"reason,omitempty"`
}

// ExecutionPlan is the terminal artifact consumed by the scraping engine.
// Field names are part of that engine's input contract.
type ExecutionPlan struct {
	ExecutionMode     string                 `json:"execution_mode"`
	PrimaryStrategy   string                 `json:"primary_strategy"`
	Steps             []PlanStep             `json:"execution_plan"`
	TargetData        []string               `json:"target_data"`
	Filters           map[string]interface{} `json:"filters"`
	OutputFormat      string                 `json:"output_format"`
	PriceFilters      []PriceValue           `json:"price_filters"`
	RatingFilters     []RatingValue          `json:"rating_filters"`
	DateFilters       []DateValue            `json:"date_filters"`
	ExecutionMetadata ExecutionMetadata      `json:"execution_metadata"`
}
