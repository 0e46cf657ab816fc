// internal/models/intent.go
package models

// IntentType is the closed set of high-level goals a scraping request can express.
type IntentType string

const (
	IntentExtractData    IntentType = "extract_data"
	IntentFilterContent  IntentType = "filter_content"
	IntentNavigateSite   IntentType = "navigate_site"
	IntentAnalyzeContent IntentType = "analyze_content"
	IntentCompareData    IntentType = "compare_data"
	IntentMonitorChanges IntentType = "monitor_changes"
)

// IntentTypes lists every intent type in declaration order.
var IntentTypes = []IntentType{
	IntentExtractData,
	IntentFilterContent,
	IntentNavigateSite,
	IntentAnalyzeContent,
	IntentCompareData,
	IntentMonitorChanges,
}

// Valid reports whether t belongs to the closed set.
func (t IntentType) Valid() bool {
	for _, known := range IntentTypes {
		if t == known {
			return true
		}
	}
	return false
}

const (
	DefaultTarget       = "content"
	DefaultOutputFormat = "json"

	ConditionConditionalLogic = "conditional_logic_detected"
	ConditionPreviousCriteria = "consider_previous_criteria"
	FilterHasPriceFilter      = "has_price_filter"
	FilterHasRatingFilter     = "has_rating_filter"
)

// Intent is the resolved user goal for one turn.
type Intent struct {
	Type         IntentType             `json:"type"`
	Confidence   float64                `json:"confidence"`
	TargetData   []string               `json:"target_data"`
	Filters      map[string]interface{} `json:"filters"`
	Conditions   []string               `json:"conditions"`
	OutputFormat string                 `json:"output_format"`
}

// NewIntent returns an intent with the default output format and empty collections.
func NewIntent(t IntentType, confidence float64) *Intent {
	return &Intent{
		Type:         t,
		Confidence:   Clamp(confidence),
		TargetData:   []string{},
		Filters:      map[string]interface{}{},
		Conditions:   []string{},
		OutputFormat: DefaultOutputFormat,
	}
}

// FallbackIntent is the low-confidence extract_data intent used whenever a
// stage cannot produce anything better.
func FallbackIntent(confidence float64) *Intent {
	in := NewIntent(IntentExtractData, confidence)
	in.TargetData = []string{DefaultTarget}
	return in
}

// AddTarget appends target unless it is already present. Empty strings are ignored.
func (i *Intent) AddTarget(target string) bool {
	if target == "" || i.HasTarget(target) {
		return false
	}
	i.TargetData = append(i.TargetData, target)
	return true
}

func (i *Intent) HasTarget(target string) bool {
	for _, t := range i.TargetData {
		if t == target {
			return true
		}
	}
	return false
}

// AddCondition appends tag unless it is already present.
func (i *Intent) AddCondition(tag string) {
	for _, c := range i.Conditions {
		if c == tag {
			return
		}
	}
	i.Conditions = append(i.Conditions, tag)
}

// SetFilter sets a filter, allocating the map on first use.
func (i *Intent) SetFilter(key string, value interface{}) {
	if i.Filters == nil {
		i.Filters = map[string]interface{}{}
	}
	i.Filters[key] = value
}

// EnsureDefaults restores the invariants callers rely on: a clamped
// confidence, a non-empty target list and an output format.
func (i *Intent) EnsureDefaults() {
	i.Confidence = Clamp(i.Confidence)
	if len(i.TargetData) == 0 {
		i.TargetData = []string{DefaultTarget}
	}
	if i.Filters == nil {
		i.Filters = map[string]interface{}{}
	}
	if i.Conditions == nil {
		i.Conditions = []string{}
	}
	if i.OutputFormat == "" {
		i.OutputFormat = DefaultOutputFormat
	}
	if !i.Type.Valid() {
		i.Type = IntentExtractData
	}
}

// Clone returns a snapshot that shares no slices or maps with i.
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	out := &Intent{
		Type:         i.Type,
		Confidence:   i.Confidence,
		TargetData:   append([]string{}, i.TargetData...),
		Conditions:   append([]string{}, i.Conditions...),
		Filters:      make(map[string]interface{}, len(i.Filters)),
		OutputFormat: i.OutputFormat,
	}
	for k, v := range i.Filters {
		out.Filters[k] = v
	}
	return out
}

// Clamp bounds a confidence value to [0,1].
func Clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Boost raises v by delta without exceeding ceiling. A value already above
// the ceiling is left alone.
func Boost(v, delta, ceiling float64) float64 {
	if v >= ceiling {
		return Clamp(v)
	}
	next := v + delta
	if next > ceiling {
		next = ceiling
	}
	return Clamp(next)
}

// Decay lowers v by delta without going below floor. A value already below
// the floor is left alone.
func Decay(v, delta, floor float64) float64 {
	if v <= floor {
		return Clamp(v)
	}
	next := v - delta
	if next < floor {
		next = floor
	}
	return Clamp(next)
}
