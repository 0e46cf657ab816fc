package logicprocessor

import (
	"regexp"

	"scrape-planner/internal/models"
)

const (
	conditionalWeight = 0.3
	sequencingWeight  = 0.2
	fallbackWeight    = 0.3
	comparisonWeight  = 0.2
)

var (
	conditionalKeywords = regexp.MustCompile(`\b(?:if|when|unless|in case|should|otherwise|else|then)\b`)
	sequencingKeywords  = regexp.MustCompile(`\b(?:first|then|next|after|finally|also|and then)\b`)
	comparisonKeywords  = regexp.MustCompile(`\b(?:compare|versus|vs|against|difference|similar to)\b`)

	// The subject of "if ... missing" may sit between the two words.
	fallbackKeywords = regexp.MustCompile(`\bif\s+(?:not|no)\b|\bif\b[^,.;]*\b(?:missing|unavailable|not found)\b|\botherwise\b|\bas\s+(?:a\s+)?backup\b`)
)

type stepMarker struct {
	word  string
	order int
	re    *regexp.Regexp
}

const markerBoundary = `(?:,?\s*\b(?:first|then|next|after that|finally)\b|$)`

func marker(word string, order int) stepMarker {
	return stepMarker{
		word:  word,
		order: order,
		re:    regexp.MustCompile(`\b` + word + `\b,?\s*(.*?)` + markerBoundary),
	}
}

var stepMarkers = []stepMarker{
	marker("first", 1),
	marker("then", 2),
	marker("next", 3),
	marker("after that", 4),
	marker("finally", 5),
}

// Step types.
const (
	StepExtraction = "extraction"
	StepFiltering  = "filtering"
	StepValidation = "validation"
	StepNavigation = "navigation"
	StepAnalysis   = "analysis"
	StepGeneral    = "general"
)

type keywordClass struct {
	name string
	re   *regexp.Regexp
}

var stepClasses = []keywordClass{
	{StepExtraction, regexp.MustCompile(`\b(?:extract|scrape|collect|get|gather|fetch|pull|download|grab)\b`)},
	{StepFiltering, regexp.MustCompile(`\b(?:filter|only|exclude|remove|keep|narrow|sort)\b`)},
	{StepValidation, regexp.MustCompile(`\b(?:check|verify|validate|confirm|ensure|make sure)\b`)},
	{StepNavigation, regexp.MustCompile(`\b(?:go to|navigate|visit|click|open|follow|browse|next page)\b`)},
	{StepAnalysis, regexp.MustCompile(`\b(?:analy[sz]e|compare|summari[sz]e|evaluate|assess)\b`)},
}

var strategyClasses = []keywordClass{
	{models.StrategyBrowserAutomation, regexp.MustCompile(`\b(?:click|scroll|login|log in|navigate|button|form|submit|wait|page|pages)\b`)},
	{models.StrategyLLMAnalysis, regexp.MustCompile(`\b(?:analy[sz]e|summari[sz]e|sentiment|understand|classify|interpret|evaluate|compare)\b`)},
	{models.StrategyCSSSelector, regexp.MustCompile(`\b(?:extract|scrape|collect|get|table|list|price|prices|title|titles|links)\b`)},
}

type fallbackPattern struct {
	name string
	re   *regexp.Regexp
	// hasCondition is false for the bare forms whose condition is "default".
	hasCondition bool
}

const DefaultFallbackCondition = "default"

var fallbackPatterns = []fallbackPattern{
	{
		name:         "if_missing",
		re:           regexp.MustCompile(`\bif\s+((?:the\s+)?[^,.;]+?\s+(?:is|are)\s+(?:missing|unavailable|not found|not available|empty))\s*(?:,\s*)?(?:then\s+)?([^,.;]+)`),
		hasCondition: true,
	},
	{
		name:         "if_not",
		re:           regexp.MustCompile(`\bif\s+((?:not|no)\s+[^,.;]+?)(?:\s*,\s*(?:then\s+)?|\s+then\s+)([^,.;]+)`),
		hasCondition: true,
	},
	{
		name: "otherwise",
		re:   regexp.MustCompile(`\botherwise\s*,?\s*([^,.;]+)`),
	},
	{
		name: "backup",
		re:   regexp.MustCompile(`\bas\s+(?:a\s+)?backup\s*,?\s*([^,.;]+)`),
	},
}
