package intentclassifier

import (
	"regexp"

	"scrape-planner/internal/models"
)

const (
	keywordWeight    = 0.2
	structuralWeight = 0.3
	priceWeight      = 0.2
	ratingWeight     = 0.2
	conditionWeight  = 0.1
)

type intentGroup struct {
	intent     models.IntentType
	keywords   []*regexp.Regexp
	structural []*regexp.Regexp
}

// word compiles a whole-word (or whole-phrase) matcher.
func word(w string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
}

func words(ws ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(ws))
	for i, w := range ws {
		out[i] = word(w)
	}
	return out
}

// groups are scored in declaration order; the first wins a tie. A
// structural pattern's first capture group, when present, names a target.
var groups = []intentGroup{
	{
		intent:   models.IntentExtractData,
		keywords: words("extract", "get", "scrape", "collect", "fetch", "gather", "pull", "grab", "download", "list"),
		structural: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:extract|get|scrape|collect|fetch|gather|pull|grab|download)\s+(?:me\s+)?(?:all\s+|the\s+|every\s+|each\s+)*([a-z]+)`),
		},
	},
	{
		intent:   models.IntentFilterContent,
		keywords: words("filter", "only", "exclude", "excluding", "include", "where", "matching", "under", "over", "below", "above", "between"),
		structural: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:filter|only)\s+(?:the\s+)?([a-z]+)`),
			regexp.MustCompile(`\b([a-z]+)\s+(?:that have|having|which have|that are)\b`),
		},
	},
	{
		intent:   models.IntentNavigateSite,
		keywords: words("navigate", "go to", "visit", "click", "browse", "follow", "next page", "login", "log in"),
		structural: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:navigate|go)\s+to\s+(?:the\s+)?([a-z]+)`),
			regexp.MustCompile(`\bclick\s+(?:on\s+)?(?:the\s+)?([a-z]+)`),
		},
	},
	{
		intent:   models.IntentAnalyzeContent,
		keywords: words("analyze", "analyse", "summarize", "summarise", "sentiment", "insights", "trends", "evaluate", "classify", "understand"),
		structural: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:analy[sz]e|summari[sz]e|evaluate|classify)\s+(?:the\s+|all\s+)*([a-z]+)`),
			regexp.MustCompile(`\bsentiment\s+(?:of|in)\s+(?:the\s+)?([a-z]+)`),
		},
	},
	{
		intent:   models.IntentCompareData,
		keywords: words("compare", "comparison", "versus", "vs", "difference", "against", "cheapest", "similar"),
		structural: []*regexp.Regexp{
			regexp.MustCompile(`\bcompare\s+(?:the\s+)?([a-z]+)`),
			regexp.MustCompile(`\b([a-z]+)\s+(?:vs\.?|versus)\s`),
		},
	},
	{
		intent:   models.IntentMonitorChanges,
		keywords: words("monitor", "track", "watch", "alert", "notify", "changes", "updates", "whenever"),
		structural: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:monitor|track|watch)\s+(?:the\s+)?([a-z]+)`),
			regexp.MustCompile(`\bnotify me\s+(?:when|if)\b`),
		},
	},
}

var (
	priceWords       = regexp.MustCompile(`\$|\b(?:price|prices|pricing|cost|costs|cheap|cheaper|expensive|dollars?|usd|budget|affordable)\b`)
	ratingWords      = regexp.MustCompile(`\b(?:rating|ratings|rated|stars?|reviews?|score)\b`)
	conditionalWords = regexp.MustCompile(`\b(?:if|when|unless|in case|otherwise|else)\b`)
)

// targetStopwords are captured words that never name a target.
var targetStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "all": true, "every": true, "each": true,
	"me": true, "us": true, "it": true, "them": true, "this": true, "that": true,
	"these": true, "those": true, "some": true, "any": true, "from": true, "of": true,
	"on": true, "to": true, "for": true, "with": true, "and": true, "or": true,
	"in": true, "at": true, "by": true, "out": true, "up": true, "if": true,
}
