package entityextractor

import (
	"regexp"

	"scrape-planner/internal/models"
)

// number captures amounts such as 1,299.99.
const number = `(\d[\d,]*(?:\.\d+)?)`

// amount requires a currency marker so star ratings and counts are never
// read as prices. Either group 1 or group 2 holds the digits.
const amount = `(?:\$\s?` + number + `|` + number + `\s*(?:dollars?|usd)\b)`

type pricePattern struct {
	re         *regexp.Regexp
	kind       string
	confidence float64
}

var (
	priceRangePatterns = []pricePattern{
		{
			re:         regexp.MustCompile(`\b(?:between|from)\s+\$?\s?` + number + `(?:\s*(?:dollars?|usd))?\s+(?:and|to)\s+` + amount),
			kind:       models.PriceRange,
			confidence: 0.95,
		},
	}

	priceBoundPatterns = []pricePattern{
		{
			re:         regexp.MustCompile(`\b(?:under|below|less than|cheaper than|at most|no more than|up to|max(?:imum)?(?: of)?)\s+` + amount),
			kind:       models.PriceMax,
			confidence: 0.9,
		},
		{
			re:         regexp.MustCompile(`\b(?:over|above|more than|at least|no less than|starting at|min(?:imum)?(?: of)?)\s+` + amount),
			kind:       models.PriceMin,
			confidence: 0.9,
		},
	}

	// Amounts not covered by a range or bound are exact prices.
	priceAmountPattern = regexp.MustCompile(amount)
)

const (
	priceExactAnchoredConfidence = 0.85
	priceExactBareConfidence     = 0.8
)

var priceExactAnchor = regexp.MustCompile(`\b(?:priced at|costs?|costing|for|exactly|equal to)\s*$`)

var (
	ratingMinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d(?:\.\d)?)\s*\+\s*stars?\b`),
		regexp.MustCompile(`\b(?:above|over|at least|more than|minimum(?: of)?|min)\s+(\d(?:\.\d)?)\s*stars?\b`),
		regexp.MustCompile(`\brated\s+(?:above|over|at least)\s+(\d(?:\.\d)?)\b`),
		regexp.MustCompile(`\b(\d(?:\.\d)?)\s*stars?\s+(?:or\s+(?:higher|more|above|better)|and\s+(?:up|above))\b`),
	}
	ratingExactPattern = regexp.MustCompile(`\b(\d(?:\.\d)?)\s*stars?\b`)
)

const (
	ratingMinConfidence   = 0.9
	ratingExactConfidence = 0.85
	maxRating             = 10.0
)

var (
	dateRelativePattern = regexp.MustCompile(`\b(?:last|past|previous)\s+(\d+)\s+(days?|weeks?|months?)\b`)
	dateNamedPattern    = regexp.MustCompile(`\b(this|last|past)\s+(week|month|year)\b`)
	dateRecentPattern   = regexp.MustCompile(`\brecent(?:ly)?\b`)
	dateTodayPattern    = regexp.MustCompile(`\btoday\b`)
	dateYesterday       = regexp.MustCompile(`\byesterday\b`)
)

var unitDays = map[string]int{
	"day":   1,
	"week":  7,
	"month": 30,
	"year":  365,
}

const (
	dateRelativeConfidence  = 0.9
	dateNamedConfidence     = 0.85
	dateRecentConfidence    = 0.7
	dateTodayConfidence     = 0.95
	dateYesterdayConfidence = 0.9
	recentWindowDays        = 7
)

var (
	quantityAllPattern     = regexp.MustCompile(`\ball\s+(?:the\s+|of\s+the\s+)?([a-z]+)`)
	quantityLimitPattern   = regexp.MustCompile(`\b(?:first|top)\s+(\d+)\s+([a-z]+)`)
	quantityMinimumPattern = regexp.MustCompile(`\b(\d+)\s+or\s+more\s+([a-z]+)`)
)

const (
	quantityAllConfidence     = 0.8
	quantityLimitConfidence   = 0.9
	quantityMinimumConfidence = 0.85
)

// quantityStopItems are words that follow "all" without naming an item.
var quantityStopItems = map[string]bool{
	"of": true, "the": true, "that": true, "this": true, "these": true,
	"those": true, "them": true, "it": true, "in": true, "on": true,
	"and": true, "from": true, "with": true,
}

type category struct {
	name     string
	keywords []string
}

var categories = []category{
	{"products", []string{"product", "products", "item", "items", "goods", "listing", "listings"}},
	{"reviews", []string{"review", "reviews", "testimonial", "testimonials", "feedback", "comment", "comments"}},
	{"articles", []string{"article", "articles", "post", "posts", "blog", "blogs", "news", "story", "stories"}},
	{"jobs", []string{"job", "jobs", "position", "positions", "vacancy", "vacancies", "career", "careers", "opening", "openings"}},
	{"events", []string{"event", "events", "concert", "concerts", "meetup", "meetups", "conference", "conferences", "webinar", "webinars"}},
	{"contacts", []string{"contact", "contacts", "email", "emails", "phone", "phones", "address", "addresses"}},
	{"prices", []string{"price", "prices", "pricing", "cost", "costs"}},
	{"images", []string{"image", "images", "photo", "photos", "picture", "pictures", "thumbnail", "thumbnails"}},
	{"links", []string{"link", "links", "url", "urls", "href"}},
}

const categoryConfidence = 0.8

var (
	urlPattern   = regexp.MustCompile(`https?://[^\s,;"'<>]+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

const (
	urlConfidence     = 0.95
	contactConfidence = 0.9
)
