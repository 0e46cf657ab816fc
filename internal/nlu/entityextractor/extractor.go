// Package entityextractor pulls parametric facts (prices, ratings, date
// windows, quantities, categories, links and contacts) out of free-form
// scrape requests.
package entityextractor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/models"

	"github.com/benbjohnson/clock"
)

type Extractor struct {
	clock  clock.Clock
	logger logger.Logger
}

// New returns an extractor. Date cutoffs are resolved against clk.
func New(clk clock.Clock, log logger.Logger) *Extractor {
	if clk == nil {
		clk = clock.New()
	}
	return &Extractor{
		clock:  clk,
		logger: log.With(map[string]interface{}{"component": "entity_extractor"}),
	}
}

// Extract never fails: an internal error is logged and yields an empty list.
func (e *Extractor) Extract(text string) (entities []models.Entity) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("entity extraction panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
			entities = []models.Entity{}
		}
	}()

	lower := strings.ToLower(text)
	now := e.clock.Now()

	entities = make([]models.Entity, 0, 4)
	entities = append(entities, extractPrices(lower)...)
	entities = append(entities, extractRatings(lower)...)
	entities = append(entities, extractDates(lower, now)...)
	entities = append(entities, extractQuantities(lower)...)
	entities = append(entities, extractCategories(lower)...)
	entities = append(entities, extractLinks(text)...)
	entities = append(entities, extractContacts(text)...)

	e.logger.Debug("entities extracted", map[string]interface{}{
		"count": len(entities),
	})
	return entities
}

type span struct{ start, end int }

func (s span) within(spans []span) bool {
	for _, o := range spans {
		if s.start >= o.start && s.end <= o.end {
			return true
		}
	}
	return false
}

func extractPrices(text string) []models.Entity {
	var out []models.Entity
	var covered []span

	for _, p := range priceRangePatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			low, ok1 := parseAmount(text, m, 1)
			high, ok2 := firstAmount(text, m, 2)
			if !ok1 || !ok2 {
				continue
			}
			if low > high {
				low, high = high, low
			}
			covered = append(covered, span{m[0], m[1]})
			out = append(out, models.NewEntity(
				models.PriceValue{Kind: p.kind, Min: low, Max: high},
				p.confidence, text[m[0]:m[1]]))
		}
	}

	for _, p := range priceBoundPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			s := span{m[0], m[1]}
			if s.within(covered) {
				continue
			}
			v, ok := firstAmount(text, m, 1)
			if !ok {
				continue
			}
			covered = append(covered, s)
			out = append(out, models.NewEntity(
				models.PriceValue{Kind: p.kind, Amount: v},
				p.confidence, text[m[0]:m[1]]))
		}
	}

	for _, m := range priceAmountPattern.FindAllStringSubmatchIndex(text, -1) {
		if (span{m[0], m[1]}).within(covered) {
			continue
		}
		v, ok := firstAmount(text, m, 1)
		if !ok {
			continue
		}
		confidence := priceExactBareConfidence
		if priceExactAnchor.MatchString(text[:m[0]]) {
			confidence = priceExactAnchoredConfidence
		}
		out = append(out, models.NewEntity(
			models.PriceValue{Kind: models.PriceExact, Amount: v},
			confidence, text[m[0]:m[1]]))
	}

	return out
}

// firstAmount reads whichever of the two alternative amount groups starting
// at group index g participated in the match.
func firstAmount(text string, m []int, g int) (float64, bool) {
	if v, ok := parseAmount(text, m, g); ok {
		return v, true
	}
	return parseAmount(text, m, g+1)
}

func parseAmount(text string, m []int, g int) (float64, bool) {
	if 2*g+1 >= len(m) || m[2*g] < 0 {
		return 0, false
	}
	raw := strings.ReplaceAll(text[m[2*g]:m[2*g+1]], ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractRatings(text string) []models.Entity {
	var out []models.Entity
	var covered []span

	for _, re := range ratingMinPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			s := span{m[0], m[1]}
			if s.within(covered) {
				continue
			}
			v, ok := parseRating(text, m)
			if !ok {
				continue
			}
			covered = append(covered, s)
			out = append(out, models.NewEntity(
				models.RatingValue{Kind: models.RatingMin, Value: v},
				ratingMinConfidence, text[m[0]:m[1]]))
		}
	}

	for _, m := range ratingExactPattern.FindAllStringSubmatchIndex(text, -1) {
		if (span{m[0], m[1]}).within(covered) {
			continue
		}
		v, ok := parseRating(text, m)
		if !ok {
			continue
		}
		out = append(out, models.NewEntity(
			models.RatingValue{Kind: models.RatingExact, Value: v},
			ratingExactConfidence, text[m[0]:m[1]]))
	}

	return out
}

func parseRating(text string, m []int) (float64, bool) {
	v, ok := parseAmount(text, m, 1)
	if !ok || v < 0 || v > maxRating {
		return 0, false
	}
	return v, true
}

func extractDates(text string, now time.Time) []models.Entity {
	var out []models.Entity

	for _, m := range dateRelativePattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		unit := strings.TrimSuffix(m[2], "s")
		days := n * unitDays[unit]
		out = append(out, models.NewEntity(
			models.DateValue{Kind: models.DateRelative, Days: days, Unit: unit, Cutoff: now.AddDate(0, 0, -days)},
			dateRelativeConfidence, m[0]))
	}

	for _, m := range dateNamedPattern.FindAllStringSubmatch(text, -1) {
		days := unitDays[m[2]]
		out = append(out, models.NewEntity(
			models.DateValue{Kind: models.DateNamed, Days: days, Unit: m[2], Cutoff: now.AddDate(0, 0, -days)},
			dateNamedConfidence, m[0]))
	}

	if m := dateRecentPattern.FindString(text); m != "" {
		out = append(out, models.NewEntity(
			models.DateValue{Kind: models.DateRecent, Days: recentWindowDays, Unit: "day", Cutoff: now.AddDate(0, 0, -recentWindowDays)},
			dateRecentConfidence, m))
	}

	if m := dateTodayPattern.FindString(text); m != "" {
		out = append(out, models.NewEntity(
			models.DateValue{Kind: models.DateToday, Days: 0, Unit: "day", Cutoff: startOfDay(now)},
			dateTodayConfidence, m))
	}

	if m := dateYesterday.FindString(text); m != "" {
		out = append(out, models.NewEntity(
			models.DateValue{Kind: models.DateRelative, Days: 1, Unit: "day", Cutoff: startOfDay(now).AddDate(0, 0, -1)},
			dateYesterdayConfidence, m))
	}

	return out
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func extractQuantities(text string) []models.Entity {
	var out []models.Entity

	for _, m := range quantityAllPattern.FindAllStringSubmatch(text, -1) {
		if quantityStopItems[m[1]] {
			continue
		}
		out = append(out, models.NewEntity(
			models.QuantityValue{Kind: models.QuantityAll, Item: m[1]},
			quantityAllConfidence, m[0]))
	}

	for _, m := range quantityLimitPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, models.NewEntity(
			models.QuantityValue{Kind: models.QuantityLimit, Value: n, Item: m[2]},
			quantityLimitConfidence, m[0]))
	}

	for _, m := range quantityMinimumPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, models.NewEntity(
			models.QuantityValue{Kind: models.QuantityMinimum, Value: n, Item: m[2]},
			quantityMinimumConfidence, m[0]))
	}

	return out
}

func extractCategories(text string) []models.Entity {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		words[w] = true
	}

	var out []models.Entity
	for _, c := range categories {
		var matched []string
		for _, kw := range c.keywords {
			if words[kw] {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, models.NewEntity(
			models.CategoryValue{Category: c.name, Matched: matched},
			categoryConfidence, matched[0]))
	}
	return out
}

func extractLinks(text string) []models.Entity {
	var out []models.Entity
	for _, m := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(m, ".)")
		out = append(out, models.NewEntity(
			models.TextValue{Type: models.EntityURL, Text: u}, urlConfidence, u))
	}
	return out
}

func extractContacts(text string) []models.Entity {
	var out []models.Entity
	for _, m := range emailPattern.FindAllString(text, -1) {
		out = append(out, models.NewEntity(
			models.TextValue{Type: models.EntityContact, Text: m}, contactConfidence, m))
	}
	return out
}
