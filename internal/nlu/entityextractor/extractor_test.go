package entityextractor

import (
	"testing"
	"time"

	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

func newTestExtractor(t *testing.T) *Extractor {
	mock := clock.NewMock()
	mock.Set(fixedNow)
	return New(mock, logger.NewTestLogger(t))
}

func ofType(entities []models.Entity, t models.EntityType) []models.Entity {
	var out []models.Entity
	for _, e := range entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestExtract_Prices(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		expected   []models.PriceValue
		confidence []float64
	}{
		{
			name:       "range",
			text:       "laptops between $20 and $50",
			expected:   []models.PriceValue{{Kind: models.PriceRange, Min: 20, Max: 50}},
			confidence: []float64{0.95},
		},
		{
			name:       "range with bare lower bound",
			text:       "from 100 to 250 dollars",
			expected:   []models.PriceValue{{Kind: models.PriceRange, Min: 100, Max: 250}},
			confidence: []float64{0.95},
		},
		{
			name:       "maximum",
			text:       "get all products under $50",
			expected:   []models.PriceValue{{Kind: models.PriceMax, Amount: 50}},
			confidence: []float64{0.9},
		},
		{
			name:       "minimum with thousands separator",
			text:       "cars above $1,500.50",
			expected:   []models.PriceValue{{Kind: models.PriceMin, Amount: 1500.5}},
			confidence: []float64{0.9},
		},
		{
			name:       "anchored exact",
			text:       "anything priced at $19.99",
			expected:   []models.PriceValue{{Kind: models.PriceExact, Amount: 19.99}},
			confidence: []float64{0.85},
		},
		{
			name:       "bare amount",
			text:       "$30 headphones",
			expected:   []models.PriceValue{{Kind: models.PriceExact, Amount: 30}},
			confidence: []float64{0.8},
		},
		{
			name:     "no currency marker",
			text:     "under 50 items",
			expected: nil,
		},
		{
			name:     "bound without currency marker",
			text:     "products under 50",
			expected: nil,
		},
	}

	extractor := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := ofType(extractor.Extract(tt.text), models.EntityPrice)
			require.Len(t, prices, len(tt.expected))
			for i, want := range tt.expected {
				assert.Equal(t, want, prices[i].Value)
				assert.Equal(t, tt.confidence[i], prices[i].Confidence)
			}
		})
	}
}

func TestExtract_Ratings(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []models.RatingValue
	}{
		{"comparator", "hotels above 4 stars", []models.RatingValue{{Kind: models.RatingMin, Value: 4}}},
		{"plus suffix", "4.5+ stars only", []models.RatingValue{{Kind: models.RatingMin, Value: 4.5}}},
		{"rated above", "restaurants rated above 3", []models.RatingValue{{Kind: models.RatingMin, Value: 3}}},
		{"trailing or higher", "rated 4.5 stars or higher", []models.RatingValue{{Kind: models.RatingMin, Value: 4.5}}},
		{"trailing and up", "hotels 4 stars and up", []models.RatingValue{{Kind: models.RatingMin, Value: 4}}},
		{"exact", "show 5 star reviews", []models.RatingValue{{Kind: models.RatingExact, Value: 5}}},
		{"none", "show reviews", nil},
	}

	extractor := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratings := ofType(extractor.Extract(tt.text), models.EntityRating)
			require.Len(t, ratings, len(tt.expected))
			for i, want := range tt.expected {
				assert.Equal(t, want, ratings[i].Value)
			}
		})
	}
}

func TestExtract_Dates(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		kind       string
		days       int
		cutoff     time.Time
		confidence float64
	}{
		{"relative days", "posts from the last 3 days", models.DateRelative, 3, fixedNow.AddDate(0, 0, -3), 0.9},
		{"relative weeks", "past 2 weeks of news", models.DateRelative, 14, fixedNow.AddDate(0, 0, -14), 0.9},
		{"named month", "articles this month", models.DateNamed, 30, fixedNow.AddDate(0, 0, -30), 0.85},
		{"named year", "jobs posted last year", models.DateNamed, 365, fixedNow.AddDate(0, 0, -365), 0.85},
		{"recent", "recently added listings", models.DateRecent, 7, fixedNow.AddDate(0, 0, -7), 0.7},
		{"today", "events happening today", models.DateToday, 0, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 0.95},
	}

	extractor := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := ofType(extractor.Extract(tt.text), models.EntityDate)
			require.Len(t, dates, 1)

			value, ok := dates[0].Value.(models.DateValue)
			require.True(t, ok)
			assert.Equal(t, tt.kind, value.Kind)
			assert.Equal(t, tt.days, value.Days)
			assert.True(t, tt.cutoff.Equal(value.Cutoff), "cutoff %s, want %s", value.Cutoff, tt.cutoff)
			assert.Equal(t, tt.confidence, dates[0].Confidence)
		})
	}
}

func TestExtract_Quantities(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []models.QuantityValue
	}{
		{"all", "scrape all the reviews", []models.QuantityValue{{Kind: models.QuantityAll, Item: "reviews"}}},
		{"limit", "top 10 articles", []models.QuantityValue{{Kind: models.QuantityLimit, Value: 10, Item: "articles"}}},
		{"minimum", "listings with 3 or more photos", []models.QuantityValue{{Kind: models.QuantityMinimum, Value: 3, Item: "photos"}}},
		{"all of it", "take all of it", nil},
	}

	extractor := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quantities := ofType(extractor.Extract(tt.text), models.EntityQuantity)
			require.Len(t, quantities, len(tt.expected))
			for i, want := range tt.expected {
				assert.Equal(t, want, quantities[i].Value)
			}
		})
	}
}

func TestExtract_CategoriesOnePerCategory(t *testing.T) {
	extractor := newTestExtractor(t)

	entities := extractor.Extract("Compare product prices and item reviews")
	categories := ofType(entities, models.EntityCategory)
	require.Len(t, categories, 3)

	assert.Equal(t, models.CategoryValue{Category: "products", Matched: []string{"product", "item"}}, categories[0].Value)
	assert.Equal(t, "reviews", categories[1].Value.(models.CategoryValue).Category)
	assert.Equal(t, "prices", categories[2].Value.(models.CategoryValue).Category)
	for _, c := range categories {
		assert.Equal(t, 0.8, c.Confidence)
	}
}

func TestExtract_LinksAndContacts(t *testing.T) {
	extractor := newTestExtractor(t)

	entities := extractor.Extract("Scrape https://Shop.example.com/deals. and mail Sales@Example.com")

	links := ofType(entities, models.EntityURL)
	require.Len(t, links, 1)
	assert.Equal(t, "https://Shop.example.com/deals", links[0].Value.(models.TextValue).Text)

	contacts := ofType(entities, models.EntityContact)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Sales@Example.com", contacts[0].Context)
}

func TestExtract_EmptyAndNoise(t *testing.T) {
	extractor := newTestExtractor(t)

	assert.Empty(t, extractor.Extract(""))
	assert.Empty(t, extractor.Extract("hello there"))
	assert.NotNil(t, extractor.Extract(""))
}

func TestExtract_ConfidenceBounds(t *testing.T) {
	extractor := newTestExtractor(t)

	inputs := []string{
		"get the first 5 products between $10 and $2,000 rated above 4 stars from the past 3 months",
		"all jobs today, recently posted, 2 or more openings, under 40 usd",
	}
	for _, in := range inputs {
		for _, e := range extractor.Extract(in) {
			assert.GreaterOrEqual(t, e.Confidence, 0.0)
			assert.LessOrEqual(t, e.Confidence, 1.0)
			assert.Equal(t, e.Type, e.Value.EntityType())
		}
	}
}
