package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, store Store) (*Manager, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(fixedNow)
	if store == nil {
		store = NewMemoryStore()
	}
	return NewManager(store, mock, logger.NewTestLogger(t)), mock
}

func intentOf(t models.IntentType, confidence float64, targets ...string) *models.Intent {
	in := models.NewIntent(t, confidence)
	for _, target := range targets {
		in.AddTarget(target)
	}
	in.EnsureDefaults()
	return in
}

// sessionWith builds a session whose turns are the given intents, the last
// one stamped lastAge before fixedNow.
func sessionWith(lastAge time.Duration, intents ...*models.Intent) *models.SessionContext {
	sc := models.NewSessionContext("s-1", fixedNow.Add(-24*time.Hour))
	for i, in := range intents {
		ts := fixedNow.Add(-lastAge - time.Duration(len(intents)-1-i)*time.Minute)
		sc.Remember(models.Turn{UserInput: "turn", Intent: *in, Timestamp: ts})
	}
	return sc
}

func TestApplyContext_TemporalDecay(t *testing.T) {
	tests := []struct {
		name     string
		age      time.Duration
		initial  float64
		expected float64
	}{
		{"two hours old decays", 2 * time.Hour, 0.5, 0.4},
		{"decay stops at floor", 2 * time.Hour, 0.15, 0.1},
		{"below floor untouched", 2 * time.Hour, 0.05, 0.05},
		{"thirty seconds boosts", 30 * time.Second, 0.5, 0.6},
		{"boost capped", 30 * time.Second, 0.9, 0.95},
		{"above cap untouched", 30 * time.Second, 0.97, 0.97},
		{"ten minutes unchanged", 10 * time.Minute, 0.5, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := newTestManager(t, nil)
			sc := sessionWith(tt.age, intentOf(models.IntentCompareData, 0.3, "laptops"))

			out := manager.ApplyContext(intentOf(models.IntentExtractData, tt.initial, "phones"), sc, "show phones")

			assert.InDelta(t, tt.expected, out.Confidence, 1e-9)
			assert.Equal(t, models.IntentExtractData, out.Type)
		})
	}
}

func TestApplyContext_FocusBoost(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	sc := sessionWith(10*time.Minute,
		intentOf(models.IntentExtractData, 0.8, "products"),
		intentOf(models.IntentExtractData, 0.8, "products"),
		intentOf(models.IntentExtractData, 0.9, "products"),
	)
	require.Equal(t, FocusFocused, Focus(sc))

	out := manager.ApplyContext(intentOf(models.IntentExtractData, 0.7, "products"), sc, "next page")

	assert.InDelta(t, 0.85, out.Confidence, 1e-9)
}

func TestApplyContext_Connectors(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		initial      float64
		expectedType models.IntentType
		expectedConf float64
	}{
		{"additive", "also laptops", 0.4, models.IntentCompareData, 0.7},
		{"contrastive", "but cheaper ones", 0.4, models.IntentCompareData, 0.65},
		{"additive wins over contrastive", "and also but", 0.4, models.IntentCompareData, 0.7},
		{"confident intents keep their type", "also laptops", 0.75, models.IntentExtractData, 0.75},
		{"no connector", "laptops", 0.4, models.IntentExtractData, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := newTestManager(t, nil)
			sc := sessionWith(10*time.Minute,
				intentOf(models.IntentAnalyzeContent, 0.5, "reviews"),
				intentOf(models.IntentCompareData, 0.5, "phones"),
			)

			out := manager.ApplyContext(intentOf(models.IntentExtractData, tt.initial), sc, tt.text)

			assert.Equal(t, tt.expectedType, out.Type)
			assert.InDelta(t, tt.expectedConf, out.Confidence, 1e-9)
		})
	}
}

func TestApplyContext_TopicTargets(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	sc := sessionWith(10*time.Minute,
		intentOf(models.IntentExtractData, 0.9, "reviews"),
		intentOf(models.IntentExtractData, 0.9, "laptops", "prices"),
		intentOf(models.IntentCompareData, 0.9, "laptops", "prices"),
		intentOf(models.IntentExtractData, 0.9, "reviews"),
	)
	sc.Topic = "laptops"

	out := manager.ApplyContext(intentOf(models.IntentExtractData, 0.9, "tablets"), sc, "More Laptops please")
	assert.Equal(t, []string{"tablets", "laptops", "prices"}, out.TargetData)

	out = manager.ApplyContext(intentOf(models.IntentExtractData, 0.9, "tablets"), sc, "tablets only")
	assert.Equal(t, []string{"tablets"}, out.TargetData)
}

func TestApplyContext_FilterInheritance(t *testing.T) {
	manager, _ := newTestManager(t, nil)

	older := intentOf(models.IntentExtractData, 0.9, "products")
	older.SetFilter("max_price", 50.0)
	older.SetFilter("brand", "acme")
	newest := intentOf(models.IntentExtractData, 0.9, "products")
	sc := sessionWith(10*time.Minute, older, newest)

	current := intentOf(models.IntentExtractData, 0.5, "products")
	current.SetFilter("brand", "globex")

	out := manager.ApplyContext(current, sc, "show products")

	assert.Equal(t, 50.0, out.Filters["max_price"])
	assert.Equal(t, "globex", out.Filters["brand"])
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)

	confident := intentOf(models.IntentExtractData, 0.75, "products")
	out = manager.ApplyContext(confident, sc, "show products")
	assert.NotContains(t, out.Filters, "max_price")
}

func TestApplyContext_PreviousCriteria(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	sc := sessionWith(10*time.Minute, intentOf(models.IntentExtractData, 0.9, "products"))
	sc.PreviousEntities = []models.Entity{
		models.NewEntity(models.CategoryValue{Category: "jobs"}, 0.8, "jobs"),
		models.NewEntity(models.PriceValue{Kind: models.PriceMax, Amount: 10}, 0.9, "under $10"),
		models.NewEntity(models.PriceValue{Kind: models.PriceMin, Amount: 5}, 0.9, "over $5"),
		models.NewEntity(models.RatingValue{Kind: models.RatingMin, Value: 4}, 0.9, "4+ stars"),
		models.NewEntity(models.RatingValue{Kind: models.RatingMin, Value: 3}, 0.9, "3+ stars"),
		models.NewEntity(models.DateValue{Kind: models.DateToday}, 0.95, "today"),
	}

	out := manager.ApplyContext(intentOf(models.IntentExtractData, 0.9, "products"), sc, "again")

	assert.Equal(t, []string{models.ConditionPreviousCriteria, models.ConditionPreviousCriteria}, out.Conditions)
}

func TestApplyContext_EmptySession(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	sc := models.NewSessionContext("fresh", fixedNow)

	in := intentOf(models.IntentFilterContent, 0.42, "events")
	out := manager.ApplyContext(in, sc, "also events")

	assert.Same(t, in, out)
	assert.Equal(t, 0.42, out.Confidence)
	assert.Equal(t, models.IntentFilterContent, out.Type)
}

func TestApplyContext_ConfidenceAlwaysInRange(t *testing.T) {
	faker := gofakeit.New(42)
	manager, _ := newTestManager(t, nil)
	types := models.IntentTypes
	texts := []string{"also more", "but instead", "laptops", "and too", "plus reviews", ""}

	for i := 0; i < 300; i++ {
		var intents []*models.Intent
		turns := faker.IntRange(0, 6)
		for j := 0; j < turns; j++ {
			in := intentOf(types[faker.IntRange(0, len(types)-1)], faker.Float64Range(0, 1), "laptops")
			if faker.Bool() {
				in.SetFilter("k", j)
			}
			intents = append(intents, in)
		}
		sc := sessionWith(time.Duration(faker.IntRange(0, 7200))*time.Second, intents...)
		sc.Topic = "laptops"

		current := intentOf(types[faker.IntRange(0, len(types)-1)], faker.Float64Range(0, 1))
		out := manager.ApplyContext(current, sc, texts[faker.IntRange(0, len(texts)-1)])

		require.GreaterOrEqual(t, out.Confidence, 0.0)
		require.LessOrEqual(t, out.Confidence, 1.0)
		require.NotEmpty(t, out.TargetData)
	}
}

func TestUpdateMemory(t *testing.T) {
	ctx := context.Background()
	manager, mock := newTestManager(t, nil)

	for i := 0; i < 12; i++ {
		mock.Add(time.Minute)
		in := intentOf(models.IntentExtractData, 0.8, "laptops", "prices")
		entities := []models.Entity{
			models.NewEntity(models.PriceValue{Kind: models.PriceMax, Amount: float64(i)}, 0.9, "under"),
			models.NewEntity(models.RatingValue{Kind: models.RatingMin, Value: 4}, 0.9, "4+"),
		}
		require.NoError(t, manager.UpdateMemory(ctx, "s-42", "turn", in, entities))
	}

	sc, err := manager.Session(ctx, "s-42")
	require.NoError(t, err)
	assert.Len(t, sc.ConversationHistory, models.MaxHistory)
	assert.Len(t, sc.PreviousIntents, models.MaxPreviousIntents)
	assert.Len(t, sc.PreviousEntities, models.MaxPreviousEntities)
	assert.Equal(t, "laptops", sc.Topic)
	assert.Equal(t, fixedNow.Add(12*time.Minute), sc.LastUpdated)
	assert.Equal(t, fixedNow.Add(time.Minute), sc.CreatedAt)

	// oldest price entities evicted first
	oldest := sc.PreviousEntities[0].Value.(models.PriceValue)
	assert.Equal(t, 2.0, oldest.Amount)
}

func TestUpdateMemory_DoesNotAliasIntent(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t, nil)

	in := intentOf(models.IntentExtractData, 0.8, "laptops")
	require.NoError(t, manager.UpdateMemory(ctx, "s-1", "get laptops", in, nil))
	in.AddTarget("mutated")

	sc, err := manager.Session(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"laptops"}, sc.PreviousIntents[0].TargetData)
}

func TestSession_LazyCreation(t *testing.T) {
	store := NewMemoryStore()
	manager, _ := newTestManager(t, store)

	sc, err := manager.Session(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, "new", sc.SessionID)
	assert.Empty(t, sc.ConversationHistory)

	ids, _ := store.List(context.Background())
	assert.Empty(t, ids, "loading must not persist the session")
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	manager, mock := newTestManager(t, nil)

	missing := manager.Summarize(ctx, "nope")
	assert.Equal(t, "nope", missing.SessionID)
	assert.NotEmpty(t, missing.Error)

	turns := []struct {
		text   string
		intent *models.Intent
	}{
		{"get laptops", intentOf(models.IntentExtractData, 0.6, "laptops")},
		{"compare them", intentOf(models.IntentCompareData, 0.7, "laptops")},
		{"get prices", intentOf(models.IntentExtractData, 0.8, "prices")},
		{"get reviews", intentOf(models.IntentExtractData, 0.9, "reviews")},
	}
	for _, turn := range turns {
		mock.Add(time.Minute)
		entities := []models.Entity{models.NewEntity(models.CategoryValue{Category: "products"}, 0.8, "laptops")}
		require.NoError(t, manager.UpdateMemory(ctx, "s-7", turn.text, turn.intent, entities))
	}

	summary := manager.Summarize(ctx, "s-7")

	assert.Empty(t, summary.Error)
	assert.Equal(t, 4, summary.TurnCount)
	assert.Equal(t, "reviews", summary.Topic)
	assert.Equal(t, FocusExploratory, summary.Focus)
	assert.Equal(t, []float64{0.6, 0.7, 0.8, 0.9}, summary.ConfidenceTrend)
	assert.Equal(t, map[string]int{"extract_data": 3, "compare_data": 1}, summary.IntentDistribution)
	assert.Equal(t, []string{"compare them", "get prices", "get reviews"}, summary.RecentInputs)
	assert.Equal(t, []string{"category"}, summary.RecurringEntityTypes)
	assert.Equal(t, fixedNow.Add(4*time.Minute), summary.LastUpdated)
}

func TestFocus(t *testing.T) {
	extract := intentOf(models.IntentExtractData, 0.5)
	compare := intentOf(models.IntentCompareData, 0.5)

	assert.Equal(t, FocusExploratory, Focus(models.NewSessionContext("x", fixedNow)))
	assert.Equal(t, FocusFocused, Focus(sessionWith(time.Minute, extract, extract)))
	assert.Equal(t, FocusConverging, Focus(sessionWith(time.Minute, compare, extract, extract, extract)))
	assert.Equal(t, FocusExploratory, Focus(sessionWith(time.Minute, extract, extract, compare)))
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	manager, _ := newTestManager(t, store)

	ages := map[string]time.Duration{
		"fresh":       time.Hour,
		"almost":      23*time.Hour + 59*time.Minute,
		"stale":       25 * time.Hour,
		"ancient":     30 * 24 * time.Hour,
		"boundary-ok": 24 * time.Hour,
	}
	for id, age := range ages {
		sc := models.NewSessionContext(id, fixedNow.Add(-age))
		require.NoError(t, store.Save(ctx, sc))
	}
	unstamped := models.NewSessionContext("unstamped", fixedNow)
	unstamped.LastUpdated = time.Time{}
	require.NoError(t, store.Save(ctx, unstamped))

	result := manager.Cleanup(ctx, 24)

	assert.Equal(t, CleanupResult{Cleaned: 3, Kept: 3}, result)
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"almost", "boundary-ok", "fresh"}, ids)
}

func TestCleanup_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	manager, _ := newTestManager(t, store)
	require.NoError(t, store.Save(context.Background(), models.NewSessionContext("a", fixedNow)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := manager.Cleanup(ctx, 24)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 0, result.Cleaned)
}

// flakyStore fails the next failGets reads with err, then behaves like the
// wrapped store.
type flakyStore struct {
	Store
	failGets int
	err      error
	saves    int
}

func (f *flakyStore) Get(ctx context.Context, id string) (*models.SessionContext, error) {
	if f.failGets > 0 {
		f.failGets--
		return nil, f.err
	}
	return f.Store.Get(ctx, id)
}

func (f *flakyStore) Save(ctx context.Context, sc *models.SessionContext) error {
	f.saves++
	return f.Store.Save(ctx, sc)
}

// panickingStore panics on every call.
type panickingStore struct{ Store }

func (panickingStore) Get(ctx context.Context, id string) (*models.SessionContext, error) {
	panic("store exploded")
}

func (panickingStore) List(ctx context.Context) ([]string, error) {
	panic("store exploded")
}

// panickingClock panics when asked for the time.
type panickingClock struct{ clock.Clock }

func (panickingClock) Now() time.Time { panic("clock exploded") }

func TestUpdateMemory_ReadFailures(t *testing.T) {
	tests := []struct {
		name           string
		readErr        error
		wantErr        bool
		wantHistoryLen int
	}{
		{name: "transient read keeps history", readErr: errors.New("i/o timeout"), wantErr: true, wantHistoryLen: 4},
		{name: "corrupt session is replaced", readErr: fmt.Errorf("%w: s-1: bad json", ErrCorruptSession), wantHistoryLen: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := &flakyStore{Store: NewMemoryStore(), err: tt.readErr}
			manager, mock := newTestManager(t, store)

			for i := 0; i < 4; i++ {
				mock.Add(time.Minute)
				require.NoError(t, manager.UpdateMemory(ctx, "s-1", "get laptops", intentOf(models.IntentExtractData, 0.8, "laptops"), nil))
			}
			savesBefore := store.saves

			store.failGets = 1
			err := manager.UpdateMemory(ctx, "s-1", "and reviews", intentOf(models.IntentExtractData, 0.8, "reviews"), nil)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.readErr)
				assert.Equal(t, savesBefore, store.saves, "nothing may be written after a failed read")
			} else {
				require.NoError(t, err)
			}

			sc, err := manager.Session(ctx, "s-1")
			require.NoError(t, err)
			assert.Len(t, sc.ConversationHistory, tt.wantHistoryLen)
		})
	}
}

func TestManager_PanicsStayInside(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager(t, panickingStore{Store: NewMemoryStore()})

	err := manager.UpdateMemory(ctx, "s-1", "get laptops", intentOf(models.IntentExtractData, 0.8), nil)
	assert.ErrorContains(t, err, "internal error")

	summary := manager.Summarize(ctx, "s-1")
	assert.Equal(t, "s-1", summary.SessionID)
	assert.Contains(t, summary.Error, "internal error")
	assert.Error(t, summary.Err)

	result := manager.Cleanup(ctx, 24)
	assert.Contains(t, result.Error, "internal error")
	assert.Equal(t, 0, result.Cleaned)
}

func TestApplyContext_PanicRestoresIntent(t *testing.T) {
	manager := NewManager(NewMemoryStore(), panickingClock{}, logger.NewTestLogger(t))
	previous := intentOf(models.IntentExtractData, 0.9, "laptops")
	sc := sessionWith(time.Minute, previous, previous, previous)

	in := intentOf(models.IntentCompareData, 0.5, "laptops")
	want := in.Clone()

	out := manager.ApplyContext(in, sc, "also laptops")

	assert.Same(t, in, out)
	assert.Equal(t, want, out)
}
