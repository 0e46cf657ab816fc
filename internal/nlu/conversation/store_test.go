package conversation

import (
	"context"
	"testing"
	"time"

	"scrape-planner/internal/common/config"
	"scrape-planner/internal/common/database"
	"scrape-planner/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "scrape-planner:session:"

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rc, err := database.NewRedis(config.RedisConfig{Address: mr.Addr(), KeyPrefix: testPrefix})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return NewRedisStore(rc, 48*time.Hour), mr
}

func sampleSession(id string) *models.SessionContext {
	sc := models.NewSessionContext(id, fixedNow)
	in := models.NewIntent(models.IntentExtractData, 0.8)
	in.AddTarget("laptops")
	in.SetFilter(models.FilterHasPriceFilter, true)
	sc.Remember(models.Turn{
		UserInput: "get laptops under $500",
		Intent:    *in,
		Entities: []models.Entity{
			models.NewEntity(models.PriceValue{Kind: models.PriceMax, Amount: 500}, 0.9, "under $500"),
			models.NewEntity(models.TextValue{Type: models.EntityURL, Text: "https://example.com"}, 0.95, "https://example.com"),
		},
		Timestamp: fixedNow,
	})
	sc.Topic = "laptops"
	return sc
}

func TestMemoryStore_CopiesAcrossBoundary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sc := sampleSession("a")
	require.NoError(t, store.Save(ctx, sc))
	sc.Topic = "changed after save"

	loaded, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "laptops", loaded.Topic)

	loaded.PreviousIntents[0].AddTarget("changed after load")
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"laptops"}, again.PreviousIntents[0].TargetData)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, store.Save(ctx, sampleSession("abc")))
	assert.True(t, mr.Exists(testPrefix+"abc"))
	assert.Equal(t, 48*time.Hour, mr.TTL(testPrefix+"abc"))

	loaded, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.SessionID)
	assert.Equal(t, "laptops", loaded.Topic)
	assert.True(t, fixedNow.Equal(loaded.LastUpdated))
	require.Len(t, loaded.ConversationHistory, 1)
	assert.Equal(t, true, loaded.ConversationHistory[0].Intent.Filters[models.FilterHasPriceFilter])

	require.Len(t, loaded.PreviousEntities, 2)
	assert.Equal(t, models.PriceValue{Kind: models.PriceMax, Amount: 500}, loaded.PreviousEntities[0].Value)
	assert.Equal(t, models.TextValue{Type: models.EntityURL, Text: "https://example.com"}, loaded.PreviousEntities[1].Value)
}

func TestRedisStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, store.Save(ctx, sampleSession(id)))
	}
	require.NoError(t, mr.Set("unrelated:key", "x"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two", "three"}, ids)

	require.NoError(t, store.Delete(ctx, "two"))
	_, err = store.Get(ctx, "two")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, mr.Exists("unrelated:key"))
}

func TestRedisStore_CorruptSession(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	require.NoError(t, mr.Set(testPrefix+"broken", `{"session_id":"broken","last_updated":"yesterday"}`))

	_, err := store.Get(ctx, "broken")
	assert.ErrorIs(t, err, ErrCorruptSession)
}

func TestRedisStore_CleanupRemovesCorruptAndStale(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	manager, _ := newTestManager(t, store)

	require.NoError(t, store.Save(ctx, sampleSession("live")))
	stale := sampleSession("stale")
	stale.LastUpdated = fixedNow.Add(-48 * time.Hour)
	require.NoError(t, store.Save(ctx, stale))
	require.NoError(t, mr.Set(testPrefix+"broken", "not json"))

	result := manager.Cleanup(ctx, 24)

	assert.Equal(t, CleanupResult{Cleaned: 2, Kept: 1}, result)
	assert.True(t, mr.Exists(testPrefix+"live"))
	assert.False(t, mr.Exists(testPrefix+"stale"))
	assert.False(t, mr.Exists(testPrefix+"broken"))
}

func TestRedisStore_UnavailableServer(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)
	manager, _ := newTestManager(t, store)
	mr.Close()

	sc, err := manager.Session(ctx, "abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	require.NotNil(t, sc)
	assert.Equal(t, "abc", sc.SessionID)

	result := manager.Cleanup(ctx, 24)
	assert.NotEmpty(t, result.Error)
}
