// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"scrape-planner/internal/common/config"
	"scrape-planner/internal/common/database"
	"scrape-planner/internal/common/genai"
	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/models"
	"scrape-planner/internal/nlu/conversation"
	"scrape-planner/internal/nlu/entityextractor"
	"scrape-planner/internal/nlu/intentclassifier"
	"scrape-planner/internal/nlu/logicprocessor"
	"scrape-planner/internal/nlu/pipeline"

	cleanupsessions "scrape-planner/internal/workers/scrape-planning/cleanup-sessions"
	planscraperequest "scrape-planner/internal/workers/scrape-planning/plan-scrape-request"
	summarizesession "scrape-planner/internal/workers/scrape-planning/summarize-session"

	"github.com/alicebob/miniredis/v2"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyPrefix = "scrape-planner:session:"

var fixedNow = time.Date(2024, 9, 10, 8, 0, 0, 0, time.UTC)

// fakeGenAI answers /api/ai/generate per task and can be switched into an
// outage.
type fakeGenAI struct {
	intentCalls    atomic.Int32
	conditionCalls atomic.Int32
	down           atomic.Bool
}

func (f *fakeGenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.down.Load() {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Task string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var text string
	switch req.Task {
	case intentclassifier.TaskIntentClassification:
		f.intentCalls.Add(1)
		text = "```json\n{\"intent_type\":\"analyze_content\",\"confidence\":0.7,\"target_data\":[\"Products\"]}\n```"
	case logicprocessor.TaskConditionalAnalysis:
		f.conditionCalls.Add(1)
		text = `{"conditions":[{"type":"if","condition":"the rating is below 3","action":"flag the product"}]}`
	default:
		http.Error(w, "unknown task", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
}

type environment struct {
	mr      *miniredis.Miniredis
	clock   *clock.Mock
	genai   *fakeGenAI
	plan    *planscraperequest.Handler
	summary *summarizesession.Handler
	cleanup *cleanupsessions.Handler
}

func setup(t *testing.T) *environment {
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	rc, err := database.NewRedis(config.RedisConfig{Address: mr.Addr(), KeyPrefix: keyPrefix})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	fake := &fakeGenAI{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	completer := genai.NewClient(&genai.Config{BaseURL: server.URL, APIKey: "test-key", Timeout: 2 * time.Second}, log)

	mock := clock.NewMock()
	mock.Set(fixedNow)

	store := conversation.NewRedisStore(rc, 48*time.Hour)
	manager := conversation.NewManager(store, mock, log)
	planner := pipeline.NewPlanner(
		entityextractor.New(mock, log),
		intentclassifier.New(completer, intentclassifier.DefaultConfig(), log),
		logicprocessor.New(completer, logicprocessor.DefaultConfig(), mock, log),
		manager,
		nil,
		log,
	)

	app := &config.Config{Session: config.SessionConfig{MaxAgeHours: 24}}
	return &environment{
		mr:      mr,
		clock:   mock,
		genai:   fake,
		plan:    planscraperequest.NewHandler(planscraperequest.ConfigFrom(app), planner, nil, log),
		summary: summarizesession.NewHandler(summarizesession.ConfigFrom(app), manager, nil, log),
		cleanup: cleanupsessions.NewHandler(cleanupsessions.ConfigFrom(app), manager, nil, log),
	}
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	const session = "sess-e2e"

	// 1. Unambiguous request: answered by patterns alone
	first, err := env.plan.Execute(ctx, &planscraperequest.Input{SessionID: session, Text: "get all products under $50"})
	require.NoError(t, err)
	assert.False(t, first.Degraded, "reasons: %v", first.DegradedReasons)
	assert.Equal(t, models.ModeSimple, first.ExecutionPlan.ExecutionMode)
	assert.Equal(t, models.PrimaryStructuredData, first.ExecutionPlan.PrimaryStrategy)
	assert.Equal(t, int32(0), env.genai.intentCalls.Load())
	assert.Equal(t, int32(0), env.genai.conditionCalls.Load())

	assert.True(t, env.mr.Exists(keyPrefix+session))
	assert.Equal(t, 48*time.Hour, env.mr.TTL(keyPrefix+session))

	// 2. Conditional request: both model stages run and their output is trusted
	second, err := env.plan.Execute(ctx, &planscraperequest.Input{SessionID: session, Text: "if the rating is below 3 then flag the product"})
	require.NoError(t, err)
	assert.False(t, second.Degraded, "reasons: %v", second.DegradedReasons)
	assert.Equal(t, int32(1), env.genai.intentCalls.Load())
	assert.Equal(t, int32(1), env.genai.conditionCalls.Load())
	assert.Contains(t, second.Intent.TargetData, "products")
	require.True(t, second.ConditionAnalysis.HasConditions)
	assert.Equal(t, "the rating is below 3", second.ConditionAnalysis.Conditions[0].Condition)
	assert.Equal(t, models.ModeConditional, second.ExecutionPlan.ExecutionMode)

	var conditional *models.PlanStep
	for i := range second.ExecutionPlan.Steps {
		if second.ExecutionPlan.Steps[i].ActionType == models.ActionConditional {
			conditional = &second.ExecutionPlan.Steps[i]
		}
	}
	require.NotNil(t, conditional)
	assert.Equal(t, "the rating is below 3", conditional.Condition)

	// 3. Model outage: still planned, flagged degraded
	env.genai.down.Store(true)
	third, err := env.plan.Execute(ctx, &planscraperequest.Input{SessionID: session, Text: "when stock changes, let me know"})
	require.NoError(t, err)
	assert.True(t, third.Degraded)
	require.NotNil(t, third.ExecutionPlan)
	assert.GreaterOrEqual(t, third.Intent.Confidence, 0.0)
	assert.LessOrEqual(t, third.Intent.Confidence, 1.0)

	// 4. Summary reflects all three turns
	summary, err := env.summary.Execute(ctx, &summarizesession.Input{SessionID: session})
	require.NoError(t, err)
	require.True(t, summary.Found)
	assert.Equal(t, 3, summary.Summary.TurnCount)
	assert.Len(t, summary.Summary.ConfidenceTrend, 3)
	assert.Equal(t, []string{
		"get all products under $50",
		"if the rating is below 3 then flag the product",
		"when stock changes, let me know",
	}, summary.Summary.RecentInputs)

	// 5. A day and a bit later the session is swept
	env.clock.Add(30 * time.Hour)
	swept, err := env.cleanup.Execute(ctx, &cleanupsessions.Input{})
	require.NoError(t, err)
	assert.Equal(t, 1, swept.Cleaned)
	assert.Equal(t, 0, swept.Kept)
	assert.False(t, env.mr.Exists(keyPrefix+session))

	gone, err := env.summary.Execute(ctx, &summarizesession.Input{SessionID: session})
	require.NoError(t, err)
	assert.False(t, gone.Found)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	for _, id := range []string{"a", "b"} {
		_, err := env.plan.Execute(ctx, &planscraperequest.Input{SessionID: id, Text: "get all products under $50"})
		require.NoError(t, err)
	}
	_, err := env.plan.Execute(ctx, &planscraperequest.Input{SessionID: "a", Text: "also get reviews"})
	require.NoError(t, err)

	a, err := env.summary.Execute(ctx, &summarizesession.Input{SessionID: "a"})
	require.NoError(t, err)
	b, err := env.summary.Execute(ctx, &summarizesession.Input{SessionID: "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, a.Summary.TurnCount)
	assert.Equal(t, 1, b.Summary.TurnCount)
}
