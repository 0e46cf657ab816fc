package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionContext_Remember_EvictsOldestFirst(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sc := NewSessionContext("s-1", start)

	for i := 0; i < 37; i++ {
		in := FallbackIntent(0.5)
		in.TargetData = []string{fmt.Sprintf("target-%d", i)}
		sc.Remember(Turn{
			UserInput: fmt.Sprintf("turn %d", i),
			Intent:    *in,
			Entities: []Entity{
				NewEntity(PriceValue{Kind: PriceMax, Amount: float64(i)}, 0.9, "a"),
				NewEntity(RatingValue{Kind: RatingMin, Value: float64(i)}, 0.9, "b"),
			},
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})

		assert.LessOrEqual(t, len(sc.ConversationHistory), MaxHistory)
		assert.LessOrEqual(t, len(sc.PreviousIntents), MaxPreviousIntents)
		assert.LessOrEqual(t, len(sc.PreviousEntities), MaxPreviousEntities)
	}

	assert.Len(t, sc.ConversationHistory, MaxHistory)
	assert.Equal(t, "turn 27", sc.ConversationHistory[0].UserInput)
	assert.Equal(t, "turn 36", sc.ConversationHistory[MaxHistory-1].UserInput)

	assert.Len(t, sc.PreviousIntents, MaxPreviousIntents)
	assert.Equal(t, []string{"target-32"}, sc.PreviousIntents[0].TargetData)
	assert.Equal(t, []string{"target-36"}, sc.PreviousIntents[MaxPreviousIntents-1].TargetData)

	// two entities per turn: the last 20 belong to turns 27..36
	assert.Len(t, sc.PreviousEntities, MaxPreviousEntities)
	first := sc.PreviousEntities[0].Value.(PriceValue)
	last := sc.PreviousEntities[MaxPreviousEntities-1].Value.(RatingValue)
	assert.Equal(t, 27.0, first.Amount)
	assert.Equal(t, 36.0, last.Value)
}

func TestSessionContext_Clone_IsIndependent(t *testing.T) {
	sc := NewSessionContext("s-2", time.Now())
	in := FallbackIntent(0.4)
	in.SetFilter("has_price_filter", true)
	sc.Remember(Turn{UserInput: "get prices", Intent: *in, Timestamp: time.Now()})

	cp := sc.Clone()
	cp.PreviousIntents[0].TargetData[0] = "changed"
	cp.ConversationHistory[0].Intent.Filters["extra"] = 1

	assert.Equal(t, DefaultTarget, sc.PreviousIntents[0].TargetData[0])
	assert.NotContains(t, sc.ConversationHistory[0].Intent.Filters, "extra")
}

func TestKeepLast(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5}, KeepLast([]int{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, []int{1, 2}, KeepLast([]int{1, 2}, 3))
	assert.Empty(t, KeepLast([]int{}, 3))
}
