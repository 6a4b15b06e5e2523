package latesttrip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetops/internal/domain/models"
)

func TestResolveLatestDateWinsRankBreaksTies(t *testing.T) {
	in := []models.TripSummary{
		{ID: "C", StartDate: day(1), RankIndex: 0},
		{ID: "B", StartDate: day(2), RankIndex: 1},
		{ID: "A", StartDate: day(2), RankIndex: 0},
	}
	id, ok := Resolve(in)
	require.True(t, ok)
	assert.Equal(t, "A", id)
}

func TestResolveIsDeterministic(t *testing.T) {
	in := []models.TripSummary{
		{ID: "t-1", StartDate: day(3), RankIndex: 0},
		{ID: "t-2", StartDate: day(3), RankIndex: 0},
		{ID: "t-3", StartDate: day(3), RankIndex: 0},
		{ID: "t-4", StartDate: nil},
	}
	first, ok1 := Resolve(in)
	second, ok2 := Resolve(in)
	assert.Equal(t, first, second)
	assert.Equal(t, ok1, ok2)

	reversed := []models.TripSummary{in[3], in[2], in[1], in[0]}
	third, _ := Resolve(reversed)
	assert.Equal(t, first, third, "input order must not matter")
	assert.Equal(t, "t-3", first, "greatest id wins a full tie")
}

func TestResolveExcludesNullStart(t *testing.T) {
	id, ok := Resolve([]models.TripSummary{{ID: "only", StartDate: nil}})
	assert.False(t, ok)
	assert.Empty(t, id)

	id, ok = Resolve(nil)
	assert.False(t, ok)
	assert.Empty(t, id)

	id, ok = Resolve([]models.TripSummary{
		{ID: "placeholder", StartDate: nil, RankIndex: -5},
		{ID: "old", StartDate: day(1)},
	})
	assert.True(t, ok)
	assert.Equal(t, "old", id)
}

func TestResolveTimeBeatsRankWithinDay(t *testing.T) {
	id, _ := Resolve([]models.TripSummary{
		{ID: "morning", StartDate: at(5, 7), RankIndex: 0},
		{ID: "evening", StartDate: at(5, 19), RankIndex: 3},
	})
	assert.Equal(t, "evening", id)
}

func TestRankOrdersWithoutMutatingInput(t *testing.T) {
	in := []models.TripSummary{
		{ID: "a", StartDate: day(1)},
		{ID: "b", StartDate: day(3)},
		{ID: "c", StartDate: nil},
		{ID: "d", StartDate: day(2)},
	}
	ranked := Rank(in)

	ids := make([]string, 0, len(ranked))
	for _, s := range ranked {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"b", "d", "a"}, ids)
	assert.Equal(t, "a", in[0].ID)
	assert.Equal(t, "c", in[2].ID)
}

func TestMergeReplacesOrAppends(t *testing.T) {
	stored := []models.TripSummary{
		{ID: "T1", StartDate: day(10)},
		{ID: "T2", StartDate: nil},
	}

	// T2 just got its start date but the stored copy is stale.
	merged := Merge(stored, models.TripSummary{ID: "T2", StartDate: day(12)})
	require.Len(t, merged, 2)
	id, _ := Resolve(merged)
	assert.Equal(t, "T2", id)
	assert.Nil(t, stored[1].StartDate, "input must not change")

	merged = Merge(stored, models.TripSummary{ID: "T3", StartDate: day(11)})
	require.Len(t, merged, 3)
	id, _ = Resolve(merged)
	assert.Equal(t, "T3", id)
}
