package services

import (
	"testing"
	"time"

	"github.com/dima260208d-dot/kinetik-energy-project/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekBounds(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	monday := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		asOf time.Time
	}{
		{"monday morning", time.Date(2024, 5, 13, 9, 0, 0, 0, moscow)},
		{"midweek", time.Date(2024, 5, 15, 12, 0, 0, 0, moscow)},
		{"sunday late", time.Date(2024, 5, 19, 23, 59, 0, 0, moscow)},
		// 22:30 UTC on Sunday is already Monday 01:30 in Moscow.
		{"utc sunday is next week locally", time.Date(2024, 5, 12, 22, 30, 0, 0, time.UTC).AddDate(0, 0, 7)},
	}
	for _, tc := range cases[:3] {
		start, end := WeekBounds(tc.asOf, moscow)
		assert.Equal(t, monday, start, tc.name)
		assert.Equal(t, sunday, end, tc.name)
	}

	start, _ := WeekBounds(cases[3].asOf, moscow)
	assert.Equal(t, monday.AddDate(0, 0, 7), start)

	start, _ = WeekBounds(cases[3].asOf, time.UTC)
	assert.Equal(t, monday, start)
}

func TestActivityWindowUsesLocalMidnight(t *testing.T) {
	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tour := &models.Tournament{WeekStart: time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)}
	from, to := activityWindow(tour, moscow)

	assert.Equal(t, time.Date(2024, 5, 12, 21, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, 7*24*time.Hour, to.Sub(from))
}

func TestScoreOf(t *testing.T) {
	g, tr, tn, total := scoreOf(3, 2, 1)
	assert.Equal(t, int64(30), g)
	assert.Equal(t, int64(50), tr)
	assert.Equal(t, int64(30), tn)
	assert.Equal(t, int64(110), total)
}

func TestAssignRanksTieBreaksByJoinTime(t *testing.T) {
	base := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	entries := []models.TournamentEntry{
		{ID: "c", Score: 50, JoinedAt: base},
		{ID: "b", Score: 80, JoinedAt: base.Add(2 * time.Hour)},
		{ID: "a", Score: 80, JoinedAt: base.Add(time.Hour)},
	}

	assignRanks(entries)

	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "c", entries[2].ID)
	assert.Equal(t, 3, entries[2].Rank)
}

func TestAssignRanksIsPermutation(t *testing.T) {
	joined := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	entries := []models.TournamentEntry{
		{ID: "e1", Score: 0, JoinedAt: joined},
		{ID: "e2", Score: 0, JoinedAt: joined},
		{ID: "e3", Score: 25, JoinedAt: joined},
		{ID: "e4", Score: 0, JoinedAt: joined},
	}
	assignRanks(entries)

	seen := map[int]bool{}
	for _, e := range entries {
		seen[e.Rank] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true}, seen)
	assert.Equal(t, "e3", entries[0].ID)
	// equal score and join time fall back to id order
	assert.Equal(t, []string{"e1", "e2", "e4"}, []string{entries[1].ID, entries[2].ID, entries[3].ID})
}

func TestAssignRanksEmpty(t *testing.T) {
	assert.NotPanics(t, func() { assignRanks(nil) })
}
