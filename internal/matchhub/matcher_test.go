package matchhub_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibecall/backend/internal/matchhub"
	"vibecall/backend/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func queued(id string, joinedSec int, age int, gender models.Gender, prefs models.Preferences) models.QueueEntry {
	return models.QueueEntry{
		UserID:      id,
		JoinedAt:    t0.Add(time.Duration(joinedSec) * time.Second),
		Profile:     models.Profile{Age: age, Gender: gender},
		Preferences: prefs,
	}
}

func TestFindPairs_PairsCompatibleEntriesNotIncompatibleThird(t *testing.T) {
	wantsFemale := models.Preferences{GenderPreference: models.GenderFemale}
	snapshot := []models.QueueEntry{
		queued("third", 0, 40, models.GenderMale, models.Preferences{GenderPreference: models.GenderMale}),
		queued("A", 1, 20, models.GenderMale, wantsFemale),
		queued("B", 2, 21, models.GenderFemale, models.Preferences{GenderPreference: models.GenderAny}),
	}

	pairs := matchhub.FindPairs(snapshot)

	require.Len(t, pairs, 1)
	assert.Equal(t, "A", pairs[0].A.UserID)
	assert.Equal(t, "B", pairs[0].B.UserID)
}

func TestFindPairs_OldestFirstTieBreak(t *testing.T) {
	anyPrefs := models.Preferences{}
	snapshot := []models.QueueEntry{
		queued("late", 30, 25, models.GenderFemale, anyPrefs),
		queued("early", 10, 25, models.GenderFemale, anyPrefs),
		queued("first", 0, 25, models.GenderMale, anyPrefs),
	}

	pairs := matchhub.FindPairs(snapshot)

	require.Len(t, pairs, 1)
	assert.Equal(t, "first", pairs[0].A.UserID)
	assert.Equal(t, "early", pairs[0].B.UserID, "earliest joined candidate wins")
}

func TestFindPairs_GreedySkipsOverIncompatibleHead(t *testing.T) {
	// The oldest user has no partner, later users still pair.
	snapshot := []models.QueueEntry{
		queued("picky", 0, 30, models.GenderMale, models.Preferences{GenderPreference: models.GenderNonBinary}),
		queued("x", 1, 30, models.GenderMale, models.Preferences{}),
		queued("y", 2, 30, models.GenderFemale, models.Preferences{}),
	}

	pairs := matchhub.FindPairs(snapshot)

	require.Len(t, pairs, 1)
	assert.Equal(t, "x", pairs[0].A.UserID)
	assert.Equal(t, "y", pairs[0].B.UserID)
}

func TestFindPairs_NoSelfPairsNoDoubleBooking(t *testing.T) {
	var snapshot []models.QueueEntry
	for i := 0; i < 41; i++ {
		snapshot = append(snapshot, queued(fmt.Sprintf("u%02d", i), i, 20+i%10, models.GenderFemale, models.Preferences{}))
	}
	// A duplicated user id must never be paired with itself.
	snapshot = append(snapshot, queued("u00", 100, 20, models.GenderFemale, models.Preferences{}))

	pairs := matchhub.FindPairs(snapshot)

	seen := map[string]bool{}
	for _, p := range pairs {
		assert.NotEqual(t, p.A.UserID, p.B.UserID)
		assert.False(t, seen[p.A.UserID], "user %s in two pairs", p.A.UserID)
		assert.False(t, seen[p.B.UserID], "user %s in two pairs", p.B.UserID)
		seen[p.A.UserID] = true
		seen[p.B.UserID] = true
		assert.True(t, p.A.JoinedAt.Before(p.B.JoinedAt) || p.A.JoinedAt.Equal(p.B.JoinedAt))
	}
	assert.Len(t, pairs, 20)
}

func TestFindPairs_AgeRangesMustAgree(t *testing.T) {
	snapshot := []models.QueueEntry{
		queued("young", 0, 19, models.GenderMale, models.Preferences{AgeRange: &models.AgeRange{Min: 18, Max: 22}}),
		queued("old", 1, 45, models.GenderFemale, models.Preferences{}),
	}
	assert.Empty(t, matchhub.FindPairs(snapshot))
}

func TestComputeStats(t *testing.T) {
	snapshot := []models.QueueEntry{
		queued("a", 0, 0, "", models.Preferences{}),
		queued("b", 50, 0, "", models.Preferences{}),
	}

	st := matchhub.ComputeStats(snapshot, t0.Add(90*time.Second), 12*time.Second)

	assert.Equal(t, 2, st.TotalInQueue)
	assert.Equal(t, 90*time.Second, st.OldestWaitTime)
	assert.Equal(t, 12*time.Second, st.AvgWaitTime)

	empty := matchhub.ComputeStats(nil, t0, 0)
	assert.Zero(t, empty.TotalInQueue)
	assert.Zero(t, empty.OldestWaitTime)
}
