// Package stats keeps the aggregate profile counters updated after every closed session.
package stats

import (
	"context"
	"time"

	"vibecall/backend/internal/config"
	"vibecall/backend/internal/models"
)

// Repository applies fn to the user's stats row atomically, creating it when missing.
type Repository interface {
	UpdateUserStats(ctx context.Context, userID string, fn func(*models.UserStats)) error
}

type Service struct {
	Repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{Repo: repo}
}

// RecordSession folds one closed session into the user's stats.
func (s *Service) RecordSession(ctx context.Context, userID string, in models.SessionStats) error {
	return s.Repo.UpdateUserStats(ctx, userID, func(st *models.UserStats) {
		Apply(st, in)
	})
}

// Apply updates st with one session. The streak counts consecutive UTC days with at
// least one session.
func Apply(st *models.UserStats, in models.SessionStats) {
	st.SessionCount++
	st.Points += config.SessionCompletedPoints

	if in.Sent == models.ActionVibe {
		st.VibesSent++
	}
	if in.ReceivedVibe {
		st.VibesReceived++
		st.Points += config.VibeReceivedPoints
	}
	if in.Mutual {
		st.MutualMatches++
		st.Points += config.MutualMatchPoints
	}

	day := utcDay(in.At)
	switch {
	case st.LastSessionAt.IsZero():
		st.CurrentStreak = 1
	case utcDay(st.LastSessionAt).Equal(day):
		if st.CurrentStreak == 0 {
			st.CurrentStreak = 1
		}
	case utcDay(st.LastSessionAt).AddDate(0, 0, 1).Equal(day):
		st.CurrentStreak++
	default:
		st.CurrentStreak = 1
	}
	if st.CurrentStreak > st.LongestStreak {
		st.LongestStreak = st.CurrentStreak
	}
	if in.At.After(st.LastSessionAt) {
		st.LastSessionAt = in.At
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
