package models

import "time"

// UserStats holds the aggregate per-user counters updated after every closed session.
type UserStats struct {
	UserID        string `gorm:"primaryKey"`
	SessionCount  int
	CurrentStreak int
	LongestStreak int
	VibesSent     int
	VibesReceived int
	MutualMatches int
	Points        int
	LastSessionAt time.Time
}

// SessionStats is what one participant contributed to and received from a session.
type SessionStats struct {
	Sent         Action
	ReceivedVibe bool
	Mutual       bool
	At           time.Time
}
